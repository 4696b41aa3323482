package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coerce returns x as a float64, or fallback when x is nil, not numeric, or
// not finite. Numeric strings such as "27.5" are accepted because several
// providers transmit measurements as text.
func Coerce(x any, fallback float64) float64 {
	if v, ok := ParseNumber(x); ok {
		return v
	}
	return fallback
}

// ParseNumber is the presence-aware form of Coerce: it reports false instead
// of substituting a fallback.
func ParseNumber(x any) (float64, bool) {
	var v float64
	switch n := x.(type) {
	case nil:
		return 0, false
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int8:
		v = float64(n)
	case int16:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint8:
		v = float64(n)
	case uint16:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	case *float64:
		if n == nil {
			return 0, false
		}
		v = *n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
