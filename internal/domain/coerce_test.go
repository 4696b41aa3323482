package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerce(t *testing.T) {
	const fallback = -1.0

	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, fallback},
		{"non-numeric string", "abc", fallback},
		{"empty string", "", fallback},
		{"NaN", math.NaN(), fallback},
		{"positive infinity", math.Inf(1), fallback},
		{"negative infinity", math.Inf(-1), fallback},
		{"infinity string", "Infinity", fallback},
		{"NaN string", "NaN", fallback},
		{"bool", true, fallback},
		{"nil pointer", (*float64)(nil), fallback},
		{"struct", struct{}{}, fallback},
		{"float", 3.5, 3.5},
		{"negative float", -2.25, -2.25},
		{"zero", 0.0, 0},
		{"int", 7, 7},
		{"int64", int64(-42), -42},
		{"float32", float32(1.5), 1.5},
		{"json number", json.Number("12.75"), 12.75},
		{"numeric string", "27.5", 27.5},
		{"padded numeric string", " 8 ", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.in, fallback))
		})
	}
}

func TestCoerceDefaultsToZeroFallback(t *testing.T) {
	assert.Equal(t, 0.0, Coerce("UNK", 0))
}

func TestParseNumber(t *testing.T) {
	v, ok := ParseNumber("50")
	assert.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok = ParseNumber(nil)
	assert.False(t, ok)

	_, ok = ParseNumber(math.NaN())
	assert.False(t, ok)

	f := 4.0
	v, ok = ParseNumber(&f)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)
}
