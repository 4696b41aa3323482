package grid

import (
	"math"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// Class is the hotspot classification of a cell or centroid.
type Class string

const (
	Hotspot  Class = "hotspot"
	Coldspot Class = "coldspot"
	Possible Class = "possible"
	Unknown  Class = "unknown"
)

// Default thresholds applied when a prediction does not set its own.
const (
	DefaultHotspotThreshold  = 0.7
	DefaultColdspotThreshold = 0.3
)

// Thresholds returns the coldspot and hotspot thresholds for breaks,
// substituting defaults for unset or non-finite values.
func Thresholds(breaks *domain.ProbBreaks) (cold, hot float64) {
	cold, hot = DefaultColdspotThreshold, DefaultHotspotThreshold
	if breaks == nil {
		return cold, hot
	}
	if v, ok := domain.ParseNumber(breaks.ColdspotThreshold); ok {
		cold = v
	}
	if v, ok := domain.ParseNumber(breaks.HotspotThreshold); ok {
		hot = v
	}
	return cold, hot
}

// Classify labels p as a hotspot (p > hot), coldspot (p < cold) or possible.
// A non-finite p is Unknown.
func Classify(p float64, breaks *domain.ProbBreaks) Class {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return Unknown
	}
	cold, hot := Thresholds(breaks)
	switch {
	case p > hot:
		return Hotspot
	case p < cold:
		return Coldspot
	default:
		return Possible
	}
}

// ClassCounts tallies cells per class.
type ClassCounts struct {
	Hotspot  int `json:"hotspot"`
	Coldspot int `json:"coldspot"`
	Possible int `json:"possible"`
	Unknown  int `json:"unknown"`
}

func (c *ClassCounts) add(class Class) {
	switch class {
	case Hotspot:
		c.Hotspot++
	case Coldspot:
		c.Coldspot++
	case Possible:
		c.Possible++
	default:
		c.Unknown++
	}
}
