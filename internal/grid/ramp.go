// Package grid turns species distribution grid predictions into render
// styling, legends, hotspot classifications and CSV extracts.
//
// Probabilities are plain float64 values; an absent probability is carried
// as NaN so every function here stays total.
package grid

import "math"

// Transparent is the fill for cells without a probability.
const Transparent = "#ffffff00"

// palette holds one color per band, coolest first.
var palette = [...]string{
	"#f7fbff",
	"#c6dbef",
	"#74a9cf",
	"#fdae6b",
	"#f16913",
	"#a50f15",
}

// breakpoints are the inclusive upper bounds of every band but the last.
var breakpoints = [...]float64{0.1, 0.25, 0.45, 0.6, 0.8}

// Absent is the probability value used for cells without one.
var Absent = math.NaN()

// ProbOf converts an optional probability into the NaN-for-absent form.
func ProbOf(p *float64) float64 {
	if p == nil {
		return Absent
	}
	return *p
}

// Band returns the palette index for p, or -1 when p is not finite.
func Band(p float64) int {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return -1
	}
	for i, b := range breakpoints {
		if p <= b {
			return i
		}
	}
	return len(breakpoints)
}

// ColorFor maps a probability to its band color. Non-finite values map to
// Transparent.
func ColorFor(p float64) string {
	i := Band(p)
	if i < 0 {
		return Transparent
	}
	return palette[i]
}

// Palette returns the band colors, coolest first.
func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette[:])
	return out
}
