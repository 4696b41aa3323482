package grid

import (
	"fmt"
	"math"
)

const (
	// StrokeDefault outlines ordinary cells.
	StrokeDefault = "#666666"
	// StrokeEmphasis outlines cells above EmphasisThreshold.
	StrokeEmphasis = "#800026"

	// EmphasisThreshold is the probability above which a cell border is emphasized.
	EmphasisThreshold = 0.7

	strokeWeight    = 0.25
	minFillOpacity  = 0.35
	fillOpacitySpan = 0.6
	maxFillOpacity  = 0.95
)

// Style is the render styling for one grid cell.
type Style struct {
	FillColor   string  `json:"fill_color"`
	FillOpacity float64 `json:"fill_opacity"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	// Outline is true when the cell has no probability and is drawn border-only.
	Outline bool   `json:"outline"`
	Label   string `json:"label"`
}

// StyleFor computes the styling for a cell with probability p (NaN when absent).
func StyleFor(p float64) Style {
	if Band(p) < 0 {
		return Style{
			FillColor: Transparent,
			Color:     StrokeDefault,
			Weight:    strokeWeight,
			Outline:   true,
			Label:     "Prob: N/A",
		}
	}

	stroke := StrokeDefault
	if p > EmphasisThreshold {
		stroke = StrokeEmphasis
	}
	return Style{
		FillColor:   ColorFor(p),
		FillOpacity: math.Min(maxFillOpacity, minFillOpacity+fillOpacitySpan*p),
		Color:       stroke,
		Weight:      strokeWeight,
		Label:       fmt.Sprintf("Prob: %.1f%%", p*100),
	}
}
