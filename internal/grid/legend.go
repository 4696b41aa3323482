package grid

import (
	"fmt"
	"math"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// DefaultBinEdges are used when a prediction carries no usable bin edges.
// They follow the color ramp's breakpoints, folding the top two bands; the
// folded band takes the hottest color.
var DefaultBinEdges = []float64{0, 0.1, 0.25, 0.45, 0.6, 1.0}

// LegendEntry describes one probability band.
type LegendEntry struct {
	Label string  `json:"label"`
	Color string  `json:"color"`
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
}

// Legend builds one entry per adjacent pair of bin edges, labeled as a
// rounded percentage range and colored at the band midpoint. Missing,
// too-short or non-finite edges fall back to DefaultBinEdges.
func Legend(breaks *domain.ProbBreaks) []LegendEntry {
	edges, fallback := DefaultBinEdges, true
	if breaks != nil && validEdges(breaks.BinEdges) {
		edges, fallback = breaks.BinEdges, false
	}

	out := make([]LegendEntry, 0, len(edges)-1)
	for i := 0; i+1 < len(edges); i++ {
		lo, hi := edges[i], edges[i+1]
		out = append(out, LegendEntry{
			Label: fmt.Sprintf("%d-%d%%", percent(lo), percent(hi)),
			Color: ColorFor((lo + hi) / 2),
			Lo:    lo,
			Hi:    hi,
		})
	}
	if fallback {
		out[len(out)-1].Color = palette[len(palette)-1]
	}
	return out
}

func validEdges(edges []float64) bool {
	if len(edges) < 2 {
		return false
	}
	for _, e := range edges {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return false
		}
	}
	return true
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
