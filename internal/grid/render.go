package grid

import (
	"sort"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/stat"
)

// probProperty is the feature property carrying a cell's probability.
const probProperty = "prob"

// View is a grid prediction prepared for display: styled cells, a legend,
// class tallies, a summary and the hotspot centroids offered for export.
type View struct {
	ScientificName string                     `json:"scientific_name"`
	Cells          *geojson.FeatureCollection `json:"cells"`
	Legend         []LegendEntry              `json:"legend"`
	Counts         ClassCounts                `json:"counts"`
	Summary        domain.GridSummary         `json:"summary"`
	Centroids      []domain.Centroid          `json:"hotspot_centroids"`
	// Empty is true when the prediction returned no cells.
	Empty bool `json:"empty"`
}

// Render styles every cell of res and assembles its legend and counts. When
// the service omitted the summary it is recomputed from the cells, and when
// it returned no hotspot centroids they are derived from hotspot cells. The
// input is not modified.
func Render(res domain.GridPrediction) View {
	cells := geojson.NewFeatureCollection()
	var (
		counts  ClassCounts
		probs   []float64
		derived []domain.Centroid
	)

	if res.GeoJSON != nil {
		for _, f := range res.GeoJSON.Features {
			if f == nil {
				continue
			}
			p := cellProb(f)
			class := Classify(p, res.ProbBreaks)
			counts.add(class)
			if class != Unknown {
				probs = append(probs, p)
			}
			if class == Hotspot && f.Geometry != nil {
				c, _ := planar.CentroidArea(f.Geometry)
				derived = append(derived, domain.Centroid{Lat: c.Lat(), Lon: c.Lon(), Prob: p})
			}
			cells.Append(styledFeature(f, p, class))
		}
	}

	view := View{
		ScientificName: res.ScientificName,
		Cells:          cells,
		Legend:         Legend(res.ProbBreaks),
		Counts:         counts,
		Centroids:      res.HotspotCentroids,
		Empty:          len(cells.Features) == 0,
	}

	if res.Summary != nil {
		view.Summary = *res.Summary
	} else {
		view.Summary = Summarize(probs, len(cells.Features), counts.Hotspot)
	}

	if len(view.Centroids) == 0 {
		sort.SliceStable(derived, func(i, j int) bool { return derived[i].Prob > derived[j].Prob })
		view.Centroids = derived
	}
	if view.Centroids == nil {
		view.Centroids = []domain.Centroid{}
	}
	return view
}

// Summarize computes grid summary statistics from the cell probabilities
// that are present. The average of no probabilities is zero.
func Summarize(probs []float64, totalCells, hotspotCells int) domain.GridSummary {
	s := domain.GridSummary{TotalCells: totalCells, HotspotCells: hotspotCells}
	if len(probs) > 0 {
		s.AverageProbability = stat.Mean(probs, nil)
	}
	return s
}

// cellProb reads the probability property of f, returning Absent when it is
// missing or malformed.
func cellProb(f *geojson.Feature) float64 {
	if f.Properties == nil {
		return Absent
	}
	if v, ok := domain.ParseNumber(f.Properties[probProperty]); ok {
		return v
	}
	return Absent
}

func styledFeature(f *geojson.Feature, p float64, class Class) *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	for k, v := range f.Properties {
		out.Properties[k] = v
	}
	out.Properties["style"] = StyleFor(p)
	out.Properties["class"] = class
	return out
}
