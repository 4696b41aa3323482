package analytics

import (
	"sort"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// ProductionPoint is one year of fisheries production (lakh tonnes) and
// exports (crores).
type ProductionPoint struct {
	Year    string  `json:"year"`
	Total   float64 `json:"total"`
	Marine  float64 `json:"marine"`
	Inland  float64 `json:"inland"`
	Exports float64 `json:"exports"`
}

// Metric names as published by data.gov.in, with short aliases used by CSV
// uploads.
var (
	totalKeys   = []string{"total_fish_production_lakh_tonnes", "total"}
	marineKeys  = []string{"marine_fish_production_lakh_tonnes", "marine"}
	inlandKeys  = []string{"inland_fish_production_lakh_tonnes", "inland"}
	exportsKeys = []string{"total_exports_crores", "exports"}
)

// ProductionSeries returns one point per statistical record, sorted by year
// label ascending. Missing or malformed metrics read as zero.
func ProductionSeries(records []domain.Record) []ProductionPoint {
	out := []ProductionPoint{}
	for _, r := range records {
		if r.Statistic == nil {
			continue
		}
		m := r.Statistic.Metrics
		out = append(out, ProductionPoint{
			Year:    r.Statistic.Period,
			Total:   metric(m, totalKeys...),
			Marine:  metric(m, marineKeys...),
			Inland:  metric(m, inlandKeys...),
			Exports: metric(m, exportsKeys...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// SumMetric adds a metric across statistical records. Records lacking it
// contribute zero.
func SumMetric(records []domain.Record, name string) float64 {
	var sum float64
	for _, r := range records {
		if r.Statistic == nil {
			continue
		}
		sum += metric(r.Statistic.Metrics, name)
	}
	return sum
}

func metric(m map[string]float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return domain.Coerce(v, 0)
		}
	}
	return 0
}
