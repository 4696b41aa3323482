// Package analytics computes presentation-ready aggregates over a record
// collection: KPIs, grouped counts, daily series and per-parameter statistics.
package analytics

import "github.com/couchcryptid/marine-data-engine/internal/domain"

// KPIs summarizes a record collection for the dashboard header.
type KPIs struct {
	Total         int `json:"total"`
	ProviderCount int `json:"provider_count"`
	SpeciesCount  int `json:"species_count"`
	// LatestYear is 0 when no statistical record carries a parseable year.
	LatestYear int `json:"latest_year"`
}

// ComputeKPIs derives the headline counts for records.
func ComputeKPIs(records []domain.Record) KPIs {
	providers := make(map[string]struct{})
	species := make(map[string]struct{})
	k := KPIs{Total: len(records)}

	for _, r := range records {
		if p := r.Provider(); p != "" {
			providers[p] = struct{}{}
		}
		if s := r.Species(); s != "" {
			species[s] = struct{}{}
		}
		if r.Statistic != nil {
			if y, ok := domain.YearOf(r.Statistic.Period); ok && y > k.LatestYear {
				k.LatestYear = y
			}
		}
	}

	k.ProviderCount = len(providers)
	k.SpeciesCount = len(species)
	return k
}
