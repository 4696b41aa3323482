package analytics

import (
	"sort"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// DefaultTopSpecies is the number of species plotted by TopSpeciesSeries
// when the caller does not choose.
const DefaultTopSpecies = 10

// DayRow holds per-key counts for one calendar day (YYYY-MM-DD, UTC).
type DayRow struct {
	Day    string         `json:"day"`
	Counts map[string]int `json:"counts"`
}

// DailySeries buckets records by the calendar day of their timestamp and
// counts, for each of keys, the records on that day whose key matches.
// Every day on which any record was timestamped gets a row; keys with no
// records that day count zero. Rows are in ascending day order.
func DailySeries(records []domain.Record, keys []string, key func(domain.Record) string) []DayRow {
	tracked := make(map[string]bool, len(keys))
	for _, k := range keys {
		tracked[k] = true
	}

	byDay := make(map[string]map[string]int)
	for _, r := range records {
		if r.Timestamp == nil {
			continue
		}
		day := domain.DayOf(*r.Timestamp)
		counts, ok := byDay[day]
		if !ok {
			counts = make(map[string]int, len(keys))
			for _, k := range keys {
				counts[k] = 0
			}
			byDay[day] = counts
		}
		if k := key(r); tracked[k] {
			counts[k]++
		}
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	rows := make([]DayRow, len(days))
	for i, d := range days {
		rows[i] = DayRow{Day: d, Counts: byDay[d]}
	}
	return rows
}

// TopSpeciesSeries returns the daily series for the n most frequent species,
// together with those species in rank order.
func TopSpeciesSeries(records []domain.Record, n int) ([]string, []DayRow) {
	if n <= 0 {
		n = DefaultTopSpecies
	}
	top := Keys(TopN(CountBySpecies(records), n))
	return top, DailySeries(records, top, domain.Record.Species)
}
