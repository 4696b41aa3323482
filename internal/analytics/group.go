package analytics

import (
	"sort"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// unknownSource labels records whose source is blank.
const unknownSource = "Unknown"

// Count is one group key with its record count.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CountBy groups records by key and returns the counts in order of each
// key's first occurrence. Records for which key returns "" are skipped.
func CountBy(records []domain.Record, key func(domain.Record) string) []Count {
	index := make(map[string]int)
	out := []Count{}
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, Count{Key: k, Count: 1})
	}
	return out
}

// CountBySource counts records per full source string.
func CountBySource(records []domain.Record) []Count {
	return CountBy(records, func(r domain.Record) string {
		if r.Source == "" {
			return unknownSource
		}
		return r.Source
	})
}

// CountByProvider counts records per top-level provider.
func CountByProvider(records []domain.Record) []Count {
	return CountBy(records, func(r domain.Record) string {
		if p := r.Provider(); p != "" {
			return p
		}
		return unknownSource
	})
}

// CountBySpecies counts occurrence records per species.
func CountBySpecies(records []domain.Record) []Count {
	return CountBy(records, domain.Record.Species)
}

// TopN returns the n largest groups, sorted by count descending. Ties keep
// their first-seen order. A non-positive n returns every group sorted.
func TopN(counts []Count, n int) []Count {
	sorted := make([]Count, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Keys extracts the group keys in order.
func Keys(counts []Count) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Key
	}
	return out
}
