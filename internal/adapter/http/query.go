package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/filter"
)

// Query parameters that select records by exact field value.
var exactFields = []string{
	"kind", "provider", "source",
	"parameter", "station", "unit",
	"rank", "family", "order", "class", "genus", "status", "basisOfRecord", "marker",
}

// Numeric fields filtered with <field>_min and <field>_max.
var rangeFields = []string{"value", "depth", "year", "latitude", "longitude"}

// The free-text "q" parameter searches these fields.
var searchFields = []string{"species", "scientificName", "validName"}

// predicatesFrom builds the filter for a record query. The "missing"
// parameter overrides the configured policy for absent range fields.
func predicatesFrom(q url.Values, policy filter.MissingPolicy) ([]filter.Predicate, error) {
	if v := q.Get("missing"); v != "" {
		p, ok := filter.ParseMissingPolicy(v)
		if !ok {
			return nil, badRequest("invalid missing policy %q", v)
		}
		policy = p
	}

	var preds []filter.Predicate
	for _, f := range exactFields {
		if v := strings.TrimSpace(q.Get(f)); v != "" {
			preds = append(preds, filter.Exact{Field: f, Value: v})
		}
	}
	if v := q.Get("q"); v != "" {
		preds = append(preds, filter.Contains{Fields: searchFields, Substr: v})
	}

	for _, f := range rangeFields {
		lo, err := floatParam(q, f+"_min")
		if err != nil {
			return nil, err
		}
		hi, err := floatParam(q, f+"_max")
		if err != nil {
			return nil, err
		}
		preds = append(preds, filter.NumberRange{Field: f, Min: lo, Max: hi, Missing: policy})
	}

	dr, err := dateRange(q)
	if err != nil {
		return nil, err
	}
	return append(preds, dr), nil
}

func dateRange(q url.Values) (filter.DateRange, error) {
	field := q.Get("date_field")
	switch field {
	case "":
		field = "timestamp"
	case "timestamp", "eventDate":
	default:
		return filter.DateRange{}, badRequest("invalid date_field %q", field)
	}

	dr := filter.DateRange{Field: field}
	if v := q.Get("from"); v != "" {
		t, ok := domain.ParseTime(v)
		if !ok {
			return dr, badRequest("invalid from %q", v)
		}
		dr.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, ok := domain.ParseTime(v)
		if !ok {
			return dr, badRequest("invalid to %q", v)
		}
		// A bare date includes the whole day.
		if len(strings.TrimSpace(v)) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		dr.To = &t
	}
	return dr, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	f, ok := domain.ParseNumber(v)
	if !ok {
		return nil, badRequest("invalid %s %q", name, v)
	}
	return &f, nil
}

// intParam returns the non-negative integer parameter, or def when it is absent.
func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}
