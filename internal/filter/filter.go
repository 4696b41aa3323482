// Package filter builds facets and evaluates predicate filters over unified
// records. Every function is pure: the same inputs always produce the same
// output, so callers may memoize results keyed by predicate values.
package filter

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// Values returns the distinct non-empty values of field across records,
// sorted ascending. The result is empty (never nil) when nothing matches.
func Values(records []domain.Record, field string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range records {
		v, ok := r.Text(field)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Predicate is one constraint on a record. An unset predicate matches every record.
type Predicate interface {
	Match(r domain.Record) bool
	Unset() bool
}

// Apply returns the records matching every predicate. With no active
// predicates the input slice is returned unchanged. Otherwise the result is a
// new slice in input order, empty (never nil) when nothing matches.
func Apply(records []domain.Record, preds ...Predicate) []domain.Record {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil && !p.Unset() {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return records
	}

	out := []domain.Record{}
	for _, r := range records {
		if matchAll(r, active) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(r domain.Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}

// Exact matches records whose field equals Value.
type Exact struct {
	Field string
	Value string
}

func (p Exact) Unset() bool { return p.Value == "" }

func (p Exact) Match(r domain.Record) bool {
	v, _ := r.Text(p.Field)
	return v == p.Value
}

// Contains matches records where any of Fields contains Substr, ignoring case.
type Contains struct {
	Fields []string
	Substr string
}

func (p Contains) Unset() bool { return strings.TrimSpace(p.Substr) == "" }

func (p Contains) Match(r domain.Record) bool {
	needle := strings.ToLower(strings.TrimSpace(p.Substr))
	for _, f := range p.Fields {
		if v, ok := r.Text(f); ok && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// MissingPolicy decides how range predicates treat records lacking the field.
type MissingPolicy int

const (
	// ExcludeMissing fails records without the field once any bound is set.
	ExcludeMissing MissingPolicy = iota
	// IncludeMissing passes records without the field regardless of bounds.
	IncludeMissing
)

// ParseMissingPolicy maps a configuration value to a policy.
func ParseMissingPolicy(s string) (MissingPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclude":
		return ExcludeMissing, true
	case "include":
		return IncludeMissing, true
	}
	return ExcludeMissing, false
}

func (m MissingPolicy) String() string {
	if m == IncludeMissing {
		return "include"
	}
	return "exclude"
}

// NumberRange matches records whose numeric field lies in [Min, Max]. A nil
// bound is treated as -Inf or +Inf.
type NumberRange struct {
	Field   string
	Min     *float64
	Max     *float64
	Missing MissingPolicy
}

func (p NumberRange) Unset() bool { return p.Min == nil && p.Max == nil }

func (p NumberRange) Match(r domain.Record) bool {
	v, ok := r.Number(p.Field)
	if !ok {
		return p.Missing == IncludeMissing
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if p.Min != nil {
		lo = *p.Min
	}
	if p.Max != nil {
		hi = *p.Max
	}
	return v >= lo && v <= hi
}

// DateRange matches records whose date field lies in [From, To]. Records
// without a parseable date fail whenever a bound is set.
type DateRange struct {
	Field string
	From  *time.Time
	To    *time.Time
}

func (p DateRange) Unset() bool { return p.From == nil && p.To == nil }

func (p DateRange) Match(r domain.Record) bool {
	t, ok := r.Time(p.Field)
	if !ok {
		return false
	}
	if p.From != nil && t.Before(*p.From) {
		return false
	}
	if p.To != nil && t.After(*p.To) {
		return false
	}
	return true
}
