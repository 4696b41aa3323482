package domain

import (
	"strings"
	"time"
)

// timeLayouts lists the timestamp shapes seen across providers, most specific
// first. Zone-less layouts are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTime parses a provider timestamp or date. OBIS event dates may be
// intervals ("2010-01-01/2010-01-31"); the start of the interval is used.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if start, _, found := strings.Cut(s, "/"); found {
		s = start
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DayOf returns the UTC calendar day of t as YYYY-MM-DD.
func DayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
