package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOf(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"obis/occurrence", "obis"},
		{"NOAA", "noaa"},
		{"data.gov.in", "data.gov.in"},
		{"worms/AphiaRecordsByName", "worms"},
		{"  open-meteo ", "open-meteo"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, ProviderOf(tt.source))
		})
	}
}

func TestRecordFieldAccessors(t *testing.T) {
	depth := 120.0
	occ := Record{
		Kind:       KindOccurrence,
		Source:     "obis/occurrence",
		Geo:        &Geo{Lat: 10, Lon: 72},
		Occurrence: &Occurrence{Species: "Thunnus albacares", Depth: &depth, EventDate: "2019-03-04", Family: "Scombridae"},
	}

	s, ok := occ.Text("species")
	assert.True(t, ok)
	assert.Equal(t, "Thunnus albacares", s)

	s, ok = occ.Text("provider")
	assert.True(t, ok)
	assert.Equal(t, "obis", s)

	_, ok = occ.Text("parameter")
	assert.False(t, ok, "sensor fields do not apply to occurrences")

	d, ok := occ.Number("depth")
	assert.True(t, ok)
	assert.Equal(t, 120.0, d)

	lat, ok := occ.Number("latitude")
	assert.True(t, ok)
	assert.Equal(t, 10.0, lat)

	ts, ok := occ.Time("eventDate")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC), ts)

	_, ok = occ.Time("timestamp")
	assert.False(t, ok)

	stat := Record{
		Kind:      KindStatistic,
		Source:    "data.gov.in",
		Statistic: &StatisticalRecord{Period: "2019-20", Metrics: map[string]float64{"total_exports_crores": 46662.85}},
	}
	y, ok := stat.Number("year")
	assert.True(t, ok)
	assert.Equal(t, 2019.0, y)

	m, ok := stat.Number("total_exports_crores")
	assert.True(t, ok)
	assert.Equal(t, 46662.85, m)

	_, ok = stat.Number("depth")
	assert.False(t, ok)
}

func TestYearOf(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"2019-20", 2019, true},
		{"2021", 2021, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"19", 0, false},
		{"FY2020", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := YearOf(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-01T00:00:00Z", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-01-01T05:30:00+05:30", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-01-01 12:06", time.Date(2025, 1, 1, 12, 6, 0, 0, time.UTC)},
		{"2025-01-01T12:00", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"2010-01-01/2010-01-31", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2018-07", time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, ok := ParseTime("not a date")
	assert.False(t, ok)
}
