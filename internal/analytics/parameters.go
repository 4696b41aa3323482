package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ParameterRow pivots the sensor readings taken at one instant into one
// column per parameter.
type ParameterRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// ParameterSeries groups timestamped sensor readings by instant, ascending.
// A later reading of the same parameter at the same instant replaces an
// earlier one.
func ParameterSeries(records []domain.Record) []ParameterRow {
	byTime := make(map[time.Time]map[string]float64)
	for _, r := range records {
		if r.Reading == nil || r.Timestamp == nil {
			continue
		}
		ts := r.Timestamp.UTC()
		row, ok := byTime[ts]
		if !ok {
			row = make(map[string]float64)
			byTime[ts] = row
		}
		row[r.Reading.Parameter] = domain.Coerce(r.Reading.Value, 0)
	}

	rows := make([]ParameterRow, 0, len(byTime))
	for ts, values := range byTime {
		rows = append(rows, ParameterRow{Timestamp: ts, Values: values})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return rows
}

// ParameterStat summarizes every reading of one parameter.
type ParameterStat struct {
	Parameter string  `json:"parameter"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// ParameterStats computes descriptive statistics per sensor parameter,
// sorted by parameter name. StdDev is the sample standard deviation and is
// zero for a single reading.
func ParameterStats(records []domain.Record) []ParameterStat {
	values := make(map[string][]float64)
	for _, r := range records {
		if r.Reading == nil {
			continue
		}
		values[r.Reading.Parameter] = append(values[r.Reading.Parameter], domain.Coerce(r.Reading.Value, 0))
	}

	out := make([]ParameterStat, 0, len(values))
	for param, xs := range values {
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 || math.IsNaN(std) {
			std = 0
		}
		out = append(out, ParameterStat{
			Parameter: param,
			Count:     len(xs),
			Mean:      mean,
			StdDev:    std,
			Min:       floats.Min(xs),
			Max:       floats.Max(xs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Parameter < out[j].Parameter })
	return out
}

// DepthBin counts occurrences with depth in [Lo, Hi).
type DepthBin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// DefaultDepthBinWidth is the histogram bin width in metres.
const DefaultDepthBinWidth = 10.0

// MaxDepthBins caps the number of histogram bins.
const MaxDepthBins = 1000

// DepthHistogram bins occurrence depths into fixed-width bins starting at a
// multiple of width. Occurrences without depth are ignored. When the depths
// span more than MaxDepthBins bins of width, MaxDepthBins equal bins from the
// smallest to the largest depth are used instead.
func DepthHistogram(records []domain.Record, width float64) []DepthBin {
	if width <= 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		width = DefaultDepthBinWidth
	}

	var depths []float64
	for _, r := range records {
		if r.Occurrence == nil || r.Occurrence.Depth == nil {
			continue
		}
		depths = append(depths, domain.Coerce(*r.Occurrence.Depth, 0))
	}
	if len(depths) == 0 {
		return []DepthBin{}
	}

	lo, hi := floats.Min(depths), floats.Max(depths)
	start := math.Floor(lo/width) * width
	span := (hi - start) / width
	if math.IsNaN(span) || math.IsInf(span, 0) || math.IsInf(start, 0) || span >= MaxDepthBins {
		return spreadHistogram(depths, lo, hi)
	}

	n := int(math.Floor(span)) + 1
	bins := make([]DepthBin, n)
	for i := range bins {
		bins[i].Lo = start + float64(i)*width
		bins[i].Hi = bins[i].Lo + width
	}
	for _, d := range depths {
		bins[binIndex(math.Floor((d-start)/width), n)].Count++
	}
	return bins
}

// spreadHistogram splits [lo, hi] into MaxDepthBins equal bins. When hi-lo
// overflows, the width and offsets are computed from lo and hi separately.
func spreadHistogram(depths []float64, lo, hi float64) []DepthBin {
	width := (hi - lo) / MaxDepthBins
	if math.IsInf(width, 0) {
		width = hi/MaxDepthBins - lo/MaxDepthBins
	}
	if width <= 0 || math.IsInf(width, 0) {
		return []DepthBin{{Lo: lo, Hi: hi, Count: len(depths)}}
	}

	bins := make([]DepthBin, MaxDepthBins)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = bins[i].Lo + width
	}
	bins[MaxDepthBins-1].Hi = hi
	for _, d := range depths {
		offset := (d - lo) / width
		if math.IsInf(d-lo, 0) {
			offset = d/width - lo/width
		}
		bins[binIndex(math.Floor(offset), MaxDepthBins)].Count++
	}
	return bins
}

func binIndex(f float64, n int) int {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f >= float64(n):
		return n - 1
	}
	return int(f)
}
