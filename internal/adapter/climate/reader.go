// Package climate reads gridded climate variables from NetCDF files and
// turns each grid point into a sensor reading.
package climate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// Reader implements pipeline.ClimateSource for one NetCDF file. Variables
// must be laid out as [time][latitude][longitude].
type Reader struct {
	path       string
	variables  []string
	maxRecords int
	logger     *slog.Logger
}

// NewReader creates a reader for the named variables of the file at path.
// At most maxRecords readings are produced per call; zero means no cap.
func NewReader(path string, variables []string, maxRecords int, logger *slog.Logger) *Reader {
	return &Reader{path: path, variables: variables, maxRecords: maxRecords, logger: logger}
}

// Name returns the record source for this file, "climate/<base name>".
func (r *Reader) Name() string {
	return sourceName(r.path)
}

// Readings opens the file and reads every requested variable.
func (r *Reader) Readings(ctx context.Context) ([]domain.Record, error) {
	nc, err := netcdf.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer nc.Close()

	lats, err := coordinate(nc, "latitude", "lat")
	if err != nil {
		return nil, err
	}
	lons, err := coordinate(nc, "longitude", "lon")
	if err != nil {
		return nil, err
	}
	times, err := timeAxis(nc)
	if err != nil {
		return nil, err
	}

	source := r.Name()
	var out []domain.Record
	for _, name := range r.variables {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		p := packingOf(vg.Attributes())

		for t := range times {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slice, err := vg.GetSlice(int64(t), int64(t)+1)
			if err != nil {
				return nil, fmt.Errorf("variable %s step %d: %w", name, t, err)
			}
			grid, err := firstGrid(slice)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", name, err)
			}

			ts := times[t]
			for i := 0; i < len(grid) && i < len(lats); i++ {
				for j := 0; j < len(grid[i]) && j < len(lons); j++ {
					v, ok := p.unpack(grid[i][j])
					if !ok {
						continue
					}
					reading := domain.SensorReading{Parameter: name, Value: v, Unit: p.units}
					out = append(out, domain.NewSensorReading(source, reading, &ts, &domain.Geo{Lat: lats[i], Lon: lons[j]}))
					if r.maxRecords > 0 && len(out) >= r.maxRecords {
						r.logger.Info("climate record cap reached", "source", source, "cap", r.maxRecords)
						return out, nil
					}
				}
			}
		}
	}

	r.logger.Debug("climate file read", "source", source, "records", len(out))
	return out, nil
}

func sourceName(path string) string {
	base := filepath.Base(path)
	return "climate/" + strings.TrimSuffix(base, filepath.Ext(base))
}

func coordinate(nc api.Group, names ...string) ([]float64, error) {
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		v, err := vg.Values()
		if err != nil {
			return nil, fmt.Errorf("coordinate %s: %w", name, err)
		}
		return toFloats(v)
	}
	return nil, fmt.Errorf("no coordinate variable named %s", strings.Join(names, " or "))
}

func timeAxis(nc api.Group) ([]time.Time, error) {
	vg, err := nc.GetVarGetter("time")
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	offsets, err := toFloats(v)
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	units, _ := attrString(vg.Attributes(), "units")
	base, step, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, len(offsets))
	for i, o := range offsets {
		if out[i], err = offsetTime(base, o, step); err != nil {
			return nil, fmt.Errorf("time axis: %w", err)
		}
	}
	return out, nil
}

// maxOffsetSeconds bounds time offsets to roughly 300,000 years either side
// of the reference date.
const maxOffsetSeconds = 1e13

// offsetTime returns base plus offset units of step. The sum is taken in
// seconds since a time.Duration overflows past about 292 years.
func offsetTime(base time.Time, offset float64, step time.Duration) (time.Time, error) {
	secs := offset * step.Seconds()
	if math.IsNaN(secs) || math.Abs(secs) > maxOffsetSeconds {
		return time.Time{}, fmt.Errorf("offset %g out of range", offset)
	}
	whole := math.Floor(secs)
	nsec := int64(base.Nanosecond()) + int64(math.Round((secs-whole)*1e9))
	return time.Unix(base.Unix()+int64(whole), nsec).In(base.Location()), nil
}

// parseTimeUnits parses CF time units such as "hours since 1900-01-01 00:00:00".
func parseTimeUnits(units string) (time.Time, time.Duration, error) {
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "s":
		step = time.Second
	case "minutes", "minute", "mins":
		step = time.Minute
	case "hours", "hour", "hrs", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return time.Time{}, 0, fmt.Errorf("unsupported time unit %q", unit)
	}

	since = strings.TrimSpace(since)
	if i := strings.IndexByte(since, '.'); i > 0 {
		since = since[:i]
	}
	base, ok := domain.ParseTime(since)
	if !ok {
		return time.Time{}, 0, fmt.Errorf("unsupported time origin %q", since)
	}
	return base, step, nil
}

// packing describes how stored values map to physical ones.
type packing struct {
	scale, offset float64
	fill          float64
	hasFill       bool
	units         string
}

func packingOf(attrs api.AttributeMap) packing {
	p := packing{scale: 1}
	if v, ok := attrFloat(attrs, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := attrFloat(attrs, "add_offset"); ok {
		p.offset = v
	}
	if v, ok := attrFloat(attrs, "_FillValue"); ok {
		p.fill, p.hasFill = v, true
	} else if v, ok := attrFloat(attrs, "missing_value"); ok {
		p.fill, p.hasFill = v, true
	}
	p.units, _ = attrString(attrs, "units")
	return p
}

// unpack applies the packing to a stored value, reporting false for fill
// values and non-finite results.
func (p packing) unpack(raw float64) (float64, bool) {
	if p.hasFill && raw == p.fill {
		return 0, false
	}
	v := raw*p.scale + p.offset
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	if vals, err := toFloats(v); err == nil {
		if len(vals) == 0 {
			return 0, false
		}
		return vals[0], true
	}
	return domain.ParseNumber(v)
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

var errUnsupportedType = errors.New("unsupported variable type")

// toFloats converts a one-dimensional NetCDF value slice to float64.
func toFloats(v any) ([]float64, error) {
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []float32:
		return convert(s), nil
	case []int8:
		return convert(s), nil
	case []int16:
		return convert(s), nil
	case []int32:
		return convert(s), nil
	case []int64:
		return convert(s), nil
	case []uint8:
		return convert(s), nil
	case []uint16:
		return convert(s), nil
	case []uint32:
		return convert(s), nil
	case []uint64:
		return convert(s), nil
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupportedType, v)
	}
}

// firstGrid returns the first [lat][lon] plane of a [time][lat][lon] slice.
func firstGrid(v any) ([][]float64, error) {
	switch s := v.(type) {
	case [][][]float64:
		return plane(s), nil
	case [][][]float32:
		return plane(s), nil
	case [][][]int8:
		return plane(s), nil
	case [][][]int16:
		return plane(s), nil
	case [][][]int32:
		return plane(s), nil
	case [][][]int64:
		return plane(s), nil
	case [][][]uint8:
		return plane(s), nil
	case [][][]uint16:
		return plane(s), nil
	default:
		return nil, fmt.Errorf("%w: %T, want [time][lat][lon]", errUnsupportedType, v)
	}
}

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func convert[T number](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

func plane[T number](s [][][]T) [][]float64 {
	if len(s) == 0 {
		return nil
	}
	out := make([][]float64, len(s[0]))
	for i, row := range s[0] {
		out[i] = convert(row)
	}
	return out
}
