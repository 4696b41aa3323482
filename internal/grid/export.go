package grid

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// ErrEmptyResult signals that there is nothing to export. It is distinct
// from a failure so callers can show an empty state.
var ErrEmptyResult = errors.New("no hotspot centroids to export")

var whitespaceRe = regexp.MustCompile(`\s+`)

// ToCSV renders centroids as "lat,lon,prob" rows with 6, 6 and 4 decimals.
func ToCSV(centroids []domain.Centroid) ([]byte, error) {
	if len(centroids) == 0 {
		return nil, ErrEmptyResult
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"lat", "lon", "prob"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range centroids {
		row := []string{
			strconv.FormatFloat(c.Lat, 'f', 6, 64),
			strconv.FormatFloat(c.Lon, 'f', 6, 64),
			strconv.FormatFloat(c.Prob, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename names the hotspot extract for a species, replacing runs of
// whitespace with underscores.
func ExportFilename(species string) string {
	name := whitespaceRe.ReplaceAllString(strings.TrimSpace(species), "_")
	if name == "" {
		name = "species"
	}
	return name + "_hotspots.csv"
}
