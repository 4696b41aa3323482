// Command normcheck runs the record normalizer over a set of stored raw
// records and reports integrity problems: items that fail to normalize,
// non-deterministic IDs, records whose kind and variant disagree, and
// out-of-range coordinates.
//
// Usage:
//
//	go run ./cmd/normcheck -input data/fixtures/records.json
//	go run ./cmd/normcheck -url http://localhost:8000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/adapter/ingestapi"
	"github.com/couchcryptid/marine-data-engine/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	input := flag.String("input", "", "path to a JSON array of raw records")
	url := flag.String("url", "", "ingestion server base URL to read records from instead of -input")
	timeout := flag.Duration("timeout", 30*time.Second, "ingestion server request timeout")
	flag.Parse()

	if (*input == "") == (*url == "") {
		flag.Usage()
		os.Exit(1)
	}

	items, err := load(*input, *url, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load records: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(items, os.Stdout))
}

func load(path, url string, timeout time.Duration) ([]json.RawMessage, error) {
	if url != "" {
		client := ingestapi.NewClient(url, timeout, slog.New(slog.NewTextHandler(os.Stderr, nil)))
		return client.FetchAll(context.Background())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func run(items []json.RawMessage, out io.Writer) int {
	fmt.Fprintln(out, "=== Record Normalization Check ===")
	fmt.Fprintln(out)

	records, normalization := normalizeAll(items)
	phases := []*phase{
		normalization,
		checkDeterminism(items, records),
		checkIntegrity(records),
		checkUniqueIDs(records),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Items: %d raw, %d normalized records\n", len(items), countRecords(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(out, "\nCheck FAILED.")
	return 1
}

// normalizeAll returns the records of each item, indexed like items. Failed
// items have a nil entry.
func normalizeAll(items []json.RawMessage) ([][]domain.Record, *phase) {
	p := &phase{name: "Phase 1: Normalization"}
	out := make([][]domain.Record, len(items))
	for i, item := range items {
		recs, err := domain.NormalizeItem("", item)
		if err != nil {
			p.errorf("item %d: %v", i, err)
			continue
		}
		out[i] = recs
	}
	return out, p
}

// ── Phase 2: Determinism ──
// Normalizing the same item twice must produce the same IDs.

func checkDeterminism(items []json.RawMessage, first [][]domain.Record) *phase {
	p := &phase{name: "Phase 2: Deterministic IDs"}
	for i, item := range items {
		if first[i] == nil {
			continue
		}
		again, err := domain.NormalizeItem("", item)
		if err != nil {
			p.errorf("item %d: second pass failed: %v", i, err)
			continue
		}
		if len(again) != len(first[i]) {
			p.errorf("item %d: %d records, then %d", i, len(first[i]), len(again))
			continue
		}
		for j := range again {
			if again[j].ID != first[i][j].ID {
				p.errorf("item %d record %d: id %q, then %q", i, j, first[i][j].ID, again[j].ID)
			}
		}
	}
	return p
}

// ── Phase 3: Record Integrity ──

func checkIntegrity(records [][]domain.Record) *phase {
	p := &phase{name: "Phase 3: Record Integrity"}
	for i, recs := range records {
		for _, r := range recs {
			label := fmt.Sprintf("item %d (%s)", i, r.ID)
			if r.ID == "" {
				p.errorf("item %d: empty id", i)
			}
			if r.Provider() == "" {
				p.errorf("%s: empty source", label)
			}
			if got := variantKind(r); got != r.Kind {
				p.errorf("%s: kind %q but populated variant is %q", label, r.Kind, got)
			}
			if g := r.Geo; g != nil && (g.Lat < -90 || g.Lat > 90 || g.Lon < -180 || g.Lon > 180) {
				p.errorf("%s: coordinates out of range (%g, %g)", label, g.Lat, g.Lon)
			}
			if r.Reading != nil && (math.IsNaN(r.Reading.Value) || math.IsInf(r.Reading.Value, 0)) {
				p.errorf("%s: non-finite %s value", label, r.Reading.Parameter)
			}
		}
	}
	return p
}

// variantKind names the single populated variant, or "" when zero or several are set.
func variantKind(r domain.Record) domain.Kind {
	var kinds []domain.Kind
	if r.Reading != nil {
		kinds = append(kinds, domain.KindSensorReading)
	}
	if r.Occurrence != nil {
		kinds = append(kinds, domain.KindOccurrence)
	}
	if r.Taxon != nil {
		kinds = append(kinds, domain.KindTaxon)
	}
	if r.Statistic != nil {
		kinds = append(kinds, domain.KindStatistic)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// ── Phase 4: Unique IDs ──
// Distinct items must not collapse onto the same record ID.

func checkUniqueIDs(records [][]domain.Record) *phase {
	p := &phase{name: "Phase 4: Unique IDs"}
	seen := make(map[string]int)
	for i, recs := range records {
		for _, r := range recs {
			if prev, dup := seen[r.ID]; dup && prev != i {
				p.errorf("id %q produced by items %d and %d", r.ID, prev, i)
				continue
			}
			seen[r.ID] = i
		}
	}
	return p
}

func countRecords(records [][]domain.Record) int {
	n := 0
	for _, recs := range records {
		n += len(recs)
	}
	return n
}
