package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownSource is returned when neither the provider tag nor the item's
	// source field names a known provider family.
	ErrUnknownSource = errors.New("unknown record source")

	// ErrMalformedPayload is returned when a payload is not JSON or its items
	// are not objects.
	ErrMalformedPayload = errors.New("malformed payload")
)

// NormalizationError reports which provider and payload item failed.
// Index is -1 when the failure concerns the payload as a whole.
type NormalizationError struct {
	Provider string
	Index    int
	Err      error
}

func (e *NormalizationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("normalize %q: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("normalize %q item %d: %v", e.Provider, e.Index, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// providerKinds maps a top-level provider identifier to the record kind it
// produces.
var providerKinds = map[string]Kind{
	"noaa":        KindSensorReading,
	"open-meteo":  KindSensorReading,
	"climate":     KindSensorReading,
	"obis":        KindOccurrence,
	"bold":        KindOccurrence,
	"worms":       KindTaxon,
	"data.gov.in": KindStatistic,
	"fisheries":   KindStatistic,
	"cmfri":       KindStatistic,
	"csv":         KindStatistic,
	"ftp":         KindStatistic,
}

// KindOf returns the record kind produced by a provider tag or source string.
func KindOf(provider string) (Kind, bool) {
	k, ok := providerKinds[ProviderOf(provider)]
	return k, ok
}

// Normalize converts a provider payload into unified records. The payload may
// be a JSON array of items, an object wrapping an array under "records",
// "data" or "results", or a single item. When provider is empty, each item's
// own "source" field determines its family.
//
// Missing optional fields never cause an error; an error is returned only when
// the payload cannot be decoded or an item's family cannot be determined.
func Normalize(provider string, payload []byte) ([]Record, error) {
	items, defaults, err := decodeItems(payload)
	if err != nil {
		return nil, &NormalizationError{Provider: provider, Index: -1, Err: err}
	}

	out := make([]Record, 0, len(items))
	for i, item := range items {
		recs, err := normalizeItem(provider, item, defaults)
		if err != nil {
			return nil, &NormalizationError{Provider: provider, Index: i, Err: err}
		}
		out = append(out, recs...)
	}
	return out, nil
}

// NormalizeItem converts a single decoded item. It is the per-record entry
// point used for bulk snapshots, where each item names its own source.
func NormalizeItem(provider string, raw json.RawMessage) ([]Record, error) {
	item, err := decodeValue(raw)
	if err != nil {
		return nil, &NormalizationError{Provider: provider, Index: 0, Err: err}
	}
	recs, err := normalizeItem(provider, item, nil)
	if err != nil {
		return nil, &NormalizationError{Provider: provider, Index: 0, Err: err}
	}
	return recs, nil
}

func normalizeItem(provider string, item any, defaults map[string]any) ([]Record, error) {
	switch v := item.(type) {
	case map[string]any:
		fields := mergeDefaults(v, defaults)
		source, kind, err := resolveSource(provider, fields)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindSensorReading:
			return parseSensor(source, fields), nil
		case KindOccurrence:
			return []Record{parseOccurrence(source, fields)}, nil
		case KindTaxon:
			return []Record{parseTaxon(source, fields)}, nil
		default:
			return []Record{parseStatistic(source, fields)}, nil
		}
	case json.Number:
		// WoRMS answers name lookups with a bare AphiaID.
		source, kind, err := resolveSource(provider, nil)
		if err != nil {
			return nil, err
		}
		if kind != KindTaxon {
			return nil, fmt.Errorf("%w: bare number for %s provider", ErrMalformedPayload, kind)
		}
		return []Record{parseTaxon(source, map[string]any{"AphiaID": v})}, nil
	default:
		return nil, fmt.Errorf("%w: item is %T, not an object", ErrMalformedPayload, item)
	}
}

// resolveSource picks the record's source string and kind. The item's own
// source wins when it belongs to the same family as the tag, so endpoint
// suffixes such as "obis/occurrence" survive.
func resolveSource(provider string, fields map[string]any) (string, Kind, error) {
	itemSource := canonicalSource(str(fields["source"]))
	tag := canonicalSource(provider)

	switch {
	case tag == "" && itemSource == "":
		return "", "", ErrUnknownSource
	case tag == "":
		tag = itemSource
	}

	kind, ok := KindOf(tag)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownSource, tag)
	}

	source := tag
	if itemSource != "" && ProviderOf(itemSource) == ProviderOf(tag) {
		source = itemSource
	}
	return source, kind, nil
}

// canonicalSource lower-cases the provider segment of a source string.
func canonicalSource(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	head, rest, found := strings.Cut(s, "/")
	head = strings.ToLower(head)
	if !found {
		return head
	}
	return head + "/" + rest
}

// decodeItems splits a payload into items. Top-level scalar fields of a
// wrapping object become defaults for every item, and NOAA "metadata" blocks
// contribute station coordinates.
func decodeItems(payload []byte) ([]any, map[string]any, error) {
	root, err := decodeValue(payload)
	if err != nil {
		return nil, nil, err
	}

	switch v := root.(type) {
	case []any:
		return v, nil, nil
	case map[string]any:
		for _, key := range []string{"records", "data", "results"} {
			arr, ok := v[key].([]any)
			if !ok {
				continue
			}
			defaults := make(map[string]any, len(v))
			for k, val := range v {
				switch val.(type) {
				case []any, map[string]any:
					continue
				}
				defaults[k] = val
			}
			if meta, ok := v["metadata"].(map[string]any); ok {
				setDefault(defaults, "latitude", meta["lat"])
				setDefault(defaults, "longitude", meta["lon"])
				setDefault(defaults, "station", meta["id"])
			}
			return arr, defaults, nil
		}
		return []any{v}, nil, nil
	case json.Number:
		return []any{v}, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: top-level %T", ErrMalformedPayload, root)
	}
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return v, nil
}

func setDefault(m map[string]any, key string, v any) {
	if v == nil {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

func mergeDefaults(item, defaults map[string]any) map[string]any {
	if len(defaults) == 0 {
		return item
	}
	merged := make(map[string]any, len(item)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range item {
		merged[k] = v
	}
	return merged
}

// str renders a scalar JSON value as trimmed text.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// firstStr returns the first non-empty text value among keys.
func firstStr(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

// firstNumber returns the first parseable number among keys.
func firstNumber(fields map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := ParseNumber(fields[k]); ok {
			return v, true
		}
	}
	return 0, false
}

// firstTime returns the first parseable timestamp among keys.
func firstTime(fields map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		if t, ok := ParseTime(str(fields[k])); ok {
			return &t
		}
	}
	return nil
}

// geoFrom returns coordinates only when both latitude and longitude parse.
func geoFrom(fields map[string]any) *Geo {
	lat, okLat := firstNumber(fields, "decimalLatitude", "latitude", "lat")
	lon, okLon := firstNumber(fields, "decimalLongitude", "longitude", "lon", "lng")
	if !okLat || !okLon {
		return nil
	}
	return &Geo{Lat: lat, Lon: lon}
}

// generateID produces a deterministic ID from a record's identifying fields.
// Re-normalizing the same payload yields the same ID.
func generateID(kind Kind, source string, ts *time.Time, geo *Geo, parts ...string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('|')
	b.WriteString(source)
	b.WriteByte('|')
	if ts != nil {
		b.WriteString(ts.UTC().Format(time.RFC3339Nano))
	}
	b.WriteByte('|')
	if geo != nil {
		fmt.Fprintf(&b, "%.6f,%.6f", geo.Lat, geo.Lon)
	}
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	hash := sha256.Sum256([]byte(b.String()))
	return ProviderOf(source) + "-" + hex.EncodeToString(hash[:8])
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
