package domain

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant of a Record is populated.
type Kind string

const (
	KindSensorReading Kind = "sensor_reading"
	KindOccurrence    Kind = "occurrence"
	KindTaxon         Kind = "taxon"
	KindStatistic     Kind = "statistic"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SensorReading is one parameter measured at one instant, optionally at a station.
type SensorReading struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Station   string  `json:"station,omitempty"`
}

// Occurrence is a single species observation. OBIS and BOLD populate
// different subsets of the optional fields.
type Occurrence struct {
	Species       string   `json:"species,omitempty"`
	Depth         *float64 `json:"depth,omitempty"`
	EventDate     string   `json:"event_date,omitempty"`
	TaxonRank     string   `json:"taxon_rank,omitempty"`
	Family        string   `json:"family,omitempty"`
	Order         string   `json:"order,omitempty"`
	Class         string   `json:"class,omitempty"`
	BasisOfRecord string   `json:"basis_of_record,omitempty"`

	// Barcode fields (BOLD).
	ProcessID        string `json:"process_id,omitempty"`
	Marker           string `json:"marker,omitempty"`
	GenBankAccession string `json:"genbank_accession,omitempty"`
}

// TaxonomicEntry is a WoRMS-style taxon record.
type TaxonomicEntry struct {
	AphiaID        int    `json:"aphia_id,omitempty"`
	ScientificName string `json:"scientific_name,omitempty"`
	Rank           string `json:"rank,omitempty"`
	Status         string `json:"status,omitempty"`
	ValidName      string `json:"valid_name,omitempty"`
	ValidAphiaID   int    `json:"valid_aphia_id,omitempty"`
	Kingdom        string `json:"kingdom,omitempty"`
	Phylum         string `json:"phylum,omitempty"`
	Class          string `json:"class,omitempty"`
	Order          string `json:"order,omitempty"`
	Family         string `json:"family,omitempty"`
	Genus          string `json:"genus,omitempty"`
}

// StatisticalRecord is one reporting period with named numeric metrics.
type StatisticalRecord struct {
	Period  string             `json:"period"`
	Metrics map[string]float64 `json:"metrics"`
}

// Record is the unified shape every provider payload normalizes into.
// Exactly one of the variant pointers is set, and it matches Kind.
type Record struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Source    string     `json:"source"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Geo       *Geo       `json:"geo,omitempty"`

	Reading    *SensorReading     `json:"reading,omitempty"`
	Occurrence *Occurrence        `json:"occurrence,omitempty"`
	Taxon      *TaxonomicEntry    `json:"taxon,omitempty"`
	Statistic  *StatisticalRecord `json:"statistic,omitempty"`
}

// Provider returns the top-level provider identifier: the lower-cased part of
// Source before the first "/".
func (r Record) Provider() string {
	return ProviderOf(r.Source)
}

// ProviderOf extracts the top-level provider identifier from a source string.
func ProviderOf(source string) string {
	head, _, _ := strings.Cut(strings.TrimSpace(source), "/")
	return strings.ToLower(head)
}

// Mappable reports whether the record carries coordinates.
func (r Record) Mappable() bool {
	return r.Geo != nil
}

// Species returns the occurrence species name, or "" for other kinds.
func (r Record) Species() string {
	if r.Occurrence == nil {
		return ""
	}
	return r.Occurrence.Species
}

// Text returns the string value of a named field. The boolean is false when
// the field does not apply to the record's kind or is empty.
func (r Record) Text(field string) (string, bool) {
	var v string
	switch field {
	case "id":
		v = r.ID
	case "kind":
		v = string(r.Kind)
	case "source":
		v = r.Source
	case "provider":
		v = r.Provider()
	case "timestamp":
		if r.Timestamp != nil {
			v = r.Timestamp.UTC().Format(time.RFC3339)
		}
	default:
		v = r.variantText(field)
	}
	return v, v != ""
}

func (r Record) variantText(field string) string {
	switch {
	case r.Reading != nil:
		switch field {
		case "parameter":
			return r.Reading.Parameter
		case "unit":
			return r.Reading.Unit
		case "station":
			return r.Reading.Station
		}
	case r.Occurrence != nil:
		o := r.Occurrence
		switch field {
		case "species":
			return o.Species
		case "eventDate":
			return o.EventDate
		case "rank":
			return o.TaxonRank
		case "family":
			return o.Family
		case "order":
			return o.Order
		case "class":
			return o.Class
		case "basisOfRecord":
			return o.BasisOfRecord
		case "processId":
			return o.ProcessID
		case "marker":
			return o.Marker
		}
	case r.Taxon != nil:
		t := r.Taxon
		switch field {
		case "scientificName":
			return t.ScientificName
		case "validName":
			return t.ValidName
		case "rank":
			return t.Rank
		case "status":
			return t.Status
		case "kingdom":
			return t.Kingdom
		case "phylum":
			return t.Phylum
		case "class":
			return t.Class
		case "order":
			return t.Order
		case "family":
			return t.Family
		case "genus":
			return t.Genus
		case "aphiaID":
			if t.AphiaID != 0 {
				return strconv.Itoa(t.AphiaID)
			}
		}
	case r.Statistic != nil:
		if field == "year" {
			return r.Statistic.Period
		}
	}
	return ""
}

// Number returns the numeric value of a named field. For statistical records
// any metric name is also accepted.
func (r Record) Number(field string) (float64, bool) {
	switch field {
	case "latitude":
		if r.Geo != nil {
			return r.Geo.Lat, true
		}
		return 0, false
	case "longitude":
		if r.Geo != nil {
			return r.Geo.Lon, true
		}
		return 0, false
	}
	switch {
	case r.Reading != nil:
		if field == "value" {
			return r.Reading.Value, true
		}
	case r.Occurrence != nil:
		if field == "depth" && r.Occurrence.Depth != nil {
			return *r.Occurrence.Depth, true
		}
	case r.Taxon != nil:
		if field == "aphiaID" && r.Taxon.AphiaID != 0 {
			return float64(r.Taxon.AphiaID), true
		}
	case r.Statistic != nil:
		if field == "year" {
			if y, ok := YearOf(r.Statistic.Period); ok {
				return float64(y), true
			}
			return 0, false
		}
		v, ok := r.Statistic.Metrics[field]
		return v, ok
	}
	return 0, false
}

// Time returns the instant for a named date field ("timestamp" or "eventDate").
func (r Record) Time(field string) (time.Time, bool) {
	switch field {
	case "timestamp":
		if r.Timestamp != nil {
			return *r.Timestamp, true
		}
	case "eventDate":
		if r.Occurrence != nil {
			return ParseTime(r.Occurrence.EventDate)
		}
	}
	return time.Time{}, false
}

// YearOf parses the leading four-digit year of a period label such as
// "2019-20" or "2021".
func YearOf(period string) (int, bool) {
	period = strings.TrimSpace(period)
	if len(period) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(period[:4])
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}
