package domain

import (
	"sort"
	"strconv"
	"time"
)

// parseSensor handles station and forecast readings. Three shapes are
// accepted: the standardized {parameter, value, timestamp} record, NOAA
// datagetter items {t, v} with the product supplied alongside, and Open-Meteo
// hourly blocks, which expand to one record per parameter per timestamp.
func parseSensor(source string, fields map[string]any) []Record {
	if hourly, ok := fields["hourly"].(map[string]any); ok {
		return parseHourly(source, fields, hourly)
	}

	reading := SensorReading{
		Parameter: firstStr(fields, "parameter", "product"),
		Value:     Coerce(firstPresent(fields, "value", "v"), 0),
		Unit:      firstStr(fields, "unit", "units"),
		Station:   firstStr(fields, "station", "station_id"),
	}
	ts := firstTime(fields, "timestamp", "t", "time")
	geo := geoFrom(fields)

	return []Record{NewSensorReading(source, reading, ts, geo)}
}

// NewSensorReading builds a sensor record with its content-derived ID. It is
// used by sources that produce readings without going through a payload.
func NewSensorReading(source string, reading SensorReading, ts *time.Time, geo *Geo) Record {
	return Record{
		ID: generateID(KindSensorReading, source, ts, geo,
			reading.Parameter, reading.Station, strconv.FormatFloat(reading.Value, 'g', -1, 64)),
		Kind:      KindSensorReading,
		Source:    source,
		Timestamp: ts,
		Geo:       geo,
		Reading:   &reading,
	}
}

func parseHourly(source string, fields, hourly map[string]any) []Record {
	times, _ := hourly["time"].([]any)
	limit := len(times)
	if n, ok := ParseNumber(fields["limit_hours"]); ok && int(n) >= 0 && int(n) < limit {
		limit = int(n)
	}

	params := make([]string, 0, len(hourly))
	for k := range hourly {
		if k != "time" {
			params = append(params, k)
		}
	}
	sort.Strings(params)

	units, _ := fields["hourly_units"].(map[string]any)
	geo := geoFrom(fields)

	var out []Record
	for _, param := range params {
		values, _ := hourly[param].([]any)
		for i := 0; i < limit && i < len(values); i++ {
			v, ok := ParseNumber(values[i])
			if !ok {
				continue
			}
			ts := firstTime(map[string]any{"t": times[i]}, "t")
			reading := SensorReading{Parameter: param, Value: v, Unit: str(units[param])}
			out = append(out, NewSensorReading(source, reading, ts, geo))
		}
	}
	return out
}

// parseOccurrence handles OBIS occurrence rows and BOLD specimen rows.
// Records without both coordinates are kept but are not mappable.
func parseOccurrence(source string, fields map[string]any) Record {
	occ := &Occurrence{
		Species:          firstStr(fields, "species", "scientificName", "species_name"),
		EventDate:        firstStr(fields, "eventDate", "event_date"),
		TaxonRank:        firstStr(fields, "taxonRank", "rank"),
		Family:           firstStr(fields, "family"),
		Order:            firstStr(fields, "order"),
		Class:            firstStr(fields, "class"),
		BasisOfRecord:    firstStr(fields, "basisOfRecord"),
		ProcessID:        firstStr(fields, "processid", "process_id"),
		Marker:           firstStr(fields, "marker", "marker_code"),
		GenBankAccession: firstStr(fields, "genbank_accession"),
	}
	if d, ok := firstNumber(fields, "depth", "minimumDepthInMeters"); ok {
		occ.Depth = &d
	}

	ts := firstTime(fields, "timestamp", "eventDate", "event_date")
	geo := geoFrom(fields)
	depth := ""
	if occ.Depth != nil {
		depth = strconv.FormatFloat(*occ.Depth, 'g', -1, 64)
	}

	return Record{
		ID:         generateID(KindOccurrence, source, ts, geo, occ.Species, occ.EventDate, depth, occ.ProcessID),
		Kind:       KindOccurrence,
		Source:     source,
		Timestamp:  ts,
		Geo:        geo,
		Occurrence: occ,
	}
}

// parseTaxon handles WoRMS records, including the AphiaID-only form.
func parseTaxon(source string, fields map[string]any) Record {
	taxon := &TaxonomicEntry{
		AphiaID:        intField(fields, "AphiaID", "aphiaID", "aphia_id"),
		ScientificName: firstStr(fields, "scientificname", "scientificName", "scientific_name"),
		Rank:           firstStr(fields, "rank"),
		Status:         firstStr(fields, "status"),
		ValidName:      firstStr(fields, "valid_name", "validName"),
		ValidAphiaID:   intField(fields, "valid_AphiaID", "validAphiaID", "valid_aphia_id"),
		Kingdom:        firstStr(fields, "kingdom"),
		Phylum:         firstStr(fields, "phylum"),
		Class:          firstStr(fields, "class"),
		Order:          firstStr(fields, "order"),
		Family:         firstStr(fields, "family"),
		Genus:          firstStr(fields, "genus"),
	}
	ts := firstTime(fields, "timestamp")

	return Record{
		ID:        generateID(KindTaxon, source, ts, nil, strconv.Itoa(taxon.AphiaID), taxon.ScientificName),
		Kind:      KindTaxon,
		Source:    source,
		Timestamp: ts,
		Taxon:     taxon,
	}
}

// statisticMetaKeys are fields of statistical rows that are not metrics.
var statisticMetaKeys = map[string]bool{
	"source":              true,
	"timestamp":           true,
	"ingestion_timestamp": true,
	"year":                true,
	"financial_year":      true,
	"period":              true,
	"id":                  true,
	"_id":                 true,
}

// parseStatistic handles yearly aggregates (data.gov.in fisheries, CMFRI
// tables, CSV rows). Every numeric non-meta column becomes a metric.
func parseStatistic(source string, fields map[string]any) Record {
	stat := &StatisticalRecord{
		Period:  firstStr(fields, "year", "financial_year", "period"),
		Metrics: make(map[string]float64),
	}
	for k, v := range fields {
		if statisticMetaKeys[k] {
			continue
		}
		if n, ok := ParseNumber(v); ok {
			stat.Metrics[k] = n
		}
	}

	ts := firstTime(fields, "timestamp", "ingestion_timestamp")
	parts := []string{stat.Period}
	for _, k := range sortedKeys(stat.Metrics) {
		parts = append(parts, k+"="+strconv.FormatFloat(stat.Metrics[k], 'g', -1, 64))
	}

	return Record{
		ID:        generateID(KindStatistic, source, ts, nil, parts...),
		Kind:      KindStatistic,
		Source:    source,
		Timestamp: ts,
		Statistic: stat,
	}
}

func firstPresent(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func intField(fields map[string]any, keys ...string) int {
	v, ok := firstNumber(fields, keys...)
	if !ok {
		return 0
	}
	return int(v)
}
