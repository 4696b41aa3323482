// Package domain models unified marine-science records and the boundary to
// the species distribution model service.
//
// # Providers
//
// Records arrive from an upstream ingestion service that wraps several public
// APIs. Each provider belongs to exactly one family, and the family decides
// which [Record] variant is produced:
//
//	noaa, open-meteo, climate      → SensorReading
//	obis, bold                     → Occurrence
//	worms                          → TaxonomicEntry
//	data.gov.in, cmfri, csv, ftp   → StatisticalRecord
//
// The provider is taken from the tag passed to [Normalize], or from the
// item's own "source" field when no tag is given. Sources may carry an
// endpoint suffix ("obis/occurrence", "worms/AphiaRecordsByName"); only the
// segment before the first "/" identifies the provider.
//
// # Payload Conventions
//
// NOAA Tides & Currents datagetter items are {"t": "2025-01-01 00:00", "v": "27.5"}
// with the product and station supplied by the request; values are strings.
// Open-Meteo returns column-oriented hourly blocks where null marks a missing
// hour. OBIS uses Darwin Core names (decimalLatitude, scientificName). WoRMS
// answers name lookups with a bare AphiaID integer. data.gov.in fisheries rows
// label the period as a financial year such as "2019-20".
//
// # Leniency
//
// Numeric fields go through [Coerce]: missing, non-numeric, and non-finite
// values fall back to a default rather than failing the record. Dates that do
// not parse leave the timestamp nil.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of kind, source, time, position,
// and variant key fields, prefixed with the provider. Normalizing the same
// payload twice yields identical records.
package domain
