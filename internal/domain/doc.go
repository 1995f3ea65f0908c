// Package domain models Montgomery County (MD) traffic-crash reports and the
// star-schema warehouse they are loaded into.
//
// # Data Sources
//
// Three crash datasets come from the county open-data portal (Socrata): incident
// reports, one row per crash; driver reports, one row per vehicle involved; and
// non-motorist reports, one row per pedestrian or cyclist involved. All three share
// the "report_number" column. When the portal is unreachable the same datasets are
// read from local CSV snapshots, which use a different timestamp format.
//
// Supporting sources are the public vehicle-specification feed (fueleconomy.gov),
// the county zip-code polygon file, and an hourly historical weather archive
// queried per zip-code centroid.
//
// # Data Conventions
//
// Timestamps:
//
//	Portal:  "2023-12-01T10:15:00.000"  (ISO 8601, fractional seconds)
//	Files:   "12/01/2023 10:15:00 AM"  (US 12-hour clock)
//	Both are naive local wall-clock times and are kept naive. A value that does
//	not parse becomes the zero time and maps to DateHourKey 0.
//
// Missing values:
//
//	Every raw column is declared once in a [Schema] with a [Kind]. Category
//	columns collapse blank, "nan", "n/a" and any casing of "unknown" to
//	[UnknownCategory]. Number columns become 0 when missing or unparseable.
//	Vehicle-feed labels default to [UnknownLabel].
//
// Hour slots:
//
//	DateHourKey is the integer YYYYMMDDHH of the hour containing the timestamp,
//	e.g. 2023-12-01 10:15 -> 2023120110.
//
// Location areas:
//
//	A LocationAreaKey is built by concatenating the first eight digits of the
//	zone centroid's longitude and latitude (decimal point and sign removed).
//	Key 0 is the sentinel "Unknown" area for points outside every zone.
//
// # Key Generation
//
// Surrogate keys for vehicles, roads and weather rows are 64-bit FNV-1a hashes of
// a canonical string, reduced modulo 10^16. Identical input always produces the
// same key, so reloading the same window skips rows already in the warehouse
// rather than duplicating them. See [Hash16].
package domain
