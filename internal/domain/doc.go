// Package domain models GLOBE Observer and GLOBE observation records and the
// batch computations run over them.
//
// # Data Source
//
// Observations come from the GLOBE API measurement search endpoint, which
// returns a GeoJSON FeatureCollection when called with geojson=TRUE. One
// feature is one observation. The collector in adapter/globe downloads the raw
// document; this package only parses it.
//
// # GLOBE API Conventions
//
// Property keys carry the protocol name with underscores removed as a prefix:
//
//	protocol "sky_conditions"  →  "skyconditionsMeasuredAt", "skyconditionsUserid", ...
//	protocol "land_covers"     →  "landcoversMucCode", "landcoversNorthPhotoUrl", ...
//
// Parsing strips the prefix so every protocol is read through the same keys.
//
// Time format:
//
//	"2019-11-28T14:35:00", UTC without a zone designator. Fractional seconds
//	and a trailing "Z" are tolerated.
//
// Photo URLs:
//
//	One key per direction, "<Direction>PhotoUrl". Mosquito habitat photos use
//	list keys, "<Name>PhotoUrls", with URLs separated by ";". Since early 2020
//	the API returns JSON null (sometimes the string "null") when the participant
//	skipped a photo, so a direction key can exist without a photo.
//
// Data source:
//
//	"GLOBE Observer App" marks submissions made with the mobile app. Every other
//	value (web forms, data entry app, email) is treated as traditional GLOBE data.
//
// # Quality Flags
//
// Quality control is a stateless batch classification. Rules never modify an
// Observation; they return Flagged values carrying a sorted set of two-letter
// codes. See [QualityCheck] and the Flag* constants for the rule table.
//
// # Aggregation
//
// Cross-tabulation by flag and protocol ([CrossTabulate]), paper statistics
// ([ComputeStats]) and the histograms behind each figure live here too, so the
// render and report packages only format numbers.
package domain
