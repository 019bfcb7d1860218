package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// Quality flag codes.
const (
	FlagDuplicate   = "DU" // same user, protocol, position and time as an earlier observation
	FlagBadLocation = "LL" // position missing or out of range
	FlagWater       = "LW" // position over water
	FlagNullIsland  = "LZ" // position exactly (0, 0)
	FlagNoPhoto     = "PN" // no photo in any direction
	FlagEarly       = "TE" // app observation before the app existed
	FlagFuture      = "TF" // measured after the reference time
	FlagMidnight    = "TZ" // measured at exactly 00:00:00 UTC
)

// AllFlags lists every flag code in sorted order.
var AllFlags = []string{FlagDuplicate, FlagBadLocation, FlagWater, FlagNullIsland, FlagNoPhoto, FlagEarly, FlagFuture, FlagMidnight}

var flagDescriptions = map[string]string{
	FlagDuplicate:   "duplicate observation",
	FlagBadLocation: "invalid or missing location",
	FlagWater:       "location over water",
	FlagNullIsland:  "location at (0, 0)",
	FlagNoPhoto:     "no photos",
	FlagEarly:       "before app launch",
	FlagFuture:      "in the future",
	FlagMidnight:    "at 00:00:00 UTC",
}

// FlagDescription returns a short human readable description of a flag code.
func FlagDescription(code string) string {
	if d, ok := flagDescriptions[code]; ok {
		return d
	}
	return code
}

// AppLaunch is the GLOBE Observer release date; app observations before it
// carry FlagEarly.
var AppLaunch = time.Date(2016, 8, 30, 0, 0, 0, 0, time.UTC)

// Flagged pairs an observation with its quality flags. Flags is sorted and
// empty when the observation passed every rule.
type Flagged struct {
	Observation Observation `json:"observation"`
	Flags       []string    `json:"flags"`
}

// Has reports whether the observation carries the given flag.
func (f Flagged) Has(code string) bool {
	i := sort.SearchStrings(f.Flags, code)
	return i < len(f.Flags) && f.Flags[i] == code
}

// ValidPosition reports whether an observation has coordinates inside the
// WGS-84 ranges.
func ValidPosition(o Observation) bool {
	if !o.HasPosition || math.IsNaN(o.Geo.Lat) || math.IsNaN(o.Geo.Lon) {
		return false
	}
	return o.Geo.Lat >= -90 && o.Geo.Lat <= 90 && o.Geo.Lon >= -180 && o.Geo.Lon <= 180
}

// QualityCheck runs every flag rule over obs and returns one Flagged per
// observation, in input order. The water rule runs only when checker is
// non-nil; a failed land lookup is logged and leaves that observation without
// FlagWater. Cancelling ctx aborts the batch.
func QualityCheck(ctx context.Context, obs []Observation, checker LandChecker, logger *slog.Logger) ([]Flagged, error) {
	now := Now()
	seen := make(map[string]struct{}, len(obs))
	out := make([]Flagged, 0, len(obs))

	for _, o := range obs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("quality check: %w", err)
		}

		var flags []string
		valid := ValidPosition(o)

		key := duplicateKey(o)
		if _, dup := seen[key]; dup {
			flags = append(flags, FlagDuplicate)
		} else {
			seen[key] = struct{}{}
		}

		if !valid {
			flags = append(flags, FlagBadLocation)
		}

		if valid && checker != nil {
			land, err := checker.IsLand(ctx, o.Geo.Lat, o.Geo.Lon)
			switch {
			case err != nil && ctx.Err() != nil:
				return nil, fmt.Errorf("quality check: %w", ctx.Err())
			case err != nil:
				logger.Warn("land check failed",
					"observation_id", o.ID,
					"lat", o.Geo.Lat,
					"lon", o.Geo.Lon,
					"error", err,
				)
			case !land:
				flags = append(flags, FlagWater)
			}
		}

		if o.HasPosition && o.Geo.Lat == 0 && o.Geo.Lon == 0 {
			flags = append(flags, FlagNullIsland)
		}
		if o.PhotoCount() == 0 {
			flags = append(flags, FlagNoPhoto)
		}
		if o.IsApp() && o.MeasuredAt.Before(AppLaunch) {
			flags = append(flags, FlagEarly)
		}
		if o.MeasuredAt.After(now) {
			flags = append(flags, FlagFuture)
		}
		if isMidnight(o.MeasuredAt) {
			flags = append(flags, FlagMidnight)
		}

		sort.Strings(flags)
		out = append(out, Flagged{Observation: o, Flags: flags})
	}
	return out, nil
}

func duplicateKey(o Observation) string {
	pos := "none"
	if o.HasPosition {
		pos = fmt.Sprintf("%.4f,%.4f", o.Geo.Lat, o.Geo.Lon)
	}
	return fmt.Sprintf("%d|%t|%s|%s|%d", o.UserID, o.HasUserID, o.Protocol, pos, o.MeasuredAt.UnixNano())
}

func isMidnight(t time.Time) bool {
	t = t.UTC()
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// FlagCounts returns the number of incidences of each flag.
func FlagCounts(flagged []Flagged) map[string]int {
	counts := make(map[string]int)
	for _, f := range flagged {
		for _, code := range f.Flags {
			counts[code]++
		}
	}
	return counts
}

// CountFlaggedObservations returns how many observations carry at least one flag.
func CountFlaggedObservations(flagged []Flagged) int {
	n := 0
	for _, f := range flagged {
		if len(f.Flags) > 0 {
			n++
		}
	}
	return n
}

// FilterByFlags selects flagged observations that carry every code in allOf,
// at least one code in anyOf (ignored when empty) and no code in noneOf.
func FilterByFlags(flagged []Flagged, allOf, anyOf, noneOf []string) []Flagged {
	out := make([]Flagged, 0, len(flagged))
	for _, f := range flagged {
		if matchesFlags(f, allOf, anyOf, noneOf) {
			out = append(out, f)
		}
	}
	return out
}

func matchesFlags(f Flagged, allOf, anyOf, noneOf []string) bool {
	for _, code := range allOf {
		if !f.Has(code) {
			return false
		}
	}
	for _, code := range noneOf {
		if f.Has(code) {
			return false
		}
	}
	if len(anyOf) == 0 {
		return true
	}
	for _, code := range anyOf {
		if f.Has(code) {
			return true
		}
	}
	return false
}
