package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ErrNotFeatureCollection is returned when a payload is valid JSON but not a
// GeoJSON FeatureCollection.
var ErrNotFeatureCollection = errors.New("payload is not a GeoJSON FeatureCollection")

// Skip reasons reported in ParseStats.
const (
	SkipUnknownProtocol = "unknown_protocol"
	SkipBadTimestamp    = "bad_timestamp"
)

// measuredAtLayouts are tried in order; the API omits the zone and means UTC.
var measuredAtLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// cloudTypeNames are the sky conditions properties recorded as "true" when the
// observer identified that cloud type.
var cloudTypeNames = []string{
	"Altocumulus", "Altostratus", "Cirrocumulus", "Cirrostratus", "Cirrus",
	"Cumulonimbus", "Cumulus", "Nimbostratus", "Stratocumulus", "Stratus",
	"Contrails",
}

// FeatureCollection is the GeoJSON document returned by the GLOBE API.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one GeoJSON feature; properties keep their raw JSON types.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds a GeoJSON Point. Coordinates are [lon, lat].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ParseStats summarises a parse run.
type ParseStats struct {
	Features int
	Parsed   int
	Skipped  map[string]int // reason → count
}

// SkippedTotal returns the number of features that did not yield an observation.
func (s ParseStats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// ParseFeatureCollection decodes a GLOBE API payload into observations.
// Features with an unknown protocol or an unreadable timestamp are skipped and
// counted; only a malformed document returns an error.
func ParseFeatureCollection(data []byte) ([]Observation, ParseStats, error) {
	stats := ParseStats{Skipped: map[string]int{}}

	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, stats, fmt.Errorf("parse feature collection: %w", err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, stats, fmt.Errorf("parse feature collection: %w (type %q)", ErrNotFeatureCollection, fc.Type)
	}

	stats.Features = len(fc.Features)
	obs := make([]Observation, 0, len(fc.Features))
	for _, f := range fc.Features {
		ob, reason := ParseFeature(f)
		if reason != "" {
			stats.Skipped[reason]++
			continue
		}
		obs = append(obs, ob)
	}
	stats.Parsed = len(obs)
	return obs, stats, nil
}

// ParseFeature converts a single feature. It returns a non-empty skip reason
// when the feature cannot become an Observation.
func ParseFeature(f Feature) (Observation, string) {
	raw, _ := f.Properties["protocol"].(string)
	protocol, ok := ParseProtocol(strings.TrimSpace(raw))
	if !ok {
		return Observation{}, SkipUnknownProtocol
	}
	props := stripPrefix(f.Properties, protocolPrefixes[protocol])

	measuredAt, ok := parseMeasuredAt(cast.ToString(props["MeasuredAt"]))
	if !ok {
		return Observation{}, SkipBadTimestamp
	}

	geo, hasPosition := featurePosition(f, props)
	userID, errUser := cast.ToInt64E(props["Userid"])
	dataSource := strings.TrimSpace(cast.ToString(props["DataSource"]))

	ob := Observation{
		Protocol:      protocol,
		Source:        sourceFromDataSource(dataSource),
		DataSource:    dataSource,
		Geo:           geo,
		HasPosition:   hasPosition,
		MeasuredAt:    measuredAt,
		UserID:        userID,
		HasUserID:     errUser == nil && props["Userid"] != nil,
		PhotoURLs:     photoURLs(props),
		MosquitoGenus: cleanString(props["Genus"]),
		MucCode:       cleanString(props["MucCode"]),
	}
	if protocol == SkyConditions {
		ob.CloudTypes = cloudTypes(props)
	}

	ob.ID = cleanString(props["ObservationId"])
	if ob.ID == "" {
		ob.ID = generateID(protocol, geo, hasPosition, measuredAt, userID)
	}
	return ob, ""
}

// stripPrefix returns a copy of props with the protocol prefix removed from
// every key that carries it. Unprefixed keys are kept unless a stripped key
// maps to the same name.
func stripPrefix(props map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = v
		}
	}
	for k, v := range props {
		if strings.HasPrefix(k, prefix) {
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

func parseMeasuredAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range measuredAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// featurePosition prefers the GeoJSON geometry and falls back to the
// latitude/longitude properties.
func featurePosition(f Feature, props map[string]any) (Geo, bool) {
	if f.Geometry != nil && len(f.Geometry.Coordinates) >= 2 {
		return Geo{Lat: f.Geometry.Coordinates[1], Lon: f.Geometry.Coordinates[0]}, true
	}
	lat, errLat := cast.ToFloat64E(props["latitude"])
	lon, errLon := cast.ToFloat64E(props["longitude"])
	if errLat != nil || errLon != nil || props["latitude"] == nil || props["longitude"] == nil {
		return Geo{}, false
	}
	return Geo{Lat: lat, Lon: lon}, true
}

// photoURLs collects "<Direction>PhotoUrl" and "<Name>PhotoUrls" keys. A key
// whose value is null keeps its direction with an empty URL.
func photoURLs(props map[string]any) map[string]string {
	urls := map[string]string{}
	for k, v := range props {
		switch {
		case strings.HasSuffix(k, "PhotoUrl"):
			dir := strings.TrimSuffix(k, "PhotoUrl")
			if dir == "" {
				continue
			}
			urls[dir] = cleanURL(v)
		case strings.HasSuffix(k, "PhotoUrls"):
			name := strings.TrimSuffix(k, "PhotoUrls")
			if name == "" {
				continue
			}
			list := splitURLs(cleanURL(v))
			if len(list) == 0 {
				urls[name] = ""
				continue
			}
			for i, u := range list {
				urls[fmt.Sprintf("%s%d", name, i+1)] = u
			}
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}

func cleanURL(v any) string {
	s := cleanString(v)
	if strings.EqualFold(s, "pending approval") || strings.EqualFold(s, "rejected") {
		return ""
	}
	return s
}

func splitURLs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part != "" && !strings.EqualFold(part, "null") {
			out = append(out, part)
		}
	}
	return out
}

// cleanString converts a property to a trimmed string, mapping JSON null and
// the literal "null" to "".
func cleanString(v any) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(cast.ToString(v))
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func cloudTypes(props map[string]any) []string {
	var types []string
	for _, name := range cloudTypeNames {
		v, ok := props[name]
		if !ok || v == nil {
			continue
		}
		if b, err := cast.ToBoolE(v); err == nil && b {
			types = append(types, name)
		}
	}
	sort.Strings(types)
	return types
}

// generateID produces a deterministic ID for features without an observation
// ID, so re-parsing the same payload yields the same IDs.
func generateID(protocol Protocol, geo Geo, hasPosition bool, measuredAt time.Time, userID int64) string {
	pos := "none"
	if hasPosition {
		pos = fmt.Sprintf("%.5f|%.5f", geo.Lat, geo.Lon)
	}
	input := fmt.Sprintf("%s|%s|%s|%d", protocol, pos, measuredAt.Format(time.RFC3339), userID)
	hash := sha256.Sum256([]byte(input))
	return protocolPrefixes[protocol] + "-" + hex.EncodeToString(hash[:8])
}
