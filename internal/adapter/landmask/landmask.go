// Package landmask answers land/water queries from a GeoJSON file of land
// polygons, such as Natural Earth's ne_110m_land.
package landmask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/afero"
)

// Mask implements domain.LandChecker over an in-memory polygon set.
// It is safe for concurrent use once loaded.
type Mask struct {
	polygons []polygon
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
	Geometry *geometry `json:"geometry"` // set when the document is a single Feature
}

type feature struct {
	Geometry *geometry `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type polygon struct {
	bbox  boundingBox
	rings []ring // rings[0] is the outer ring, the rest are holes
}

type boundingBox struct {
	minLat, maxLat float64
	minLon, maxLon float64
}

type ring []point

type point struct {
	lat, lon float64
}

// Load reads and parses a GeoJSON land mask from fs.
func Load(fs afero.Fs, path string) (*Mask, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read land mask: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("land mask %s: %w", path, err)
	}
	return m, nil
}

// Parse builds a Mask from a GeoJSON FeatureCollection or Feature whose
// geometries are Polygons or MultiPolygons. Other geometry types are ignored.
func Parse(data []byte) (*Mask, error) {
	var doc featureCollection
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var geoms []*geometry
	switch doc.Type {
	case "FeatureCollection":
		for _, f := range doc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		geoms = append(geoms, doc.Geometry)
	default:
		return nil, fmt.Errorf("unexpected geojson type %q", doc.Type)
	}

	m := &Mask{}
	for _, g := range geoms {
		if g == nil {
			continue
		}
		polys, err := g.asPolygons()
		if err != nil {
			return nil, err
		}
		m.polygons = append(m.polygons, polys...)
	}
	if len(m.polygons) == 0 {
		return nil, errors.New("no land polygons found")
	}
	return m, nil
}

// Polygons returns the number of polygons loaded.
func (m *Mask) Polygons() int { return len(m.polygons) }

// IsLand reports whether the point lies inside any land polygon. Points on a
// polygon edge count as land.
func (m *Mask) IsLand(_ context.Context, lat, lon float64) (bool, error) {
	for _, p := range m.polygons {
		if p.contains(lat, lon) {
			return true, nil
		}
	}
	return false, nil
}

func (g geometry) asPolygons() ([]polygon, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		if p, ok := buildPolygon(coords); ok {
			return []polygon{p}, nil
		}
		return nil, nil
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		polys := make([]polygon, 0, len(coords))
		for _, raw := range coords {
			if p, ok := buildPolygon(raw); ok {
				polys = append(polys, p)
			}
		}
		return polys, nil
	default:
		return nil, nil
	}
}

func buildPolygon(raw [][][]float64) (polygon, bool) {
	box := boundingBox{minLat: math.MaxFloat64, minLon: math.MaxFloat64, maxLat: -math.MaxFloat64, maxLon: -math.MaxFloat64}
	rings := make([]ring, 0, len(raw))
	for i, segment := range raw {
		pts := make(ring, 0, len(segment))
		for _, coord := range segment {
			if len(coord) < 2 {
				continue
			}
			pt := point{lat: coord[1], lon: coord[0]}
			pts = append(pts, pt)
			if i == 0 {
				box.expand(pt)
			}
		}
		if len(pts) < 3 {
			if i == 0 {
				return polygon{}, false
			}
			continue
		}
		rings = append(rings, pts)
	}
	if len(rings) == 0 {
		return polygon{}, false
	}
	return polygon{bbox: box, rings: rings}, true
}

func (b *boundingBox) expand(p point) {
	b.minLat = math.Min(b.minLat, p.lat)
	b.maxLat = math.Max(b.maxLat, p.lat)
	b.minLon = math.Min(b.minLon, p.lon)
	b.maxLon = math.Max(b.maxLon, p.lon)
}

func (b boundingBox) contains(lat, lon float64) bool {
	return lat >= b.minLat && lat <= b.maxLat && lon >= b.minLon && lon <= b.maxLon
}

func (p polygon) contains(lat, lon float64) bool {
	if !p.bbox.contains(lat, lon) {
		return false
	}
	if !p.rings[0].contains(lat, lon) {
		return false
	}
	for _, hole := range p.rings[1:] {
		if hole.contains(lat, lon) && !hole.onEdge(lat, lon) {
			return false
		}
	}
	return true
}

// contains ray-casts towards increasing longitude.
func (r ring) contains(lat, lon float64) bool {
	if r.onEdge(lat, lon) {
		return true
	}
	inside := false
	j := len(r) - 1
	for i := range r {
		pi, pj := r[i], r[j]
		if (pi.lat > lat) != (pj.lat > lat) {
			crossLon := (pj.lon-pi.lon)*(lat-pi.lat)/(pj.lat-pi.lat) + pi.lon
			if lon < crossLon {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func (r ring) onEdge(lat, lon float64) bool {
	j := len(r) - 1
	for i := range r {
		if onSegment(r[j], r[i], lat, lon) {
			return true
		}
		j = i
	}
	return false
}

func onSegment(a, b point, lat, lon float64) bool {
	const eps = 1e-9
	cross := (b.lon-a.lon)*(lat-a.lat) - (b.lat-a.lat)*(lon-a.lon)
	if math.Abs(cross) > eps {
		return false
	}
	return lon >= math.Min(a.lon, b.lon)-eps && lon <= math.Max(a.lon, b.lon)+eps &&
		lat >= math.Min(a.lat, b.lat)-eps && lat <= math.Max(a.lat, b.lat)+eps
}
