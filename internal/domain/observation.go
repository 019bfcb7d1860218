package domain

import (
	"context"
	"time"
)

// Protocol identifies a GLOBE observation type.
type Protocol string

// Protocols supported by the pipeline. Order matters: every per-protocol table
// and figure lists protocols in the order of [AllProtocols].
const (
	SkyConditions         Protocol = "sky_conditions"
	LandCovers            Protocol = "land_covers"
	MosquitoHabitatMapper Protocol = "mosquito_habitat_mapper"
	TreeHeights           Protocol = "tree_heights"
)

// AllProtocols lists the supported protocols in display order.
var AllProtocols = []Protocol{SkyConditions, LandCovers, MosquitoHabitatMapper, TreeHeights}

var protocolLabels = map[Protocol]string{
	SkyConditions:         "Clouds",
	LandCovers:            "Land Cover",
	MosquitoHabitatMapper: "Mosquito Habitats",
	TreeHeights:           "Tree Height",
}

var protocolPrefixes = map[Protocol]string{
	SkyConditions:         "skyconditions",
	LandCovers:            "landcovers",
	MosquitoHabitatMapper: "mosquitohabitatmapper",
	TreeHeights:           "treeheights",
}

// Label returns the human readable name used in legends and tables.
func (p Protocol) Label() string {
	if l, ok := protocolLabels[p]; ok {
		return l
	}
	return string(p)
}

// Valid reports whether p is one of the supported protocols.
func (p Protocol) Valid() bool {
	_, ok := protocolPrefixes[p]
	return ok
}

// ParseProtocol validates an API protocol name.
func ParseProtocol(s string) (Protocol, bool) {
	p := Protocol(s)
	return p, p.Valid()
}

// Source distinguishes GLOBE Observer app submissions from everything else.
type Source int

const (
	SourceGLOBE Source = iota
	SourceApp
)

// AppDataSource is the DataSource value the API uses for GLOBE Observer app submissions.
const AppDataSource = "GLOBE Observer App"

func (s Source) String() string {
	if s == SourceApp {
		return "GLOBE Observer"
	}
	return "GLOBE"
}

// sourceFromDataSource maps the raw DataSource property onto a Source.
func sourceFromDataSource(ds string) Source {
	if ds == AppDataSource {
		return SourceApp
	}
	return SourceGLOBE
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// StandardDirections are the six photo directions of the sky conditions and
// land cover protocols, in display order.
var StandardDirections = []string{"North", "East", "South", "West", "Upward", "Downward"}

// Observation is one parsed GLOBE measurement. Values are never modified after
// parsing; quality flags live on [Flagged].
type Observation struct {
	ID          string            `json:"id"`
	Protocol    Protocol          `json:"protocol"`
	Source      Source            `json:"source"`
	DataSource  string            `json:"data_source"`
	Geo         Geo               `json:"geo"`
	HasPosition bool              `json:"has_position"`
	MeasuredAt  time.Time         `json:"measured_at"`
	UserID      int64             `json:"user_id"`
	HasUserID   bool              `json:"has_user_id"`
	PhotoURLs   map[string]string `json:"photo_urls,omitempty"` // direction → URL, "" when no photo was submitted

	// Protocol-specific classifications.
	CloudTypes    []string `json:"cloud_types,omitempty"`
	MosquitoGenus string   `json:"mosquito_genus,omitempty"`
	MucCode       string   `json:"muc_code,omitempty"`
}

// IsApp reports whether the observation was submitted with the GLOBE Observer app.
func (o Observation) IsApp() bool { return o.Source == SourceApp }

// PhotoCount returns the number of directions with an actual photo URL.
func (o Observation) PhotoCount() int {
	n := 0
	for _, u := range o.PhotoURLs {
		if u != "" {
			n++
		}
	}
	return n
}

// HasPhoto reports whether a photo was submitted for the given direction.
func (o Observation) HasPhoto(direction string) bool {
	return o.PhotoURLs[direction] != ""
}

// IsClassified reports whether the observer recorded the protocol's
// classification: a cloud type, a mosquito genus or a land cover class.
// Tree heights carry no classification.
func (o Observation) IsClassified() bool {
	switch o.Protocol {
	case SkyConditions:
		return len(o.CloudTypes) > 0
	case MosquitoHabitatMapper:
		return o.MosquitoGenus != ""
	case LandCovers:
		return o.MucCode != ""
	default:
		return false
	}
}

// LandChecker decides whether a coordinate lies on land.
type LandChecker interface {
	IsLand(ctx context.Context, lat, lon float64) (bool, error)
}
