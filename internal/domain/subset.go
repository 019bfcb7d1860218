package domain

// Predicate selects observations.
type Predicate func(Observation) bool

// And matches when every predicate matches. With no predicates it matches everything.
func And(preds ...Predicate) Predicate {
	return func(o Observation) bool {
		for _, p := range preds {
			if !p(o) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(o Observation) bool { return !p(o) }
}

// FromApp matches GLOBE Observer app submissions.
func FromApp(o Observation) bool { return o.IsApp() }

// OfProtocol matches any of the given protocols.
func OfProtocol(protocols ...Protocol) Predicate {
	return func(o Observation) bool {
		for _, p := range protocols {
			if o.Protocol == p {
				return true
			}
		}
		return false
	}
}

// Filter returns the observations matching pred in a new slice.
func Filter(obs []Observation, pred Predicate) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// Dataset holds the named subsets consumed by the figures and the statistics.
// Subsets share Observation values and may overlap.
type Dataset struct {
	All             []Observation
	App             []Observation
	GLOBE           []Observation
	AppCloudLand    []Observation
	AllClouds       []Observation
	AppByProtocol   map[Protocol][]Observation
	GLOBEByProtocol map[Protocol][]Observation
}

// BuildDataset splits obs into the named subsets. Every protocol in
// AllProtocols has an entry in the per-protocol maps, possibly empty.
func BuildDataset(obs []Observation) Dataset {
	ds := Dataset{
		All:             obs,
		App:             Filter(obs, FromApp),
		GLOBE:           Filter(obs, Not(FromApp)),
		AllClouds:       Filter(obs, OfProtocol(SkyConditions)),
		AppByProtocol:   make(map[Protocol][]Observation, len(AllProtocols)),
		GLOBEByProtocol: make(map[Protocol][]Observation, len(AllProtocols)),
	}
	ds.AppCloudLand = Filter(obs, And(FromApp, OfProtocol(SkyConditions, LandCovers)))
	for _, p := range AllProtocols {
		ds.AppByProtocol[p] = Filter(ds.App, OfProtocol(p))
		ds.GLOBEByProtocol[p] = Filter(ds.GLOBE, OfProtocol(p))
	}
	return ds
}
