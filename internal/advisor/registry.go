package advisor

import "github.com/awaistahir/smart-laundry/internal/engine"

// DefaultLocations are the places known before any search
func DefaultLocations() []engine.LocationProfile {
	return []engine.LocationProfile{
		{Name: "Morrisville, NC", Latitude: 35.82, Longitude: -78.82, WaterPricePerGal: 0.018},
		{Name: "Charlotte, NC", Latitude: 35.22, Longitude: -80.84, WaterPricePerGal: 0.012},
		{Name: "Lebanon, KS (US Center)", Latitude: 39.80, Longitude: -98.55, WaterPricePerGal: 0.010},
	}
}

// Registry is the set of known locations keyed by display name. Entries are
// never replaced once added. It is not safe for concurrent use; the Advisor
// owns its registry exclusively.
type Registry struct {
	byName map[string]engine.LocationProfile
	order  []string
}

// NewRegistry creates a registry seeded with locs. Later duplicates are ignored.
func NewRegistry(locs ...engine.LocationProfile) *Registry {
	r := &Registry{byName: make(map[string]engine.LocationProfile)}
	for _, l := range locs {
		r.Add(l)
	}
	return r
}

// Lookup finds a location by name
func (r *Registry) Lookup(name string) (engine.LocationProfile, bool) {
	l, ok := r.byName[name]
	return l, ok
}

// Add registers l unless its name is taken. It returns the entry now held
// under that name and whether l was added.
func (r *Registry) Add(l engine.LocationProfile) (engine.LocationProfile, bool) {
	if existing, ok := r.byName[l.Name]; ok {
		return existing, false
	}
	r.byName[l.Name] = l
	r.order = append(r.order, l.Name)
	return l, true
}

// All returns the locations in insertion order
func (r *Registry) All() []engine.LocationProfile {
	out := make([]engine.LocationProfile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of known locations
func (r *Registry) Len() int {
	return len(r.order)
}
