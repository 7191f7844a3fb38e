// Package poi reads geographic points of interest, and places them relative to a device location.
package poi

// A WGS84 position. Altitude is in meters.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Point of interest
type POI struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Location                      // Embedded, so that latitude etc are top level JSON fields
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// A named collection of points of interest
type Group struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	POIs        []*POI `json:"pois"`
}

func NewGroup(name, description string) *Group {
	return &Group{
		Name:        name,
		Description: description,
	}
}

// Add appends p to the group.
// If p has no ID, it is assigned its 1-based position in the group.
func (g *Group) Add(p *POI) {
	g.POIs = append(g.POIs, p)
	if p.ID == 0 {
		p.ID = len(g.POIs)
	}
}

func (p *POI) SetMetadata(key, value string) {
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	p.Metadata[key] = value
}
