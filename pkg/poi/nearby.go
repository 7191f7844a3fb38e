package poi

import (
	"slices"

	"github.com/cyclopcam/implant/pkg/geom"
)

// A POI relative to an observer
type NearbyPOI struct {
	*POI
	Group        string    `json:"group"`
	Distance     float64   `json:"distance"`     // Meters
	Bearing      float64   `json:"bearing"`      // Degrees clockwise from north
	DistanceText string    `json:"distanceText"` // eg "350m" or "12km"
	Vector       geom.Vec3 `json:"vector"`       // East, up, south, in meters
}

// Nearby returns all POIs within maxDistance meters of origin, nearest first.
// If maxDistance is zero or negative, then every POI is returned.
func Nearby(groups []*Group, origin Location, maxDistance float64) []NearbyPOI {
	out := []NearbyPOI{}
	for _, g := range groups {
		for _, p := range g.POIs {
			d := Distance(origin, p.Location)
			if maxDistance > 0 && d > maxDistance {
				continue
			}
			out = append(out, NearbyPOI{
				POI:          p,
				Group:        g.Name,
				Distance:     d,
				Bearing:      Bearing(origin, p.Location),
				DistanceText: geom.FormatDistance(float32(d)),
				Vector:       LocationToVector(origin, p.Location),
			})
		}
	}
	slices.SortStableFunc(out, func(a, b NearbyPOI) int {
		if a.Distance < b.Distance {
			return -1
		} else if a.Distance > b.Distance {
			return 1
		}
		return 0
	})
	return out
}
