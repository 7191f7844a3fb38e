package poi

import (
	"sync"

	"github.com/cyclopcam/implant/pkg/geom"
)

// Georeference holds the device location and orientation.
// The rotation is a row-major device-to-world rotation matrix, as produced by orientation sensors.
type Georeference struct {
	lock     sync.Mutex
	location Location
	rotation geom.Matrix3
}

func NewGeoreference(loc Location) *Georeference {
	return &Georeference{
		location: loc,
		rotation: geom.Identity3(),
	}
}

func (g *Georeference) SetLocation(loc Location) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.location = loc
}

func (g *Georeference) Location() Location {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.location
}

func (g *Georeference) SetRotation(r geom.Matrix3) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.rotation = r
}

func (g *Georeference) Rotation() geom.Matrix3 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.rotation
}

// Azimuth of the device, in whole degrees [0, 360)
func (g *Georeference) Azimuth() float32 {
	looking := g.Rotation().Transpose().MulVec(geom.Vec3{X: 1})
	return float32((int(geom.Angle(0, 0, looking.X, looking.Z)) + 360) % 360)
}

// Pitch of the device, in degrees
func (g *Georeference) Pitch() float32 {
	looking := g.Rotation().MulVec(geom.Vec3{Y: 1})
	return -geom.Angle(0, 0, looking.Y, looking.Z)
}

// Returns the distance (meters) and bearing (degrees) from the device to loc
func (g *Georeference) DistanceTo(loc Location) (distance, bearing float64) {
	here := g.Location()
	return Distance(here, loc), Bearing(here, loc)
}
