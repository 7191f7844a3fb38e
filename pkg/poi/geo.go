package poi

import (
	"math"

	"github.com/cyclopcam/implant/pkg/geom"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Mean earth radius, in meters
const EarthRadius = 6371e3

func (l Location) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(l.Latitude, l.Longitude)
}

// Great circle distance between a and b, in meters. Altitude is ignored.
func Distance(a, b Location) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadius
}

// Initial great circle bearing from a to b, in degrees [0, 360), clockwise from north
func Bearing(a, b Location) float64 {
	pa := a.latLng()
	pb := b.latLng()
	dLon := (pb.Lng - pa.Lng).Radians()
	lat1 := pa.Lat.Radians()
	lat2 := pb.Lat.Radians()
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := (s1.Angle(math.Atan2(y, x)) * s1.Radian).Degrees()
	return math.Mod(deg+360, 360)
}

// Destination travels distance meters from (lat, lon) along bearing (degrees), and returns the
// resulting latitude and longitude in degrees
func Destination(lat, lon, bearing, distance float64) (float64, float64) {
	brng := (s1.Angle(bearing) * s1.Degree).Radians()
	lat1 := (s1.Angle(lat) * s1.Degree).Radians()
	lon1 := (s1.Angle(lon) * s1.Degree).Radians()
	d := distance / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return s1.Angle(lat2).Degrees(), s1.Angle(lon2).Degrees()
}

// LocationToVector places p in a local frame centered on origin, in meters.
// X points east, Y up, and Z south.
func LocationToVector(origin, p Location) geom.Vec3 {
	z := Distance(origin, Location{Latitude: p.Latitude, Longitude: origin.Longitude})
	x := Distance(origin, Location{Latitude: origin.Latitude, Longitude: p.Longitude})
	y := p.Altitude - origin.Altitude
	if origin.Latitude < p.Latitude {
		z = -z
	}
	if origin.Longitude > p.Longitude {
		x = -x
	}
	return geom.Vec3{X: float32(x), Y: float32(y), Z: float32(z)}
}

// VectorToLocation is the inverse of LocationToVector
func VectorToLocation(v geom.Vec3, origin Location) Location {
	bearingNS := 0.0
	if v.Z > 0 {
		bearingNS = 180
	}
	bearingEW := 90.0
	if v.X < 0 {
		bearingEW = 270
	}
	lat, lon := Destination(origin.Latitude, origin.Longitude, bearingNS, math.Abs(float64(v.Z)))
	lat, lon = Destination(lat, lon, bearingEW, math.Abs(float64(v.X)))
	return Location{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  origin.Altitude + float64(v.Y),
	}
}
