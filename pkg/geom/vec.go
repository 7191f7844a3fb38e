package geom

import "github.com/chewxy/math32"

type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type Vec4 struct {
	X, Y, Z, W float32
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func (a Vec3) Scale(s float32) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}

func (a Vec3) Dot(b Vec3) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func (u Vec3) Cross(v Vec3) Vec3 {
	return Vec3{
		X: u.Y*v.Z - u.Z*v.Y,
		Y: u.Z*v.X - u.X*v.Z,
		Z: u.X*v.Y - u.Y*v.X,
	}
}

func (a Vec3) Length() float32 {
	return math32.Sqrt(a.Dot(a))
}

// Returns a unit vector, or the zero vector if a has zero length
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

func (a Vec2) Distance(b Vec2) float32 {
	return math32.Hypot(a.X-b.X, a.Y-b.Y)
}
