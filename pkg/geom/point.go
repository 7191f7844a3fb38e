package geom

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Angle of the vector (px-cx, py-cy), in degrees.
// The result is in [0, 180] when py >= cy, and negative below.
func Angle(cx, cy, px, py float32) float32 {
	dx := px - cx
	dy := py - cy
	l := math32.Sqrt(dx*dx + dy*dy)
	if l == 0 {
		return 0
	}
	a := math32.Acos(dx/l) * 180 / math32.Pi
	if dy < 0 {
		return -a
	}
	return a
}

// Returns true if (px, py) is strictly inside the rectangle
func PointInside(px, py, rx, ry, rw, rh float32) bool {
	return px > rx && px < rx+rw && py > ry && py < ry+rh
}

// Human readable distance, such as "350m" or "12km"
func FormatDistance(meters float32) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0fm", meters)
	}
	return fmt.Sprintf("%.0fkm", meters/1000)
}

// Axis aligned screen rectangle
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X+r.Width, b.X+b.Width)
	y2 := min(r.Y+r.Height, b.Y+b.Height)
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Bounding rectangle of a set of screen points
func BoundingRect(pts []Vec2) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	x := int(math32.Floor(minX))
	y := int(math32.Floor(minY))
	return Rect{
		X:      x,
		Y:      y,
		Width:  int(math32.Ceil(maxX)) - x,
		Height: int(math32.Ceil(maxY)) - y,
	}
}
