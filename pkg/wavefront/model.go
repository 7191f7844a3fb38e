// Package wavefront loads Wavefront OBJ models, to be drawn on top of detected markers.
package wavefront

import (
	"image/color"

	"github.com/cyclopcam/implant/pkg/geom"
)

// A polygon. Each slice holds 0-based indices into the model's arrays.
// TexCoords and Normals are -1 where the face did not specify them.
type Face struct {
	Vertices  []int
	TexCoords []int
	Normals   []int
}

type Model struct {
	Vertices  []geom.Vec3
	Colors    []color.RGBA // One per vertex
	TexCoords []geom.Vec2
	Normals   []geom.Vec3
	Faces     []Face
}

// Number of triangle indices produced by Indices
func (m *Model) IndexCount() int {
	n := 0
	for _, f := range m.Faces {
		n += (len(f.Vertices) - 2) * 3
	}
	return n
}

// Indices triangulates every face as a fan that pivots on the face's last vertex.
// A quad (a,b,c,d) produces the triangles (a,b,d) and (b,c,d).
func (m *Model) Indices() []int {
	out := make([]int, 0, m.IndexCount())
	for _, f := range m.Faces {
		last := len(f.Vertices) - 1
		top := f.Vertices[0]
		bottom := f.Vertices[last]
		for i := 1; i < last; i++ {
			mid := f.Vertices[i]
			out = append(out, top, mid, bottom)
			top = mid
		}
	}
	return out
}

// Edges returns the unique polygon edges, with the smaller index first
func (m *Model) Edges() [][2]int {
	seen := map[[2]int]bool{}
	edges := [][2]int{}
	for _, f := range m.Faces {
		for i := range f.Vertices {
			a := f.Vertices[i]
			b := f.Vertices[(i+1)%len(f.Vertices)]
			e := [2]int{min(a, b), max(a, b)}
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// Set the color of every vertex of the given face
func (m *Model) SetFaceColor(face int, c color.RGBA) {
	for _, v := range m.Faces[face].Vertices {
		m.Colors[v] = c
	}
}

// Axis aligned bounds of all vertices
func (m *Model) Bounds() (lo, hi geom.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	lo = m.Vertices[0]
	hi = lo
	for _, v := range m.Vertices[1:] {
		lo = geom.Vec3{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = geom.Vec3{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return
}

func (m *Model) addVertex(v geom.Vec3) {
	m.Vertices = append(m.Vertices, v)
	m.Colors = append(m.Colors, color.RGBA{255, 255, 255, 255})
}

// Cube returns an axis aligned cube of the given edge length, centered on the origin,
// with a distinct color on each corner
func Cube(size float32) *Model {
	h := size / 2
	m := &Model{}
	corners := []geom.Vec3{
		{X: -h, Y: -h, Z: -h},
		{X: h, Y: -h, Z: -h},
		{X: h, Y: h, Z: -h},
		{X: -h, Y: h, Z: -h},
		{X: -h, Y: -h, Z: h},
		{X: h, Y: -h, Z: h},
		{X: h, Y: h, Z: h},
		{X: -h, Y: h, Z: h},
	}
	colors := []color.RGBA{
		{0, 0, 0, 255},
		{255, 0, 0, 255},
		{255, 255, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{255, 0, 255, 255},
		{255, 255, 255, 255},
		{0, 255, 255, 255},
	}
	for i, c := range corners {
		m.addVertex(c)
		m.Colors[i] = colors[i]
	}
	quads := [][4]int{
		{0, 4, 5, 1},
		{1, 5, 6, 2},
		{2, 6, 7, 3},
		{3, 7, 4, 0},
		{4, 7, 6, 5},
		{3, 0, 1, 2},
	}
	for _, q := range quads {
		m.Faces = append(m.Faces, Face{
			Vertices:  []int{q[0], q[1], q[2], q[3]},
			TexCoords: []int{-1, -1, -1, -1},
			Normals:   []int{-1, -1, -1, -1},
		})
	}
	return m
}
