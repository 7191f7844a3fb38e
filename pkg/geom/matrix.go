package geom

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("Matrix is singular")

// Matrix4 is a 4x4 matrix stored in column-major order, as OpenGL and the
// marker tracker produce it. Element (row, col) is at index col*4+row.
type Matrix4 [16]float32

func Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func Translation(x, y, z float32) Matrix4 {
	m := Identity()
	m[12] = x
	m[13] = y
	m[14] = z
	return m
}

// Copy a 16 element column-major slice into a Matrix4
func Matrix4FromSlice(s []float32) (Matrix4, error) {
	var m Matrix4
	if len(s) != 16 {
		return m, fmt.Errorf("Expected 16 matrix elements, but got %v", len(s))
	}
	copy(m[:], s)
	return m, nil
}

func (m Matrix4) At(row, col int) float32 {
	return m[col*4+row]
}

func (m *Matrix4) Set(row, col int, v float32) {
	m[col*4+row] = v
}

// Returns m * b
func (m Matrix4) Mul(b Matrix4) Matrix4 {
	var r Matrix4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m.At(row, k) * b.At(k, col)
			}
			r.Set(row, col, sum)
		}
	}
	return r
}

func (m Matrix4) Transpose() Matrix4 {
	var r Matrix4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			r.Set(col, row, m.At(row, col))
		}
	}
	return r
}

func (m Matrix4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		W: m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

// Transform a point (w=1), including the perspective divide
func (m Matrix4) TransformPoint(p Vec3) Vec3 {
	r := m.MulVec4(Vec4{p.X, p.Y, p.Z, 1})
	if r.W != 0 && r.W != 1 {
		return Vec3{r.X / r.W, r.Y / r.W, r.Z / r.W}
	}
	return Vec3{r.X, r.Y, r.Z}
}

func (m Matrix4) toDense() *mat.Dense {
	data := make([]float64, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			data[row*4+col] = float64(m.At(row, col))
		}
	}
	return mat.NewDense(4, 4, data)
}

func (m Matrix4) Inverse() (Matrix4, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.toDense()); err != nil {
		return Matrix4{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	var r Matrix4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			r.Set(row, col, float32(inv.At(row, col)))
		}
	}
	return r, nil
}

// Given a model-view matrix, return the camera position in model (marker) space
func (m Matrix4) CameraPosition() (Vec3, error) {
	inv, err := m.Inverse()
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{inv[12], inv[13], inv[14]}, nil
}

type Viewport struct {
	Width  float32
	Height float32
}

// Project a point through mvp (projection * model-view) onto a viewport.
// Screen Y grows downwards. Returns false if the point is behind the camera.
func Project(mvp Matrix4, p Vec3, vp Viewport) (Vec2, bool) {
	clip := mvp.MulVec4(Vec4{p.X, p.Y, p.Z, 1})
	if clip.W <= 0 {
		return Vec2{}, false
	}
	nx := clip.X / clip.W
	ny := clip.Y / clip.W
	return Vec2{
		X: (nx + 1) * 0.5 * vp.Width,
		Y: (1 - ny) * 0.5 * vp.Height,
	}, true
}

// Matrix3 is a row-major 3x3 rotation matrix, as produced by device orientation sensors
type Matrix3 [9]float32

func Identity3() Matrix3 {
	return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func (m Matrix3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

func (m Matrix3) Transpose() Matrix3 {
	return Matrix3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}
