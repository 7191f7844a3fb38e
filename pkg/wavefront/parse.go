package wavefront

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cyclopcam/implant/pkg/geom"
)

// Load an OBJ file
func Load(filename string) (*Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return m, nil
}

// Parse reads the geometry of an OBJ file: v, vt, vn and f statements.
// Other statements (groups, materials, smoothing) are ignored.
func Parse(r io.Reader) (*Model, error) {
	m := &Model{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			var v []float32
			if v, err = parseFloats(fields[1:], 3, 4); err == nil {
				m.addVertex(geom.Vec3{X: v[0], Y: v[1], Z: v[2]})
			}
		case "vt":
			var v []float32
			if v, err = parseFloats(fields[1:], 1, 3); err == nil {
				t := geom.Vec2{X: v[0]}
				if len(v) > 1 {
					t.Y = v[1]
				}
				m.TexCoords = append(m.TexCoords, t)
			}
		case "vn":
			var v []float32
			if v, err = parseFloats(fields[1:], 3, 3); err == nil {
				m.Normals = append(m.Normals, geom.Vec3{X: v[0], Y: v[1], Z: v[2]})
			}
		case "f":
			var face Face
			if face, err = m.parseFace(fields[1:]); err == nil {
				m.Faces = append(m.Faces, face)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("line %v: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseFloats(fields []string, minCount, maxCount int) ([]float32, error) {
	if len(fields) < minCount || len(fields) > maxCount {
		return nil, fmt.Errorf("Expected %v to %v numbers, but found %v", minCount, maxCount, len(fields))
	}
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// A face vertex is one of "v", "v/t", "v/t/n" or "v//n"
func (m *Model) parseFace(fields []string) (Face, error) {
	if len(fields) < 3 {
		return Face{}, fmt.Errorf("Face has %v vertices, but needs at least 3", len(fields))
	}
	face := Face{
		Vertices:  make([]int, len(fields)),
		TexCoords: make([]int, len(fields)),
		Normals:   make([]int, len(fields)),
	}
	for i, f := range fields {
		parts := strings.Split(f, "/")
		if len(parts) > 3 {
			return Face{}, fmt.Errorf("Invalid face vertex '%v'", f)
		}
		var err error
		if face.Vertices[i], err = resolveIndex(parts[0], len(m.Vertices)); err != nil {
			return Face{}, err
		}
		face.TexCoords[i] = -1
		face.Normals[i] = -1
		if len(parts) > 1 && parts[1] != "" {
			if face.TexCoords[i], err = resolveIndex(parts[1], len(m.TexCoords)); err != nil {
				return Face{}, err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if face.Normals[i], err = resolveIndex(parts[2], len(m.Normals)); err != nil {
				return Face{}, err
			}
		}
	}
	return face, nil
}

// Convert a 1-based (or negative, relative to the end) OBJ index into a 0-based index
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("Invalid index '%v'", s)
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, fmt.Errorf("Index %v is out of range (%v elements)", i, count)
}
