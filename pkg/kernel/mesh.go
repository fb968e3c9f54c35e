package kernel

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/chazu/pipeworks/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
// Its JSON form is the payload exchanged with background workers and
// the format of external model assets.
type Mesh struct {
	Vertices  []float32 `json:"vertices"`            // [x0,y0,z0, x1,y1,z1, ...]
	Normals   []float32 `json:"normals"`             // [nx0,ny0,nz0, ...]
	Indices   []uint32  `json:"indices"`             // [i0,i1,i2, ...] triangles
	Component string    `json:"component,omitempty"` // which assembly component this came from
	Color     string    `json:"color,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Bounds returns the axis-aligned bounds of the vertices. An empty mesh
// reports zero bounds.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if m.IsEmpty() {
		return min, max
	}
	for i := 0; i < 3; i++ {
		min[i] = math.Inf(1)
		max[i] = math.Inf(-1)
	}
	for v := 0; v < len(m.Vertices); v += 3 {
		for i := 0; i < 3; i++ {
			c := float64(m.Vertices[v+i])
			min[i] = math.Min(min[i], c)
			max[i] = math.Max(max[i], c)
		}
	}
	return min, max
}

// Transformed returns a copy of the mesh with every vertex mapped through
// p and every normal rotated by it.
func (m *Mesh) Transformed(p geom.Pose) *Mesh {
	out := &Mesh{
		Vertices:  make([]float32, len(m.Vertices)),
		Normals:   make([]float32, len(m.Normals)),
		Indices:   append([]uint32(nil), m.Indices...),
		Component: m.Component,
		Color:     m.Color,
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		v := p.Apply(r3.Vec{X: float64(m.Vertices[i]), Y: float64(m.Vertices[i+1]), Z: float64(m.Vertices[i+2])})
		out.Vertices[i], out.Vertices[i+1], out.Vertices[i+2] = float32(v.X), float32(v.Y), float32(v.Z)
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		n := r3.Vec{X: float64(m.Normals[i]), Y: float64(m.Normals[i+1]), Z: float64(m.Normals[i+2])}
		if r3.Norm(n) > 0 {
			n = p.ApplyDir(n)
		}
		out.Normals[i], out.Normals[i+1], out.Normals[i+2] = float32(n.X), float32(n.Y), float32(n.Z)
	}
	return out
}

// Append adds the triangles of o to m, offsetting indices.
func (m *Mesh) Append(o *Mesh) {
	base := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Normals = append(m.Normals, o.Normals...)
	for _, idx := range o.Indices {
		m.Indices = append(m.Indices, base+idx)
	}
}

// Encode serializes a mesh for transfer across a worker boundary.
func Encode(m *Mesh) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a serialized mesh and checks its array shapes.
func Decode(b []byte) (*Mesh, error) {
	var m Mesh
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("kernel: decode mesh: %w", err)
	}
	if len(m.Vertices)%3 != 0 || len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("kernel: decode mesh: malformed arrays (%d vertex floats, %d indices)",
			len(m.Vertices), len(m.Indices))
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return nil, fmt.Errorf("kernel: decode mesh: %d normals for %d vertex floats", len(m.Normals), len(m.Vertices))
	}
	n := uint32(m.VertexCount())
	for _, idx := range m.Indices {
		if idx >= n {
			return nil, fmt.Errorf("kernel: decode mesh: index %d out of range (%d vertices)", idx, n)
		}
	}
	return &m, nil
}
