// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel     = (*SdfxKernel)(nil)
	_ kernel.CellMesher = (*SdfxKernel)(nil)
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithCells sets the default marching cubes resolution along the longest
// bounding box axis.
func WithCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.cells = n
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{cells: DefaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Cells reports the default tessellation resolution.
func (k *SdfxKernel) Cells() int {
	return k.cells
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// must panics on constructor errors. sdfx only rejects non-positive
// dimensions, which the fitting builders validate before calling in.
func must(s sdf.SDF3, err error) sdf.SDF3 {
	if err != nil {
		panic(fmt.Sprintf("sdfx: %v", err))
	}
	return s
}

// Box creates a box with the given dimensions centred on the origin.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Solid {
	return wrap(must(sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)))
}

// Cylinder creates a cylinder along Z with the given height and radius.
// The segments parameter is ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	return wrap(must(sdf.Cylinder3D(height, radius, 0)))
}

// Frustum creates a truncated cone along Z. bottomRadius sits at -height/2.
func (k *SdfxKernel) Frustum(height, bottomRadius, topRadius float64) kernel.Solid {
	return wrap(must(sdf.Cone3D(height, bottomRadius, topRadius, 0)))
}

// Sphere creates a sphere centred on the origin.
func (k *SdfxKernel) Sphere(radius float64) kernel.Solid {
	return wrap(must(sdf.Sphere3D(radius)))
}

// Torus revolves a circle of tubeRadius, offset bendRadius from the Z axis,
// through angle radians starting at +X.
func (k *SdfxKernel) Torus(bendRadius, tubeRadius, angle float64) kernel.Solid {
	circle, err := sdf.Circle2D(tubeRadius)
	if err != nil {
		panic(fmt.Sprintf("sdfx: %v", err))
	}
	profile := sdf.Transform2D(circle, sdf.Translate2d(v2.Vec{X: bendRadius, Y: 0}))
	if angle >= 2*math.Pi {
		return wrap(must(sdf.Revolve3D(profile)))
	}
	return wrap(must(sdf.RevolveTheta3D(profile, angle)))
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Place applies a full pose: scale, then rotation, then translation.
func (k *SdfxKernel) Place(s kernel.Solid, p geom.Pose) kernel.Solid {
	if p.IsIdentity() {
		return s
	}
	axis, angle := p.AxisAngle()
	m := sdf.Translate3d(v3.Vec{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z}).
		Mul(sdf.Rotate3d(v3.Vec{X: axis.X, Y: axis.Y, Z: axis.Z}, angle)).
		Mul(sdf.Scale3d(v3.Vec{X: p.Scale.X, Y: p.Scale.Y, Z: p.Scale.Z}))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes at the
// kernel's default resolution.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	return k.ToMeshCells(s, k.cells)
}

// ToMeshCells converts a solid to a triangle mesh using marching cubes with
// the given number of cells along the longest axis.
func (k *SdfxKernel) ToMeshCells(s kernel.Solid, cells int) (*kernel.Mesh, error) {
	if cells <= 0 {
		return nil, fmt.Errorf("sdfx: invalid mesh resolution %d", cells)
	}
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// SaveSTL writes the triangles of all meshes into a single binary STL file.
func SaveSTL(path string, meshes ...*kernel.Mesh) error {
	var tris []*sdf.Triangle3
	for _, m := range meshes {
		for t := 0; t+2 < len(m.Indices); t += 3 {
			var tri sdf.Triangle3
			for j := 0; j < 3; j++ {
				i := m.Indices[t+j] * 3
				tri[j] = v3.Vec{
					X: float64(m.Vertices[i]),
					Y: float64(m.Vertices[i+1]),
					Z: float64(m.Vertices[i+2]),
				}
			}
			tris = append(tris, &tri)
		}
	}
	if len(tris) == 0 {
		return fmt.Errorf("sdfx: nothing to write to %s", path)
	}
	return render.SaveSTL(path, tris)
}
