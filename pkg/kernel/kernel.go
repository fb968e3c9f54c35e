// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx, manifold) provide solid modeling and
// boolean operations behind this interface. The kernel abstraction
// allows swapping backends without changing the fitting builders.
package kernel

import "github.com/chazu/pipeworks/pkg/geom"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
// All primitives are centred on the origin; round primitives run along Z.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid
	Frustum(height, bottomRadius, topRadius float64) Solid
	Sphere(radius float64) Solid
	// Torus returns a tube of radius tubeRadius swept along an arc of
	// radius bendRadius in the XY plane, from +X counter-clockwise through
	// angle radians.
	Torus(bendRadius, tubeRadius, angle float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees
	Place(s Solid, p geom.Pose) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}

// CellMesher is implemented by kernels whose tessellation resolution can be
// chosen per call.
type CellMesher interface {
	ToMeshCells(s Solid, cells int) (*Mesh, error)
}

// MeshWithCells meshes s at the requested resolution when k supports it and
// falls back to the kernel default otherwise.
func MeshWithCells(k Kernel, s Solid, cells int) (*Mesh, error) {
	if cm, ok := k.(CellMesher); ok && cells > 0 {
		return cm.ToMeshCells(s, cells)
	}
	return k.ToMesh(s)
}
