// Package csg describes boolean constructions as plain data so they can be
// handed to a background worker, evaluated there against a geometry kernel
// and returned as a serialized mesh.
package csg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/worker"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEvaluate marks failures while evaluating a request.
var ErrEvaluate = errors.New("csg: evaluate")

// Shape names a primitive solid.
type Shape string

const (
	ShapeCylinder Shape = "cylinder"
	ShapeFrustum  Shape = "frustum"
	ShapeBox      Shape = "box"
	ShapeSphere   Shape = "sphere"
)

// Op names the boolean construction a request performs.
type Op string

const (
	// OpTee subtracts the union of two bores from the union of two tubes:
	// [mainOuter, mainInner, branchOuter, branchInner].
	OpTee Op = "tee"
	// OpCross is OpTee with a third tube: [.., sideOuter, sideInner].
	OpCross Op = "cross"
	// OpMiter unions segments, each (outer - inner) & cutter.
	OpMiter Op = "miter"
)

// Primitive is a serializable solid positioned in the fitting's frame.
type Primitive struct {
	Shape   Shape      `json:"shape"`
	Height  float64    `json:"height,omitempty"`
	Radius  float64    `json:"radius,omitempty"`
	Radius2 float64    `json:"radius2,omitempty"` // frustum top radius
	Size    [3]float64 `json:"size,omitempty"`
	Pose    geom.Pose  `json:"pose"`
}

// Request is a complete boolean construction. Length is the fitting's
// overall run length and sets the tessellation resolution.
type Request struct {
	Op     Op          `json:"op"`
	Solids []Primitive `json:"solids"`
	Length float64     `json:"length"`
}

// Encode serializes a request.
func Encode(r Request) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses and validates a serialized request.
func Decode(b []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("%w: decode: %v", ErrEvaluate, err)
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate checks the primitive count for the op and every primitive's
// dimensions.
func (r Request) Validate() error {
	n := len(r.Solids)
	switch r.Op {
	case OpTee:
		if n != 4 {
			return fmt.Errorf("%w: tee needs 4 solids, got %d", ErrEvaluate, n)
		}
	case OpCross:
		if n != 6 {
			return fmt.Errorf("%w: cross needs 6 solids, got %d", ErrEvaluate, n)
		}
	case OpMiter:
		if n == 0 || n%3 != 0 {
			return fmt.Errorf("%w: miter needs solids in triples, got %d", ErrEvaluate, n)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrEvaluate, r.Op)
	}
	if !(r.Length > 0) || math.IsInf(r.Length, 0) {
		return fmt.Errorf("%w: length must be positive, got %g", ErrEvaluate, r.Length)
	}
	for i, p := range r.Solids {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: solid %d: %v", ErrEvaluate, i, err)
		}
	}
	return nil
}

func (p Primitive) validate() error {
	switch p.Shape {
	case ShapeCylinder:
		if !(p.Height > 0 && p.Radius > 0) {
			return fmt.Errorf("cylinder needs positive height and radius")
		}
	case ShapeFrustum:
		if !(p.Height > 0 && p.Radius >= 0 && p.Radius2 >= 0 && p.Radius+p.Radius2 > 0) {
			return fmt.Errorf("frustum needs positive height and radii")
		}
	case ShapeBox:
		if !(p.Size[0] > 0 && p.Size[1] > 0 && p.Size[2] > 0) {
			return fmt.Errorf("box needs positive size")
		}
	case ShapeSphere:
		if !(p.Radius > 0) {
			return fmt.Errorf("sphere needs positive radius")
		}
	default:
		return fmt.Errorf("unknown shape %q", p.Shape)
	}
	return nil
}

// pose fills in the parts of a pose that a sparse document leaves zero.
func (p Primitive) pose() geom.Pose {
	pose := p.Pose
	if pose.Scale == (r3.Vec{}) {
		pose.Scale = r3.Vec{X: 1, Y: 1, Z: 1}
	}
	if pose.Rotation == (quat.Number{}) {
		pose.Rotation = quat.Number{Real: 1}
	}
	return pose
}

func (p Primitive) solid(k kernel.Kernel) kernel.Solid {
	var s kernel.Solid
	switch p.Shape {
	case ShapeCylinder:
		s = k.Cylinder(p.Height, p.Radius, 64)
	case ShapeFrustum:
		s = k.Frustum(p.Height, p.Radius, p.Radius2)
	case ShapeBox:
		s = k.Box(p.Size[0], p.Size[1], p.Size[2])
	case ShapeSphere:
		s = k.Sphere(p.Radius)
	}
	return k.Place(s, p.pose())
}

// Evaluate runs the construction against k.
func Evaluate(k kernel.Kernel, r Request) (s kernel.Solid, err error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			s, err = nil, fmt.Errorf("%w: %s: %v", ErrEvaluate, r.Op, rec)
		}
	}()

	solids := make([]kernel.Solid, len(r.Solids))
	for i, p := range r.Solids {
		solids[i] = p.solid(k)
	}

	switch r.Op {
	case OpTee, OpCross:
		outer, inner := solids[0], solids[1]
		for i := 2; i+1 < len(solids); i += 2 {
			outer = k.Union(outer, solids[i])
			inner = k.Union(inner, solids[i+1])
		}
		return k.Difference(outer, inner), nil
	default:
		var out kernel.Solid
		for i := 0; i < len(solids); i += 3 {
			seg := k.Intersection(k.Difference(solids[i], solids[i+1]), solids[i+2])
			if out == nil {
				out = seg
			} else {
				out = k.Union(out, seg)
			}
		}
		return out, nil
	}
}

// Resolution maps a run length onto a tessellation cell count.
type Resolution struct {
	CellSize float64 // metres per cell
	Min, Max int
}

// DefaultResolution meshes at 4 mm cells, between 32 and 256 cells.
var DefaultResolution = Resolution{CellSize: 0.004, Min: 32, Max: 256}

// Cells returns the cell count for a run of the given length.
func (res Resolution) Cells(length float64) int {
	if res.CellSize <= 0 {
		res = DefaultResolution
	}
	n := int(math.Ceil(length / res.CellSize))
	if res.Min > 0 && n < res.Min {
		n = res.Min
	}
	if res.Max > 0 && n > res.Max {
		n = res.Max
	}
	return n
}

// Task packages r as a worker task. The request crosses the boundary in
// serialized form and the task returns the serialized mesh.
func Task(k kernel.Kernel, r Request, res Resolution) worker.Task {
	payload, encErr := Encode(r)
	return func(ctx context.Context) ([]byte, error) {
		if encErr != nil {
			return nil, fmt.Errorf("%w: encode: %v", ErrEvaluate, encErr)
		}
		req, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		solid, err := Evaluate(k, req)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := kernel.MeshWithCells(k, solid, res.Cells(req.Length))
		if err != nil {
			return nil, fmt.Errorf("%w: mesh: %v", ErrEvaluate, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return kernel.Encode(m)
	}
}
