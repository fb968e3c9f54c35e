package component

import (
	"maps"
	"math"
	"slices"

	"github.com/chazu/pipeworks/pkg/catalog"
)

// Defaults used when a fitting is created from a nominal diameter alone.
const (
	DefaultPipeLength = 1.0
	DefaultBendAngle  = 90.0
)

// New creates a fitting of the given family from its size alone, filling
// the rest from the catalog entry for that size.
func New(kind Kind, size float64, cat *catalog.Catalog) (Component, error) {
	return NewWithParams(kind, size, nil, cat)
}

// NewWithParams creates a fitting from its size and any explicitly given
// parameters, validated together. The catalog supplies only what values
// leaves out, so a fully specified pipe or reducer needs no catalog entry.
// Explicit values must be positive.
func NewWithParams(kind Kind, size float64, values map[string]float64, cat *catalog.Catalog) (Component, error) {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if err := positive(kind, key, values[key]); err != nil {
			return nil, err
		}
	}
	b := base{cat: cat}

	switch kind {
	case KindSphereChamber:
		p := ChamberParams{Diameter: size}
		if err := assignAll(kind, p.sphereFields(), values); err != nil {
			return nil, err
		}
		if p.Thickness == 0 {
			p.Thickness = chamberWall(b, p.Diameter)
		}
		return NewSphereChamber(p, cat)
	case KindBoxChamber:
		p := ChamberParams{SizeX: size, SizeY: size, SizeZ: size}
		if err := assignAll(kind, p.boxFields(), values); err != nil {
			return nil, err
		}
		if p.Thickness == 0 {
			p.Thickness = chamberWall(b, math.Min(p.SizeX, math.Min(p.SizeY, p.SizeZ)))
		}
		return NewBoxChamber(p, cat)
	case KindValve, KindPump:
		m, err := newModel(kind, size, cat)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			if err := m.SetParams(values); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	t, err := wallFor(kind, b, size, values)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindPipe:
		p := PipeParams{Diameter: size, Thickness: t, Length: DefaultPipeLength}
		if err := assignAll(kind, p.fields(), values); err != nil {
			return nil, err
		}
		return NewPipe(p, cat)
	case KindBend:
		p := BendParams{Diameter: size, Thickness: t, Angle: DefaultBendAngle}
		if err := assignAll(kind, p.fields(), values); err != nil {
			return nil, err
		}
		return NewBend(p, cat)
	case KindTee, KindCross:
		p := TeeParams{Diameter: size, Branch: size, Thickness: t}
		if err := assignAll(kind, p.fields(), values); err != nil {
			return nil, err
		}
		return newTee(kind, p, cat)
	case KindReducer:
		p := ReducerParams{Inlet: size, Outlet: size, Thickness: t, Length: 1.5 * size}
		if cat != nil {
			p.Outlet = nextSmaller(cat, size)
		}
		if err := assignAll(kind, p.fields(), values); err != nil {
			return nil, err
		}
		return newReducer(p, cat)
	case KindLJoint:
		p := LJointParams{Diameter: size, Thickness: t}
		if err := assignAll(kind, p.fields(), values); err != nil {
			return nil, err
		}
		return NewLJoint(p, cat)
	}
	return nil, paramErr(kind, "kind", "unknown fitting family")
}

// wallFor is the explicit thickness in values, else the catalog wall for
// diameter d.
func wallFor(kind Kind, b base, d float64, values map[string]float64) (float64, error) {
	if t, ok := values["thickness"]; ok {
		return t, nil
	}
	e, err := b.lookup(kind, "thickness", d)
	if err != nil {
		return 0, err
	}
	return e.Thickness, nil
}

// chamberWall is the catalog wall for size when one exists, else 1% of
// size but at least 2 mm.
func chamberWall(b base, size float64) float64 {
	if b.cat != nil {
		if e, err := b.cat.Lookup(size); err == nil {
			return e.Thickness
		}
	}
	return math.Max(0.01*size, 0.002)
}

// nextSmaller returns the largest catalog diameter below d, or d itself.
func nextSmaller(cat *catalog.Catalog, d float64) float64 {
	out := d
	for _, c := range cat.Diameters() {
		if c < d-1e-9 {
			out = c
		}
	}
	return out
}
