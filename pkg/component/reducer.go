package component

import (
	"math"

	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReducerParams sizes a concentric reducer. Outlet is clamped to Inlet;
// NewReducer reads a zero Outlet as Inlet.
type ReducerParams struct {
	Inlet     float64
	Outlet    float64
	Thickness float64
	Length    float64
}

func (p *ReducerParams) fields() []field {
	return []field{
		{"inlet", &p.Inlet},
		{"outlet", &p.Outlet},
		{"thickness", &p.Thickness},
		{"length", &p.Length},
	}
}

func (p *ReducerParams) settle() {
	p.Outlet = clampTo(p.Outlet, p.Inlet)
}

func (p ReducerParams) validate() error {
	if err := positive(KindReducer, "inlet", p.Inlet); err != nil {
		return err
	}
	if err := positive(KindReducer, "outlet", p.Outlet); err != nil {
		return err
	}
	if err := positive(KindReducer, "length", p.Length); err != nil {
		return err
	}
	return wall(KindReducer, p.Thickness, p.Outlet)
}

// Reducer is a conical tube along local Z narrowing from inlet (-Z) to
// outlet (+Z).
type Reducer struct {
	base
	p ReducerParams
}

// NewReducer creates a reducer. cat may be nil.
func NewReducer(p ReducerParams, cat *catalog.Catalog) (*Reducer, error) {
	if p.Outlet == 0 {
		p.Outlet = p.Inlet
	}
	return newReducer(p, cat)
}

func newReducer(p ReducerParams, cat *catalog.Catalog) (*Reducer, error) {
	p.settle()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Reducer{base: base{cat: cat}, p: p}, nil
}

func (c *Reducer) Kind() Kind { return KindReducer }

// Parameters returns a copy of the current parameters.
func (c *Reducer) Parameters() ReducerParams { return c.p }

func (c *Reducer) Ports() []Port {
	h := c.p.Length / 2
	return []Port{
		{Name: "in", Type: PortIn, Diameter: c.p.Inlet,
			Local: geom.Anchor{Position: r3.Vec{Z: -h}, Direction: r3.Vec{Z: -1}}},
		{Name: "out", Type: PortOut, Diameter: c.p.Outlet,
			Local: geom.Anchor{Position: r3.Vec{Z: h}, Direction: r3.Vec{Z: 1}}},
	}
}

// Flanges sizes the outlet flange from the outlet diameter. Its hub tapers
// down to meet the outlet wall.
func (c *Reducer) Flanges() []Flange {
	out := c.flange("out", c.p.Outlet, c.p.Thickness)
	out.Taper = math.Min(out.Diameter, c.p.Outlet+2*c.p.Thickness)
	return []Flange{
		c.flange("in", c.p.Inlet, c.p.Thickness),
		out,
	}
}

func (c *Reducer) Build(k kernel.Kernel) (Geometry, error) {
	t := c.p.Thickness
	ri, ro := c.p.Inlet/2, c.p.Outlet/2
	outer := k.Frustum(c.p.Length, ri, ro)

	// Extend the bore past both ends along the same cone.
	slope := ((ro - t) - (ri - t)) / c.p.Length
	bottom := ri - t - slope*t
	top := ro - t + slope*t
	if top <= 0 {
		top = (ro - t) / 2
	}
	bore := k.Frustum(c.p.Length+2*t, bottom, top)
	return Geometry{Solid: k.Difference(outer, bore)}, nil
}

func (c *Reducer) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

// SetParams changes several parameters at once. The outlet is clamped to
// the inlet on every write.
func (c *Reducer) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(KindReducer, next.fields(), values); err != nil {
		return err
	}
	next.settle()
	if err := next.validate(); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *Reducer) Param(key string) (float64, bool) { return read(c.p.fields(), key) }

func (c *Reducer) Params() []string { return keys(c.p.fields()) }
