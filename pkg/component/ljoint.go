package component

import (
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// LJointParams sizes a mitered 90 degree elbow. Leg is the distance from
// the corner to each port.
type LJointParams struct {
	Diameter  float64
	Thickness float64
	Leg       float64
}

func (p *LJointParams) fields() []field {
	return []field{
		{"diameter", &p.Diameter},
		{"thickness", &p.Thickness},
		{"leg", &p.Leg},
	}
}

func (p LJointParams) validate() error {
	if err := positive(KindLJoint, "diameter", p.Diameter); err != nil {
		return err
	}
	if p.Leg <= p.Diameter/2 {
		return paramErr(KindLJoint, "leg", "%g must exceed tube radius %g", p.Leg, p.Diameter/2)
	}
	return wall(KindLJoint, p.Thickness, p.Diameter)
}

// LJoint is two straight segments meeting at the origin on the miter plane
// x + z = 0: one runs down -Z to the inlet, the other along +X to the
// outlet.
type LJoint struct {
	base
	p LJointParams
}

// NewLJoint creates an L-joint. A zero Leg is filled from the catalog bend
// radius.
func NewLJoint(p LJointParams, cat *catalog.Catalog) (*LJoint, error) {
	b := base{cat: cat}
	if p.Leg == 0 {
		e, err := b.lookup(KindLJoint, "diameter", p.Diameter)
		if err != nil {
			return nil, err
		}
		p.Leg = e.BendRadius
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &LJoint{base: b, p: p}, nil
}

func (c *LJoint) Kind() Kind { return KindLJoint }

// Parameters returns a copy of the current parameters.
func (c *LJoint) Parameters() LJointParams { return c.p }

func (c *LJoint) Ports() []Port {
	return []Port{
		{Name: "in", Type: PortIn, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{Z: -c.p.Leg}, Direction: r3.Vec{Z: -1}}},
		{Name: "out", Type: PortOut, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{X: c.p.Leg}, Direction: r3.Vec{X: 1}}},
	}
}

func (c *LJoint) Flanges() []Flange {
	return []Flange{
		c.flange("in", c.p.Diameter, c.p.Thickness),
		c.flange("out", c.p.Diameter, c.p.Thickness),
	}
}

// Build describes each segment as (outer - bore) & cutter, where the
// cutters are half-spaces bounded by the miter plane.
func (c *LJoint) Build(k kernel.Kernel) (Geometry, error) {
	R := c.p.Diameter / 2
	r := R - c.p.Thickness
	t := c.p.Thickness
	leg := c.p.Leg

	// Each segment runs past the corner by R so the cut is always full.
	span := leg + R
	n := r3.Unit(r3.Vec{X: 1, Z: 1})
	size := 4 * span

	cutter := func(side float64) csg.Primitive {
		pose := geom.At(r3.Scale(side*size/2, n))
		pose.Rotation = geom.ShortestArc(r3.Vec{X: 1}, n)
		return csg.Primitive{Shape: csg.ShapeBox, Size: [3]float64{size, size, size}, Pose: pose}
	}

	solids := []csg.Primitive{
		tube(span, R, r3.Vec{Z: -1}, r3.Vec{Z: (R - leg) / 2}),
		tube(span+2*t, r, r3.Vec{Z: -1}, r3.Vec{Z: (R - leg) / 2}),
		cutter(-1),
		tube(span, R, r3.Vec{X: 1}, r3.Vec{X: (leg - R) / 2}),
		tube(span+2*t, r, r3.Vec{X: 1}, r3.Vec{X: (leg - R) / 2}),
		cutter(1),
	}
	return Geometry{Boolean: &csg.Request{Op: csg.OpMiter, Solids: solids, Length: leg + R}}, nil
}

func (c *LJoint) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

func (c *LJoint) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(KindLJoint, next.fields(), values); err != nil {
		return err
	}
	if err := next.validate(); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *LJoint) Param(key string) (float64, bool) { return read(c.p.fields(), key) }

func (c *LJoint) Params() []string { return keys(c.p.fields()) }
