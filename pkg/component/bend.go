package component

import (
	"math"

	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// boreOverrun is the extra sweep, in radians, given to a bend's bore at
// each end so the subtraction leaves no skin over the openings.
const boreOverrun = 0.02

// BendParams sizes a curved tube. Angle is in degrees.
type BendParams struct {
	Diameter  float64
	Thickness float64
	Angle     float64
	Radius    float64 // centreline radius
}

func (p *BendParams) fields() []field {
	return []field{
		{"diameter", &p.Diameter},
		{"thickness", &p.Thickness},
		{"angle", &p.Angle},
		{"radius", &p.Radius},
	}
}

func (p BendParams) validate() error {
	if err := positive(KindBend, "diameter", p.Diameter); err != nil {
		return err
	}
	if !(p.Angle > 0 && p.Angle < 360) {
		return paramErr(KindBend, "angle", "must be in (0, 360) degrees, got %g", p.Angle)
	}
	if p.Radius <= p.Diameter/2 {
		return paramErr(KindBend, "radius", "%g must exceed tube radius %g", p.Radius, p.Diameter/2)
	}
	return wall(KindBend, p.Thickness, p.Diameter)
}

// Bend is a torus sector in the local XY plane about the origin. The inlet
// sits on +X and the sweep runs counter-clockwise about +Z.
type Bend struct {
	base
	p BendParams
}

// NewBend creates a bend. A zero Radius is filled from cat.
func NewBend(p BendParams, cat *catalog.Catalog) (*Bend, error) {
	b := base{cat: cat}
	if p.Radius == 0 {
		e, err := b.lookup(KindBend, "diameter", p.Diameter)
		if err != nil {
			return nil, err
		}
		p.Radius = e.BendRadius
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Bend{base: b, p: p}, nil
}

func (c *Bend) Kind() Kind { return KindBend }

// Parameters returns a copy of the current parameters.
func (c *Bend) Parameters() BendParams { return c.p }

func (c *Bend) Ports() []Port {
	theta := c.p.Angle * math.Pi / 180
	R := c.p.Radius
	return []Port{
		{Name: "in", Type: PortIn, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{X: R}, Direction: r3.Vec{Y: -1}}},
		{Name: "out", Type: PortOut, Diameter: c.p.Diameter,
			Local: geom.Anchor{
				Position:  r3.Vec{X: R * math.Cos(theta), Y: R * math.Sin(theta)},
				Direction: r3.Vec{X: -math.Sin(theta), Y: math.Cos(theta)},
			}},
	}
}

func (c *Bend) Flanges() []Flange {
	return []Flange{
		c.flange("in", c.p.Diameter, c.p.Thickness),
		c.flange("out", c.p.Diameter, c.p.Thickness),
	}
}

func (c *Bend) Build(k kernel.Kernel) (Geometry, error) {
	theta := c.p.Angle * math.Pi / 180
	r := c.p.Diameter / 2
	outer := k.Torus(c.p.Radius, r, theta)

	back := geom.Identity()
	back.Rotation = geom.FromAxisAngle(r3.Vec{Z: 1}, -boreOverrun)
	bore := k.Place(k.Torus(c.p.Radius, r-c.p.Thickness, theta+2*boreOverrun), back)
	return Geometry{Solid: k.Difference(outer, bore)}, nil
}

func (c *Bend) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

// SetParams changes several parameters at once. A new diameter takes its
// centreline radius from the catalog unless a radius is given with it.
func (c *Bend) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(KindBend, next.fields(), values); err != nil {
		return err
	}
	_, diameter := values["diameter"]
	_, radius := values["radius"]
	if diameter && !radius {
		e, err := c.lookup(KindBend, "diameter", next.Diameter)
		if err != nil {
			return err
		}
		next.Radius = e.BendRadius
	}
	if err := next.validate(); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *Bend) Param(key string) (float64, bool) { return read(c.p.fields(), key) }

func (c *Bend) Params() []string { return keys(c.p.fields()) }
