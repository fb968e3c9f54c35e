package component

import (
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// PipeParams sizes a straight tube.
type PipeParams struct {
	Diameter  float64
	Thickness float64
	Length    float64
}

func (p *PipeParams) fields() []field {
	return []field{
		{"diameter", &p.Diameter},
		{"thickness", &p.Thickness},
		{"length", &p.Length},
	}
}

func (p PipeParams) validate() error {
	if err := positive(KindPipe, "diameter", p.Diameter); err != nil {
		return err
	}
	if err := positive(KindPipe, "length", p.Length); err != nil {
		return err
	}
	return wall(KindPipe, p.Thickness, p.Diameter)
}

// Pipe is a straight tube along local Z, centred on the origin.
type Pipe struct {
	base
	p PipeParams
}

// NewPipe creates a pipe. cat may be nil.
func NewPipe(p PipeParams, cat *catalog.Catalog) (*Pipe, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Pipe{base: base{cat: cat}, p: p}, nil
}

func (c *Pipe) Kind() Kind { return KindPipe }

// Parameters returns a copy of the current parameters.
func (c *Pipe) Parameters() PipeParams { return c.p }

func (c *Pipe) Ports() []Port {
	h := c.p.Length / 2
	return []Port{
		{Name: "in", Type: PortIn, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{Z: -h}, Direction: r3.Vec{Z: -1}}},
		{Name: "out", Type: PortOut, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{Z: h}, Direction: r3.Vec{Z: 1}}},
	}
}

func (c *Pipe) Flanges() []Flange {
	return []Flange{
		c.flange("in", c.p.Diameter, c.p.Thickness),
		c.flange("out", c.p.Diameter, c.p.Thickness),
	}
}

func (c *Pipe) Build(k kernel.Kernel) (Geometry, error) {
	r := c.p.Diameter / 2
	outer := k.Cylinder(c.p.Length, r, 64)
	bore := k.Cylinder(c.p.Length+2*c.p.Thickness, r-c.p.Thickness, 64)
	return Geometry{Solid: k.Difference(outer, bore)}, nil
}

func (c *Pipe) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

func (c *Pipe) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(KindPipe, next.fields(), values); err != nil {
		return err
	}
	if err := next.validate(); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *Pipe) Param(key string) (float64, bool) { return read(c.p.fields(), key) }

func (c *Pipe) Params() []string { return keys(c.p.fields()) }
