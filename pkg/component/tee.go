package component

import (
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// TeeParams sizes a tee or a cross. Branch is clamped to Diameter; the
// constructors read a zero Branch as Diameter.
type TeeParams struct {
	Diameter     float64
	Branch       float64
	Thickness    float64
	MainLength   float64
	BranchLength float64 // from the main axis to the branch port
}

func (p *TeeParams) fields() []field {
	return []field{
		{"diameter", &p.Diameter},
		{"branch", &p.Branch},
		{"thickness", &p.Thickness},
		{"length", &p.MainLength},
		{"branch_length", &p.BranchLength},
	}
}

func (p *TeeParams) settle() {
	p.Branch = clampTo(p.Branch, p.Diameter)
}

func (p TeeParams) validate(k Kind) error {
	if err := positive(k, "diameter", p.Diameter); err != nil {
		return err
	}
	if err := positive(k, "branch", p.Branch); err != nil {
		return err
	}
	if p.MainLength <= p.Branch {
		return paramErr(k, "length", "%g must exceed branch diameter %g", p.MainLength, p.Branch)
	}
	if p.BranchLength <= p.Diameter/2 {
		return paramErr(k, "branch_length", "%g must exceed main radius %g", p.BranchLength, p.Diameter/2)
	}
	return wall(k, p.Thickness, p.Branch)
}

// Tee is a straight run along local Z with a branch along +X. A cross adds
// a side branch along -X.
type Tee struct {
	base
	kind Kind
	p    TeeParams
}

// NewTee creates a tee. Zero lengths are filled from cat.
func NewTee(p TeeParams, cat *catalog.Catalog) (*Tee, error) {
	if p.Branch == 0 {
		p.Branch = p.Diameter
	}
	return newTee(KindTee, p, cat)
}

// NewCross creates a cross. Zero lengths are filled from cat.
func NewCross(p TeeParams, cat *catalog.Catalog) (*Tee, error) {
	if p.Branch == 0 {
		p.Branch = p.Diameter
	}
	return newTee(KindCross, p, cat)
}

func newTee(kind Kind, p TeeParams, cat *catalog.Catalog) (*Tee, error) {
	b := base{cat: cat}
	if p.MainLength == 0 || p.BranchLength == 0 {
		e, err := b.lookup(kind, "diameter", p.Diameter)
		if err != nil {
			return nil, err
		}
		if p.MainLength == 0 {
			p.MainLength = e.TeeMainLength
		}
		if p.BranchLength == 0 {
			p.BranchLength = e.TeeBranchLength
		}
	}
	p.settle()
	if err := p.validate(kind); err != nil {
		return nil, err
	}
	return &Tee{base: b, kind: kind, p: p}, nil
}

func (c *Tee) Kind() Kind { return c.kind }

// Parameters returns a copy of the current parameters.
func (c *Tee) Parameters() TeeParams { return c.p }

func (c *Tee) Ports() []Port {
	h := c.p.MainLength / 2
	bl := c.p.BranchLength
	ports := []Port{
		{Name: "in", Type: PortIn, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{Z: -h}, Direction: r3.Vec{Z: -1}}},
		{Name: "out", Type: PortOut, Diameter: c.p.Diameter,
			Local: geom.Anchor{Position: r3.Vec{Z: h}, Direction: r3.Vec{Z: 1}}},
		{Name: "branch", Type: PortBranch, Diameter: c.p.Branch,
			Local: geom.Anchor{Position: r3.Vec{X: bl}, Direction: r3.Vec{X: 1}}},
	}
	if c.kind == KindCross {
		ports = append(ports, Port{Name: "side", Type: PortSide, Diameter: c.p.Branch,
			Local: geom.Anchor{Position: r3.Vec{X: -bl}, Direction: r3.Vec{X: -1}}})
	}
	return ports
}

func (c *Tee) Flanges() []Flange {
	fs := []Flange{
		c.flange("in", c.p.Diameter, c.p.Thickness),
		c.flange("out", c.p.Diameter, c.p.Thickness),
		c.flange("branch", c.p.Branch, c.p.Thickness),
	}
	if c.kind == KindCross {
		fs = append(fs, c.flange("side", c.p.Branch, c.p.Thickness))
	}
	return fs
}

// Build describes the tee as a boolean request: the union of the tubes
// minus the union of their bores.
func (c *Tee) Build(k kernel.Kernel) (Geometry, error) {
	t := c.p.Thickness
	R, Rb := c.p.Diameter/2, c.p.Branch/2
	bl := c.p.BranchLength
	solids := []csg.Primitive{
		tube(c.p.MainLength, R, r3.Vec{Z: 1}, r3.Vec{}),
		tube(c.p.MainLength+2*t, R-t, r3.Vec{Z: 1}, r3.Vec{}),
		tube(bl, Rb, r3.Vec{X: 1}, r3.Vec{X: bl / 2}),
		tube(bl+t, Rb-t, r3.Vec{X: 1}, r3.Vec{X: (bl + t) / 2}),
	}
	if c.kind == KindCross {
		solids = append(solids,
			tube(bl, Rb, r3.Vec{X: -1}, r3.Vec{X: -bl / 2}),
			tube(bl+t, Rb-t, r3.Vec{X: -1}, r3.Vec{X: -(bl + t) / 2}),
		)
	}
	op := csg.OpTee
	if c.kind == KindCross {
		op = csg.OpCross
	}
	length := c.p.MainLength
	if span := 2 * bl; span > length {
		length = span
	}
	return Geometry{Boolean: &csg.Request{Op: op, Solids: solids, Length: length}}, nil
}

func (c *Tee) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

// SetParams changes several parameters at once. The branch diameter is
// clamped to the main diameter on every write.
func (c *Tee) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(c.kind, next.fields(), values); err != nil {
		return err
	}
	next.settle()
	if err := next.validate(c.kind); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *Tee) Param(key string) (float64, bool) { return read(c.p.fields(), key) }

func (c *Tee) Params() []string { return keys(c.p.fields()) }

// tube is a cylinder primitive of height h and radius r whose axis runs
// along axis, centred at centre.
func tube(h, r float64, axis, centre r3.Vec) csg.Primitive {
	return csg.Primitive{Shape: csg.ShapeCylinder, Height: h, Radius: r, Pose: along(axis, centre)}
}
