package component

import (
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Face names one side of a box chamber.
type Face string

const (
	FacePosX Face = "+x"
	FaceNegX Face = "-x"
	FacePosY Face = "+y"
	FaceNegY Face = "-y"
	FacePosZ Face = "+z"
	FaceNegZ Face = "-z"
)

// frame returns the outward normal of f and the in-plane axes used for
// outlet offsets.
func (f Face) frame() (n, u, v r3.Vec, ok bool) {
	switch f {
	case FacePosX:
		return r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}, true
	case FaceNegX:
		return r3.Vec{X: -1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}, true
	case FacePosY:
		return r3.Vec{Y: 1}, r3.Vec{X: 1}, r3.Vec{Z: 1}, true
	case FaceNegY:
		return r3.Vec{Y: -1}, r3.Vec{X: 1}, r3.Vec{Z: 1}, true
	case FacePosZ:
		return r3.Vec{Z: 1}, r3.Vec{X: 1}, r3.Vec{Y: 1}, true
	case FaceNegZ:
		return r3.Vec{Z: -1}, r3.Vec{X: 1}, r3.Vec{Y: 1}, true
	}
	return r3.Vec{}, r3.Vec{}, r3.Vec{}, false
}

// Outlet is a port cut into a chamber wall. Sphere chambers place it by
// Theta (polar angle from +Z) and Phi (azimuth from +X), both in degrees.
// Box chambers place it on Face at offset (U, V) from the face centre.
type Outlet struct {
	Name     string
	Diameter float64
	Theta    float64
	Phi      float64
	Face     Face
	U, V     float64
}

// Chamber is a vessel whose outlets are added and removed at runtime.
type Chamber interface {
	Component
	// AddOutlet adds an outlet and returns its port name. An empty name
	// is replaced by the next free "outlet-N".
	AddOutlet(o Outlet) (string, error)
	RemoveOutlet(name string) error
	Outlets() []Outlet
}

// outlets is the bookkeeping shared by both chamber shapes.
type outlets struct {
	list []Outlet
	next int
}

func (o *outlets) name(want string) string {
	if want != "" {
		return want
	}
	for {
		o.next++
		name := "outlet-" + strconv.Itoa(o.next)
		if _, ok := o.find(name); !ok {
			return name
		}
	}
}

func (o *outlets) find(name string) (int, bool) {
	for i, out := range o.list {
		if out.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (o *outlets) add(k Kind, out Outlet, wallT float64) (string, error) {
	if out.Name != "" {
		if _, dup := o.find(out.Name); dup {
			return "", paramErr(k, "outlet", "outlet %q already exists", out.Name)
		}
	}
	if err := positive(k, "outlet", out.Diameter); err != nil {
		return "", err
	}
	if wallT >= out.Diameter/2 {
		return "", paramErr(k, "outlet", "diameter %g leaves no bore through wall %g", out.Diameter, wallT)
	}
	out.Name = o.name(out.Name)
	o.list = append(o.list, out)
	return out.Name, nil
}

func (o *outlets) remove(k Kind, name string) error {
	i, ok := o.find(name)
	if !ok {
		return paramErr(k, "outlet", "no outlet %q", name)
	}
	o.list = append(o.list[:i:i], o.list[i+1:]...)
	return nil
}

func (o *outlets) snapshot() []Outlet {
	return append([]Outlet(nil), o.list...)
}

// ChamberParams sizes a chamber shell. A sphere uses Diameter; a box uses
// SizeX, SizeY and SizeZ.
type ChamberParams struct {
	Diameter  float64
	SizeX     float64
	SizeY     float64
	SizeZ     float64
	Thickness float64
}

// SphereChamber is a spherical shell centred on the origin.
type SphereChamber struct {
	base
	p  ChamberParams
	os outlets
}

func (p *ChamberParams) sphereFields() []field {
	return []field{
		{"diameter", &p.Diameter},
		{"thickness", &p.Thickness},
	}
}

// NewSphereChamber creates an empty spherical chamber.
func NewSphereChamber(p ChamberParams, cat *catalog.Catalog) (*SphereChamber, error) {
	c := &SphereChamber{base: base{cat: cat}, p: p}
	if err := c.validate(p, c.os.list); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SphereChamber) validate(p ChamberParams, list []Outlet) error {
	if err := wall(KindSphereChamber, p.Thickness, p.Diameter); err != nil {
		return err
	}
	for _, o := range list {
		if o.Diameter >= p.Diameter {
			return paramErr(KindSphereChamber, "diameter", "%g does not fit outlet %q of %g", p.Diameter, o.Name, o.Diameter)
		}
		if p.Thickness >= o.Diameter/2 {
			return paramErr(KindSphereChamber, "thickness", "%g leaves no bore in outlet %q", p.Thickness, o.Name)
		}
	}
	return nil
}

func (c *SphereChamber) Kind() Kind { return KindSphereChamber }

// Parameters returns a copy of the current parameters.
func (c *SphereChamber) Parameters() ChamberParams { return c.p }

func (c *SphereChamber) anchor(o Outlet) geom.Anchor {
	th := o.Theta * math.Pi / 180
	ph := o.Phi * math.Pi / 180
	dir := r3.Vec{X: math.Sin(th) * math.Cos(ph), Y: math.Sin(th) * math.Sin(ph), Z: math.Cos(th)}
	return geom.Anchor{Position: r3.Scale(c.p.Diameter/2, dir), Direction: dir}
}

func (c *SphereChamber) Ports() []Port {
	ports := make([]Port, 0, len(c.os.list))
	for _, o := range c.os.list {
		ports = append(ports, Port{Name: o.Name, Type: PortSide, Diameter: o.Diameter, Local: c.anchor(o)})
	}
	return ports
}

func (c *SphereChamber) Flanges() []Flange {
	fs := make([]Flange, 0, len(c.os.list))
	for _, o := range c.os.list {
		fs = append(fs, c.flange(o.Name, o.Diameter, c.p.Thickness))
	}
	return fs
}

func (c *SphereChamber) Build(k kernel.Kernel) (Geometry, error) {
	R := c.p.Diameter / 2
	t := c.p.Thickness
	s := k.Difference(k.Sphere(R), k.Sphere(R-t))
	for _, o := range c.os.list {
		a := c.anchor(o)
		hole := k.Cylinder(R+t, o.Diameter/2-t, 48)
		s = k.Difference(s, k.Place(hole, along(a.Direction, r3.Scale((R+t)/2, a.Direction))))
	}
	return Geometry{Solid: s}, nil
}

func (c *SphereChamber) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

func (c *SphereChamber) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(KindSphereChamber, next.sphereFields(), values); err != nil {
		return err
	}
	if err := c.validate(next, c.os.list); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *SphereChamber) Param(key string) (float64, bool) { return read(c.p.sphereFields(), key) }

func (c *SphereChamber) Params() []string { return keys(c.p.sphereFields()) }

func (c *SphereChamber) AddOutlet(o Outlet) (string, error) {
	if o.Diameter >= c.p.Diameter {
		return "", paramErr(KindSphereChamber, "outlet", "diameter %g does not fit chamber %g", o.Diameter, c.p.Diameter)
	}
	return c.os.add(KindSphereChamber, o, c.p.Thickness)
}

func (c *SphereChamber) RemoveOutlet(name string) error {
	return c.os.remove(KindSphereChamber, name)
}

func (c *SphereChamber) Outlets() []Outlet { return c.os.snapshot() }

// BoxChamber is a rectangular shell centred on the origin.
type BoxChamber struct {
	base
	p  ChamberParams
	os outlets
}

func (p *ChamberParams) boxFields() []field {
	return []field{
		{"size_x", &p.SizeX},
		{"size_y", &p.SizeY},
		{"size_z", &p.SizeZ},
		{"thickness", &p.Thickness},
	}
}

// NewBoxChamber creates an empty box chamber.
func NewBoxChamber(p ChamberParams, cat *catalog.Catalog) (*BoxChamber, error) {
	c := &BoxChamber{base: base{cat: cat}, p: p}
	if err := c.validate(p, nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (p ChamberParams) size() r3.Vec {
	return r3.Vec{X: p.SizeX, Y: p.SizeY, Z: p.SizeZ}
}

func (c *BoxChamber) validate(p ChamberParams, list []Outlet) error {
	for _, f := range p.boxFields()[:3] {
		if err := positive(KindBoxChamber, f.key, *f.ptr); err != nil {
			return err
		}
	}
	smallest := math.Min(p.SizeX, math.Min(p.SizeY, p.SizeZ))
	if err := wall(KindBoxChamber, p.Thickness, smallest); err != nil {
		return err
	}
	for _, o := range list {
		if err := fitsFace(p, o); err != nil {
			return err
		}
	}
	return nil
}

// fitsFace checks that an outlet lies wholly on its face.
func fitsFace(p ChamberParams, o Outlet) error {
	_, u, v, ok := o.Face.frame()
	if !ok {
		return paramErr(KindBoxChamber, "outlet", "unknown face %q", o.Face)
	}
	size := p.size()
	halfU := r3.Dot(size, u) / 2
	halfV := r3.Dot(size, v) / 2
	r := o.Diameter / 2
	if math.Abs(o.U)+r > halfU || math.Abs(o.V)+r > halfV {
		return paramErr(KindBoxChamber, "outlet", "outlet %q of %g at (%g, %g) overhangs face %s",
			o.Name, o.Diameter, o.U, o.V, o.Face)
	}
	if p.Thickness >= r {
		return paramErr(KindBoxChamber, "thickness", "%g leaves no bore in outlet %q", p.Thickness, o.Name)
	}
	return nil
}

func (c *BoxChamber) Kind() Kind { return KindBoxChamber }

// Parameters returns a copy of the current parameters.
func (c *BoxChamber) Parameters() ChamberParams { return c.p }

func (c *BoxChamber) anchor(o Outlet) geom.Anchor {
	n, u, v, _ := o.Face.frame()
	pos := r3.Scale(r3.Dot(c.p.size(), n)/2, n)
	pos = r3.Add(pos, r3.Add(r3.Scale(o.U, u), r3.Scale(o.V, v)))
	return geom.Anchor{Position: pos, Direction: n}
}

func (c *BoxChamber) Ports() []Port {
	ports := make([]Port, 0, len(c.os.list))
	for _, o := range c.os.list {
		ports = append(ports, Port{Name: o.Name, Type: PortSide, Diameter: o.Diameter, Local: c.anchor(o)})
	}
	return ports
}

func (c *BoxChamber) Flanges() []Flange {
	fs := make([]Flange, 0, len(c.os.list))
	for _, o := range c.os.list {
		fs = append(fs, c.flange(o.Name, o.Diameter, c.p.Thickness))
	}
	return fs
}

func (c *BoxChamber) Build(k kernel.Kernel) (Geometry, error) {
	t := c.p.Thickness
	s := k.Difference(
		k.Box(c.p.SizeX, c.p.SizeY, c.p.SizeZ),
		k.Box(c.p.SizeX-2*t, c.p.SizeY-2*t, c.p.SizeZ-2*t),
	)
	for _, o := range c.os.list {
		a := c.anchor(o)
		s = k.Difference(s, k.Place(k.Cylinder(4*t, o.Diameter/2-t, 48), seat(a, 2*t)))
	}
	return Geometry{Solid: s}, nil
}

func (c *BoxChamber) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

func (c *BoxChamber) SetParams(values map[string]float64) error {
	next := c.p
	if err := assignAll(KindBoxChamber, next.boxFields(), values); err != nil {
		return err
	}
	if err := c.validate(next, c.os.list); err != nil {
		return err
	}
	c.p = next
	return nil
}

func (c *BoxChamber) Param(key string) (float64, bool) { return read(c.p.boxFields(), key) }

func (c *BoxChamber) Params() []string { return keys(c.p.boxFields()) }

func (c *BoxChamber) AddOutlet(o Outlet) (string, error) {
	if err := fitsFace(c.p, o); err != nil {
		return "", err
	}
	return c.os.add(KindBoxChamber, o, c.p.Thickness)
}

func (c *BoxChamber) RemoveOutlet(name string) error {
	return c.os.remove(KindBoxChamber, name)
}

func (c *BoxChamber) Outlets() []Outlet { return c.os.snapshot() }

// String renders an outlet for diagnostics.
func (o Outlet) String() string {
	if o.Face != "" {
		return fmt.Sprintf("%s(%s %g,%g d=%g)", o.Name, o.Face, o.U, o.V, o.Diameter)
	}
	return fmt.Sprintf("%s(theta=%g phi=%g d=%g)", o.Name, o.Theta, o.Phi, o.Diameter)
}
