package component

import (
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Model is a catalog-backed fitting whose body is an external mesh: a
// valve or a pump. Its ports come from the catalog entry for its diameter.
type Model struct {
	base
	kind     Kind
	diameter float64
	model    catalog.Model
}

// NewValve creates the catalog valve for a nominal diameter.
func NewValve(diameter float64, cat *catalog.Catalog) (*Model, error) {
	return newModel(KindValve, diameter, cat)
}

// NewPump creates the catalog pump for a nominal diameter.
func NewPump(diameter float64, cat *catalog.Catalog) (*Model, error) {
	return newModel(KindPump, diameter, cat)
}

func newModel(kind Kind, diameter float64, cat *catalog.Catalog) (*Model, error) {
	c := &Model{base: base{cat: cat}, kind: kind}
	m, err := c.resolve(diameter)
	if err != nil {
		return nil, err
	}
	c.diameter, c.model = diameter, m
	return c, nil
}

func (c *Model) resolve(diameter float64) (catalog.Model, error) {
	e, err := c.lookup(c.kind, "diameter", diameter)
	if err != nil {
		return catalog.Model{}, err
	}
	m := e.Valve
	if c.kind == KindPump {
		m = e.Pump
	}
	if m == nil {
		return catalog.Model{}, paramErr(c.kind, "diameter", "catalog has no %s for diameter %g", c.kind, diameter)
	}
	return *m, nil
}

func (c *Model) Kind() Kind { return c.kind }

// Asset returns the model reference the body is loaded from.
func (c *Model) Asset() Asset {
	return Asset{URL: c.model.URL, Scale: c.model.Scale}
}

func (c *Model) Ports() []Port {
	ports := make([]Port, 0, len(c.model.Ports))
	for _, mp := range c.model.Ports {
		t, _ := ParsePortType(mp.Type)
		pos := r3.Scale(c.model.Scale, r3.Vec{X: mp.Offset[0], Y: mp.Offset[1], Z: mp.Offset[2]})
		dir := r3.Vec{X: mp.Direction[0], Y: mp.Direction[1], Z: mp.Direction[2]}
		ports = append(ports, Port{
			Name:     mp.Name,
			Type:     t,
			Diameter: c.diameter,
			Local:    geom.Anchor{Position: pos, Direction: r3.Unit(dir)},
		})
	}
	return ports
}

func (c *Model) Flanges() []Flange {
	t := c.diameter * 0.02
	if c.cat != nil {
		if e, err := c.cat.Lookup(c.diameter); err == nil {
			t = e.Thickness
		}
	}
	fs := make([]Flange, 0, len(c.model.Ports))
	for _, mp := range c.model.Ports {
		fs = append(fs, c.flange(mp.Name, c.diameter, t))
	}
	return fs
}

// Build returns the asset reference. The mesh is loaded in the background.
func (c *Model) Build(k kernel.Kernel) (Geometry, error) {
	a := c.Asset()
	return Geometry{Asset: &a}, nil
}

func (c *Model) SetParam(key string, v float64) error {
	return c.SetParams(map[string]float64{key: v})
}

// SetParams accepts only "diameter", which selects a different catalog
// model.
func (c *Model) SetParams(values map[string]float64) error {
	d := c.diameter
	if err := assignAll(c.kind, []field{{"diameter", &d}}, values); err != nil {
		return err
	}
	m, err := c.resolve(d)
	if err != nil {
		return err
	}
	c.diameter, c.model = d, m
	return nil
}

func (c *Model) Param(key string) (float64, bool) {
	if key == "diameter" {
		return c.diameter, true
	}
	return 0, false
}

func (c *Model) Params() []string { return []string{"diameter"} }
