// Package catalog maps nominal pipe diameters to the family-specific
// constants that fittings need: bend radii, tee run lengths, flange sizes
// and the mesh models for valves and pumps. A catalog is read-only once
// loaded.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrNoEntry is returned when no catalog entry exists for a diameter.
var ErrNoEntry = errors.New("catalog: no entry for diameter")

// matchTolerance is how close a requested diameter must be to a catalog key.
const matchTolerance = 1e-6

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// nonzero_vec rejects a vector whose components are all zero.
	_ = v.RegisterValidation("nonzero_vec", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		for i := 0; i < f.Len(); i++ {
			if f.Index(i).Float() != 0 {
				return true
			}
		}
		return false
	})
	return v
}

// Flange describes the cosmetic flange used at ports of a given size.
type Flange struct {
	Diameter  float64 `yaml:"diameter" validate:"gt=0"`
	Thickness float64 `yaml:"thickness" validate:"gt=0"`
}

// ModelPort is a fixed connection point on a catalog model, expressed in
// the model's unscaled frame.
type ModelPort struct {
	Name      string     `yaml:"name" validate:"required"`
	Type      string     `yaml:"type" validate:"required,oneof=in out main branch side"`
	Offset    [3]float64 `yaml:"offset"`
	Direction [3]float64 `yaml:"direction" validate:"nonzero_vec"`
}

// Model is an externally authored mesh asset with its mount points.
type Model struct {
	URL   string      `yaml:"url" validate:"required"`
	Scale float64     `yaml:"scale" validate:"gt=0"`
	Ports []ModelPort `yaml:"ports" validate:"min=1,dive"`
}

// Entry holds the constants for one nominal diameter.
type Entry struct {
	Diameter        float64 `yaml:"diameter" validate:"gt=0"`
	Thickness       float64 `yaml:"thickness" validate:"gt=0"`
	BendRadius      float64 `yaml:"bend_radius" validate:"gt=0"`
	TeeMainLength   float64 `yaml:"tee_main_length" validate:"gt=0"`
	TeeBranchLength float64 `yaml:"tee_branch_length" validate:"gt=0"`
	Flange          Flange  `yaml:"flange"`
	Valve           *Model  `yaml:"valve,omitempty"`
	Pump            *Model  `yaml:"pump,omitempty"`
}

// Catalog is a lookup table keyed by nominal diameter.
type Catalog struct {
	entries []Entry // sorted by Diameter
}

type document struct {
	Entries []Entry `yaml:"entries" validate:"min=1,dive"`
}

// Default returns the catalog bundled with the binary.
func Default() *Catalog {
	c, err := parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return parse(b)
}

// Parse reads a catalog from r.
func Parse(r io.Reader) (*Catalog, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: read: %w", err)
	}
	return parse(b)
}

func parse(b []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("catalog: invalid: %w", err)
	}

	entries := append([]Entry(nil), doc.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Diameter < entries[j].Diameter })
	for i := 1; i < len(entries); i++ {
		if math.Abs(entries[i].Diameter-entries[i-1].Diameter) < matchTolerance {
			return nil, fmt.Errorf("catalog: duplicate entry for diameter %g", entries[i].Diameter)
		}
	}
	for _, e := range entries {
		if e.Thickness >= e.Diameter/2 {
			return nil, fmt.Errorf("catalog: entry %g: thickness %g must be less than radius", e.Diameter, e.Thickness)
		}
	}
	return &Catalog{entries: entries}, nil
}

// Lookup returns the entry for a nominal diameter.
func (c *Catalog) Lookup(diameter float64) (Entry, error) {
	i := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].Diameter >= diameter-matchTolerance
	})
	if i < len(c.entries) && math.Abs(c.entries[i].Diameter-diameter) < matchTolerance {
		return c.entries[i], nil
	}
	return Entry{}, fmt.Errorf("%w %g", ErrNoEntry, diameter)
}

// Diameters lists the nominal diameters in ascending order.
func (c *Catalog) Diameters() []float64 {
	ds := make([]float64, len(c.entries))
	for i, e := range c.entries {
		ds[i] = e.Diameter
	}
	return ds
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
