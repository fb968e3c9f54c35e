package component

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/chazu/pipeworks/pkg/catalog"
)

// ErrParameter marks every ParameterError.
var ErrParameter = errors.New("component: invalid parameter")

// ParameterError reports a parameter value a family cannot build.
type ParameterError struct {
	Component string
	Param     string
	Reason    string
	Err       error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: parameter %q: %s", e.Component, e.Param, e.Reason)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParameter) hold for every ParameterError.
func (e *ParameterError) Is(target error) bool { return target == ErrParameter }

func paramErr(k Kind, param, format string, args ...any) error {
	return &ParameterError{Component: k.String(), Param: param, Reason: fmt.Sprintf(format, args...)}
}

func catalogErr(k Kind, param string, err error) error {
	return &ParameterError{Component: k.String(), Param: param, Reason: err.Error(), Err: err}
}

// field binds a parameter key to its storage in a params struct.
type field struct {
	key string
	ptr *float64
}

func assign(k Kind, fs []field, key string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return paramErr(k, key, "value %g is not finite", v)
	}
	for _, f := range fs {
		if f.key == key {
			*f.ptr = v
			return nil
		}
	}
	return paramErr(k, key, "unknown parameter")
}

// assignAll writes every value into fs. Keys are applied in sorted order so
// the first error reported is stable.
func assignAll(k Kind, fs []field, values map[string]float64) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if err := assign(k, fs, key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

func read(fs []field, key string) (float64, bool) {
	for _, f := range fs {
		if f.key == key {
			return *f.ptr, true
		}
	}
	return 0, false
}

func keys(fs []field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.key
	}
	return out
}

func positive(k Kind, param string, v float64) error {
	if !(v > 0) {
		return paramErr(k, param, "must be positive, got %g", v)
	}
	return nil
}

// wall checks that a wall thickness leaves a bore in a tube of the given
// outer diameter.
func wall(k Kind, thickness, diameter float64) error {
	if err := positive(k, "thickness", thickness); err != nil {
		return err
	}
	if thickness >= diameter/2 {
		return paramErr(k, "thickness", "%g must be less than radius %g", thickness, diameter/2)
	}
	return nil
}

// clampTo limits a secondary diameter to its primary. Non-positive values
// pass through for validate to reject.
func clampTo(secondary, primary float64) float64 {
	if secondary > primary {
		return primary
	}
	return secondary
}

// base carries the catalog shared by the fittings of one assembly.
type base struct {
	cat *catalog.Catalog
}

// flange sizes the flange for a port of outer diameter d and wall t. A
// catalog entry for d wins; otherwise the flange is proportioned from d.
func (b base) flange(port string, d, t float64) Flange {
	f := Flange{Port: port, Diameter: 1.3 * d, Bore: d - 2*t, Thickness: 0.12 * d}
	if b.cat == nil {
		return f
	}
	if e, err := b.cat.Lookup(d); err == nil {
		f.Diameter = e.Flange.Diameter
		f.Thickness = e.Flange.Thickness
	}
	return f
}

func (b base) lookup(k Kind, param string, d float64) (catalog.Entry, error) {
	if b.cat == nil {
		return catalog.Entry{}, paramErr(k, param, "no catalog available for diameter %g", d)
	}
	e, err := b.cat.Lookup(d)
	if err != nil {
		return catalog.Entry{}, catalogErr(k, param, err)
	}
	return e, nil
}
