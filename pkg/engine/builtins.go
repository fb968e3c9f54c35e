package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/pipeworks/pkg/assembly"
	"github.com/chazu/pipeworks/pkg/component"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpComponent refers to a component added to the assembly.
type sexpComponent struct {
	id   assembly.ID
	kind component.Kind
}

func (c *sexpComponent) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", c.kind, c.id)
}
func (c *sexpComponent) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps an r3.Vec.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. Keyword
// names are normalized to the underscore form used for parameter keys.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			name = paramKey(name)
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// keys returns the keyword names in sorted order, skipping those listed.
func (a kwArgs) keys(skip ...string) []string {
	out := make([]string, 0, len(a.kw))
outer:
	for k := range a.kw {
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func paramKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_out) and plain strings ("out").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// faceAliases lets scripts name box faces with plain keywords.
var faceAliases = map[string]component.Face{
	"px": component.FacePosX, "nx": component.FaceNegX,
	"py": component.FacePosY, "ny": component.FaceNegY,
	"pz": component.FacePosZ, "nz": component.FaceNegZ,
}

// toFace converts :px style keywords or "+x" style strings to a Face.
func toFace(s zygo.Sexp) (component.Face, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	if f, ok := faceAliases[strings.ToLower(name)]; ok {
		return f, nil
	}
	return component.Face(strings.ToLower(name)), nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder holds the assembly a script populates.
type builder struct {
	a *assembly.Assembly
}

// component resolves a component argument: either the value returned by a
// fitting form or its name.
func (b *builder) component(s zygo.Sexp) (assembly.ID, error) {
	var id assembly.ID
	switch v := s.(type) {
	case *sexpComponent:
		id = v.id
	case *zygo.SexpStr:
		id = assembly.ID(v.S)
	default:
		return "", fmt.Errorf("expected component or name, got %T (%s)", s, s.SexpString(nil))
	}
	if _, ok := b.a.Component(id); !ok {
		return "", fmt.Errorf("no component named %q", id)
	}
	return id, nil
}

// port resolves a (component, :port) argument pair.
func (b *builder) port(c, p zygo.Sexp) (assembly.PortRef, error) {
	id, err := b.component(c)
	if err != nil {
		return assembly.PortRef{}, err
	}
	name, err := toKeywordString(p)
	if err != nil {
		return assembly.PortRef{}, fmt.Errorf("port: %w", err)
	}
	return assembly.PortRef{Component: id, Port: name}, nil
}

// sizeKey is the keyword that sizes a family when it is created.
func sizeKey(kind component.Kind) string {
	switch kind {
	case component.KindReducer:
		return "inlet"
	case component.KindBoxChamber:
		return "size"
	}
	return "diameter"
}

// fitting handles every (family "name" :key value ...) form. The family is
// created from its sizing keyword and the remaining keywords in one step,
// so only the final parameter set is validated.
func (b *builder) fitting(kind component.Kind) zygo.ZlispUserFunction {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		form := kind.String()

		var id string
		if len(pa.positional) > 0 {
			s, err := toString(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: name: %w", form, err)
			}
			id = s
		}

		key := sizeKey(kind)
		v, ok := pa.kw[key]
		if !ok && kind == component.KindBoxChamber {
			key = "size_x"
			v, ok = pa.kw[key]
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("%s: :%s is required", form, strings.ReplaceAll(key, "_", "-"))
		}
		size, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %s: %w", form, key, err)
		}

		values := make(map[string]float64)
		for _, k := range pa.keys(sizeKey(kind), "color") {
			f, err := toFloat64(pa.kw[k])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %s: %w", form, k, err)
			}
			values[k] = f
		}
		c, err := component.NewWithParams(kind, size, values, b.a.Catalog())
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
		}
		var color string
		if v, ok := pa.kw["color"]; ok {
			if color, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: color: %w", form, err)
			}
		}

		added, err := b.a.Add(id, c)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
		}
		if color != "" {
			_ = b.a.SetColor(added, color)
		}
		return &sexpComponent{id: added, kind: kind}, nil
	}
}

// registerBuiltins installs all pipeworks DSL builtins into a zygomys
// environment. The builtins populate a as the script runs.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, a *assembly.Assembly) {
	b := &builder{a: a}

	// -----------------------------------------------------------------------
	// (pipe "p1" :diameter 0.1 :length 1.0 :thickness 0.002) and friends.
	// sphere-chamber and box-chamber reach here as sphere_chamber and
	// box_chamber after preprocessing.
	// -----------------------------------------------------------------------
	for _, kind := range []component.Kind{
		component.KindPipe, component.KindBend, component.KindTee, component.KindCross,
		component.KindReducer, component.KindLJoint, component.KindSphereChamber,
		component.KindBoxChamber, component.KindValve, component.KindPump,
	} {
		env.AddFunction(strings.ReplaceAll(kind.String(), "-", "_"), b.fitting(kind))
	}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (connect "p1" :out "b1" :in)
	//
	// The second component moves so that its port mates the first.
	// -----------------------------------------------------------------------
	env.AddFunction("connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("connect requires a component, a port, a component and a port")
		}
		fixed, err := b.port(args[0], args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}
		moving, err := b.port(args[2], args[3])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}
		stats, err := a.Connect(moving, fixed)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}
		return &zygo.SexpInt{Val: int64(stats.Realigned)}, nil
	})

	// -----------------------------------------------------------------------
	// (disconnect "p1" :out)
	// -----------------------------------------------------------------------
	env.AddFunction("disconnect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("disconnect requires a component and a port")
		}
		ref, err := b.port(args[0], args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("disconnect: %w", err)
		}
		if err := a.Disconnect(ref); err != nil {
			return zygo.SexpNull, fmt.Errorf("disconnect: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (remove "p1")
	// -----------------------------------------------------------------------
	env.AddFunction("remove", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("remove requires a component")
		}
		id, err := b.component(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove: %w", err)
		}
		if err := a.Remove(id); err != nil {
			return zygo.SexpNull, fmt.Errorf("remove: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (param "p1" :length 1.5 :thickness 0.003)
	// -----------------------------------------------------------------------
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 || len(pa.kw) == 0 {
			return zygo.SexpNull, fmt.Errorf("param requires a component and at least one :key value")
		}
		id, err := b.component(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %w", err)
		}
		values := make(map[string]float64, len(pa.kw))
		for _, k := range pa.keys() {
			f, err := toFloat64(pa.kw[k])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("param: %s: %w", k, err)
			}
			values[k] = f
		}
		if _, err := a.SetParams(id, values); err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %w", err)
		}
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (move "p1" (vec3 0 0 0.5))
	// -----------------------------------------------------------------------
	env.AddFunction("move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("move requires a component and a vec3")
		}
		id, err := b.component(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		d, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		if _, err := a.Move(id, d); err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (rotate "p1" (vec3 90 0 0) :order :xyz)
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a component and a vec3 of degrees")
		}
		id, err := b.component(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		deg, err := toVec3(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		var order string
		if v, ok := pa.kw["order"]; ok {
			if order, err = toKeywordString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: order: %w", err)
			}
		}
		if _, err := a.Rotate(id, deg, order); err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (outlet "c" :theta 30 :phi 0 :diameter 0.04)
	// (outlet "box" :face :px :u 0.1 :v 0 :diameter 0.04 :name "pumpout")
	//
	// Returns the new port's name.
	// -----------------------------------------------------------------------
	env.AddFunction("outlet", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("outlet requires a chamber")
		}
		id, err := b.component(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("outlet: %w", err)
		}

		var o component.Outlet
		nums := map[string]*float64{
			"diameter": &o.Diameter, "theta": &o.Theta, "phi": &o.Phi, "u": &o.U, "v": &o.V,
		}
		for k, dst := range nums {
			if v, ok := pa.kw[k]; ok {
				if *dst, err = toFloat64(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("outlet: %s: %w", k, err)
				}
			}
		}
		if v, ok := pa.kw["name"]; ok {
			if o.Name, err = toKeywordString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("outlet: name: %w", err)
			}
		}
		if v, ok := pa.kw["face"]; ok {
			if o.Face, err = toFace(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("outlet: face: %w", err)
			}
		}

		port, err := a.AddOutlet(id, o)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("outlet: %w", err)
		}
		return &zygo.SexpStr{S: port}, nil
	})

	// -----------------------------------------------------------------------
	// (color "p1" "#c0c0c0")
	// -----------------------------------------------------------------------
	env.AddFunction("color", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("color requires a component and a color string")
		}
		id, err := b.component(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("color: %w", err)
		}
		c, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("color: %w", err)
		}
		_ = a.SetColor(id, c)
		return args[0], nil
	})
}
