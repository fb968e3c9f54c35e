// Package component defines the parametric fittings of a vacuum piping
// assembly. Every family holds its own parameter struct and implements the
// Component capability set: it lists its ports and flanges in its local
// frame and builds its solid through a geometry kernel, either directly or
// by describing a boolean construction to be run in the background.
//
// Components never hold connection state; connections between ports live
// in the assembly that owns the components.
package component

import (
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind enumerates the fitting families.
type Kind int

const (
	KindPipe Kind = iota
	KindBend
	KindTee
	KindCross
	KindReducer
	KindLJoint
	KindSphereChamber
	KindBoxChamber
	KindValve
	KindPump
)

func (k Kind) String() string {
	switch k {
	case KindPipe:
		return "pipe"
	case KindBend:
		return "bend"
	case KindTee:
		return "tee"
	case KindCross:
		return "cross"
	case KindReducer:
		return "reducer"
	case KindLJoint:
		return "ljoint"
	case KindSphereChamber:
		return "sphere-chamber"
	case KindBoxChamber:
		return "box-chamber"
	case KindValve:
		return "valve"
	case KindPump:
		return "pump"
	default:
		return "unknown"
	}
}

// ParseKind maps a family name to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k := KindPipe; k <= KindPump; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// PortType classifies a port's role on its component.
type PortType int

const (
	PortIn PortType = iota
	PortOut
	PortMain
	PortBranch
	PortSide
)

func (t PortType) String() string {
	switch t {
	case PortIn:
		return "in"
	case PortOut:
		return "out"
	case PortMain:
		return "main"
	case PortBranch:
		return "branch"
	case PortSide:
		return "side"
	default:
		return "unknown"
	}
}

// ParsePortType maps a port type token to its PortType.
func ParsePortType(s string) (PortType, bool) {
	for _, t := range []PortType{PortIn, PortOut, PortMain, PortBranch, PortSide} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Port is a named connection anchor in the owning component's local frame.
type Port struct {
	Name     string
	Type     PortType
	Local    geom.Anchor
	Diameter float64 // nominal outer diameter at the anchor
}

// Flange is a cosmetic ring rendered at a port anchor. It carries no
// connection state.
type Flange struct {
	Port      string
	Diameter  float64 // outer diameter
	Bore      float64 // inner diameter
	Thickness float64
	Taper     float64 // outer diameter at the back face; zero for a straight ring
}

// Asset points at an externally authored mesh.
type Asset struct {
	URL   string
	Scale float64
}

// Geometry is the outcome of a build. Exactly one field is set: Solid for
// geometry produced synchronously, Boolean for a boolean construction that
// must run on a background worker, or Asset for a model to be loaded.
type Geometry struct {
	Solid   kernel.Solid
	Boolean *csg.Request
	Asset   *Asset
}

// Async reports whether the geometry must be completed in the background.
func (g Geometry) Async() bool {
	return g.Boolean != nil || g.Asset != nil
}

// Component is the capability set shared by every fitting family.
type Component interface {
	Kind() Kind
	// Ports lists the connection anchors for the current parameters.
	Ports() []Port
	// Flanges lists the cosmetic flanges for the current parameters.
	Flanges() []Flange
	// Build produces the component's solid in its local frame.
	Build(k kernel.Kernel) (Geometry, error)
	// SetParam changes one parameter. On error the component is unchanged.
	SetParam(key string, value float64) error
	// SetParams changes several parameters and validates them as one set.
	// On error the component is unchanged.
	SetParams(values map[string]float64) error
	// Param reads one parameter.
	Param(key string) (float64, bool)
	// Params lists the parameter keys the family accepts.
	Params() []string
}

// PortByName finds a port on c.
func PortByName(c Component, name string) (Port, bool) {
	for _, p := range c.Ports() {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// FlangeSolid builds the ring for f seated at a local anchor. The ring's
// outer face is flush with the anchor and it extends back into the fitting.
func FlangeSolid(k kernel.Kernel, f Flange, at geom.Anchor) kernel.Solid {
	var body kernel.Solid
	if f.Taper > 0 && f.Taper < f.Diameter {
		body = k.Frustum(f.Thickness, f.Taper/2, f.Diameter/2)
	} else {
		body = k.Cylinder(f.Thickness, f.Diameter/2, 48)
	}
	ring := k.Difference(body, k.Cylinder(f.Thickness*1.5, f.Bore/2, 48))
	return k.Place(ring, seat(at, f.Thickness))
}

// along returns the pose that turns a Z-aligned, origin-centred body onto
// axis and moves its centre to centre.
func along(axis, centre r3.Vec) geom.Pose {
	p := geom.At(centre)
	p.Rotation = geom.ShortestArc(r3.Vec{Z: 1}, axis)
	return p
}

// seat returns the pose that puts a Z-aligned, origin-centred body of the
// given depth against at, its +Z face flush with the anchor.
func seat(at geom.Anchor, depth float64) geom.Pose {
	dir := r3.Unit(at.Direction)
	return along(dir, r3.Sub(at.Position, r3.Scale(depth/2, dir)))
}
