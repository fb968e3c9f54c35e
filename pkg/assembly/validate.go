package assembly

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/pipeworks/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// MateTolerance is how far apart, in metres, two connected anchors may be
// before validation flags them.
const MateTolerance = 1e-6

// ValidationSeverity indicates whether a validation finding means the
// assembly is broken or merely suspicious.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // structural damage
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Component ID     // which component has the problem (empty if assembly-level)
	Port      string // which port, when the finding is about a connection
	Message   string
	Severity  ValidationSeverity
}

func (e ValidationError) Error() string {
	switch {
	case e.Component == "":
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	case e.Port == "":
		return fmt.Sprintf("[%s] component %s: %s", e.Severity, e.Component.Short(), e.Message)
	default:
		return fmt.Sprintf("[%s] port %s:%s: %s", e.Severity, e.Component.Short(), e.Port, e.Message)
	}
}

// Validate runs the structural checks and returns every finding, errors
// first. An empty slice means the assembly is consistent. Validate never
// mutates the assembly.
func (a *Assembly) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, a.validateLinks()...)
	errs = append(errs, a.validateCycles()...)
	errs = append(errs, a.validateMates()...)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Severity < errs[j].Severity })
	return errs
}

// sortedRefs returns the connection table's keys in a stable order.
func (a *Assembly) sortedRefs() []PortRef {
	refs := make([]PortRef, 0, len(a.links))
	for p := range a.links {
		refs = append(refs, p)
	}
	sort.Slice(refs, func(i, j int) bool { return less(refs[i], refs[j]) })
	return refs
}

// validateLinks checks that every connection is mirrored and that both of
// its ends exist.
func (a *Assembly) validateLinks() []ValidationError {
	var errs []ValidationError
	for _, p := range a.sortedRefs() {
		q := a.links[p]
		if back, ok := a.links[q]; !ok || back != p {
			errs = append(errs, ValidationError{
				Component: p.Component, Port: p.Port,
				Message:  fmt.Sprintf("connection to %s is not mirrored", q),
				Severity: SeverityError,
			})
		}
		for _, end := range []PortRef{p, q} {
			if _, _, err := a.port(end); err != nil {
				errs = append(errs, ValidationError{
					Component: p.Component, Port: p.Port,
					Message:  fmt.Sprintf("connection end %s does not exist", end),
					Severity: SeverityError,
				})
			}
		}
		if p.Component == q.Component {
			errs = append(errs, ValidationError{
				Component: p.Component, Port: p.Port,
				Message:  "component is connected to itself",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateCycles checks for loops using DFS with 3-color marking over the
// undirected connection graph. The edge a component was entered through is
// not followed back. Reaching a gray component any other way is a cycle.
func (a *Assembly) validateCycles() []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[ID]int)
	var errs []ValidationError

	var visit func(id ID, via PortRef) bool // returns true if cycle found
	visit = func(id ID, via PortRef) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Component: id,
				Message:   fmt.Sprintf("cycle detected: component %s is part of a loop", id.Short()),
				Severity:  SeverityError,
			})
			return true
		}

		color[id] = gray
		e, ok := a.entries[id]
		if !ok {
			// Dangling reference; handled by validateLinks.
			color[id] = black
			return false
		}
		for _, p := range e.comp.Ports() {
			out := PortRef{Component: id, Port: p.Name}
			if out == via {
				continue
			}
			q, ok := a.links[out]
			if !ok {
				continue
			}
			if visit(q.Component, q) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range a.order {
		if color[id] == white {
			if visit(id, PortRef{}) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}
	return errs
}

// validateMates warns about connected ports that do not touch face to face
// or whose nominal diameters differ.
func (a *Assembly) validateMates() []ValidationError {
	var errs []ValidationError
	for _, l := range a.Links() {
		ea, pa, err := a.port(l.A)
		if err != nil {
			continue
		}
		eb, pb, err := a.port(l.B)
		if err != nil {
			continue
		}
		wa := ea.pose.ApplyAnchor(pa.Local)
		wb := eb.pose.ApplyAnchor(pb.Local)
		if !geom.Mated(wa, wb, MateTolerance) {
			errs = append(errs, ValidationError{
				Component: l.A.Component, Port: l.A.Port,
				Message: fmt.Sprintf("not seated against %s (gap %.3g m)", l.B,
					r3.Norm(r3.Sub(wa.Position, wb.Position))),
				Severity: SeverityWarning,
			})
		}
		if math.Abs(pa.Diameter-pb.Diameter) > 1e-9 {
			errs = append(errs, ValidationError{
				Component: l.A.Component, Port: l.A.Port,
				Message: fmt.Sprintf("diameter %g does not match %s diameter %g",
					pa.Diameter, l.B, pb.Diameter),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
