package assembly

import (
	"fmt"

	"github.com/chazu/pipeworks/pkg/component"
	"github.com/chazu/pipeworks/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// BuildResult reports what an edit did.
type BuildResult struct {
	Component ID
	// Async is true when the new geometry is still being built in the
	// background; the previous mesh is shown until it lands.
	Async bool
	Flush FlushStats
}

// SetParam changes one parameter of id, rebuilds it and realigns
// everything connected to it. On error nothing changes and nothing is
// propagated.
func (a *Assembly) SetParam(id ID, key string, value float64) (BuildResult, error) {
	return a.SetParams(id, map[string]float64{key: value})
}

// SetParams is SetParam for several parameters, validated as one set and
// rebuilt once.
func (a *Assembly) SetParams(id ID, values map[string]float64) (BuildResult, error) {
	e, err := a.entry(id)
	if err != nil {
		return BuildResult{}, err
	}
	if err := e.comp.SetParams(values); err != nil {
		return BuildResult{}, err
	}
	a.logger.Debug("parameters set", "id", id, "values", values)
	return a.geometryChanged(e)
}

// Rebuild rebuilds id from its current parameters and realigns its
// neighbours to its ports.
func (a *Assembly) Rebuild(id ID) (BuildResult, error) {
	e, err := a.entry(id)
	if err != nil {
		return BuildResult{}, err
	}
	return a.geometryChanged(e)
}

// geometryChanged rebuilds e, severs connections to ports it no longer has
// and propagates from its remaining ports. e itself stays put.
func (a *Assembly) geometryChanged(e *entry) (BuildResult, error) {
	async, err := a.build(e)
	if err != nil {
		return BuildResult{}, err
	}
	a.prune(e.id)
	return BuildResult{Component: e.id, Async: async, Flush: a.propagate(e)}, nil
}

// propagate realigns everything connected to e against e's current ports.
func (a *Assembly) propagate(e *entry) FlushStats {
	for _, p := range e.comp.Ports() {
		a.sched.Request(PortRef{Component: e.id, Port: p.Name})
	}
	return a.flush()
}

// Move translates id by delta. Connected components follow.
func (a *Assembly) Move(id ID, delta r3.Vec) (FlushStats, error) {
	e, err := a.entry(id)
	if err != nil {
		return FlushStats{}, err
	}
	e.pose = e.pose.Translate(delta)
	return a.propagate(e), nil
}

// Rotate turns id about its own origin by Euler angles in degrees applied
// in order (for example "XYZ"). Connected components follow.
func (a *Assembly) Rotate(id ID, degrees r3.Vec, order string) (FlushStats, error) {
	e, err := a.entry(id)
	if err != nil {
		return FlushStats{}, err
	}
	q, err := geom.EulerToQuat(degrees, order)
	if err != nil {
		return FlushStats{}, &component.ParameterError{
			Component: string(id), Param: "order", Reason: err.Error(), Err: err,
		}
	}
	e.pose = e.pose.RotateAbout(e.pose.Position, q)
	return a.propagate(e), nil
}

// SetPose replaces the pose of id. Connected components follow.
func (a *Assembly) SetPose(id ID, pose geom.Pose) (FlushStats, error) {
	e, err := a.entry(id)
	if err != nil {
		return FlushStats{}, err
	}
	e.pose = pose
	return a.propagate(e), nil
}

func (a *Assembly) chamber(id ID) (*entry, component.Chamber, error) {
	e, err := a.entry(id)
	if err != nil {
		return nil, nil, err
	}
	ch, ok := e.comp.(component.Chamber)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is a %s", ErrNotChamber, id, e.comp.Kind())
	}
	return e, ch, nil
}

// AddOutlet cuts a new outlet into chamber id and returns its port name.
func (a *Assembly) AddOutlet(id ID, o component.Outlet) (string, error) {
	e, ch, err := a.chamber(id)
	if err != nil {
		return "", err
	}
	name, err := ch.AddOutlet(o)
	if err != nil {
		return "", err
	}
	if _, err := a.geometryChanged(e); err != nil {
		return "", err
	}
	return name, nil
}

// RemoveOutlet removes an outlet from chamber id, severing any connection
// made to it.
func (a *Assembly) RemoveOutlet(id ID, name string) error {
	e, ch, err := a.chamber(id)
	if err != nil {
		return err
	}
	if err := ch.RemoveOutlet(name); err != nil {
		return err
	}
	_, err = a.geometryChanged(e)
	return err
}
