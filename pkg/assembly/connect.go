package assembly

import (
	"fmt"

	"github.com/chazu/pipeworks/pkg/component"
	"github.com/chazu/pipeworks/pkg/geom"
)

func (a *Assembly) port(ref PortRef) (*entry, component.Port, error) {
	e, err := a.entry(ref.Component)
	if err != nil {
		return nil, component.Port{}, err
	}
	p, ok := component.PortByName(e.comp, ref.Port)
	if !ok {
		return nil, component.Port{}, fmt.Errorf("%w: %s", ErrUnknownPort, ref)
	}
	return e, p, nil
}

// Anchor returns the world-space anchor of a port.
func (a *Assembly) Anchor(ref PortRef) (geom.Anchor, error) {
	e, p, err := a.port(ref)
	if err != nil {
		return geom.Anchor{}, err
	}
	return e.pose.ApplyAnchor(p.Local), nil
}

// Peer returns the port connected to ref.
func (a *Assembly) Peer(ref PortRef) (PortRef, bool) {
	q, ok := a.links[ref]
	return q, ok
}

// Connect joins port from to port to. The component owning from moves so
// that from mates to, and everything already connected to it follows. The
// component owning to stays where it is.
func (a *Assembly) Connect(from, to PortRef) (FlushStats, error) {
	mover, fp, err := a.port(from)
	if err != nil {
		return FlushStats{}, err
	}
	if _, _, err := a.port(to); err != nil {
		return FlushStats{}, err
	}
	if from.Component == to.Component {
		return FlushStats{}, fmt.Errorf("%w: %s", ErrSelfConnection, from.Component)
	}
	for _, ref := range []PortRef{from, to} {
		if peer, ok := a.links[ref]; ok {
			return FlushStats{}, fmt.Errorf("%w: %s is connected to %s", ErrPortInUse, ref, peer)
		}
	}
	if a.reachable(from.Component, to.Component) {
		return FlushStats{}, fmt.Errorf("%w: %s and %s are already joined", ErrCycle, from.Component, to.Component)
	}

	a.links[from] = to
	a.links[to] = from

	target, _ := a.Anchor(to)
	mover.pose = geom.Align(mover.pose, fp.Local, target)

	for _, p := range mover.comp.Ports() {
		ref := PortRef{Component: from.Component, Port: p.Name}
		if ref != from {
			a.sched.Request(ref)
		}
	}
	stats := a.flush()
	a.logger.Debug("ports connected", "from", from, "to", to, "realigned", stats.Realigned)
	return stats, nil
}

// Disconnect removes the connection at ref. Neither component moves.
func (a *Assembly) Disconnect(ref PortRef) error {
	if _, ok := a.links[ref]; !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, ref)
	}
	a.unlink(ref)
	return nil
}

func (a *Assembly) unlink(ref PortRef) {
	if q, ok := a.links[ref]; ok {
		delete(a.links, ref)
		if back, ok := a.links[q]; ok && back == ref {
			delete(a.links, q)
		}
	}
}

// reachable reports whether to can be reached from from through existing
// connections.
func (a *Assembly) reachable(from, to ID) bool {
	seen := map[ID]bool{from: true}
	queue := []ID{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			return true
		}
		for _, n := range a.neighbours(id) {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

func (a *Assembly) neighbours(id ID) []ID {
	e, ok := a.entries[id]
	if !ok {
		return nil
	}
	var out []ID
	for _, p := range e.comp.Ports() {
		if q, ok := a.links[PortRef{Component: id, Port: p.Name}]; ok {
			out = append(out, q.Component)
		}
	}
	return out
}

// prune drops connections on ports that id no longer has.
func (a *Assembly) prune(id ID) {
	e, ok := a.entries[id]
	if !ok {
		return
	}
	have := map[string]bool{}
	for _, p := range e.comp.Ports() {
		have[p.Name] = true
	}
	for ref := range a.links {
		if ref.Component == id && !have[ref.Port] {
			a.logger.Debug("severing connection to removed port", "port", ref)
			a.unlink(ref)
		}
	}
}
