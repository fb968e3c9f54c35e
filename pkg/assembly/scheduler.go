package assembly

import "github.com/chazu/pipeworks/pkg/geom"

// Graph is the view of an assembly the scheduler propagates through.
type Graph interface {
	// Peer returns the port connected to p.
	Peer(p PortRef) (PortRef, bool)
	// PortNames lists every port of a component.
	PortNames(id ID) []string
	// WorldAnchor computes the current world anchor of p from its
	// component's current parameters and pose.
	WorldAnchor(p PortRef) (geom.Anchor, bool)
	// AlignTo moves the owner of p so that p mates target.
	AlignTo(p PortRef, target geom.Anchor)
}

// FlushStats summarizes one flush.
type FlushStats struct {
	Realigned int // components moved
	Visited   int // components reached, including the seeds' owners
}

// Scheduler collects ports whose anchors have moved and, on Flush,
// realigns every component reachable from them. Requests are a set: a port
// requested twice before a flush is processed once.
type Scheduler struct {
	pending map[PortRef]struct{}
	order   []PortRef
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[PortRef]struct{})}
}

// Request marks p as moved.
func (s *Scheduler) Request(p PortRef) {
	if _, ok := s.pending[p]; ok {
		return
	}
	s.pending[p] = struct{}{}
	s.order = append(s.order, p)
}

// Len returns the number of pending ports.
func (s *Scheduler) Len() int { return len(s.order) }

// Flush propagates every pending request through g and clears the set.
//
// The owners of the seed ports are the fixed frame: they are marked visited
// up front and never move. The walk is a depth-first search over ports. For
// each popped port p with a peer q whose owner is unvisited, q's owner is
// aligned so q mates p, marked visited, and its remaining ports are pushed.
// Each component is moved at most once per flush.
func (s *Scheduler) Flush(g Graph) FlushStats {
	seeds := s.order
	s.order = nil
	s.pending = make(map[PortRef]struct{})

	visited := make(map[ID]bool)
	seen := make(map[PortRef]bool)
	for _, p := range seeds {
		visited[p.Component] = true
	}

	var stats FlushStats
	stack := make([]PortRef, 0, len(seeds))
	for i := len(seeds) - 1; i >= 0; i-- {
		stack = append(stack, seeds[i])
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[p] {
			continue
		}
		seen[p] = true

		q, ok := g.Peer(p)
		if !ok || visited[q.Component] {
			continue
		}
		target, ok := g.WorldAnchor(p)
		if !ok {
			continue
		}
		g.AlignTo(q, target)
		visited[q.Component] = true
		seen[q] = true
		stats.Realigned++

		for _, name := range g.PortNames(q.Component) {
			if r := (PortRef{Component: q.Component, Port: name}); r != q {
				stack = append(stack, r)
			}
		}
	}
	stats.Visited = len(visited)
	return stats
}

// graph adapts an Assembly to Graph.
type graph struct{ a *Assembly }

func (g graph) Peer(p PortRef) (PortRef, bool) { return g.a.Peer(p) }

func (g graph) PortNames(id ID) []string {
	e, ok := g.a.entries[id]
	if !ok {
		return nil
	}
	ports := e.comp.Ports()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}

func (g graph) WorldAnchor(p PortRef) (geom.Anchor, bool) {
	at, err := g.a.Anchor(p)
	return at, err == nil
}

func (g graph) AlignTo(p PortRef, target geom.Anchor) {
	e, port, err := g.a.port(p)
	if err != nil {
		return
	}
	e.pose = geom.Align(e.pose, port.Local, target)
}

// flush runs the scheduler over the assembly and records metrics.
func (a *Assembly) flush() FlushStats {
	if a.sched.Len() == 0 {
		return FlushStats{}
	}
	stats := a.sched.Flush(graph{a: a})
	flushesTotal.Inc()
	realignmentsTotal.Add(float64(stats.Realigned))
	flushSize.Observe(float64(stats.Visited))
	return stats
}
