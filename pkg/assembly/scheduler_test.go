package assembly

import (
	"testing"

	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

// fakeGraph is a port graph with two-port nodes whose anchors never move.
// It records which ports were aligned, in order.
type fakeGraph struct {
	ports   map[ID][]string
	links   map[PortRef]PortRef
	aligned []PortRef
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{ports: map[ID][]string{}, links: map[PortRef]PortRef{}}
}

func (g *fakeGraph) node(id ID, ports ...string) { g.ports[id] = ports }

func (g *fakeGraph) link(p, q PortRef) {
	g.links[p] = q
	g.links[q] = p
}

func (g *fakeGraph) Peer(p PortRef) (PortRef, bool) {
	q, ok := g.links[p]
	return q, ok
}

func (g *fakeGraph) PortNames(id ID) []string { return g.ports[id] }

func (g *fakeGraph) WorldAnchor(p PortRef) (geom.Anchor, bool) {
	if _, ok := g.ports[p.Component]; !ok {
		return geom.Anchor{}, false
	}
	return geom.Anchor{Direction: r3.Vec{Z: 1}}, true
}

func (g *fakeGraph) AlignTo(p PortRef, _ geom.Anchor) { g.aligned = append(g.aligned, p) }

func TestSchedulerRequestIsASet(t *testing.T) {
	s := NewScheduler()
	s.Request(ref("a", "out"))
	s.Request(ref("a", "out"))
	s.Request(ref("a", "in"))
	assert.Equal(t, 2, s.Len())

	s.Flush(newFakeGraph())
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerChain(t *testing.T) {
	g := newFakeGraph()
	ids := []ID{"a", "b", "c", "d"}
	for i, id := range ids {
		g.node(id, "in", "out")
		if i > 0 {
			g.link(ref(ids[i-1], "out"), ref(id, "in"))
		}
	}

	s := NewScheduler()
	s.Request(ref("a", "in"))
	s.Request(ref("a", "out"))
	stats := s.Flush(g)

	assert.Equal(t, FlushStats{Realigned: 3, Visited: 4}, stats)
	assert.Equal(t, []PortRef{ref("b", "in"), ref("c", "in"), ref("d", "in")}, g.aligned)
}

func TestSchedulerSeedsStayFixed(t *testing.T) {
	g := newFakeGraph()
	g.node("a", "in", "out")
	g.node("b", "in", "out")
	g.link(ref("a", "out"), ref("b", "in"))

	s := NewScheduler()
	s.Request(ref("a", "out"))
	s.Request(ref("b", "out"))
	stats := s.Flush(g)

	assert.Equal(t, 0, stats.Realigned)
	assert.Empty(t, g.aligned)
}

// A ring is cut short: every component moves at most once.
func TestSchedulerTerminatesOnCycle(t *testing.T) {
	g := newFakeGraph()
	ids := []ID{"a", "b", "c"}
	for _, id := range ids {
		g.node(id, "in", "out")
	}
	g.link(ref("a", "out"), ref("b", "in"))
	g.link(ref("b", "out"), ref("c", "in"))
	g.link(ref("c", "out"), ref("a", "in"))

	s := NewScheduler()
	s.Request(ref("a", "out"))
	stats := s.Flush(g)

	assert.Equal(t, 2, stats.Realigned)
	assert.Equal(t, 3, stats.Visited)
}

func TestSchedulerBranches(t *testing.T) {
	g := newFakeGraph()
	g.node("hub", "in", "out", "branch", "side")
	for _, leaf := range []ID{"l1", "l2", "l3", "l4"} {
		g.node(leaf, "in", "out")
	}
	g.link(ref("hub", "in"), ref("l1", "out"))
	g.link(ref("hub", "out"), ref("l2", "in"))
	g.link(ref("hub", "branch"), ref("l3", "in"))
	g.link(ref("hub", "side"), ref("l4", "in"))
	g.link(ref("l3", "out"), ref("l4", "out")) // closes a ring through the hub

	s := NewScheduler()
	s.Request(ref("l1", "in"))
	s.Request(ref("l1", "out"))
	stats := s.Flush(g)

	assert.Equal(t, 4, stats.Realigned)
	seen := map[ID]int{}
	for _, p := range g.aligned {
		seen[p.Component]++
	}
	assert.Equal(t, map[ID]int{"hub": 1, "l2": 1, "l3": 1, "l4": 1}, seen)
}

func TestSchedulerSkipsMissingAnchors(t *testing.T) {
	g := newFakeGraph()
	g.node("b", "in", "out")
	g.link(ref("ghost", "out"), ref("b", "in"))

	s := NewScheduler()
	s.Request(ref("ghost", "out"))
	stats := s.Flush(g)
	assert.Equal(t, 0, stats.Realigned)
	assert.Equal(t, 1, stats.Visited)
}
