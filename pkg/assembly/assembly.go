// Package assembly owns a set of fittings, the connections between their
// ports and the propagation that keeps connected fittings mated as
// parameters and poses change.
//
// Components live in an arena keyed by ID. Connections are stored once, in
// a symmetric table from port to peer port, so a component never refers to
// another directly. An Assembly is not safe for concurrent use: background
// geometry jobs report back through Drain and Wait, which the owner calls
// from the same goroutine that edits the assembly.
package assembly

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chazu/pipeworks/pkg/assets"
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/component"
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/worker"
	"github.com/google/uuid"
)

var (
	ErrUnknownComponent = errors.New("assembly: unknown component")
	ErrUnknownPort      = errors.New("assembly: unknown port")
	ErrDuplicateID      = errors.New("assembly: duplicate component id")
	ErrSelfConnection   = errors.New("assembly: cannot connect a component to itself")
	ErrPortInUse        = errors.New("assembly: port already connected")
	ErrCycle            = errors.New("assembly: connection would close a cycle")
	ErrNotConnected     = errors.New("assembly: port not connected")
	ErrNotChamber       = errors.New("assembly: component has no outlets")
)

// ID names a component within an assembly.
type ID string

// Short returns a truncated ID for display.
func (id ID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// PortRef addresses one port of one component.
type PortRef struct {
	Component ID
	Port      string
}

func (p PortRef) String() string {
	return string(p.Component) + ":" + p.Port
}

// Link is one connection, reported with its ends in a stable order.
type Link struct {
	A, B PortRef
}

type entry struct {
	id   ID
	comp component.Component
	pose geom.Pose

	solid   kernel.Solid // synchronous geometry
	mesh    *kernel.Mesh // last background result, local frame
	pending worker.Token
	lastErr error

	selected bool
	color    string
}

// Options configures an Assembly. Only Kernel is required.
type Options struct {
	Kernel     kernel.Kernel
	Catalog    *catalog.Catalog
	Loader     assets.Loader
	Resolution csg.Resolution
	// WorkerTimeout bounds each background job.
	WorkerTimeout time.Duration
	// WorkerBuffer sizes the worker pool's result channel.
	WorkerBuffer int
	Logger       *slog.Logger
}

// Assembly is the arena of components and their connections.
type Assembly struct {
	k      kernel.Kernel
	cat    *catalog.Catalog
	loader assets.Loader
	pool   *worker.Pool
	res    csg.Resolution
	logger *slog.Logger

	entries map[ID]*entry
	order   []ID
	links   map[PortRef]PortRef
	sched   *Scheduler
}

// New creates an empty assembly.
func New(opts Options) *Assembly {
	a := &Assembly{
		k:       opts.Kernel,
		cat:     opts.Catalog,
		loader:  opts.Loader,
		res:     opts.Resolution,
		logger:  opts.Logger,
		entries: make(map[ID]*entry),
		links:   make(map[PortRef]PortRef),
		sched:   NewScheduler(),
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.cat == nil {
		a.cat = catalog.Default()
	}
	if a.loader == nil {
		a.loader = assets.NewLoader(".", nil)
	}
	if a.res.CellSize <= 0 {
		a.res = csg.DefaultResolution
	}
	// Owner keys are component IDs, so the pool is never shared with
	// another assembly.
	a.pool = worker.New(worker.Options{Timeout: opts.WorkerTimeout, Buffer: opts.WorkerBuffer, Logger: a.logger})
	return a
}

// Close stops the assembly's worker pool.
func (a *Assembly) Close() {
	a.pool.Close()
}

// Kernel returns the geometry kernel the assembly builds with.
func (a *Assembly) Kernel() kernel.Kernel { return a.k }

// Catalog returns the catalog fittings are sized from.
func (a *Assembly) Catalog() *catalog.Catalog { return a.cat }

// Add places c at the origin under name and builds its geometry. An empty
// name is replaced by a fresh UUID.
func (a *Assembly) Add(name string, c component.Component) (ID, error) {
	id := ID(name)
	if id == "" {
		id = ID(uuid.NewString())
	}
	if _, dup := a.entries[id]; dup {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	e := &entry{id: id, comp: c, pose: geom.Identity()}
	if _, err := a.build(e); err != nil {
		return "", err
	}
	a.entries[id] = e
	a.order = append(a.order, id)
	a.logger.Debug("component added", "id", id, "kind", c.Kind())
	return id, nil
}

// Remove disconnects every port of id, cancels its background job and
// drops it from the arena.
func (a *Assembly) Remove(id ID) error {
	e, err := a.entry(id)
	if err != nil {
		return err
	}
	for _, p := range e.comp.Ports() {
		a.unlink(PortRef{Component: id, Port: p.Name})
	}
	for ref := range a.links {
		if ref.Component == id {
			a.unlink(ref)
		}
	}
	a.pool.Cancel(string(id))
	delete(a.entries, id)
	for i, o := range a.order {
		if o == id {
			a.order = append(a.order[:i:i], a.order[i+1:]...)
			break
		}
	}
	a.logger.Debug("component removed", "id", id)
	return nil
}

func (a *Assembly) entry(id ID) (*entry, error) {
	e, ok := a.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	return e, nil
}

// Len returns the number of components.
func (a *Assembly) Len() int { return len(a.order) }

// IDs lists component IDs in insertion order.
func (a *Assembly) IDs() []ID {
	return append([]ID(nil), a.order...)
}

// Component returns the component stored under id.
func (a *Assembly) Component(id ID) (component.Component, bool) {
	e, ok := a.entries[id]
	if !ok {
		return nil, false
	}
	return e.comp, true
}

// Pose returns the world pose of id.
func (a *Assembly) Pose(id ID) (geom.Pose, bool) {
	e, ok := a.entries[id]
	if !ok {
		return geom.Pose{}, false
	}
	return e.pose, true
}

// View is a read-only snapshot of one component's state.
type View struct {
	ID        ID
	Component component.Component
	Pose      geom.Pose
	Solid     kernel.Solid
	Mesh      *kernel.Mesh
	Pending   bool
	Err       error
	Selected  bool
	Color     string
}

// Get returns the view of id.
func (a *Assembly) Get(id ID) (View, bool) {
	e, ok := a.entries[id]
	if !ok {
		return View{}, false
	}
	return e.view(), true
}

// Views lists every component in insertion order.
func (a *Assembly) Views() []View {
	out := make([]View, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.entries[id].view())
	}
	return out
}

func (e *entry) view() View {
	return View{
		ID:        e.id,
		Component: e.comp,
		Pose:      e.pose,
		Solid:     e.solid,
		Mesh:      e.mesh,
		Pending:   e.pending.Valid(),
		Err:       e.lastErr,
		Selected:  e.selected,
		Color:     e.color,
	}
}

// Links lists every connection once, sorted.
func (a *Assembly) Links() []Link {
	var out []Link
	for p, q := range a.links {
		if less(p, q) {
			out = append(out, Link{A: p, B: q})
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].A, out[j].A) })
	return out
}

func less(p, q PortRef) bool {
	if p.Component != q.Component {
		return p.Component < q.Component
	}
	return p.Port < q.Port
}

// Select marks id as selected or not.
func (a *Assembly) Select(id ID, on bool) error {
	e, err := a.entry(id)
	if err != nil {
		return err
	}
	e.selected = on
	return nil
}

// SetColor sets the display color of id.
func (a *Assembly) SetColor(id ID, color string) error {
	e, err := a.entry(id)
	if err != nil {
		return err
	}
	e.color = color
	return nil
}

// LastError returns the most recent background failure for id, cleared by
// the next successful result.
func (a *Assembly) LastError(id ID) error {
	if e, ok := a.entries[id]; ok {
		return e.lastErr
	}
	return nil
}
