package assembly

import (
	"context"
	"errors"

	"github.com/chazu/pipeworks/pkg/assets"
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/worker"
)

// ErrClosed is returned by Wait when the worker pool has shut down.
var ErrClosed = errors.New("assembly: worker pool closed")

// build produces e's geometry. Synchronous geometry replaces the solid at
// once; boolean and asset geometry is handed to the worker pool and
// reported later through Drain or Wait. It reports whether a job was
// submitted.
func (a *Assembly) build(e *entry) (bool, error) {
	g, err := e.comp.Build(a.k)
	if err != nil {
		return false, err
	}
	switch {
	case g.Boolean != nil:
		e.pending = a.pool.Submit(string(e.id), csg.Task(a.k, *g.Boolean, a.res))
		e.solid = nil
		return true, nil
	case g.Asset != nil:
		e.pending = a.pool.Submit(string(e.id), assets.Task(a.loader, g.Asset.URL, g.Asset.Scale))
		e.solid = nil
		return true, nil
	default:
		a.pool.Cancel(string(e.id))
		e.pending = worker.Token{}
		e.solid = g.Solid
		e.mesh = nil
		e.lastErr = nil
		return false, nil
	}
}

// Drain applies every result that has already arrived without blocking and
// returns how many were current.
func (a *Assembly) Drain() int {
	n := 0
	for {
		select {
		case r, ok := <-a.pool.Results():
			if !ok {
				return n
			}
			if a.apply(r) {
				n++
			}
		default:
			return n
		}
	}
}

// Wait blocks until no background job is outstanding, applying results as
// they arrive.
func (a *Assembly) Wait(ctx context.Context) error {
	for a.pool.Pending() > 0 {
		select {
		case r, ok := <-a.pool.Results():
			if !ok {
				return ErrClosed
			}
			a.apply(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// apply installs a worker result. Stale results are dropped. A failure is
// recorded and the previous mesh is kept.
func (a *Assembly) apply(r worker.Result) bool {
	if !a.pool.Accept(r) {
		a.logger.Debug("stale geometry result dropped", "id", r.Token.Owner, "seq", r.Token.Seq)
		return false
	}
	e, ok := a.entries[ID(r.Token.Owner)]
	if !ok || e.pending != r.Token {
		return false
	}
	e.pending = worker.Token{}

	if r.Err != nil {
		e.lastErr = r.Err
		a.logger.Warn("background geometry failed", "id", e.id, "kind", e.comp.Kind(), "error", r.Err)
		return true
	}
	m, err := kernel.Decode(r.Payload)
	if err != nil {
		e.lastErr = &worker.Failure{Owner: r.Token.Owner, Cause: err}
		a.logger.Warn("background geometry unreadable", "id", e.id, "error", err)
		return true
	}
	m.Component = string(e.id)
	e.mesh = m
	e.lastErr = nil
	a.logger.Debug("background geometry applied", "id", e.id, "triangles", m.TriangleCount(), "took", r.Duration)
	return true
}
