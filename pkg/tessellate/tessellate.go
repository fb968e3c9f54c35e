// Package tessellate turns an assembly into world-space triangle meshes
// using a geometry kernel. One mesh is produced per component, body and
// flanges together.
package tessellate

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chazu/pipeworks/pkg/assembly"
	"github.com/chazu/pipeworks/pkg/component"
	"github.com/chazu/pipeworks/pkg/geom"
	"github.com/chazu/pipeworks/pkg/kernel"
	"golang.org/x/sync/errgroup"
)

// Options tunes tessellation.
type Options struct {
	// Cells is the marching-cubes resolution for synchronous bodies and
	// flanges; zero uses the kernel default.
	Cells int
	// Limit caps concurrent meshing; zero uses GOMAXPROCS.
	Limit int
	// NoFlanges leaves flange rings out.
	NoFlanges bool
}

// job is everything needed to mesh one component, copied out of the
// assembly so workers never touch it.
type job struct {
	id      assembly.ID
	color   string
	pose    geom.Pose
	solid   kernel.Solid
	mesh    *kernel.Mesh
	flanges []kernel.Solid
}

// Tessellate produces one world-space mesh per component of a, in insertion
// order. Components with a cached background mesh use it; others are
// meshed from their solid. A component whose geometry is still pending and
// has no previous mesh contributes only its flanges, or nothing.
//
// The assembly is read on the calling goroutine before any meshing starts
// and is never modified.
func Tessellate(ctx context.Context, a *assembly.Assembly, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if a == nil {
		return nil, nil
	}
	jobs := collect(a, k, opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	out := make([]*kernel.Mesh, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := meshJob(k, j, opts.Cells)
			if err != nil {
				return fmt.Errorf("tessellate: component %s: %w", j.id.Short(), err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	meshes := out[:0]
	for _, m := range out {
		if m != nil {
			meshes = append(meshes, m)
		}
	}
	return meshes, nil
}

func collect(a *assembly.Assembly, k kernel.Kernel, opts Options) []job {
	views := a.Views()
	jobs := make([]job, 0, len(views))
	for _, v := range views {
		j := job{id: v.ID, color: v.Color, pose: v.Pose, solid: v.Solid, mesh: v.Mesh}
		if !opts.NoFlanges {
			for _, f := range v.Component.Flanges() {
				p, ok := component.PortByName(v.Component, f.Port)
				if !ok {
					continue
				}
				j.flanges = append(j.flanges, component.FlangeSolid(k, f, p.Local))
			}
		}
		jobs = append(jobs, j)
	}
	return jobs
}

// meshJob assembles one component in its local frame and moves it into
// place.
func meshJob(k kernel.Kernel, j job, cells int) (*kernel.Mesh, error) {
	local := &kernel.Mesh{}
	switch {
	case j.mesh != nil:
		local.Append(j.mesh)
	case j.solid != nil:
		m, err := kernel.MeshWithCells(k, j.solid, cells)
		if err != nil {
			return nil, err
		}
		local.Append(m)
	}
	for _, f := range j.flanges {
		m, err := kernel.MeshWithCells(k, f, cells)
		if err != nil {
			return nil, fmt.Errorf("flange: %w", err)
		}
		local.Append(m)
	}
	if local.IsEmpty() {
		return nil, nil
	}

	world := local.Transformed(j.pose)
	world.Component = string(j.id)
	world.Color = j.color
	return world, nil
}

// Merge concatenates meshes into one, for single-file export.
func Merge(meshes []*kernel.Mesh) *kernel.Mesh {
	out := &kernel.Mesh{}
	for _, m := range meshes {
		out.Append(m)
	}
	return out
}
