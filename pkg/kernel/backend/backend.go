// Package backend selects a geometry kernel implementation by name.
package backend

import (
	"fmt"

	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/kernel/manifold"
	"github.com/chazu/pipeworks/pkg/kernel/sdfx"
)

// Names of the available kernels.
const (
	SDFX     = "sdfx"
	Manifold = "manifold"
)

// New returns the named kernel. cells sets the sdfx marching-cubes
// resolution; manifold meshes exactly and ignores it. Manifold is only
// available in builds tagged manifold.
func New(name string, cells int) (kernel.Kernel, error) {
	switch name {
	case "", SDFX:
		if cells > 0 {
			return sdfx.New(sdfx.WithCells(cells)), nil
		}
		return sdfx.New(), nil
	case Manifold:
		return manifold.New()
	}
	return nil, fmt.Errorf("backend: unknown kernel %q", name)
}
