// Command pipeworks builds piping assemblies from scripts and exports them
// as STL.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/pipeworks/pkg/assembly"
	"github.com/chazu/pipeworks/pkg/assets"
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/config"
	"github.com/chazu/pipeworks/pkg/engine"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/kernel/backend"
	"github.com/chazu/pipeworks/pkg/kernel/sdfx"
	"github.com/chazu/pipeworks/pkg/tessellate"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	cells      int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "pipeworks",
		Short: "Build vacuum piping assemblies from scripts",
		Long: `pipeworks evaluates assembly scripts, in which fittings are created and
joined port to port, and exports the resulting geometry.

Examples:
  pipeworks export examples/pipe-and-bend.pipe -o line.stl
  pipeworks inspect examples/manifold.pipe
  pipeworks watch examples/pumping-station.pipe -o station.stl --metrics-addr :9090`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "pipeworks.yaml", "settings file; missing means defaults")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&f.cells, "cells", 0, "override the marching-cubes resolution")

	root.AddCommand(newExportCmd(f), newInspectCmd(f), newWatchCmd(f))
	return root
}

// pipeline is everything needed to turn a script into meshes.
type pipeline struct {
	cfg    config.Config
	logger *slog.Logger
	engine *engine.Engine
	kernel kernel.Kernel
}

func newPipeline(f *rootFlags, stderr io.Writer) (*pipeline, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.cells > 0 {
		cfg.Mesh.Cells = f.cells
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.Log, stderr)

	cat := catalog.Default()
	if cfg.Catalog != "" {
		if cat, err = catalog.Load(cfg.Catalog); err != nil {
			return nil, err
		}
	}
	k, err := backend.New(cfg.Mesh.Kernel, cfg.Mesh.Cells)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		cfg:    cfg,
		logger: logger,
		kernel: k,
		engine: engine.NewEngine(engine.Options{
			Kernel:        k,
			Catalog:       cat,
			Loader:        assets.NewLoader(cfg.Assets.BaseDir, nil),
			Resolution:    cfg.Mesh.Resolution(),
			WorkerTimeout: cfg.Worker.Timeout,
			WorkerBuffer:  cfg.Worker.Buffer,
			Logger:        logger,
		}),
	}, nil
}

// evaluate runs the script at path and waits for its background geometry.
// The caller closes the returned assembly.
func (p *pipeline) evaluate(ctx context.Context, path string) (*assembly.Assembly, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, evalErrs, err := p.engine.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		errs := make([]error, 0, len(evalErrs))
		for _, e := range evalErrs {
			errs = append(errs, fmt.Errorf("%s:%w", filepath.Base(path), e))
		}
		return nil, errors.Join(errs...)
	}

	wctx := ctx
	if t := p.cfg.Worker.Timeout; t > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	if err := a.Wait(wctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: waiting for geometry: %w", path, err)
	}
	for _, id := range a.IDs() {
		if err := a.LastError(id); err != nil {
			p.logger.Warn("component has no geometry", "component", id, "error", err)
		}
	}
	return a, nil
}

// export evaluates script and writes every component into one STL file.
func (p *pipeline) export(ctx context.Context, script, out string, noFlanges bool) error {
	start := time.Now()
	a, err := p.evaluate(ctx, script)
	if err != nil {
		return err
	}
	defer a.Close()

	meshes, err := tessellate.Tessellate(ctx, a, p.kernel, tessellate.Options{
		Cells:     p.cfg.Mesh.Cells,
		NoFlanges: noFlanges,
	})
	if err != nil {
		return err
	}
	if err := sdfx.SaveSTL(out, meshes...); err != nil {
		return err
	}

	triangles := 0
	for _, m := range meshes {
		triangles += m.TriangleCount()
	}
	p.logger.Info("exported", "script", script, "out", out,
		"components", a.Len(), "triangles", triangles, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
