package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chazu/pipeworks/pkg/assembly"
	"github.com/chazu/pipeworks/pkg/assets"
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/config"
	"github.com/chazu/pipeworks/pkg/engine"
	"github.com/chazu/pipeworks/pkg/kernel"
	"github.com/chazu/pipeworks/pkg/kernel/backend"
	"github.com/chazu/pipeworks/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to
// components that have none of their own.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
// The assembly from the last successful evaluation stays live so parameter
// edits can be applied to it.
type App struct {
	ctx    context.Context
	cfg    config.Config
	logger *slog.Logger
	engine *engine.Engine
	kernel kernel.Kernel

	mu  sync.Mutex
	asm *assembly.Assembly
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	Indices   []uint32  `json:"indices"`
	Component string    `json:"component"`
	Color     string    `json:"color"`
	Selected  bool      `json:"selected"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line      int    `json:"line"`
	Col       int    `json:"col"`
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
	// Pending lists components whose geometry is still building.
	Pending []string `json:"pending"`
}

func newResult() EvalResult {
	return EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
		Pending:  []string{},
	}
}

// NewApp creates an App with the built-in settings.
func NewApp() *App {
	app, err := NewAppWithConfig(config.Default(), slog.Default())
	if err != nil {
		// Defaults use the embedded catalog, which always parses.
		panic(err)
	}
	return app
}

// NewAppWithConfig creates an App from loaded settings.
func NewAppWithConfig(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cat := catalog.Default()
	if cfg.Catalog != "" {
		c, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		cat = c
	}
	k, err := backend.New(cfg.Mesh.Kernel, cfg.Mesh.Cells)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return &App{
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

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// shutdown releases the live assembly's workers.
func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.asm != nil {
		a.asm.Close()
		a.asm = nil
	}
}

func (a *App) baseContext() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// Evaluate takes Lisp source and returns mesh data + errors.
// This is the primary binding called by the frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()

	// Step 1: Evaluate the Lisp source into an assembly.
	asm, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.logger.Error("evaluate failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 3: Let background geometry finish, then replace the live assembly.
	a.settle(asm)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.asm != nil {
		a.asm.Close()
	}
	a.asm = asm

	// Step 4: Tessellate into frontend meshes.
	return a.render(result)
}

// SetParam changes one parameter of a component in the live assembly and
// returns the updated scene. A rejected value leaves the scene as it was
// and is reported in Errors.
func (a *App) SetParam(component, key string, value float64) EvalResult {
	result := newResult()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.asm == nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: "nothing has been evaluated yet"})
		return result
	}

	key = strings.ReplaceAll(key, "-", "_")
	br, err := a.asm.SetParam(assembly.ID(component), key, value)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error(), Component: component})
		return a.render(result)
	}
	a.logger.Debug("parameter set", "component", component, "key", key, "value", value,
		"async", br.Async, "realigned", br.Flush.Realigned)

	a.settle(a.asm)
	return a.render(result)
}

// Select marks a component as selected, or clears it.
func (a *App) Select(component string, on bool) EvalResult {
	result := newResult()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.asm == nil {
		return result
	}
	if err := a.asm.Select(assembly.ID(component), on); err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error(), Component: component})
	}
	return a.render(result)
}

// Refresh applies any background results that have arrived and returns
// the current scene. The frontend polls it while Pending is non-empty.
func (a *App) Refresh() EvalResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.asm == nil {
		return newResult()
	}
	a.asm.Drain()
	return a.render(newResult())
}

// settle waits for background geometry up to the worker timeout. Jobs still
// running afterwards are reported as pending.
func (a *App) settle(asm *assembly.Assembly) {
	ctx := a.baseContext()
	if t := a.cfg.Worker.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	if err := asm.Wait(ctx); err != nil {
		a.logger.Warn("background geometry still pending", "error", err)
	}
}

// render tessellates the live assembly into result. Callers hold mu.
func (a *App) render(result EvalResult) EvalResult {
	for _, w := range engine.Warnings(a.asm) {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Message:   w.Message,
			Component: string(w.Component),
		})
	}

	views := a.asm.Views()
	byID := make(map[string]assembly.View, len(views))
	for _, v := range views {
		byID[string(v.ID)] = v
		if v.Pending {
			result.Pending = append(result.Pending, string(v.ID))
		}
		if v.Err != nil {
			result.Warnings = append(result.Warnings, EvalErrorData{
				Message:   v.Err.Error(),
				Component: string(v.ID),
			})
		}
	}

	meshes, err := tessellate.Tessellate(a.baseContext(), a.asm, a.kernel, tessellate.Options{Cells: a.cfg.Mesh.Cells})
	if err != nil {
		a.logger.Error("tessellate failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	for i, m := range meshes {
		color := m.Color
		if color == "" {
			color = colorPalette[i%len(colorPalette)]
		}
		result.Meshes = append(result.Meshes, MeshData{
			Vertices:  m.Vertices,
			Normals:   m.Normals,
			Indices:   m.Indices,
			Component: m.Component,
			Color:     color,
			Selected:  byID[m.Component].Selected,
		})
	}
	return result
}
