package main

import (
	"os"
	"testing"

	"github.com/chazu/pipeworks/pkg/config"
)

// newTestApp returns an App meshing at low resolution.
func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Mesh.Cells = 24
	cfg.Mesh.CellSize = 0.02
	cfg.Mesh.MinCells = 16
	cfg.Mesh.MaxCells = 32
	app, err := NewAppWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewAppWithConfig: %v", err)
	}
	t.Cleanup(func() { app.shutdown(nil) })
	return app
}

func evalExample(t *testing.T, app *App, path string) EvalResult {
	t.Helper()
	source, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	result := app.Evaluate(string(source))
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	return result
}

func componentsOf(result EvalResult) map[string]MeshData {
	out := make(map[string]MeshData, len(result.Meshes))
	for _, m := range result.Meshes {
		out[m.Component] = m
	}
	return out
}

// TestE2EPipeAndBendExample exercises the full pipeline: Lisp source →
// engine → assembly → tessellate → meshes. This is the same path that the
// Wails Evaluate binding takes, but without the Wails runtime.
func TestE2EPipeAndBendExample(t *testing.T) {
	app := newTestApp(t)
	result := evalExample(t, app, "examples/pipe-and-bend.pipe")

	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
	got := componentsOf(result)
	for _, name := range []string{"feed", "elbow"} {
		m, ok := got[name]
		if !ok {
			t.Errorf("missing mesh for component %q", name)
			continue
		}
		if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
			t.Errorf("component %q: empty geometry", name)
		}
		if m.Color == "" {
			t.Errorf("component %q: no color assigned", name)
		}
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

// TestE2EPumpingStationExample loads the valve and pump models in the
// background.
func TestE2EPumpingStationExample(t *testing.T) {
	app := newTestApp(t)
	result := evalExample(t, app, "examples/pumping-station.pipe")

	if len(result.Pending) != 0 {
		t.Fatalf("expected all geometry built, pending: %v", result.Pending)
	}
	got := componentsOf(result)
	for _, name := range []string{"chamber", "spool", "gate", "elbow", "turbo"} {
		if _, ok := got[name]; !ok {
			t.Errorf("missing mesh for component %q", name)
		}
	}
	if got["elbow"].Color != "#9B59B6" {
		t.Errorf("elbow color = %q, want the scripted color", got["elbow"].Color)
	}
	for _, w := range result.Warnings {
		t.Errorf("unexpected warning: %s", w.Message)
	}
}

func TestE2EManifoldExample(t *testing.T) {
	app := newTestApp(t)
	result := evalExample(t, app, "examples/manifold.pipe")

	if len(result.Meshes) != 7 {
		t.Fatalf("expected 7 meshes, got %d", len(result.Meshes))
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`(pipe "p" :diameter 0.1`)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESinglePipe ensures a minimal source renders one mesh.
func TestE2ESinglePipe(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`(pipe "feed" :diameter 0.1 :length 0.5)`)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if result.Meshes[0].Component != "feed" {
		t.Errorf("expected component 'feed', got %q", result.Meshes[0].Component)
	}
}

func zExtent(m MeshData) (lo, hi float32) {
	lo, hi = m.Vertices[2], m.Vertices[2]
	for i := 2; i < len(m.Vertices); i += 3 {
		lo = min(lo, m.Vertices[i])
		hi = max(hi, m.Vertices[i])
	}
	return lo, hi
}

// TestE2ESetParamMovesDownstream lengthens a pipe through the binding and
// checks the connected bend follows.
func TestE2ESetParamMovesDownstream(t *testing.T) {
	app := newTestApp(t)
	before := componentsOf(evalExample(t, app, "examples/pipe-and-bend.pipe"))

	after := app.SetParam("feed", "length", 1.5)
	if len(after.Errors) > 0 {
		t.Fatalf("SetParam errors: %v", after.Errors)
	}
	got := componentsOf(after)

	_, feedBefore := zExtent(before["feed"])
	_, feedAfter := zExtent(got["feed"])
	if d := feedAfter - feedBefore; d < 0.2 || d > 0.3 {
		t.Errorf("feed out end moved by %g, want about 0.25", d)
	}
	elbowBefore, _ := zExtent(before["elbow"])
	elbowAfter, _ := zExtent(got["elbow"])
	if d := elbowAfter - elbowBefore; d < 0.2 || d > 0.3 {
		t.Errorf("elbow moved by %g, want about 0.25", d)
	}
}

func TestE2ESetParamRejected(t *testing.T) {
	app := newTestApp(t)
	evalExample(t, app, "examples/pipe-and-bend.pipe")

	result := app.SetParam("feed", "thickness", 0.2)
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if result.Errors[0].Component != "feed" {
		t.Errorf("error should name the component, got %q", result.Errors[0].Component)
	}
	// The scene is still rendered unchanged.
	if len(result.Meshes) != 2 {
		t.Errorf("expected 2 meshes after rejected edit, got %d", len(result.Meshes))
	}
}

func TestE2ESetParamBeforeEvaluate(t *testing.T) {
	app := newTestApp(t)
	result := app.SetParam("feed", "length", 1)
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
}

func TestE2ESelect(t *testing.T) {
	app := newTestApp(t)
	evalExample(t, app, "examples/pipe-and-bend.pipe")

	got := componentsOf(app.Select("elbow", true))
	if !got["elbow"].Selected || got["feed"].Selected {
		t.Errorf("selection not reflected: feed=%v elbow=%v", got["feed"].Selected, got["elbow"].Selected)
	}
	if r := app.Select("nope", true); len(r.Errors) != 1 {
		t.Errorf("expected error selecting unknown component, got %v", r.Errors)
	}
}
