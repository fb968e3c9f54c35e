package main

import (
	"fmt"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// 1. Empty editor: empty string -> 0 meshes, 0 errors.
//    (TestE2EEmptySource already exists; this verifies additional invariants.)
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for empty source, got %d", len(result.Errors))
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected 0 warnings for empty source, got %d", len(result.Warnings))
	}
	// Ensure slices are non-nil (JSON should serialize as [] not null).
	if result.Meshes == nil {
		t.Error("Meshes should be non-nil empty slice, got nil")
	}
	if result.Errors == nil {
		t.Error("Errors should be non-nil empty slice, got nil")
	}
	if result.Warnings == nil {
		t.Error("Warnings should be non-nil empty slice, got nil")
	}
	if result.Pending == nil {
		t.Error("Pending should be non-nil empty slice, got nil")
	}
}

// ---------------------------------------------------------------------------
// 2. Syntax error mid-expression: unmatched parens -> eval error, 0 meshes.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := newTestApp(t)

	// Put valid code on line 1, broken code on line 2 so line info is meaningful.
	source := "(+ 1 2)\n(pipe \"p\" :diameter 0.1"
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on syntax error, got %d", len(result.Meshes))
	}

	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	t.Logf("syntax error: line=%d, col=%d, message=%q", e.Line, e.Col, e.Message)
}

func TestE2ESyntaxErrorKeepsPreviousScene(t *testing.T) {
	app := newTestApp(t)
	evalExample(t, app, "examples/pipe-and-bend.pipe")

	if r := app.Evaluate("(+ 1 2"); len(r.Errors) == 0 {
		t.Fatal("expected eval error")
	}
	// The last good assembly stays live for edits.
	r := app.SetParam("feed", "length", 1.2)
	if len(r.Errors) != 0 {
		t.Fatalf("expected edit on previous scene to succeed, got %v", r.Errors)
	}
	if len(r.Meshes) != 2 {
		t.Errorf("expected 2 meshes, got %d", len(r.Meshes))
	}
}

// ---------------------------------------------------------------------------
// 3. Undefined references: connecting a component that was never created.
// ---------------------------------------------------------------------------

func TestE2EUndefinedComponentReference(t *testing.T) {
	app := newTestApp(t)

	source := `
(pipe "feed" :diameter 0.1)
(connect "feed" :out "nonexistent" :in)
`
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval error for undefined component reference")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "nonexistent") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected error mentioning 'nonexistent', got: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

func TestE2EUnknownPort(t *testing.T) {
	app := newTestApp(t)

	source := `
(pipe "a" :diameter 0.1)
(bend "b" :diameter 0.1)
(connect "a" :branch "b" :in)
`
	result := app.Evaluate(source)
	if len(result.Errors) == 0 {
		t.Fatal("expected eval error for a port the pipe does not have")
	}
	if !strings.Contains(result.Errors[0].Message, "branch") {
		t.Errorf("expected error mentioning the port, got %q", result.Errors[0].Message)
	}
}

// ---------------------------------------------------------------------------
// 4. Degenerate dimensions: rejected with a parameter error, never a panic.
// ---------------------------------------------------------------------------

func TestE2EDegenerateDimensions(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"zero length", `(pipe "p" :diameter 0.1 :length 0)`},
		{"negative length", `(pipe "p" :diameter 0.1 :length -1)`},
		{"zero diameter", `(pipe "p" :diameter 0)`},
		{"wall thicker than radius", `(pipe "p" :diameter 0.1 :thickness 0.05)`},
		{"zero chamber", `(sphere-chamber "c" :diameter 0)`},
	}
	app := newTestApp(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := app.Evaluate(tt.source)
			if len(result.Errors) == 0 {
				t.Fatalf("expected an error, got %d meshes", len(result.Meshes))
			}
			if len(result.Meshes) != 0 {
				t.Errorf("expected 0 meshes, got %d", len(result.Meshes))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 5. Rapid evaluation (debounce simulation): no panics, no data races.
//    Run with `go test -race` to detect data races.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	// Calls are sequential; zygomys sandboxes are not created concurrently.
	app := newTestApp(t)

	sources := []string{
		`(pipe "a" :diameter 0.1 :length 0.2)`,
		`(pipe "b" :diameter 0.063 :length 0.3)`,
		`(+ 1 2)`,
		``,
		`(bend "c" :diameter 0.1)`,
		`(tee "d" :diameter 0.1 :branch 0.063)`,
		`(+ 100 200)`,
		``,
		`(reducer "e" :inlet 0.1 :outlet 0.063)`,
		`(pipe "f" :diameter 0.1)`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			result := app.Evaluate(source)
			if len(result.Errors) != 0 {
				t.Errorf("iteration %d: unexpected errors %v", i, result.Errors)
			}
		}()
	}
}

func TestE2ERapidEvaluationAlternating(t *testing.T) {
	// Ensures the engine recovers cleanly between error and success states.
	app := newTestApp(t)

	sources := []string{
		`(pipe "ok" :diameter 0.1)`,
		`(pipe "broken"`,
		``,
		`(connect "missing" :out "gone" :in)`,
		`(bend "also-ok" :diameter 0.1)`,
		`(+ 1 2)`,
		`;; just a comment`,
		`(pipe "fine" :diameter 0.063)`,
		`(undefined-func 1 2 3)`,
		`(pipe "last" :diameter 0.1)`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked on source %q: %v", i, source, r)
				}
			}()
			_ = app.Evaluate(source)
		}()
	}

	result := app.Refresh()
	if len(result.Meshes) != 1 || result.Meshes[0].Component != "last" {
		t.Errorf("expected the last good scene to be live, got %d meshes", len(result.Meshes))
	}
}

// ---------------------------------------------------------------------------
// 6. Comments only: source that is only comments -> 0 meshes, 0 errors.
// ---------------------------------------------------------------------------

func TestE2ECommentsOnly(t *testing.T) {
	app := newTestApp(t)

	source := `
;; This is a comment
;; Another comment
; single semicolon comment
`
	result := app.Evaluate(source)

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for comments-only source, got %d: %v", len(result.Errors), result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for comments-only source, got %d", len(result.Meshes))
	}
}

// ---------------------------------------------------------------------------
// 7. Nested expressions: def with arithmetic, then use in a fitting.
// ---------------------------------------------------------------------------

func TestE2ENestedArithmeticDef(t *testing.T) {
	app := newTestApp(t)

	source := `
(def run 1.2)
(def half (/ run 2))
(pipe "a" :diameter 0.1 :length half)
(pipe "b" :diameter 0.1 :length (- run half))
(connect "a" :out "b" :in)
`
	result := app.Evaluate(source)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
	_, hi := zExtent(componentsOf(result)["b"])
	if hi < 0.85 || hi > 0.95 {
		t.Errorf("b should end at z=0.9, got %g", hi)
	}
}

func TestE2EFloatingPointDimensions(t *testing.T) {
	app := newTestApp(t)

	result := app.Evaluate(`(pipe "precise" :diameter 0.063 :length 0.4567 :thickness 0.0021)`)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if len(result.Meshes[0].Vertices) == 0 {
		t.Error("floating-point dimension mesh should have vertices")
	}
}

// ---------------------------------------------------------------------------
// 8. Diagnostics: mismatched diameters are a warning, not an error.
// ---------------------------------------------------------------------------

func TestE2EDiameterMismatchWarning(t *testing.T) {
	app := newTestApp(t)

	result := app.Evaluate(`
(pipe "big" :diameter 0.1)
(pipe "small" :diameter 0.063)
(connect "big" :out "small" :in)
`)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}
	if len(result.Meshes) != 2 {
		t.Errorf("expected 2 meshes, got %d", len(result.Meshes))
	}
}

func TestE2EColorPaletteWrapping(t *testing.T) {
	app := newTestApp(t)

	// Create more components than the palette has colors to ensure wrapping works.
	var b strings.Builder
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&b, "(pipe \"p%d\" :diameter 0.1 :length 0.2)\n", i)
		if i > 1 {
			fmt.Fprintf(&b, "(connect \"p%d\" :out \"p%d\" :in)\n", i-1, i)
		}
	}
	result := app.Evaluate(b.String())

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 9 {
		t.Fatalf("expected 9 meshes, got %d", len(result.Meshes))
	}
	for _, m := range result.Meshes {
		if m.Color == "" {
			t.Errorf("mesh %q should have a color assigned (palette wrapping)", m.Component)
		}
	}
	if result.Meshes[0].Color != result.Meshes[8].Color {
		t.Errorf("palette should wrap: %q vs %q", result.Meshes[0].Color, result.Meshes[8].Color)
	}
}
