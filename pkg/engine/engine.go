// Package engine provides the Lisp evaluation engine for pipeworks.
// It wraps zygomys in a sandboxed environment and produces an Assembly
// from user source code.
package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/pipeworks/pkg/assembly"
	"github.com/chazu/pipeworks/pkg/assets"
	"github.com/chazu/pipeworks/pkg/catalog"
	"github.com/chazu/pipeworks/pkg/csg"
	"github.com/chazu/pipeworks/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line      int
	Col       int
	Message   string
	Component assembly.ID
}

// Warnings converts the assembly's validation warnings.
func Warnings(a *assembly.Assembly) []EvalWarning {
	var out []EvalWarning
	for _, f := range a.Validate() {
		if f.Severity != assembly.SeverityWarning {
			continue
		}
		out = append(out, EvalWarning{Message: f.Error(), Component: f.Component})
	}
	return out
}

// Options configures the assemblies an Engine builds. Kernel is required.
type Options struct {
	Kernel        kernel.Kernel
	Catalog       *catalog.Catalog
	Loader        assets.Loader
	Resolution    csg.Resolution
	WorkerTimeout time.Duration
	WorkerBuffer  int
	// Timeout bounds one evaluation; zero means EvalTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Engine wraps the zygomys interpreter for pipeworks evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment and a fresh assembly for determinism.
type Engine struct {
	opts Options

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = EvalTimeout
	}
	return &Engine{opts: opts}
}

// Evaluate takes Lisp source code and produces a new Assembly. Background
// geometry may still be building when it returns; callers wait on the
// assembly and Close it when done.
//
// Return semantics:
//   - On success: returns assembly + nil errors + nil error
//   - On parse/eval failure: returns nil assembly + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*assembly.Assembly, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		a, evalErrs, err := e.evaluate(source)
		ch <- evalResult{asm: a, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.opts.Timeout)
}

func (e *Engine) newAssembly() *assembly.Assembly {
	return assembly.New(assembly.Options{
		Kernel:        e.opts.Kernel,
		Catalog:       e.opts.Catalog,
		Loader:        e.opts.Loader,
		Resolution:    e.opts.Resolution,
		WorkerTimeout: e.opts.WorkerTimeout,
		WorkerBuffer:  e.opts.WorkerBuffer,
		Logger:        e.opts.Logger,
	})
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*assembly.Assembly, []EvalError, error) {
	a := e.newAssembly()

	// Empty source is a valid program that produces an empty assembly.
	if strings.TrimSpace(source) == "" {
		return a, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, a)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		a.Close()
		return nil, parseZygomysError(err), nil
	}

	if _, err := env.Run(); err != nil {
		a.Close()
		return nil, parseZygomysError(err), nil
	}

	e.opts.Logger.Debug("script evaluated", "components", a.Len(), "links", len(a.Links()))
	return a, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatchIndex(msg); m != nil {
			line, _ := strconv.Atoi(msg[m[2]:m[3]])
			detail := strings.TrimSpace(msg[m[4]:m[5]])
			// Keep any text zygomys printed ahead of the location.
			if prefix := strings.TrimSpace(msg[:m[0]]); prefix != "" {
				detail = strings.TrimSpace(prefix + " " + detail)
			}
			return []EvalError{{Line: line, Message: detail}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
