// Package worker runs one-shot background tasks on behalf of named owners.
//
// Each owner has at most one current task. Submitting again for the same
// owner cancels the previous task's context and invalidates its token, so a
// result that arrives late is recognised as stale by Accept and dropped.
// Tasks take no input beyond their context and return an opaque byte
// payload; callers serialize whatever they need to cross the boundary.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrFailed marks every error reported through a Result.
var ErrFailed = errors.New("worker: task failed")

// Task is the unit of background work.
type Task func(ctx context.Context) ([]byte, error)

// Token identifies one submission. Seq is never zero for a real submission.
type Token struct {
	Owner string
	Seq   uint64
}

// Valid reports whether the token came from a successful Submit.
func (t Token) Valid() bool { return t.Seq != 0 }

// Result is what a finished task reports.
type Result struct {
	Token    Token
	Payload  []byte
	Err      error
	Duration time.Duration
}

// Failure wraps the cause of a failed task.
type Failure struct {
	Owner string
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("worker: task for %s failed: %v", f.Owner, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Is makes errors.Is(err, ErrFailed) hold for every Failure.
func (f *Failure) Is(target error) bool { return target == ErrFailed }

// Options configures a Pool.
type Options struct {
	// Timeout bounds each task. Zero means no limit.
	Timeout time.Duration
	// Buffer is the capacity of the results channel.
	Buffer int
	Logger *slog.Logger
}

type job struct {
	token  Token
	cancel context.CancelFunc
}

// Pool dispatches tasks onto goroutines and reports their results on a
// single channel.
type Pool struct {
	mu      sync.Mutex
	seq     uint64
	jobs    map[string]*job
	closed  bool
	done    chan struct{}
	results chan Result
	wg      sync.WaitGroup

	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Pool.
func New(opts Options) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = 16
	}
	return &Pool{
		jobs:    make(map[string]*job),
		done:    make(chan struct{}),
		results: make(chan Result, buf),
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// Submit starts t for owner and returns its token. Any task still running
// for owner is cancelled and its token stops being current. After Close,
// Submit returns an invalid token and runs nothing.
func (p *Pool) Submit(owner string, t Task) Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Token{}
	}

	if prev, ok := p.jobs[owner]; ok {
		prev.cancel()
		jobsTotal.WithLabelValues("superseded").Inc()
		p.logger.Debug("worker task superseded", "owner", owner, "seq", prev.token.Seq)
	}

	p.seq++
	tok := Token{Owner: owner, Seq: p.seq}

	var ctx context.Context
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), p.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	p.jobs[owner] = &job{token: tok, cancel: cancel}

	p.wg.Add(1)
	go p.run(ctx, cancel, tok, t)
	return tok
}

func (p *Pool) run(ctx context.Context, cancel context.CancelFunc, tok Token, t Task) {
	defer p.wg.Done()
	defer cancel()

	start := time.Now()
	payload, err := call(ctx, t)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)
	jobDuration.Observe(elapsed.Seconds())

	res := Result{Token: tok, Duration: elapsed}
	if err != nil {
		res.Err = &Failure{Owner: tok.Owner, Cause: err}
	} else {
		res.Payload = payload
	}

	select {
	case p.results <- res:
	case <-p.done:
	}
}

// call runs t, converting a panic into an error.
func call(ctx context.Context, t Task) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return t(ctx)
}

// Results delivers every finished task, current or stale. The channel is
// closed by Close.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Accept reports whether r belongs to its owner's current submission. An
// accepted result retires the submission, so a second Accept of the same
// result reports false.
func (p *Pool) Accept(r Result) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[r.Token.Owner]
	if !ok || j.token != r.Token {
		jobsTotal.WithLabelValues("stale").Inc()
		return false
	}
	delete(p.jobs, r.Token.Owner)
	if r.Err != nil {
		jobsTotal.WithLabelValues("failure").Inc()
	} else {
		jobsTotal.WithLabelValues("success").Inc()
	}
	return true
}

// Cancel stops the current task for owner, if any. Its result will be
// reported stale.
func (p *Pool) Cancel(owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j, ok := p.jobs[owner]; ok {
		j.cancel()
		delete(p.jobs, owner)
	}
}

// Current returns the current token for owner.
func (p *Pool) Current(owner string) (Token, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[owner]
	if !ok {
		return Token{}, false
	}
	return j.token, true
}

// Pending counts owners whose current submission has not been accepted.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Close cancels all tasks, waits for their goroutines and closes the
// results channel. Undelivered results are discarded.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for owner, j := range p.jobs {
		j.cancel()
		delete(p.jobs, owner)
	}
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.results)
}
