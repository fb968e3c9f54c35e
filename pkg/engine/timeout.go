package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/pipeworks/pkg/assembly"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	ErrTimeout    = errors.New("evaluation timed out")
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	asm    *assembly.Assembly
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds limit. It uses a generation counter to discard
// stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; whatever assembly it
// eventually produces is closed rather than returned.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	limit time.Duration,
) (*assembly.Assembly, []EvalError, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			discard(res)
			return nil, nil, ErrSuperseded
		}
		return res.asm, res.errors, res.err

	case <-timer.C:
		go func() { discard(<-ch) }()
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, limit)
	}
}

func discard(res evalResult) {
	if res.asm != nil {
		res.asm.Close()
	}
}
