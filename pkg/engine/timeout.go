package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/kerf/pkg/graph"
)

// DefaultTimeout limits a single evaluation when Engine.Timeout is zero.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when an evaluation runs past its limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned to a caller whose evaluation finished after
	// a newer one had started.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult passes evaluation results through channels.
type evalResult struct {
	graph  *graph.Scene
	errors []EvalError
	err    error
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

// wait waits for a result from ch until the engine's timeout expires or
// ctx is done. Results of generation gen are discarded once a newer
// evaluation has started.
//
// On timeout the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func (e *Engine) wait(ctx context.Context, ch <-chan evalResult, gen uint64) (*graph.Scene, []EvalError, error) {
	limit := e.timeout()
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.graph, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, limit)

	case <-ctx.Done():
		return nil, nil, fmt.Errorf("evaluation abandoned: %w", ctx.Err())
	}
}
