// Package workflow provides a small durable-step runner: named steps
// execute at-least-once with retry, and a completed step's result is
// memoized so re-entering the workflow never re-runs it. Step bodies
// must therefore be idempotent.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/envdrift/internal/config"
)

// Runner executes the steps of one workflow instance. A runner is
// scoped to a single comparison and must not be shared across them:
// memoization is keyed by step name only.
type Runner struct {
	logger      zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration

	mu   sync.Mutex
	memo map[string]json.RawMessage

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewRunner creates a step runner with the configured retry policy.
func NewRunner(cfg config.WorkflowConfig, logger zerolog.Logger) *Runner {
	return &Runner{
		logger:      logger.With().Str("component", "WorkflowRunner").Logger(),
		maxAttempts: cfg.StepMaxAttempts,
		baseDelay:   time.Duration(cfg.StepBaseDelayMs) * time.Millisecond,
		memo:        make(map[string]json.RawMessage),
		sleep:       sleepCtx,
	}
}

// Do runs a named step with retry and memoization. A previously
// completed step returns its recorded result without re-executing the
// body. Results round-trip through JSON, so step outputs must be
// serializable.
func Do[T any](ctx context.Context, r *Runner, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if recorded, ok := r.recorded(name); ok {
		var out T
		if err := json.Unmarshal(recorded, &out); err != nil {
			return zero, fmt.Errorf("step %s: failed to decode recorded result: %w", name, err)
		}
		r.logger.Debug().Str("step", name).Msg("Step replayed from record")
		return out, nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		out, err := fn(ctx)
		if err == nil {
			encoded, marshalErr := json.Marshal(out)
			if marshalErr != nil {
				return zero, fmt.Errorf("step %s: failed to encode result: %w", name, marshalErr)
			}
			r.record(name, encoded)
			return out, nil
		}

		lastErr = err
		r.logger.Warn().
			Str("step", name).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Err(err).
			Msg("Step attempt failed")

		if attempt < r.maxAttempts {
			if sleepErr := r.sleep(ctx, r.backoff(attempt)); sleepErr != nil {
				return zero, sleepErr
			}
		}
	}

	return zero, fmt.Errorf("step %s failed after %d attempt(s): %w", name, r.maxAttempts, lastErr)
}

// Sleep waits for the given duration, honoring context cancellation.
// Step bodies use it instead of time.Sleep so tests can run fast.
func (r *Runner) Sleep(ctx context.Context, d time.Duration) error {
	return r.sleep(ctx, d)
}

// backoff doubles the base delay per completed attempt.
func (r *Runner) backoff(attempt int) time.Duration {
	return r.baseDelay << (attempt - 1)
}

func (r *Runner) recorded(name string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recorded, ok := r.memo[name]
	return recorded, ok
}

func (r *Runner) record(name string, result json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo[name] = result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
