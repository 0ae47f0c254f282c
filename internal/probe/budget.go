package probe

import (
	"context"
	"time"
)

// Budget is the single monotonic time tracker for one probe run. It
// owns a cancellation context that fires when the total budget is
// exhausted; callers consult ShouldContinue before scheduling more
// work.
type Budget struct {
	start        time.Time
	total        time.Duration
	minRemaining time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewBudget starts the clock. The returned budget must be released
// when the probe finishes.
func NewBudget(parent context.Context, total, minRemaining time.Duration) *Budget {
	ctx, cancel := context.WithTimeout(parent, total)
	return &Budget{
		start:        time.Now(),
		total:        total,
		minRemaining: minRemaining,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Context returns the cancellation context attached to every fetch.
func (b *Budget) Context() context.Context {
	return b.ctx
}

// Remaining returns the unspent part of the budget; never negative.
func (b *Budget) Remaining() time.Duration {
	remaining := b.total - time.Since(b.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldContinue reports whether enough budget remains to schedule
// additional work.
func (b *Budget) ShouldContinue() bool {
	return b.Remaining() >= b.minRemaining
}

// ElapsedMs returns the wall time consumed so far in milliseconds.
func (b *Budget) ElapsedMs() int64 {
	return time.Since(b.start).Milliseconds()
}

// Release frees the context resources.
func (b *Budget) Release() {
	b.cancel()
}
