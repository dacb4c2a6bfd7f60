package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum gap between the starts of consecutive calls.
// The first Wait returns immediately; every later Wait returns no earlier than
// minGap after the previous one returned.
// A Pacer belongs to a single sequential unit of work and is not shared.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a Pacer. A non-positive minGap disables pacing.
func NewPacer(minGap time.Duration) *Pacer {
	if minGap <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minGap), 1)}
}

// Wait blocks until the next call may start or ctx is done.
// On cancellation it returns ctx.Err() and gives the reserved slot back.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := p.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PacingPolicy builds a fresh Pacer for each unit of work.
type PacingPolicy struct {
	MinGap time.Duration
}

// NewLimiter returns a Pacer honoring the policy's minimum gap.
func (p PacingPolicy) NewLimiter() RateLimiterInterface {
	return NewPacer(p.MinGap)
}

// Chain waits on every limiter in order, e.g. a per-run pacer followed by a
// per-key budget shared across runs.
type Chain []RateLimiterInterface

// Wait waits on each limiter in turn and stops at the first error.
func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if l == nil {
			continue
		}
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BudgetedPolicy pairs a per-run pacing policy with a budget shared by every run,
// so concurrent runs against one API key stay under its per-minute ceiling.
type BudgetedPolicy struct {
	Pacing PacingPolicy
	Budget RateLimiterInterface
}

// NewLimiter returns a fresh pacer chained with the shared budget.
func (p BudgetedPolicy) NewLimiter() RateLimiterInterface {
	return Chain{p.Pacing.NewLimiter(), p.Budget}
}
