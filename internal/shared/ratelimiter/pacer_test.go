package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_FirstWaitIsImmediate(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Hour)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_EnforcesMinimumGap(t *testing.T) {
	t.Parallel()

	gap := 30 * time.Millisecond
	p := NewPacer(gap)
	ctx := context.Background()

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
		stamps = append(stamps, time.Now())
	}

	for i := 1; i < len(stamps); i++ {
		// rate.Limiter has sub-millisecond jitter; allow a small tolerance.
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), gap-5*time.Millisecond, "gap %d", i)
	}
}

func TestPacer_ZeroGapDisablesPacing(t *testing.T) {
	t.Parallel()

	p := NewPacer(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_ContextCancellation(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacer_DeadlineShorterThanGapWaitsForDeadline(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Second)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPacer_CanceledContextReturnsImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 初回でもキャンセル済みなら待たずにエラーを返す
	err := NewPacer(time.Second).Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacingPolicy_NewLimiterReturnsFreshPacer(t *testing.T) {
	t.Parallel()

	policy := PacingPolicy{MinGap: time.Hour}
	ctx := context.Background()

	// Each run starts with an immediate first call even though the gap is long.
	for i := 0; i < 3; i++ {
		start := time.Now()
		require.NoError(t, policy.NewLimiter().Wait(ctx))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	}
}

type countingLimiter struct {
	calls int
	err   error
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.calls++
	return c.err
}

func TestChain_Wait(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")

	tests := []struct {
		name       string
		first      *countingLimiter
		second     *countingLimiter
		wantErr    error
		wantSecond int
	}{
		{"all limiters are awaited", &countingLimiter{}, &countingLimiter{}, nil, 1},
		{"stops at first error", &countingLimiter{err: errStop}, &countingLimiter{}, errStop, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Chain{tt.first, nil, tt.second}
			err := c.Wait(context.Background())

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, tt.first.calls)
			assert.Equal(t, tt.wantSecond, tt.second.calls)
		})
	}
}

func TestBudgetedPolicy_SharesBudgetAcrossRuns(t *testing.T) {
	t.Parallel()

	budget := &countingLimiter{}
	policy := BudgetedPolicy{Pacing: PacingPolicy{}, Budget: budget}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, policy.NewLimiter().Wait(ctx))
	}
	assert.Equal(t, 3, budget.calls)
}
