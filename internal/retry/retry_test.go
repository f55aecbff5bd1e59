package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func noopSleep(_ context.Context, _ time.Duration) error { return nil }

func TestDoWithClock_SucceedsFirstTry(t *testing.T) {
	cfg := DefaultConfig()
	calls := 0
	result, err := doWithClock(context.Background(), cfg, nil, fakeClock(time.Now(), time.Second), noopSleep, func(attempt int) (any, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoWithClock_RetriesThenSucceeds(t *testing.T) {
	cfg := DefaultConfig()
	calls := 0
	result, err := doWithClock(context.Background(), cfg, nil, fakeClock(time.Now(), time.Second), noopSleep, func(attempt int) (any, error) {
		calls++
		if attempt < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDoWithClock_ExhaustsRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	_, err := doWithClock(context.Background(), cfg, nil, fakeClock(time.Now(), time.Second), noopSleep, func(attempt int) (any, error) {
		return nil, errors.New("always fails")
	})
	require.Error(t, err)
	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, "retries", exhausted.Reason)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestDoWithClock_FatalStopsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	calls := 0
	isFatal := func(err error) bool { return err.Error() == "fatal" }
	_, err := doWithClock(context.Background(), cfg, isFatal, fakeClock(time.Now(), time.Second), noopSleep, func(attempt int) (any, error) {
		calls++
		return nil, errors.New("fatal")
	})
	require.Error(t, err)
	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, "fatal", exhausted.Reason)
	assert.Equal(t, 1, calls)
}

func TestDoWithClock_DeadlineExceeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WallClockBudget = 5 * time.Second
	_, err := doWithClock(context.Background(), cfg, nil, fakeClock(time.Now(), 10*time.Second), noopSleep, func(attempt int) (any, error) {
		return nil, errors.New("always fails")
	})
	require.Error(t, err)
	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, "deadline", exhausted.Reason)
}

func TestBackoff_ExponentialClampedToMax(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.WaitMin, backoff(cfg, 1))
	assert.Equal(t, cfg.WaitMax, backoff(cfg, 10))
}
