// Package retry wraps a fallible operation with bounded retries, an
// exponential backoff schedule and a wall-clock deadline. Exhausting
// either bound is fatal: the caller is expected to log and exit(1),
// since a translation failure must never silently produce a partial
// book.
//
// Grounded on original_source/translation_service.py's
// retry_with_tenacity decorator (exact backoff formula and
// deadline-truncation logic) and the teacher's translator/client.go
// WithRetry attempt-loop shape.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds the bounds from spec §4.5.
type Config struct {
	MaxRetries       int           // default 10
	WallClockBudget  time.Duration // default 18 minutes
	WaitBase         time.Duration // default 1s
	WaitMin          time.Duration // default 3s
	WaitMax          time.Duration // default 30s
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      10,
		WallClockBudget: 18 * time.Minute,
		WaitBase:        1 * time.Second,
		WaitMin:         3 * time.Second,
		WaitMax:         30 * time.Second,
	}
}

// ErrExhausted is returned when retries or the wall-clock budget run
// out. Callers are expected to log it and terminate the process with a
// non-zero exit code (spec §4.5: "the wrapper logs a fatal error and
// terminates the process").
type ErrExhausted struct {
	Attempts int
	Elapsed  time.Duration
	Budget   time.Duration
	LastErr  error
	Reason   string // "retries", "deadline" or "fatal"
}

func (e *ErrExhausted) Error() string {
	if e.Reason == "deadline" {
		return fmt.Sprintf("exceeded total time limit of %.1f minutes after %d attempts: %v",
			e.Budget.Minutes(), e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("failed after %d retries: %v", e.Attempts, e.LastErr)
}

func (e *ErrExhausted) Unwrap() error { return e.LastErr }

// IsFatal lets callers classify an error as non-retriable (e.g. a 401)
// without the retry package importing llmclient.
type IsFatal func(error) bool

// sleeper is overridable in tests so backoff doesn't actually block.
type sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doWithClock runs op with bounded retries until it succeeds, a fatal
// error is observed, or retries/deadline are exhausted (returning
// *ErrExhausted). now and sleep are injected for deterministic testing;
// Do is the package-level wrapper that supplies real ones.
func doWithClock(ctx context.Context, cfg Config, isFatal IsFatal, now func() time.Time, sleep sleeper, op func(attempt int) (any, error)) (any, error) {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultConfig()
	}

	start := now()
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		elapsed := now().Sub(start)
		if elapsed >= cfg.WallClockBudget {
			return nil, &ErrExhausted{Attempts: attempt - 1, Elapsed: elapsed, Budget: cfg.WallClockBudget, LastErr: lastErr, Reason: "deadline"}
		}

		result, err := op(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isFatal != nil && isFatal(err) {
			return nil, &ErrExhausted{Attempts: attempt, Elapsed: now().Sub(start), Budget: cfg.WallClockBudget, LastErr: err, Reason: "fatal"}
		}

		if attempt >= cfg.MaxRetries {
			return nil, &ErrExhausted{Attempts: attempt, Elapsed: now().Sub(start), Budget: cfg.WallClockBudget, LastErr: err, Reason: "retries"}
		}

		elapsed = now().Sub(start)
		if elapsed >= cfg.WallClockBudget {
			return nil, &ErrExhausted{Attempts: attempt, Elapsed: elapsed, Budget: cfg.WallClockBudget, LastErr: err, Reason: "deadline"}
		}

		wait := backoff(cfg, attempt)
		if elapsed+wait >= cfg.WallClockBudget {
			wait = cfg.WallClockBudget - elapsed - time.Second
			if wait < 0 {
				wait = 0
			}
		}

		if wait > 0 {
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}

	return nil, &ErrExhausted{Attempts: cfg.MaxRetries, Elapsed: now().Sub(start), Budget: cfg.WallClockBudget, LastErr: lastErr, Reason: "retries"}
}

// backoff computes wait = clamp(wait_base * 2^(attempt-1), wait_min, wait_max).
func backoff(cfg Config, attempt int) time.Duration {
	wait := cfg.WaitBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= cfg.WaitMax {
			wait = cfg.WaitMax
			break
		}
	}
	if wait > cfg.WaitMax {
		wait = cfg.WaitMax
	}
	if wait < cfg.WaitMin {
		wait = cfg.WaitMin
	}
	return wait
}

// Do runs op with bounded retries, real time and real sleeping.
func Do(ctx context.Context, cfg Config, isFatal IsFatal, op func(attempt int) (any, error)) (any, error) {
	return doWithClock(ctx, cfg, isFatal, time.Now, realSleep, op)
}

// DoValue is a generic convenience wrapper around Do for a typed result.
func DoValue[T any](ctx context.Context, cfg Config, isFatal IsFatal, op func(attempt int) (T, error)) (T, error) {
	var zero T
	v, err := Do(ctx, cfg, isFatal, func(attempt int) (any, error) {
		return op(attempt)
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// AsExhausted reports whether err is an *ErrExhausted, for callers that
// need to distinguish "give up, exit(1)" from other error shapes.
func AsExhausted(err error) (*ErrExhausted, bool) {
	var e *ErrExhausted
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
