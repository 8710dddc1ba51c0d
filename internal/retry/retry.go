// Package retry runs an operation a bounded number of times with a backoff
// between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrNoAttempts is returned when a Policy allows zero attempts.
var ErrNoAttempts = errors.New("retry: no attempts allowed")

// Policy bounds Do.
type Policy struct {
	Attempts int
	// Backoff returns the wait before attempt n+1 after attempt n (1-based)
	// failed. Nil means no wait.
	Backoff func(attempt int) time.Duration
}

// Linear waits base×attempt.
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return base * time.Duration(attempt) }
}

// Permanent wraps an error that must not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx ends while waiting. It returns the last error from fn
// (unwrapped from Permanent) or the context error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	if p.Attempts <= 0 {
		return ErrNoAttempts
	}
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.Attempts || p.Backoff == nil {
			continue
		}
		wait := p.Backoff(attempt)
		if wait <= 0 {
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
