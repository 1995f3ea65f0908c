// Package retry runs upstream calls a bounded number of times with exponential
// backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultInitial = 200 * time.Millisecond
	defaultMax     = 5 * time.Second
)

// Policy bounds the attempts and backoff of Do.
type Policy struct {
	Attempts int
	Initial  time.Duration // first backoff; doubles after each failure
	Max      time.Duration // backoff cap
	OnRetry  func(attempt int, err error)
}

// New returns a policy with the default 200ms doubling backoff capped at 5s.
func New(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: defaultInitial, Max: defaultMax}
}

// Do calls fn until it succeeds, the attempts are used up, or ctx is done.
// The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	backoff := p.Initial

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, p.Max)
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if maxBackoff > 0 && next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
