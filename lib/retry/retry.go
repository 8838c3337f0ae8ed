// Package retry runs an operation until it succeeds, fails terminally, or
// runs out of attempts.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/xerrors"
)

// Policy bounds a retry loop. The zero value runs the operation once.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier grows the delay between attempts; values below 1 keep it
	// constant.
	Multiplier float64
}

// Func is one attempt. attempt starts at 1.
type Func func(attempt int) error

// ExhaustedError is returned when every attempt failed with a retryable
// error. It wraps the last of them.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %s", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Always retries every error.
func Always(error) bool {
	return true
}

// Do runs fn until it returns nil or an error shouldRetry rejects. Rejected
// errors are returned unchanged; running out of attempts returns an
// *ExhaustedError.
func (p Policy) Do(ctx context.Context, fn Func, shouldRetry func(error) bool) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(attempt)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return xerrors.Errorf("cancelled while retrying: %w", ctx.Err())
		case <-time.After(p.Delay(attempt)):
		}
	}
	return &ExhaustedError{Attempts: maxAttempts, Last: err}
}

// Delay is the pause after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	if p.Multiplier > 1 && attempt > 1 {
		delay = time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
