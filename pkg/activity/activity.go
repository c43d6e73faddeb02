// Package activity provides the executor for retryable units of
// side-effecting work invoked by workflow definitions.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Func is one registered activity implementation. The returned value
// is marshalled and recorded so replays observe the same result.
type Func func(ctx context.Context, input json.RawMessage) (any, error)

// RetryPolicy bounds retries of a failing activity.
type RetryPolicy struct {
	MaxAttempts        int           `json:"max_attempts"        validate:"required,min=1"`
	InitialInterval    time.Duration `json:"initial_interval"`
	BackoffCoefficient float64       `json:"backoff_coefficient"`
	MaxInterval        time.Duration `json:"max_interval"`
	AttemptTimeout     time.Duration `json:"attempt_timeout"`
}

// DefaultRetryPolicy matches the policy applied to most side effects:
// three attempts with doubling backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        3,
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaxInterval:        time.Minute,
	}
}

// Interval returns the backoff delay before retry attempt n (1-indexed,
// attempt 1 is the first retry after the initial failure).
func (p RetryPolicy) Interval(attempt int) time.Duration {
	interval := p.InitialInterval
	coefficient := p.BackoffCoefficient

	if coefficient <= 0 {
		coefficient = 1
	}

	for range attempt - 1 {
		interval = time.Duration(float64(interval) * coefficient)
		if p.MaxInterval > 0 && interval > p.MaxInterval {
			return p.MaxInterval
		}
	}

	if p.MaxInterval > 0 && interval > p.MaxInterval {
		return p.MaxInterval
	}

	return interval
}

// Error is the typed failure surfaced to workflow logic after an
// activity exhausts its retries or fails terminally.
type Error struct {
	Name     string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("activity %s failed after %d attempt(s): %v", e.Name, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// terminalError marks a failure that must not be retried, e.g. an
// email hard bounce.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the executor stops retrying immediately.
func Terminal(err error) error {
	return &terminalError{err: err}
}

// IsTerminal reports whether err (anywhere in its chain) was marked
// non-retryable.
func IsTerminal(err error) bool {
	var te *terminalError

	return errors.As(err, &te)
}
