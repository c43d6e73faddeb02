package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Executor runs a single side-effecting operation with a configured
// retry policy. It has no durability of its own; the workflow engine
// records outcomes per step cursor.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor backed by the given registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		logger:   logger.With("module", "activity_executor"),
		sleep:    sleepContext,
	}
}

// Execute runs the named activity until it succeeds, is marked
// terminal, or the policy's attempts are exhausted. Failure returns a
// *Error carrying the attempt count and the last cause.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage, policy RetryPolicy) (json.RawMessage, int, error) {
	fn, err := e.registry.Get(name)
	if err != nil {
		return nil, 0, &Error{Name: name, Attempts: 0, Err: err}
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := e.runAttempt(ctx, fn, input, policy.AttemptTimeout)
		if err == nil {
			payload, marshalErr := json.Marshal(result)
			if marshalErr != nil {
				return nil, attempt, &Error{Name: name, Attempts: attempt, Err: fmt.Errorf("failed to marshal activity result: %w", marshalErr)}
			}

			return payload, attempt, nil
		}

		lastErr = err

		if IsTerminal(err) {
			e.logger.WarnContext(ctx, "Activity failed terminally, not retrying",
				"activity", name, "attempt", attempt, "error", err)

			return nil, attempt, &Error{Name: name, Attempts: attempt, Err: err}
		}

		e.logger.WarnContext(ctx, "Activity attempt failed",
			"activity", name, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if attempt < maxAttempts {
			if sleepErr := e.sleep(ctx, policy.Interval(attempt)); sleepErr != nil {
				return nil, attempt, &Error{Name: name, Attempts: attempt, Err: sleepErr}
			}
		}
	}

	return nil, maxAttempts, &Error{Name: name, Attempts: maxAttempts, Err: lastErr}
}

func (e *Executor) runAttempt(ctx context.Context, fn Func, input json.RawMessage, timeout time.Duration) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return fn(ctx, input)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
