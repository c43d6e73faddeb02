package activity

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotRegistered indicates a workflow requested an unknown activity.
var ErrNotRegistered = errors.New("activity not registered")

// Registry maps activity names to their implementations. Workflow
// definitions register their activities at application start-up.
type Registry struct {
	logger     *slog.Logger
	activities map[string]Func
}

// NewRegistry creates an empty activity registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger.With("module", "activity_registry"),
		activities: make(map[string]Func),
	}
}

// Register adds an activity under the given name, replacing any
// previous registration.
func (r *Registry) Register(name string, fn Func) {
	r.activities[name] = fn
	r.logger.Debug("Registered activity", "name", name)
}

// Get resolves an activity by name.
func (r *Registry) Get(name string) (Func, error) {
	fn, ok := r.activities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	return fn, nil
}
