// Package engine implements the durable workflow engine: it persists
// workflow instances, delivers signals, resumes instances at timers and
// executes activities with at-most-once side effects per logical step.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/models"
)

// Definition is one workflow type. Decide is invoked by the engine each
// time the instance wakes (start, signal, timer, activity result) and
// returns exactly one Decision. Decide must be deterministic given the
// instance phase, state and resume information; all side effects go
// through activities.
type Definition interface {
	Type() models.DefinitionType
	Decide(ctx context.Context, dctx *DecisionContext) (Decision, error)
}

// ResumeKind says why the instance woke up.
type ResumeKind string

const (
	// ResumeStarted is the first decision cycle of a fresh instance
	// (or of a continued one), and the recovery wake-up after a crash
	// between suspension points.
	ResumeStarted ResumeKind = "started"
	// ResumeSignal delivers one consumed signal.
	ResumeSignal ResumeKind = "signal"
	// ResumeTimer fires a durable sleep.
	ResumeTimer ResumeKind = "timer"
	// ResumeTimeout reports a signal wait that elapsed unanswered.
	ResumeTimeout ResumeKind = "timeout"
	// ResumeActivity carries an activity result or typed failure.
	ResumeActivity ResumeKind = "activity"
)

// Resume carries the wake-up cause into Decide.
type Resume struct {
	Kind           ResumeKind
	Signal         *models.Signal
	TimerReason    string
	ActivityName   string
	ActivityResult json.RawMessage
	ActivityError  *activity.Error
}

// DecisionContext is the window a definition has onto its instance.
type DecisionContext struct {
	Instance *models.WorkflowInstance
	Resume   Resume
	Logger   *slog.Logger
	// Now is the engine clock at the start of this decision cycle.
	// Definitions use it instead of time.Now for determinism.
	Now time.Time
}

// Input unmarshals the instance input into v.
func (d *DecisionContext) Input(v any) error {
	if len(d.Instance.Input) == 0 {
		return nil
	}

	err := json.Unmarshal(d.Instance.Input, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal workflow input: %w", err)
	}

	return nil
}

// State unmarshals the instance state into v. A missing state leaves v
// untouched.
func (d *DecisionContext) State(v any) error {
	if len(d.Instance.State) == 0 {
		return nil
	}

	err := json.Unmarshal(d.Instance.State, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal workflow state: %w", err)
	}

	return nil
}

// SetState marshals v as the instance state. The engine persists it
// before the next suspension point.
func (d *DecisionContext) SetState(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	d.Instance.State = data

	return nil
}

// Decision is the single suspension or terminal step a decision cycle
// produces.
type Decision interface {
	isDecision()
}

// Sleep suspends the instance until the given instant.
type Sleep struct {
	Until  time.Time
	Reason string
}

// WaitSignal suspends the instance until one of the named signals
// arrives or the timeout elapses. Queued signals received earlier are
// consumed immediately in receipt order.
type WaitSignal struct {
	Names   []string
	Timeout time.Duration
}

// RunActivity executes a registered activity with the given retry
// policy. The side effect runs at most once per history cursor.
type RunActivity struct {
	Name  string
	Input any
	Retry activity.RetryPolicy
}

// ContinueAsNew replaces the instance input and resets transient
// history, keeping the instance identity. Used to bound state growth
// for indefinite-duration processes.
type ContinueAsNew struct {
	Input any
}

// Complete finishes the instance successfully.
type Complete struct{}

// Cancel finishes the instance as cancelled.
type Cancel struct {
	Reason string
}

// Fail finishes the instance as failed.
type Fail struct {
	Reason string
}

func (Sleep) isDecision()         {}
func (WaitSignal) isDecision()    {}
func (RunActivity) isDecision()   {}
func (ContinueAsNew) isDecision() {}
func (Complete) isDecision()      {}
func (Cancel) isDecision()        {}
func (Fail) isDecision()          {}
