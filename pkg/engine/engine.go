package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/eventbus"
	"github.com/outfield-crm/outfield/pkg/events"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/otelhelper"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

// Static error variables for linter compliance.
var (
	ErrDefinitionNotRegistered = errors.New("workflow definition not registered")
	ErrWorkflowIDRequired      = errors.New("workflow ID is required")
	ErrActivityInterrupted     = errors.New("activity interrupted before an outcome was recorded")
)

const waitTimeoutReason = "signal-wait-timeout"

// Engine owns workflow instances: it persists their state, delivers
// signals, resumes them at timers and executes activities with
// at-most-once side effects per history cursor.
type Engine struct {
	persistence persistence.Persistence
	executor    *activity.Executor
	bus         eventbus.EventPublisher
	definitions map[models.DefinitionType]Definition
	logger      *slog.Logger
	validate    *validator.Validate
	tracer      trace.Tracer
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a workflow engine. The bus receives lifecycle
// notifications; publish failures are logged, never fatal.
func NewEngine(p persistence.Persistence, executor *activity.Executor, bus eventbus.EventPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		executor:    executor,
		bus:         bus,
		definitions: make(map[models.DefinitionType]Definition),
		logger:      logger.With("module", "workflow_engine"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		tracer:      otel.Tracer("outfield-engine"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RegisterDefinition adds a workflow definition to the engine.
func (e *Engine) RegisterDefinition(def Definition) {
	e.definitions[def.Type()] = def
}

// SetClock overrides the engine clock. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Start creates and runs a workflow instance. Starting an already
// running workflowID is a no-op that returns the existing instance.
func (e *Engine) Start(ctx context.Context, workflowID string, definitionType models.DefinitionType, input any) (*models.WorkflowInstance, error) {
	if workflowID == "" {
		return nil, ErrWorkflowIDRequired
	}

	if _, ok := e.definitions[definitionType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotRegistered, definitionType)
	}

	unlock := e.lock(workflowID)

	existing, err := e.persistence.InstanceRepository().GetByID(ctx, workflowID)
	if err == nil && !existing.Status.Terminal() {
		e.logger.InfoContext(ctx, "Workflow already running, returning existing instance", "workflow_id", workflowID)
		unlock()

		return existing, nil
	}

	if err != nil && !errors.Is(err, persistence.ErrInstanceNotFound) {
		unlock()

		return nil, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		unlock()

		return nil, fmt.Errorf("failed to marshal workflow input: %w", err)
	}

	instance := &models.WorkflowInstance{
		ID:             workflowID,
		DefinitionType: definitionType,
		Status:         models.InstanceStatusRunning,
		Input:          payload,
		CreatedAt:      e.now(),
	}

	err = e.validate.Struct(instance)
	if err != nil {
		unlock()

		return nil, fmt.Errorf("invalid workflow instance: %w", err)
	}

	// Replacing a terminal instance: clear its recorded history first.
	if existing != nil {
		if err := e.clearHistory(ctx, workflowID); err != nil {
			unlock()

			return nil, err
		}
	}

	err = e.persistence.InstanceRepository().Save(ctx, instance)
	if err != nil {
		unlock()

		return nil, err
	}

	e.publish(ctx, workflowID, events.WorkflowStarted{
		BaseEvent:      events.NewBaseEvent(events.WorkflowStartedEvent, workflowID),
		DefinitionType: definitionType,
	})

	unlock()
	e.wake(ctx, workflowID, Resume{Kind: ResumeStarted})

	return instance, nil
}

// Signal enqueues a named signal for the instance and runs a decision
// cycle. Signals for unknown or terminal instances are dropped and
// logged; webhook delivery is best-effort by design.
func (e *Engine) Signal(ctx context.Context, workflowID, name string, payload any) error {
	unlock := e.lock(workflowID)

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, workflowID)
	if errors.Is(err, persistence.ErrInstanceNotFound) {
		e.logger.InfoContext(ctx, "Dropping signal for unknown workflow", "workflow_id", workflowID, "signal", name)
		unlock()

		return nil
	}

	if err != nil {
		unlock()

		return err
	}

	if instance.Status.Terminal() {
		e.logger.InfoContext(ctx, "Dropping signal for terminal workflow",
			"workflow_id", workflowID, "signal", name, "status", instance.Status)
		unlock()

		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		unlock()

		return fmt.Errorf("failed to marshal signal payload: %w", err)
	}

	instance.SignalQueue = append(instance.SignalQueue, &models.Signal{
		ID:         uuid.New().String(),
		Name:       name,
		Payload:    data,
		ReceivedAt: e.now(),
	})

	err = e.persistence.InstanceRepository().Save(ctx, instance)
	if err != nil {
		unlock()

		return err
	}

	unlock()
	e.wake(ctx, workflowID, Resume{Kind: ResumeSignal})

	return nil
}

// ResumeDue fires every persisted timer due at or before the given
// instant. Safe to re-run; fired timers are deleted before the
// decision cycle executes.
func (e *Engine) ResumeDue(ctx context.Context, at time.Time) error {
	timers, err := e.persistence.TimerRepository().DueBefore(ctx, at)
	if err != nil {
		return fmt.Errorf("failed to list due timers: %w", err)
	}

	for _, timer := range timers {
		err := e.persistence.TimerRepository().Delete(ctx, timer.WorkflowID)
		if err != nil {
			return err
		}

		e.wake(ctx, timer.WorkflowID, Resume{Kind: ResumeTimer, TimerReason: timer.Reason})
	}

	return nil
}

// RecoverRunning wakes running instances that lost their in-flight
// decision cycle to a crash: instances without a pending timer are
// re-decided (recorded attempts prevent duplicate side effects);
// waiting instances with a lost timeout timer get it recreated.
func (e *Engine) RecoverRunning(ctx context.Context) error {
	running, err := e.persistence.InstanceRepository().ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("failed to list running instances: %w", err)
	}

	for _, instance := range running {
		_, err := e.persistence.TimerRepository().GetByWorkflow(ctx, instance.ID)
		if err == nil {
			continue // Timer pending, poller will resume it.
		}

		if !errors.Is(err, persistence.ErrTimerNotFound) {
			return err
		}

		if instance.Waiting != nil {
			err = e.persistence.TimerRepository().Save(ctx, &models.Timer{
				WorkflowID: instance.ID,
				FireAt:     instance.Waiting.TimeoutAt,
				Reason:     waitTimeoutReason,
			})
			if err != nil {
				return err
			}

			continue
		}

		e.logger.InfoContext(ctx, "Recovering interrupted workflow instance", "workflow_id", instance.ID)
		e.wake(ctx, instance.ID, Resume{Kind: ResumeStarted})
	}

	return nil
}

// wake runs one serialized decision cycle for the instance. Errors are
// absorbed into the instance status; the engine never propagates
// workflow failures to signal or timer callers.
func (e *Engine) wake(ctx context.Context, workflowID string, resume Resume) {
	unlock := e.lock(workflowID)
	defer unlock()

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, workflowID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load instance for decision cycle", "workflow_id", workflowID, "error", err)

		return
	}

	if instance.Status.Terminal() {
		return
	}

	definition, ok := e.definitions[instance.DefinitionType]
	if !ok {
		e.logger.ErrorContext(ctx, "No definition registered for instance",
			"workflow_id", workflowID, "definition_type", instance.DefinitionType)

		return
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.decision_cycle",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.DefinitionTypeKey, string(instance.DefinitionType)),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", workflowID, "definition_type", instance.DefinitionType)

	// A signal arriving while the instance is not blocked on a wait
	// stays buffered until the next WaitSignal decision.
	if instance.Waiting == nil && resume.Kind == ResumeSignal {
		return
	}

	// Resolve an in-flight signal wait before deciding anything.
	if instance.Waiting != nil {
		resolved, proceed, err := e.resolveWait(ctx, instance, resume)
		if err != nil {
			e.failInstance(ctx, instance, err)

			return
		}

		if !proceed {
			return // Still waiting.
		}

		resume = resolved
	}

	e.runLoop(ctx, logger, definition, instance, resume)
}

// resolveWait consumes the earliest queued signal matching the wait, or
// converts a fired timer into a timeout. It reports whether the
// instance should proceed.
func (e *Engine) resolveWait(ctx context.Context, instance *models.WorkflowInstance, resume Resume) (Resume, bool, error) {
	if signal := popSignal(instance, instance.Waiting.Names); signal != nil {
		instance.Waiting = nil

		if err := e.persistence.TimerRepository().Delete(ctx, instance.ID); err != nil {
			return Resume{}, false, err
		}

		return Resume{Kind: ResumeSignal, Signal: signal}, true, nil
	}

	if resume.Kind == ResumeTimer {
		instance.Waiting = nil

		return Resume{Kind: ResumeTimeout, TimerReason: resume.TimerReason}, true, nil
	}

	return Resume{}, false, nil
}

// runLoop executes decision cycles until the instance suspends or
// reaches a terminal status.
func (e *Engine) runLoop(ctx context.Context, logger *slog.Logger, definition Definition, instance *models.WorkflowInstance, resume Resume) {
	for {
		dctx := &DecisionContext{
			Instance: instance,
			Resume:   resume,
			Logger:   logger.With("phase", instance.Phase, "cursor", instance.HistoryCursor),
			Now:      e.now(),
		}

		decision, err := definition.Decide(ctx, dctx)
		if err != nil {
			logger.ErrorContext(ctx, "Workflow decision failed",
				"error", err, "phase", instance.Phase, "state", string(instance.State))
			e.failInstance(ctx, instance, err)

			return
		}

		next, suspended, err := e.apply(ctx, logger, instance, decision)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to apply workflow decision", "error", err)
			e.failInstance(ctx, instance, err)

			return
		}

		if suspended {
			return
		}

		resume = next
	}
}

// apply executes one decision. It returns the resume information for
// the next cycle, or suspended=true when the instance yielded.
func (e *Engine) apply(ctx context.Context, logger *slog.Logger, instance *models.WorkflowInstance, decision Decision) (Resume, bool, error) {
	instances := e.persistence.InstanceRepository()
	timers := e.persistence.TimerRepository()

	switch d := decision.(type) {
	case Sleep:
		err := timers.Save(ctx, &models.Timer{WorkflowID: instance.ID, FireAt: d.Until, Reason: d.Reason})
		if err != nil {
			return Resume{}, false, err
		}

		logger.DebugContext(ctx, "Workflow sleeping", "until", d.Until, "reason", d.Reason)

		return Resume{}, true, instances.Save(ctx, instance)

	case WaitSignal:
		if signal := popSignal(instance, d.Names); signal != nil {
			// A matching signal was already buffered; consume it
			// without suspending.
			return Resume{Kind: ResumeSignal, Signal: signal}, false, instances.Save(ctx, instance)
		}

		timeoutAt := e.now().Add(d.Timeout)
		instance.Waiting = &models.WaitState{Names: d.Names, TimeoutAt: timeoutAt}

		err := timers.Save(ctx, &models.Timer{WorkflowID: instance.ID, FireAt: timeoutAt, Reason: waitTimeoutReason})
		if err != nil {
			return Resume{}, false, err
		}

		logger.DebugContext(ctx, "Workflow waiting for signals", "signals", d.Names, "timeout_at", timeoutAt)

		return Resume{}, true, instances.Save(ctx, instance)

	case RunActivity:
		return e.runActivity(ctx, logger, instance, d)

	case ContinueAsNew:
		payload, err := json.Marshal(d.Input)
		if err != nil {
			return Resume{}, false, fmt.Errorf("failed to marshal continuation input: %w", err)
		}

		if err := e.clearHistory(ctx, instance.ID); err != nil {
			return Resume{}, false, err
		}

		instance.Input = payload
		instance.State = nil
		instance.Phase = ""
		instance.HistoryCursor = 0
		instance.Waiting = nil

		if err := instances.Save(ctx, instance); err != nil {
			return Resume{}, false, err
		}

		e.publish(ctx, instance.ID, events.WorkflowContinued{
			BaseEvent: events.NewBaseEvent(events.WorkflowContinuedEvent, instance.ID),
			Input:     payload,
		})

		return Resume{Kind: ResumeStarted}, false, nil

	case Complete:
		return Resume{}, true, e.finish(ctx, instance, models.InstanceStatusCompleted, "")

	case Cancel:
		return Resume{}, true, e.finish(ctx, instance, models.InstanceStatusCancelled, d.Reason)

	case Fail:
		return Resume{}, true, e.finish(ctx, instance, models.InstanceStatusFailed, d.Reason)

	default:
		return Resume{}, false, fmt.Errorf("unknown decision type %T", decision)
	}
}

// runActivity executes an activity with at-most-once semantics. The
// attempt is recorded at the current cursor before the side effect
// runs, and whatever attempt is already recorded there is replayed
// instead of executing the step again. The cursor advance is never
// persisted here: it lands in the same write as the next suspension,
// so a crash anywhere in between rewinds to the recorded attempt.
func (e *Engine) runActivity(ctx context.Context, logger *slog.Logger, instance *models.WorkflowInstance, d RunActivity) (Resume, bool, error) {
	attempts := e.persistence.AttemptRepository()
	cursor := instance.HistoryCursor

	recorded, err := attempts.Get(ctx, instance.ID, cursor)
	if err != nil && !errors.Is(err, persistence.ErrAttemptNotFound) {
		return Resume{}, false, err
	}

	if recorded != nil {
		return e.replayAttempt(ctx, logger, instance, d, recorded)
	}

	input, err := json.Marshal(d.Input)
	if err != nil {
		return Resume{}, false, fmt.Errorf("failed to marshal activity input: %w", err)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.activity",
		attribute.String(otelhelper.WorkflowIDKey, instance.ID),
		attribute.String(otelhelper.ActivityNameKey, d.Name),
		attribute.Int(otelhelper.CursorKey, cursor),
	)
	defer span.End()

	// Written before the side effect is issued: a crash mid-execution
	// leaves a pending record, never an untracked execution.
	attempt := &models.ActivityAttempt{
		ID:            uuid.New().String(),
		WorkflowID:    instance.ID,
		StepCursor:    cursor,
		ActivityName:  d.Name,
		AttemptNumber: 1,
		Outcome:       models.AttemptOutcomePending,
		StartedAt:     e.now(),
	}
	if err := attempts.Save(ctx, attempt); err != nil {
		return Resume{}, false, err
	}

	result, attemptCount, execErr := e.executor.Execute(ctx, d.Name, input, d.Retry)

	attempt.AttemptNumber = attemptCount
	attempt.FinishedAt = e.now()

	resume := Resume{Kind: ResumeActivity, ActivityName: d.Name}

	if execErr != nil {
		otelhelper.SetError(span, execErr)

		attempt.Outcome = models.AttemptOutcomeFailure
		attempt.Error = execErr.Error()

		var actErr *activity.Error
		if !errors.As(execErr, &actErr) {
			actErr = &activity.Error{Name: d.Name, Attempts: attemptCount, Err: execErr}
		}

		resume.ActivityError = actErr
	} else {
		attempt.Outcome = models.AttemptOutcomeSuccess
		attempt.Result = result
		resume.ActivityResult = result
	}

	if err := attempts.Save(ctx, attempt); err != nil {
		return Resume{}, false, err
	}

	instance.HistoryCursor++

	return resume, false, nil
}

// replayAttempt resolves the step from the attempt recorded at the
// current cursor without re-running the side effect. A pending record
// means a crash interrupted the step after it was issued; it resolves
// to a failure the definition can branch on.
func (e *Engine) replayAttempt(ctx context.Context, logger *slog.Logger, instance *models.WorkflowInstance, d RunActivity, recorded *models.ActivityAttempt) (Resume, bool, error) {
	resume := Resume{Kind: ResumeActivity, ActivityName: d.Name}

	switch recorded.Outcome {
	case models.AttemptOutcomeSuccess:
		logger.InfoContext(ctx, "Replaying recorded activity result",
			"activity", recorded.ActivityName, "cursor", recorded.StepCursor)

		resume.ActivityResult = recorded.Result

	case models.AttemptOutcomeFailure:
		logger.InfoContext(ctx, "Replaying recorded activity failure",
			"activity", recorded.ActivityName, "cursor", recorded.StepCursor)

		resume.ActivityError = &activity.Error{
			Name:     recorded.ActivityName,
			Attempts: recorded.AttemptNumber,
			Err:      errors.New(recorded.Error),
		}

	case models.AttemptOutcomePending:
		logger.WarnContext(ctx, "Activity was interrupted mid-step, refusing to re-execute",
			"activity", recorded.ActivityName, "cursor", recorded.StepCursor)

		recorded.Outcome = models.AttemptOutcomeFailure
		recorded.Error = ErrActivityInterrupted.Error()
		recorded.FinishedAt = e.now()

		if err := e.persistence.AttemptRepository().Save(ctx, recorded); err != nil {
			return Resume{}, false, err
		}

		resume.ActivityError = &activity.Error{
			Name:     recorded.ActivityName,
			Attempts: recorded.AttemptNumber,
			Err:      ErrActivityInterrupted,
		}
	}

	instance.HistoryCursor++

	return resume, false, nil
}

// finish moves the instance to a terminal status, releases its timer
// and publishes the matching lifecycle event.
func (e *Engine) finish(ctx context.Context, instance *models.WorkflowInstance, status models.InstanceStatus, reason string) error {
	now := e.now()
	instance.Status = status
	instance.FailureReason = reason
	instance.Waiting = nil
	instance.CompletedAt = &now

	err := e.persistence.TimerRepository().Delete(ctx, instance.ID)
	if err != nil {
		return err
	}

	err = e.persistence.InstanceRepository().Save(ctx, instance)
	if err != nil {
		return err
	}

	switch status {
	case models.InstanceStatusCompleted:
		e.publish(ctx, instance.ID, events.WorkflowCompleted{
			BaseEvent: events.NewBaseEvent(events.WorkflowCompletedEvent, instance.ID),
			Phase:     instance.Phase,
		})
	case models.InstanceStatusCancelled:
		e.publish(ctx, instance.ID, events.WorkflowCancelled{
			BaseEvent: events.NewBaseEvent(events.WorkflowCancelledEvent, instance.ID),
			Reason:    reason,
		})
	case models.InstanceStatusFailed:
		e.publish(ctx, instance.ID, events.WorkflowFailed{
			BaseEvent: events.NewBaseEvent(events.WorkflowFailedEvent, instance.ID),
			Reason:    reason,
			Phase:     instance.Phase,
		})
	case models.InstanceStatusRunning:
		// finish is never called with a non-terminal status.
	}

	return nil
}

// failInstance marks the instance Failed after an unhandled error.
// Instances are not auto-retried; retries apply only at the activity
// level.
func (e *Engine) failInstance(ctx context.Context, instance *models.WorkflowInstance, cause error) {
	err := e.finish(ctx, instance, models.InstanceStatusFailed, cause.Error())
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist workflow failure",
			"workflow_id", instance.ID, "error", err, "cause", cause)
	}
}

func (e *Engine) clearHistory(ctx context.Context, workflowID string) error {
	err := e.persistence.AttemptRepository().DeleteForWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	return e.persistence.TimerRepository().Delete(ctx, workflowID)
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish workflow event",
			"workflow_id", key, "event_type", event.GetType(), "error", err)
	}
}

// lock serializes decision cycles per workflow ID and returns the
// unlock function.
func (e *Engine) lock(workflowID string) func() {
	e.mu.Lock()

	m, ok := e.locks[workflowID]
	if !ok {
		if e.locks == nil {
			e.locks = make(map[string]*sync.Mutex)
		}

		m = &sync.Mutex{}
		e.locks[workflowID] = m
	}

	e.mu.Unlock()
	m.Lock()

	return m.Unlock
}

// popSignal removes and returns the earliest queued signal whose name
// is in names. Receipt order decides races such as a cancellation
// arriving around a terminal status signal.
func popSignal(instance *models.WorkflowInstance, names []string) *models.Signal {
	for i, signal := range instance.SignalQueue {
		for _, name := range names {
			if signal.Name == name {
				instance.SignalQueue = append(instance.SignalQueue[:i], instance.SignalQueue[i+1:]...)

				return signal
			}
		}
	}

	return nil
}
