package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/persistence/file"
)

const testDefType = models.DefinitionType("lead_follow_up")

// scripted is a workflow definition driven by a test-provided decide
// function.
type scripted struct {
	defType models.DefinitionType
	decide  func(ctx context.Context, dctx *engine.DecisionContext) (engine.Decision, error)
}

func (s *scripted) Type() models.DefinitionType { return s.defType }

func (s *scripted) Decide(ctx context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
	return s.decide(ctx, dctx)
}

type harness struct {
	store    persistence.Persistence
	registry *activity.Registry
	engine   *engine.Engine
}

func newHarness(t *testing.T, defs ...engine.Definition) *harness {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())
	registry := activity.NewRegistry(logger)
	executor := activity.NewExecutor(registry, logger)
	eng := engine.NewEngine(store, executor, nil, logger)

	for _, def := range defs {
		eng.RegisterDefinition(def)
	}

	return &harness{store: store, registry: registry, engine: eng}
}

func (h *harness) instance(t *testing.T, workflowID string) *models.WorkflowInstance {
	t.Helper()

	instance, err := h.store.InstanceRepository().GetByID(t.Context(), workflowID)
	require.NoError(t, err)

	return instance
}

// once disables retries so failure tests observe a single attempt.
var once = activity.RetryPolicy{MaxAttempts: 1}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	def := &scripted{defType: testDefType, decide: func(_ context.Context, _ *engine.DecisionContext) (engine.Decision, error) {
		return engine.WaitSignal{Names: []string{"approved"}, Timeout: time.Hour}, nil
	}}
	h := newHarness(t, def)

	first, err := h.engine.Start(t.Context(), "wf-1", testDefType, map[string]int{"n": 1})
	require.NoError(t, err)

	second, err := h.engine.Start(t.Context(), "wf-1", testDefType, map[string]int{"n": 2})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.JSONEq(t, `{"n":1}`, string(second.Input))

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusRunning, stored.Status)
	assert.JSONEq(t, `{"n":1}`, string(stored.Input))
	require.NotNil(t, stored.Waiting)
	assert.Equal(t, []string{"approved"}, stored.Waiting.Names)

	timer, err := h.store.TimerRepository().GetByWorkflow(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", timer.WorkflowID)
}

func TestStartValidatesInput(t *testing.T) {
	h := newHarness(t, &scripted{defType: testDefType, decide: nil})

	_, err := h.engine.Start(t.Context(), "", testDefType, nil)
	require.ErrorIs(t, err, engine.ErrWorkflowIDRequired)

	_, err = h.engine.Start(t.Context(), "wf-1", models.DefinitionType("unknown"), nil)
	require.ErrorIs(t, err, engine.ErrDefinitionNotRegistered)
}

func TestSignalDroppedForUnknownWorkflow(t *testing.T) {
	h := newHarness(t, &scripted{defType: testDefType, decide: nil})

	err := h.engine.Signal(t.Context(), "nonexistent", "replied", nil)
	require.NoError(t, err)

	_, err = h.store.InstanceRepository().GetByID(t.Context(), "nonexistent")
	require.ErrorIs(t, err, persistence.ErrInstanceNotFound)
}

func TestSignalDroppedForTerminalWorkflow(t *testing.T) {
	def := &scripted{defType: testDefType, decide: func(_ context.Context, _ *engine.DecisionContext) (engine.Decision, error) {
		return engine.Complete{}, nil
	}}
	h := newHarness(t, def)

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	err = h.engine.Signal(t.Context(), "wf-1", "replied", map[string]string{"from": "lead@example.com"})
	require.NoError(t, err)

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.Empty(t, stored.SignalQueue)
	assert.NotNil(t, stored.CompletedAt)
}

func TestBufferedSignalsConsumedInReceiptOrder(t *testing.T) {
	var consumed string

	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		switch dctx.Resume.Kind {
		case engine.ResumeStarted:
			return engine.Sleep{Until: dctx.Now.Add(time.Hour), Reason: "debounce"}, nil
		case engine.ResumeTimer:
			return engine.WaitSignal{Names: []string{"replied", "bounced"}, Timeout: time.Hour}, nil
		case engine.ResumeSignal:
			consumed = dctx.Resume.Signal.Name

			return engine.Complete{}, nil
		default:
			return nil, errors.New("unexpected resume kind")
		}
	}}
	h := newHarness(t, def)

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	// Signals arriving before the wait stay buffered.
	require.NoError(t, h.engine.Signal(t.Context(), "wf-1", "bounced", nil))
	require.NoError(t, h.engine.Signal(t.Context(), "wf-1", "replied", nil))

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusRunning, stored.Status)
	require.Len(t, stored.SignalQueue, 2)

	err = h.engine.ResumeDue(t.Context(), time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "bounced", consumed)

	stored = h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	require.Len(t, stored.SignalQueue, 1)
	assert.Equal(t, "replied", stored.SignalQueue[0].Name)
}

func TestWaitSignalTimeout(t *testing.T) {
	var timedOut bool

	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		switch dctx.Resume.Kind {
		case engine.ResumeStarted:
			return engine.WaitSignal{Names: []string{"replied"}, Timeout: time.Minute}, nil
		case engine.ResumeTimeout:
			timedOut = true

			return engine.Cancel{Reason: "no reply"}, nil
		default:
			return nil, errors.New("unexpected resume kind")
		}
	}}
	h := newHarness(t, def)

	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	h.engine.SetClock(func() time.Time { return t0 })

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	timer, err := h.store.TimerRepository().GetByWorkflow(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), timer.FireAt)

	err = h.engine.ResumeDue(t.Context(), t0.Add(2*time.Minute))
	require.NoError(t, err)

	assert.True(t, timedOut)

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusCancelled, stored.Status)
	assert.Equal(t, "no reply", stored.FailureReason)
	assert.Nil(t, stored.Waiting)

	_, err = h.store.TimerRepository().GetByWorkflow(t.Context(), "wf-1")
	require.ErrorIs(t, err, persistence.ErrTimerNotFound)
}

func TestActivityExecutesOnceAndRecordsResult(t *testing.T) {
	var received json.RawMessage

	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		if dctx.Instance.Phase == "" {
			dctx.Instance.Phase = "sending"

			return engine.RunActivity{Name: "send_email", Input: map[string]string{"to": "lead@example.com"}, Retry: once}, nil
		}

		received = dctx.Resume.ActivityResult

		return engine.Complete{}, nil
	}}
	h := newHarness(t, def)

	calls := 0
	h.registry.Register("send_email", func(_ context.Context, input json.RawMessage) (any, error) {
		calls++
		assert.JSONEq(t, `{"to":"lead@example.com"}`, string(input))

		return map[string]string{"message_id": "m-1"}, nil
	})

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.JSONEq(t, `{"message_id":"m-1"}`, string(received))

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.HistoryCursor)

	attempt, err := h.store.AttemptRepository().Get(t.Context(), "wf-1", 0)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptOutcomeSuccess, attempt.Outcome)
	assert.Equal(t, "send_email", attempt.ActivityName)
	assert.JSONEq(t, `{"message_id":"m-1"}`, string(attempt.Result))
}

func TestRecordedSuccessReplayedWithoutSideEffect(t *testing.T) {
	var received json.RawMessage

	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		if dctx.Resume.Kind == engine.ResumeStarted {
			return engine.RunActivity{Name: "send_email", Retry: once}, nil
		}

		received = dctx.Resume.ActivityResult

		return engine.Complete{}, nil
	}}
	h := newHarness(t, def)

	calls := 0
	h.registry.Register("send_email", func(_ context.Context, _ json.RawMessage) (any, error) {
		calls++

		return nil, nil
	})

	// An instance interrupted after recording the attempt but before
	// advancing: the cursor still points at the recorded step.
	err := h.store.InstanceRepository().Save(t.Context(), &models.WorkflowInstance{
		ID:             "wf-1",
		DefinitionType: testDefType,
		Status:         models.InstanceStatusRunning,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	err = h.store.AttemptRepository().Save(t.Context(), &models.ActivityAttempt{
		ID:           "a-1",
		WorkflowID:   "wf-1",
		StepCursor:   0,
		ActivityName: "send_email",
		Outcome:      models.AttemptOutcomeSuccess,
		Result:       json.RawMessage(`{"message_id":"m-9"}`),
	})
	require.NoError(t, err)

	err = h.engine.RecoverRunning(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.JSONEq(t, `{"message_id":"m-9"}`, string(received))

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.HistoryCursor)
}

func TestCrashBeforeSuspensionDoesNotReissueActivity(t *testing.T) {
	calls := 0

	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		switch dctx.Resume.Kind {
		case engine.ResumeActivity:
			return engine.WaitSignal{Names: []string{"bot-status-changed"}, Timeout: time.Hour}, nil
		case engine.ResumeSignal:
			return engine.Complete{}, nil
		default:
			// Any other wake re-issues the dispatch, the way a
			// dispatching phase recovers after a restart.
			return engine.RunActivity{Name: "create_bot", Retry: once}, nil
		}
	}}
	h := newHarness(t, def)

	h.registry.Register("create_bot", func(_ context.Context, _ json.RawMessage) (any, error) {
		calls++

		return map[string]string{"bot_id": "bot-1"}, nil
	})

	started, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// A crash between the activity and the wait persists nothing past
	// the pre-activity snapshot: the cursor still points at the
	// recorded attempt and no wait or timer exists.
	err = h.store.InstanceRepository().Save(t.Context(), &models.WorkflowInstance{
		ID:             "wf-1",
		DefinitionType: testDefType,
		Status:         models.InstanceStatusRunning,
		CreatedAt:      started.CreatedAt,
	})
	require.NoError(t, err)

	err = h.store.TimerRepository().Delete(t.Context(), "wf-1")
	require.NoError(t, err)

	err = h.engine.RecoverRunning(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)

	recovered := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusRunning, recovered.Status)
	assert.Equal(t, 1, recovered.HistoryCursor)
	require.NotNil(t, recovered.Waiting)

	// The replayed result still resolves the wait normally.
	require.NoError(t, h.engine.Signal(t.Context(), "wf-1", "bot-status-changed", nil))
	assert.Equal(t, 1, calls)
	assert.Equal(t, models.InstanceStatusCompleted, h.instance(t, "wf-1").Status)
}

func TestPendingAttemptResolvesAsInterruptedFailure(t *testing.T) {
	calls := 0

	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		if dctx.Resume.Kind == engine.ResumeActivity {
			require.NotNil(t, dctx.Resume.ActivityError)
			require.ErrorIs(t, dctx.Resume.ActivityError, engine.ErrActivityInterrupted)

			return engine.Fail{Reason: dctx.Resume.ActivityError.Error()}, nil
		}

		return engine.RunActivity{Name: "send_email", Retry: once}, nil
	}}
	h := newHarness(t, def)

	h.registry.Register("send_email", func(_ context.Context, _ json.RawMessage) (any, error) {
		calls++

		return nil, nil
	})

	// A crash while the side effect was in flight leaves a pending
	// attempt at the cursor.
	err := h.store.InstanceRepository().Save(t.Context(), &models.WorkflowInstance{
		ID:             "wf-1",
		DefinitionType: testDefType,
		Status:         models.InstanceStatusRunning,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	err = h.store.AttemptRepository().Save(t.Context(), &models.ActivityAttempt{
		ID:            "a-1",
		WorkflowID:    "wf-1",
		StepCursor:    0,
		ActivityName:  "send_email",
		AttemptNumber: 1,
		Outcome:       models.AttemptOutcomePending,
		StartedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)

	err = h.engine.RecoverRunning(t.Context())
	require.NoError(t, err)

	// The side effect may already have been issued, so it is never run
	// a second time; the step resolves as a failure instead.
	assert.Equal(t, 0, calls)

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "interrupted")

	attempt, err := h.store.AttemptRepository().Get(t.Context(), "wf-1", 0)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptOutcomeFailure, attempt.Outcome)
}

func TestActivityFailureDeliveredToDecision(t *testing.T) {
	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		if dctx.Resume.Kind == engine.ResumeStarted {
			return engine.RunActivity{Name: "send_email", Retry: once}, nil
		}

		require.NotNil(t, dctx.Resume.ActivityError)
		assert.Equal(t, 1, dctx.Resume.ActivityError.Attempts)

		return engine.Fail{Reason: dctx.Resume.ActivityError.Error()}, nil
	}}
	h := newHarness(t, def)

	h.registry.Register("send_email", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, activity.Terminal(errors.New("mailbox does not exist"))
	})

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "mailbox does not exist")

	attempt, err := h.store.AttemptRepository().Get(t.Context(), "wf-1", 0)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptOutcomeFailure, attempt.Outcome)
	assert.Contains(t, attempt.Error, "mailbox does not exist")
}

func TestContinueAsNewResetsHistory(t *testing.T) {
	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		if dctx.Resume.Kind == engine.ResumeStarted && dctx.Instance.Phase == "" {
			dctx.Instance.Phase = "working"

			return engine.RunActivity{Name: "process_round", Retry: once}, nil
		}

		var input struct {
			Round int `json:"round"`
		}
		if err := dctx.Input(&input); err != nil {
			return nil, err
		}

		if input.Round >= 2 {
			return engine.Complete{}, nil
		}

		return engine.ContinueAsNew{Input: map[string]int{"round": input.Round + 1}}, nil
	}}
	h := newHarness(t, def)

	calls := 0
	h.registry.Register("process_round", func(_ context.Context, _ json.RawMessage) (any, error) {
		calls++

		return nil, nil
	})

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, map[string]int{"round": 1})
	require.NoError(t, err)

	// The activity ran once per generation: recorded attempts do not
	// survive the continuation.
	assert.Equal(t, 2, calls)

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.JSONEq(t, `{"round":2}`, string(stored.Input))
	assert.Equal(t, 1, stored.HistoryCursor)
	assert.Empty(t, stored.State)
}

func TestDecisionErrorFailsInstance(t *testing.T) {
	def := &scripted{defType: testDefType, decide: func(_ context.Context, _ *engine.DecisionContext) (engine.Decision, error) {
		return nil, errors.New("enrollment record missing")
	}}
	h := newHarness(t, def)

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	stored := h.instance(t, "wf-1")
	assert.Equal(t, models.InstanceStatusFailed, stored.Status)
	assert.Equal(t, "enrollment record missing", stored.FailureReason)
	assert.NotNil(t, stored.CompletedAt)
}

func TestStartAfterTerminalClearsRecordedHistory(t *testing.T) {
	def := &scripted{defType: testDefType, decide: func(_ context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
		if dctx.Instance.Phase == "" {
			dctx.Instance.Phase = "notifying"

			return engine.RunActivity{Name: "notify", Retry: once}, nil
		}

		return engine.Complete{}, nil
	}}
	h := newHarness(t, def)

	calls := 0
	h.registry.Register("notify", func(_ context.Context, _ json.RawMessage) (any, error) {
		calls++

		return nil, nil
	})

	_, err := h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = h.engine.Start(t.Context(), "wf-1", testDefType, nil)
	require.NoError(t, err)

	// The replacement run starts from a clean history, so the side
	// effect executes again rather than replaying the stale record.
	assert.Equal(t, 2, calls)
	assert.Equal(t, models.InstanceStatusCompleted, h.instance(t, "wf-1").Status)
}

func TestRecoverRunningSkipsInstancesWithPendingTimer(t *testing.T) {
	decisions := 0

	def := &scripted{defType: testDefType, decide: func(_ context.Context, _ *engine.DecisionContext) (engine.Decision, error) {
		decisions++

		return engine.Complete{}, nil
	}}
	h := newHarness(t, def)

	err := h.store.InstanceRepository().Save(t.Context(), &models.WorkflowInstance{
		ID:             "wf-1",
		DefinitionType: testDefType,
		Status:         models.InstanceStatusRunning,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	err = h.store.TimerRepository().Save(t.Context(), &models.Timer{
		WorkflowID: "wf-1",
		FireAt:     time.Now().UTC().Add(time.Hour),
		Reason:     "step-delay",
	})
	require.NoError(t, err)

	err = h.engine.RecoverRunning(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 0, decisions)
	assert.Equal(t, models.InstanceStatusRunning, h.instance(t, "wf-1").Status)
}

func TestRecoverRunningRecreatesLostWaitTimer(t *testing.T) {
	decisions := 0

	def := &scripted{defType: testDefType, decide: func(_ context.Context, _ *engine.DecisionContext) (engine.Decision, error) {
		decisions++

		return engine.Complete{}, nil
	}}
	h := newHarness(t, def)

	timeoutAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	err := h.store.InstanceRepository().Save(t.Context(), &models.WorkflowInstance{
		ID:             "wf-1",
		DefinitionType: testDefType,
		Status:         models.InstanceStatusRunning,
		Waiting:        &models.WaitState{Names: []string{"replied"}, TimeoutAt: timeoutAt},
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	err = h.engine.RecoverRunning(t.Context())
	require.NoError(t, err)

	// The waiting instance gets its timeout timer back instead of a
	// decision cycle.
	assert.Equal(t, 0, decisions)

	timer, err := h.store.TimerRepository().GetByWorkflow(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, timeoutAt, timer.FireAt)
}
