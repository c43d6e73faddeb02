package meetingbot

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/mocks"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/persistence/file"
	"github.com/outfield-crm/outfield/pkg/providers/recorder"
)

// newLifecycleHarness wires the real definition and activities into an
// engine backed by file persistence, with mocked provider clients.
func newLifecycleHarness(t *testing.T) (*engine.Engine, persistence.Persistence, *models.Meeting) {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())
	registry := activity.NewRegistry(logger)

	meeting := scheduledMeeting()

	repo := &mocks.MockMeetingRepository{}
	repo.On("GetByID", mock.Anything, meeting.ID).Return(meeting, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	rec := &mocks.MockRecorderClient{}
	rec.On("CreateBot", mock.Anything, mock.Anything, mock.Anything).Return("bot-7", nil)
	rec.On("FetchRecording", mock.Anything, "bot-7").Return("https://cdn.example.com/rec-1.mp4", nil)
	rec.On("FetchTranscript", mock.Anything, "bot-7").Return("hello from the call", nil)

	ins := &mocks.MockInsightsClient{}
	ins.On("Trigger", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	NewActivities(repo, rec, ins, "https://hooks.outfield.example", logger).Register(registry)

	eng := engine.NewEngine(store, activity.NewExecutor(registry, logger), nil, logger)
	eng.RegisterDefinition(NewDefinition())

	return eng, store, meeting
}

func TestDoneStatusBeforeCancelCompletesMeeting(t *testing.T) {
	eng, store, meeting := newLifecycleHarness(t)

	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	eng.SetClock(func() time.Time { return t0 })

	workflowID := WorkflowID(meeting.ID)

	_, err := eng.Start(t.Context(), workflowID, models.DefinitionMeetingBot, Input{
		MeetingID:   meeting.ID,
		TenantID:    meeting.TenantID,
		UserID:      meeting.UserID,
		MeetingURL:  meeting.MeetingURL,
		ScheduledAt: t0,
	})
	require.NoError(t, err)

	stored, err := store.InstanceRepository().GetByID(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, PhaseBotJoining, stored.Phase)
	require.NotNil(t, stored.Waiting)

	// The call finished before anyone cancelled: the terminal status is
	// consumed first and the cancellation reaches a finished workflow.
	require.NoError(t, eng.Signal(t.Context(), workflowID, SignalBotStatusChanged, statusSignal{Status: recorder.StatusDone}))
	require.NoError(t, eng.Signal(t.Context(), workflowID, SignalCancelBot, map[string]string{}))

	stored, err = store.InstanceRepository().GetByID(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.Empty(t, stored.FailureReason)
	assert.Equal(t, models.MeetingStatusReady, meeting.Status)
	assert.Equal(t, "https://cdn.example.com/rec-1.mp4", meeting.RecordingURL)
	assert.Equal(t, "hello from the call", meeting.Transcript)
}

func TestBufferedDoneStatusBeatsLaterCancel(t *testing.T) {
	eng, store, meeting := newLifecycleHarness(t)

	workflowID := WorkflowID(meeting.ID)
	now := time.Now().UTC()

	stateJSON, err := json.Marshal(state{
		MeetingID:    meeting.ID,
		TenantID:     meeting.TenantID,
		UserID:       meeting.UserID,
		BotID:        "bot-7",
		WaitDeadline: now.Add(recordingTimeout),
	})
	require.NoError(t, err)

	// Both signals were queued against the recording wait before any of
	// them was consumed: done first, the cancellation a second later.
	err = store.InstanceRepository().Save(t.Context(), &models.WorkflowInstance{
		ID:             workflowID,
		DefinitionType: models.DefinitionMeetingBot,
		Status:         models.InstanceStatusRunning,
		Phase:          PhaseRecording,
		State:          stateJSON,
		HistoryCursor:  1,
		Waiting: &models.WaitState{
			Names:     []string{SignalBotStatusChanged, SignalCancelBot},
			TimeoutAt: now.Add(recordingTimeout),
		},
		SignalQueue: []*models.Signal{
			{ID: "s-1", Name: SignalBotStatusChanged, Payload: statusPayload(t, recorder.StatusDone), ReceivedAt: now},
			{ID: "s-2", Name: SignalCancelBot, Payload: json.RawMessage(`{}`), ReceivedAt: now.Add(time.Second)},
		},
		CreatedAt: now,
	})
	require.NoError(t, err)

	err = store.TimerRepository().Save(t.Context(), &models.Timer{
		WorkflowID: workflowID,
		FireAt:     now,
		Reason:     "signal-wait-timeout",
	})
	require.NoError(t, err)

	require.NoError(t, eng.ResumeDue(t.Context(), now.Add(time.Minute)))

	// The earlier terminal status wins the wait; the buffered
	// cancellation never turns the finished recording into a cancel.
	stored, err := store.InstanceRepository().GetByID(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.Equal(t, models.MeetingStatusReady, meeting.Status)
}
