package meetingbot

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/mocks"
	"github.com/outfield-crm/outfield/pkg/models"
)

func scheduledMeeting() *models.Meeting {
	return &models.Meeting{
		ID:         "m-1",
		TenantID:   "t-1",
		UserID:     "u-1",
		Title:      "Acme demo",
		MeetingURL: "https://meet.example.com/acme",
		Status:     models.MeetingStatusScheduled,
	}
}

func marshalInput(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func newActivities(repo *mocks.MockMeetingRepository, rec *mocks.MockRecorderClient, ins *mocks.MockInsightsClient) *Activities {
	return NewActivities(repo, rec, ins, "https://hooks.outfield.example", slog.Default())
}

func TestCreateBotStoresBotAndCallbackURL(t *testing.T) {
	repo := &mocks.MockMeetingRepository{}
	rec := &mocks.MockRecorderClient{}
	meeting := scheduledMeeting()

	rec.On("CreateBot", mock.Anything, "https://meet.example.com/acme",
		"https://hooks.outfield.example/webhooks/recorder/meeting-bot-m-1").Return("bot-7", nil)
	repo.On("GetByID", mock.Anything, "m-1").Return(meeting, nil)
	repo.On("Save", mock.Anything, meeting).Return(nil)

	activities := newActivities(repo, rec, &mocks.MockInsightsClient{})

	result, err := activities.CreateBot(t.Context(), marshalInput(t, createBotInput{
		MeetingID:  "m-1",
		MeetingURL: "https://meet.example.com/acme",
		WorkflowID: "meeting-bot-m-1",
	}))
	require.NoError(t, err)

	created, ok := result.(createBotResult)
	require.True(t, ok)
	assert.Equal(t, "bot-7", created.BotID)
	assert.Equal(t, "bot-7", meeting.BotID)
	assert.Equal(t, models.MeetingStatusBotJoining, meeting.Status)
	repo.AssertExpectations(t)
}

func TestCreateBotProviderErrorLeavesMeetingUntouched(t *testing.T) {
	repo := &mocks.MockMeetingRepository{}
	rec := &mocks.MockRecorderClient{}

	rec.On("CreateBot", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("recorder unavailable"))

	activities := newActivities(repo, rec, &mocks.MockInsightsClient{})

	_, err := activities.CreateBot(t.Context(), marshalInput(t, createBotInput{
		MeetingID:  "m-1",
		MeetingURL: "https://meet.example.com/acme",
		WorkflowID: "meeting-bot-m-1",
	}))
	require.Error(t, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDownloadRecordingMarksProcessing(t *testing.T) {
	repo := &mocks.MockMeetingRepository{}
	rec := &mocks.MockRecorderClient{}
	meeting := scheduledMeeting()
	meeting.Status = models.MeetingStatusRecording
	meeting.BotID = "bot-7"

	rec.On("FetchRecording", mock.Anything, "bot-7").Return("https://cdn.example.com/rec-1.mp4", nil)
	repo.On("GetByID", mock.Anything, "m-1").Return(meeting, nil)
	repo.On("Save", mock.Anything, meeting).Return(nil)

	activities := newActivities(repo, rec, &mocks.MockInsightsClient{})

	result, err := activities.DownloadRecording(t.Context(), marshalInput(t, botActivityInput{
		MeetingID: "m-1",
		BotID:     "bot-7",
	}))
	require.NoError(t, err)

	downloaded, ok := result.(downloadResult)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/rec-1.mp4", downloaded.RecordingURL)
	assert.Equal(t, models.MeetingStatusProcessing, meeting.Status)
	assert.Equal(t, "https://cdn.example.com/rec-1.mp4", meeting.RecordingURL)
}

func TestProcessTranscriptStoresTranscript(t *testing.T) {
	repo := &mocks.MockMeetingRepository{}
	rec := &mocks.MockRecorderClient{}
	meeting := scheduledMeeting()
	meeting.BotID = "bot-7"

	rec.On("FetchTranscript", mock.Anything, "bot-7").Return("hello from the call", nil)
	repo.On("GetByID", mock.Anything, "m-1").Return(meeting, nil)
	repo.On("Save", mock.Anything, meeting).Return(nil)

	activities := newActivities(repo, rec, &mocks.MockInsightsClient{})

	_, err := activities.ProcessTranscript(t.Context(), marshalInput(t, botActivityInput{
		MeetingID: "m-1",
		BotID:     "bot-7",
	}))
	require.NoError(t, err)
	assert.Equal(t, "hello from the call", meeting.Transcript)
}

func TestTriggerInsightsForwardsIdentifiers(t *testing.T) {
	ins := &mocks.MockInsightsClient{}
	ins.On("Trigger", mock.Anything, "m-1", "t-1", "u-1").Return(nil)

	activities := newActivities(&mocks.MockMeetingRepository{}, &mocks.MockRecorderClient{}, ins)

	_, err := activities.TriggerInsights(t.Context(), marshalInput(t, triggerInsightsInput{
		MeetingID: "m-1",
		TenantID:  "t-1",
		UserID:    "u-1",
	}))
	require.NoError(t, err)
	ins.AssertExpectations(t)
}

func TestFinishMeetingWritesTerminalStatus(t *testing.T) {
	repo := &mocks.MockMeetingRepository{}
	meeting := scheduledMeeting()
	meeting.Status = models.MeetingStatusProcessing

	repo.On("GetByID", mock.Anything, "m-1").Return(meeting, nil)
	repo.On("Save", mock.Anything, meeting).Return(nil)

	activities := newActivities(repo, &mocks.MockRecorderClient{}, &mocks.MockInsightsClient{})

	_, err := activities.FinishMeeting(t.Context(), marshalInput(t, finishMeetingInput{
		MeetingID:    "m-1",
		Status:       models.MeetingStatusFailed,
		ErrorMessage: "transcript processing exhausted retries",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusFailed, meeting.Status)
	assert.Equal(t, "transcript processing exhausted retries", meeting.ErrorMessage)
}
