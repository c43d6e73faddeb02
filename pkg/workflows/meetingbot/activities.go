package meetingbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/providers/insights"
	"github.com/outfield-crm/outfield/pkg/providers/recorder"
)

// Activity names registered by this package.
const (
	ActivityCreateBot         = "meetingbot.create-bot"
	ActivityDownloadRecording = "meetingbot.download-recording"
	ActivityProcessTranscript = "meetingbot.process-transcript"
	ActivityTriggerInsights   = "meetingbot.trigger-insights"
	ActivityFinishMeeting     = "meetingbot.finish-meeting"
)

type createBotInput struct {
	MeetingID  string `json:"meeting_id"`
	MeetingURL string `json:"meeting_url"`
	WorkflowID string `json:"workflow_id"`
}

type createBotResult struct {
	BotID string `json:"bot_id"`
}

type botActivityInput struct {
	MeetingID string `json:"meeting_id"`
	BotID     string `json:"bot_id"`
}

type downloadResult struct {
	RecordingURL string `json:"recording_url"`
}

type triggerInsightsInput struct {
	MeetingID string `json:"meeting_id"`
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
}

type finishMeetingInput struct {
	MeetingID    string               `json:"meeting_id"`
	Status       models.MeetingStatus `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	RecordingURL string               `json:"recording_url,omitempty"`
}

// Activities holds the side-effecting operations of the meeting-bot
// workflow.
type Activities struct {
	meetings       persistence.MeetingRepository
	recorder       recorder.Client
	insights       insights.Client
	webhookBaseURL string
	logger         *slog.Logger
}

// NewActivities wires the meeting-bot activities. webhookBaseURL is the
// public base URL the recorder posts status callbacks to.
func NewActivities(
	meetings persistence.MeetingRepository,
	recorderClient recorder.Client,
	insightsClient insights.Client,
	webhookBaseURL string,
	logger *slog.Logger,
) *Activities {
	return &Activities{
		meetings:       meetings,
		recorder:       recorderClient,
		insights:       insightsClient,
		webhookBaseURL: webhookBaseURL,
		logger:         logger.With("module", "meetingbot_activities"),
	}
}

// Register adds all meeting-bot activities to the registry.
func (a *Activities) Register(registry *activity.Registry) {
	registry.Register(ActivityCreateBot, a.CreateBot)
	registry.Register(ActivityDownloadRecording, a.DownloadRecording)
	registry.Register(ActivityProcessTranscript, a.ProcessTranscript)
	registry.Register(ActivityTriggerInsights, a.TriggerInsights)
	registry.Register(ActivityFinishMeeting, a.FinishMeeting)
}

// CreateBot dispatches the recording bot and moves the meeting into the
// joining status.
func (a *Activities) CreateBot(ctx context.Context, input json.RawMessage) (any, error) {
	var in createBotInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode create-bot input: %w", err)
	}

	webhookURL := fmt.Sprintf("%s/webhooks/recorder/%s", a.webhookBaseURL, in.WorkflowID)

	botID, err := a.recorder.CreateBot(ctx, in.MeetingURL, webhookURL)
	if err != nil {
		return nil, err
	}

	meeting, err := a.meetings.GetByID(ctx, in.MeetingID)
	if err != nil {
		return nil, err
	}

	meeting.BotID = botID
	meeting.Status = models.MeetingStatusBotJoining
	meeting.UpdatedAt = time.Now().UTC()

	if err := a.meetings.Save(ctx, meeting); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Recording bot dispatched",
		"meeting_id", in.MeetingID, "bot_id", botID)

	return createBotResult{BotID: botID}, nil
}

// DownloadRecording fetches the recording location and stores it on the
// meeting, marking it as processing.
func (a *Activities) DownloadRecording(ctx context.Context, input json.RawMessage) (any, error) {
	var in botActivityInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode download input: %w", err)
	}

	recordingURL, err := a.recorder.FetchRecording(ctx, in.BotID)
	if err != nil {
		return nil, err
	}

	meeting, err := a.meetings.GetByID(ctx, in.MeetingID)
	if err != nil {
		return nil, err
	}

	meeting.RecordingURL = recordingURL
	meeting.Status = models.MeetingStatusProcessing
	meeting.UpdatedAt = time.Now().UTC()

	if err := a.meetings.Save(ctx, meeting); err != nil {
		return nil, err
	}

	return downloadResult{RecordingURL: recordingURL}, nil
}

// ProcessTranscript fetches and stores the call transcript.
func (a *Activities) ProcessTranscript(ctx context.Context, input json.RawMessage) (any, error) {
	var in botActivityInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode transcript input: %w", err)
	}

	transcript, err := a.recorder.FetchTranscript(ctx, in.BotID)
	if err != nil {
		return nil, err
	}

	meeting, err := a.meetings.GetByID(ctx, in.MeetingID)
	if err != nil {
		return nil, err
	}

	meeting.Transcript = transcript
	meeting.UpdatedAt = time.Now().UTC()

	if err := a.meetings.Save(ctx, meeting); err != nil {
		return nil, err
	}

	return nil, nil
}

// TriggerInsights hands the finished meeting to the insight pipeline.
func (a *Activities) TriggerInsights(ctx context.Context, input json.RawMessage) (any, error) {
	var in triggerInsightsInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode trigger-insights input: %w", err)
	}

	err := a.insights.Trigger(ctx, in.MeetingID, in.TenantID, in.UserID)
	if err != nil {
		return nil, err
	}

	return nil, nil
}

// FinishMeeting writes the terminal meeting status.
func (a *Activities) FinishMeeting(ctx context.Context, input json.RawMessage) (any, error) {
	var in finishMeetingInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode finish-meeting input: %w", err)
	}

	meeting, err := a.meetings.GetByID(ctx, in.MeetingID)
	if err != nil {
		return nil, err
	}

	meeting.Status = in.Status
	meeting.ErrorMessage = in.ErrorMessage

	if in.RecordingURL != "" {
		meeting.RecordingURL = in.RecordingURL
	}

	meeting.UpdatedAt = time.Now().UTC()

	if err := a.meetings.Save(ctx, meeting); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Meeting finalized",
		"meeting_id", in.MeetingID, "status", in.Status)

	return nil, nil
}
