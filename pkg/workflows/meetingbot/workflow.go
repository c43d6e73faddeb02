// Package meetingbot implements the meeting-recording-bot lifecycle
// workflow: scheduling, joining, recording and post-processing of one
// meeting, driven by recorder webhook signals.
package meetingbot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/providers/recorder"
)

// Signals the workflow consumes.
const (
	SignalBotStatusChanged = "bot-status-changed"
	SignalCancelBot        = "cancel-bot"
)

// Workflow phases.
const (
	PhaseScheduled         = "scheduled"
	PhaseBotJoining        = "bot_joining"
	PhaseRecording         = "recording"
	PhaseDownloading       = "downloading"
	PhaseTranscribing      = "transcribing"
	PhaseTriggeringInsight = "triggering_insights"
	PhaseFinalizing        = "finalizing"
)

const (
	// joinLeadTime is how long before the scheduled start the bot is
	// dispatched.
	joinLeadTime = 2 * time.Minute
	// cancelCheckInterval bounds the pre-join wait granularity so a
	// late cancellation is observed within a minute.
	cancelCheckInterval = time.Minute
	// joinTimeout bounds how long the bot may take to reach the call.
	joinTimeout = 5 * time.Minute
	// recordingTimeout bounds the whole call duration.
	recordingTimeout = 4 * time.Hour
)

// WorkflowID returns the deterministic instance ID for a meeting,
// enforcing at most one live bot workflow per meeting.
func WorkflowID(meetingID string) string {
	return "meeting-bot-" + meetingID
}

// Input starts one meeting-bot workflow.
type Input struct {
	MeetingID   string    `json:"meeting_id" validate:"required"`
	TenantID    string    `json:"tenant_id"  validate:"required"`
	UserID      string    `json:"user_id"`
	MeetingURL  string    `json:"meeting_url"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// state is the persisted per-instance workflow state.
type state struct {
	MeetingID    string    `json:"meeting_id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	MeetingURL   string    `json:"meeting_url"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	BotID        string    `json:"bot_id,omitempty"`
	RecordingURL string    `json:"recording_url,omitempty"`
	// WaitDeadline keeps the join/recording timeout stable across
	// intermediate status signals.
	WaitDeadline time.Time `json:"wait_deadline,omitempty"`
	// FinalStatus and FinalReason route the finalizing phase to the
	// right terminal decision after the meeting record is updated.
	FinalStatus models.MeetingStatus `json:"final_status,omitempty"`
	FinalReason string               `json:"final_reason,omitempty"`
}

// statusSignal is the payload of a bot-status-changed signal.
type statusSignal struct {
	Status string `json:"status"`
}

// Definition is the meeting-bot workflow definition.
type Definition struct{}

// NewDefinition creates the meeting-bot workflow definition.
func NewDefinition() *Definition {
	return &Definition{}
}

func (d *Definition) Type() models.DefinitionType {
	return models.DefinitionMeetingBot
}

// Decide advances the bot lifecycle one step per wake-up. Cancellation
// is cooperative: it only wins when the cancel signal is consumed
// strictly before a terminal bot status in the same wait.
func (d *Definition) Decide(ctx context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
	var st state

	if err := dctx.State(&st); err != nil {
		return nil, err
	}

	if dctx.Instance.Phase == "" {
		var input Input

		if err := dctx.Input(&input); err != nil {
			return nil, err
		}

		st = state{
			MeetingID:   input.MeetingID,
			TenantID:    input.TenantID,
			UserID:      input.UserID,
			MeetingURL:  input.MeetingURL,
			ScheduledAt: input.ScheduledAt,
		}
		dctx.Instance.Phase = PhaseScheduled
	}

	switch dctx.Instance.Phase {
	case PhaseScheduled:
		return d.decideScheduled(dctx, &st)
	case PhaseBotJoining:
		return d.decideBotJoining(dctx, &st)
	case PhaseRecording:
		return d.decideRecording(dctx, &st)
	case PhaseDownloading:
		return d.decideDownloading(dctx, &st)
	case PhaseTranscribing:
		return d.decideTranscribing(dctx, &st)
	case PhaseTriggeringInsight:
		return d.decideTriggeringInsights(dctx, &st)
	case PhaseFinalizing:
		return d.decideFinalizing(dctx, &st)
	default:
		return nil, fmt.Errorf("unknown meeting-bot phase %q", dctx.Instance.Phase)
	}
}

// decideScheduled waits in bounded slices until two minutes before the
// meeting, observing a cancellation at least once per minute.
func (d *Definition) decideScheduled(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if sig := dctx.Resume.Signal; sig != nil && sig.Name == SignalCancelBot {
		return d.finalize(dctx, st, models.MeetingStatusCancelled, "cancelled before bot dispatch")
	}

	waitLeft := st.ScheduledAt.Add(-joinLeadTime).Sub(dctx.Now)
	if waitLeft > 0 {
		if err := dctx.SetState(st); err != nil {
			return nil, err
		}

		return engine.WaitSignal{Names: []string{SignalCancelBot}, Timeout: min(waitLeft, cancelCheckInterval)}, nil
	}

	dctx.Instance.Phase = PhaseBotJoining
	st.WaitDeadline = time.Time{}

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name: ActivityCreateBot,
		Input: createBotInput{
			MeetingID:  st.MeetingID,
			MeetingURL: st.MeetingURL,
			WorkflowID: dctx.Instance.ID,
		},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

// decideBotJoining handles the create-bot result, then blocks until the
// bot reports a join-terminal status or five minutes elapse.
func (d *Definition) decideBotJoining(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	switch dctx.Resume.Kind {
	case engine.ResumeActivity:
		if dctx.Resume.ActivityError != nil {
			return d.finalize(dctx, st, models.MeetingStatusFailed, dctx.Resume.ActivityError.Error())
		}

		var result createBotResult
		if err := json.Unmarshal(dctx.Resume.ActivityResult, &result); err != nil {
			return nil, fmt.Errorf("failed to decode create-bot result: %w", err)
		}

		st.BotID = result.BotID
		st.WaitDeadline = dctx.Now.Add(joinTimeout)

		return d.waitForStatus(dctx, st)

	case engine.ResumeSignal:
		if dctx.Resume.Signal.Name == SignalCancelBot {
			return d.finalize(dctx, st, models.MeetingStatusCancelled, "cancelled while bot was joining")
		}

		status, err := decodeStatus(dctx.Resume.Signal.Payload)
		if err != nil {
			return nil, err
		}

		switch status {
		case recorder.StatusFatal:
			return d.finalize(dctx, st, models.MeetingStatusFailed, "bot reported a fatal error while joining")
		case recorder.StatusInCallRecording:
			dctx.Instance.Phase = PhaseRecording
			st.WaitDeadline = dctx.Now.Add(recordingTimeout)

			return d.waitForStatus(dctx, st)
		case recorder.StatusDone, recorder.StatusCallEnded, recorder.StatusAnalysisDone:
			return d.startProcessing(dctx, st)
		default:
			// Intermediate status, keep waiting out the original deadline.
			return d.waitForStatus(dctx, st)
		}

	case engine.ResumeTimeout:
		return d.finalize(dctx, st, models.MeetingStatusFailed, "bot did not join within 5 minutes")

	case engine.ResumeStarted, engine.ResumeTimer:
	}

	// Crash recovery before the create-bot result was persisted:
	// re-issue the activity, the recorded attempt replays its result.
	return engine.RunActivity{
		Name: ActivityCreateBot,
		Input: createBotInput{
			MeetingID:  st.MeetingID,
			MeetingURL: st.MeetingURL,
			WorkflowID: dctx.Instance.ID,
		},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

// decideRecording blocks until the call finishes, fails or times out
// after four hours.
func (d *Definition) decideRecording(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	switch dctx.Resume.Kind {
	case engine.ResumeSignal:
		if dctx.Resume.Signal.Name == SignalCancelBot {
			return d.finalize(dctx, st, models.MeetingStatusCancelled, "cancelled during recording")
		}

		status, err := decodeStatus(dctx.Resume.Signal.Payload)
		if err != nil {
			return nil, err
		}

		switch status {
		case recorder.StatusFatal:
			return d.finalize(dctx, st, models.MeetingStatusFailed, "bot reported a fatal error during recording")
		case recorder.StatusDone, recorder.StatusCallEnded, recorder.StatusAnalysisDone:
			return d.startProcessing(dctx, st)
		default:
			return d.waitForStatus(dctx, st)
		}

	case engine.ResumeTimeout:
		return d.finalize(dctx, st, models.MeetingStatusFailed, "recording exceeded the 4 hour limit")

	case engine.ResumeStarted, engine.ResumeTimer, engine.ResumeActivity:
	}

	return d.waitForStatus(dctx, st)
}

func (d *Definition) decideDownloading(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind == engine.ResumeActivity {
		if dctx.Resume.ActivityError != nil {
			return d.finalize(dctx, st, models.MeetingStatusFailed, dctx.Resume.ActivityError.Error())
		}

		var result downloadResult
		if err := json.Unmarshal(dctx.Resume.ActivityResult, &result); err != nil {
			return nil, fmt.Errorf("failed to decode download result: %w", err)
		}

		st.RecordingURL = result.RecordingURL
		dctx.Instance.Phase = PhaseTranscribing

		if err := dctx.SetState(st); err != nil {
			return nil, err
		}

		return engine.RunActivity{
			Name:  ActivityProcessTranscript,
			Input: botActivityInput{MeetingID: st.MeetingID, BotID: st.BotID},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name:  ActivityDownloadRecording,
		Input: botActivityInput{MeetingID: st.MeetingID, BotID: st.BotID},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

func (d *Definition) decideTranscribing(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind == engine.ResumeActivity {
		if dctx.Resume.ActivityError != nil {
			return d.finalize(dctx, st, models.MeetingStatusFailed, dctx.Resume.ActivityError.Error())
		}

		dctx.Instance.Phase = PhaseTriggeringInsight

		if err := dctx.SetState(st); err != nil {
			return nil, err
		}

		return engine.RunActivity{
			Name: ActivityTriggerInsights,
			Input: triggerInsightsInput{
				MeetingID: st.MeetingID,
				TenantID:  st.TenantID,
				UserID:    st.UserID,
			},
			Retry: activity.RetryPolicy{MaxAttempts: 1},
		}, nil
	}

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name:  ActivityProcessTranscript,
		Input: botActivityInput{MeetingID: st.MeetingID, BotID: st.BotID},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

func (d *Definition) decideTriggeringInsights(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind == engine.ResumeActivity {
		// Fire-and-forget handoff: a failed trigger never fails the
		// recording itself.
		if dctx.Resume.ActivityError != nil {
			dctx.Logger.Warn("Insights trigger failed, continuing",
				"meeting_id", st.MeetingID, "error", dctx.Resume.ActivityError)
		}

		return d.finalize(dctx, st, models.MeetingStatusReady, "")
	}

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name: ActivityTriggerInsights,
		Input: triggerInsightsInput{
			MeetingID: st.MeetingID,
			TenantID:  st.TenantID,
			UserID:    st.UserID,
		},
		Retry: activity.RetryPolicy{MaxAttempts: 1},
	}, nil
}

// decideFinalizing completes the workflow after the meeting record was
// updated with its terminal status.
func (d *Definition) decideFinalizing(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind == engine.ResumeActivity {
		if dctx.Resume.ActivityError != nil {
			dctx.Logger.Error("Failed to update meeting terminal status",
				"meeting_id", st.MeetingID, "error", dctx.Resume.ActivityError)
		}

		switch st.FinalStatus {
		case models.MeetingStatusReady:
			return engine.Complete{}, nil
		case models.MeetingStatusCancelled:
			return engine.Cancel{Reason: st.FinalReason}, nil
		default:
			return engine.Fail{Reason: st.FinalReason}, nil
		}
	}

	return d.finishMeetingActivity(dctx, st)
}

// startProcessing transitions into the post-call pipeline.
func (d *Definition) startProcessing(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	dctx.Instance.Phase = PhaseDownloading
	st.WaitDeadline = time.Time{}

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name:  ActivityDownloadRecording,
		Input: botActivityInput{MeetingID: st.MeetingID, BotID: st.BotID},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

// waitForStatus suspends until the next bot status or cancellation,
// bounded by the deadline stored in state.
func (d *Definition) waitForStatus(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	timeout := st.WaitDeadline.Sub(dctx.Now)
	if timeout <= 0 {
		timeout = time.Second
	}

	return engine.WaitSignal{
		Names:   []string{SignalBotStatusChanged, SignalCancelBot},
		Timeout: timeout,
	}, nil
}

// finalize records the terminal status on the meeting record, then
// completes the workflow from the finalizing phase.
func (d *Definition) finalize(dctx *engine.DecisionContext, st *state, status models.MeetingStatus, reason string) (engine.Decision, error) {
	dctx.Instance.Phase = PhaseFinalizing
	st.FinalStatus = status
	st.FinalReason = reason

	return d.finishMeetingActivity(dctx, st)
}

func (d *Definition) finishMeetingActivity(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name: ActivityFinishMeeting,
		Input: finishMeetingInput{
			MeetingID:    st.MeetingID,
			Status:       st.FinalStatus,
			ErrorMessage: st.FinalReason,
			RecordingURL: st.RecordingURL,
		},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

func decodeStatus(payload json.RawMessage) (string, error) {
	var sig statusSignal

	err := json.Unmarshal(payload, &sig)
	if err != nil {
		return "", fmt.Errorf("failed to decode bot status payload: %w", err)
	}

	return sig.Status, nil
}
