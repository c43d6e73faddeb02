package models

import "time"

// MeetingStatus mirrors the recording-bot lifecycle phases on the
// business record so the meeting stays queryable whatever happens to
// the workflow instance.
type MeetingStatus string

const (
	MeetingStatusScheduled  MeetingStatus = "scheduled"
	MeetingStatusBotJoining MeetingStatus = "bot_joining"
	MeetingStatusRecording  MeetingStatus = "recording"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusReady      MeetingStatus = "ready"
	MeetingStatusCancelled  MeetingStatus = "cancelled"
	MeetingStatusFailed     MeetingStatus = "failed"
)

// Meeting is the business record that owns one recording-bot workflow.
type Meeting struct {
	ID           string        `json:"id"        validate:"required"`
	TenantID     string        `json:"tenant_id" validate:"required"`
	UserID       string        `json:"user_id"`
	Title        string        `json:"title"`
	MeetingURL   string        `json:"meeting_url"`
	ScheduledAt  time.Time     `json:"scheduled_at"`
	Status       MeetingStatus `json:"status"`
	BotID        string        `json:"bot_id,omitempty"`
	RecordingURL string        `json:"recording_url,omitempty"`
	Transcript   string        `json:"transcript,omitempty"`
	ShouldRecord bool          `json:"should_record"`
	RecordReason string        `json:"record_reason,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
