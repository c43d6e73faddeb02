package models

import "time"

// EnrollmentStatus is the lifecycle state of one contact's passage
// through an outreach sequence.
type EnrollmentStatus string

const (
	EnrollmentStatusActive       EnrollmentStatus = "active"
	EnrollmentStatusPaused       EnrollmentStatus = "paused"
	EnrollmentStatusCompleted    EnrollmentStatus = "completed"
	EnrollmentStatusBounced      EnrollmentStatus = "bounced"
	EnrollmentStatusUnsubscribed EnrollmentStatus = "unsubscribed"
	EnrollmentStatusCancelled    EnrollmentStatus = "cancelled"
	EnrollmentStatusReplied      EnrollmentStatus = "replied"
)

// SequenceStepType enumerates the kinds of outreach steps. Only EMAIL
// produces an external send; the others record an event for manual
// follow-through.
type SequenceStepType string

const (
	StepTypeEmail           SequenceStepType = "EMAIL"
	StepTypeWait            SequenceStepType = "WAIT"
	StepTypeTask            SequenceStepType = "TASK"
	StepTypeLinkedInConnect SequenceStepType = "LINKEDIN_CONNECT"
	StepTypeLinkedInMessage SequenceStepType = "LINKEDIN_MESSAGE"
	StepTypeLinkedInView    SequenceStepType = "LINKEDIN_VIEW"
)

// SequenceEnrollment is the durable index row for one enrollment
// workflow. The workflow body is stateless between cycles; this record
// carries all progress that must outlive a continuation.
type SequenceEnrollment struct {
	ID                string           `json:"id"          validate:"required"`
	TenantID          string           `json:"tenant_id"   validate:"required"`
	SequenceID        string           `json:"sequence_id" validate:"required"`
	ContactID         string           `json:"contact_id"`
	ContactEmail      string           `json:"contact_email"`
	Status            EnrollmentStatus `json:"status"`
	CurrentStepNumber int              `json:"current_step_number"`
	TotalSteps        int              `json:"total_steps"`
	NextScheduledAt   *time.Time       `json:"next_scheduled_at,omitempty"`
	LastOutboundAt    *time.Time       `json:"last_outbound_at,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// SequenceStep is one configured step of an outreach sequence.
type SequenceStep struct {
	ID         string           `json:"id"`
	SequenceID string           `json:"sequence_id"`
	Number     int              `json:"number"`
	Type       SequenceStepType `json:"type"    validate:"required"`
	Enabled    bool             `json:"enabled"`
	DelayDays  int              `json:"delay_days"`
	DelayHours int              `json:"delay_hours"`
	Subject    string           `json:"subject,omitempty"`
	Body       string           `json:"body,omitempty"`
}

// Delay returns the configured wait before this step executes.
func (s *SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// EnrollmentEvent is the audit trail entry recorded per executed step.
type EnrollmentEvent struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	StepNumber   int       `json:"step_number"`
	Type         string    `json:"type"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
