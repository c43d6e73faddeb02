package enrollment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/providers/email"
)

// Activity names registered by this package.
const (
	ActivityLoad        = "enrollment.load"
	ActivityCheckReply  = "enrollment.check-reply"
	ActivitySendEmail   = "enrollment.send-email"
	ActivityRecordEvent = "enrollment.record-event"
	ActivityAdvance     = "enrollment.advance"
)

// Audit event types written per executed step.
const (
	EventEmailSent     = "EMAIL_SENT"
	EventEmailBounced  = "EMAIL_BOUNCED"
	EventStepRecorded  = "STEP_RECORDED"
	EventReplyDetected = "REPLY_DETECTED"
)

type loadInput struct {
	EnrollmentID string `json:"enrollment_id"`
}

type loadResult struct {
	Active    bool     `json:"active"`
	StepFound bool     `json:"step_found"`
	FirstStep bool     `json:"first_step"`
	Step      stepInfo `json:"step"`
}

type checkReplyInput struct {
	EnrollmentID string `json:"enrollment_id"`
}

type checkReplyResult struct {
	Active  bool `json:"active"`
	Replied bool `json:"replied"`
}

type sendEmailInput struct {
	EnrollmentID string `json:"enrollment_id"`
	StepNumber   int    `json:"step_number"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

type sendEmailResult struct {
	Bounced    bool   `json:"bounced"`
	ExternalID string `json:"external_id,omitempty"`
}

type recordEventInput struct {
	EnrollmentID string                  `json:"enrollment_id"`
	StepNumber   int                     `json:"step_number"`
	StepType     models.SequenceStepType `json:"step_type"`
}

type advanceInput struct {
	EnrollmentID string `json:"enrollment_id"`
	// NoStep marks the cursor pointing past the configured steps; the
	// enrollment completes instead of advancing.
	NoStep bool `json:"no_step,omitempty"`
}

type advanceResult struct {
	Completed bool `json:"completed"`
}

// Activities holds the side-effecting operations of the enrollment
// workflow.
type Activities struct {
	enrollments persistence.EnrollmentRepository
	email       email.Client
	accessToken string
	logger      *slog.Logger
}

// NewActivities wires the enrollment activities. accessToken
// authenticates outbound provider calls for the sending account.
func NewActivities(
	enrollments persistence.EnrollmentRepository,
	emailClient email.Client,
	accessToken string,
	logger *slog.Logger,
) *Activities {
	return &Activities{
		enrollments: enrollments,
		email:       emailClient,
		accessToken: accessToken,
		logger:      logger.With("module", "enrollment_activities"),
	}
}

// Register adds all enrollment activities to the registry.
func (a *Activities) Register(registry *activity.Registry) {
	registry.Register(ActivityLoad, a.Load)
	registry.Register(ActivityCheckReply, a.CheckReply)
	registry.Register(ActivitySendEmail, a.SendEmail)
	registry.Register(ActivityRecordEvent, a.RecordEvent)
	registry.Register(ActivityAdvance, a.Advance)
}

// Load snapshots the enrollment and its current step for one cycle.
func (a *Activities) Load(ctx context.Context, input json.RawMessage) (any, error) {
	var in loadInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode load input: %w", err)
	}

	enrollment, err := a.enrollments.GetByID(ctx, in.EnrollmentID)
	if err != nil {
		return nil, err
	}

	result := loadResult{
		Active:    enrollment.Status == models.EnrollmentStatusActive,
		FirstStep: enrollment.CurrentStepNumber <= 1,
	}

	if !result.Active {
		return result, nil
	}

	step, err := a.stepAt(ctx, enrollment.SequenceID, enrollment.CurrentStepNumber)
	if err != nil {
		return nil, err
	}

	if step != nil {
		result.StepFound = true
		result.Step = stepInfo{
			Number:     step.Number,
			Type:       step.Type,
			Enabled:    step.Enabled,
			Subject:    step.Subject,
			Body:       step.Body,
			DelayDays:  step.DelayDays,
			DelayHours: step.DelayHours,
		}
	}

	return result, nil
}

// CheckReply re-reads the enrollment after a delay and queries the
// provider for inbound messages since the last outbound send. A reply
// flips the enrollment to Replied here, nowhere else.
func (a *Activities) CheckReply(ctx context.Context, input json.RawMessage) (any, error) {
	var in checkReplyInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode reply-check input: %w", err)
	}

	enrollment, err := a.enrollments.GetByID(ctx, in.EnrollmentID)
	if err != nil {
		return nil, err
	}

	if enrollment.Status != models.EnrollmentStatusActive {
		return checkReplyResult{Active: false}, nil
	}

	if enrollment.LastOutboundAt == nil || enrollment.ContactEmail == "" {
		return checkReplyResult{Active: true}, nil
	}

	replied, err := a.email.HasInboundAfter(ctx, a.accessToken, enrollment.ContactEmail, *enrollment.LastOutboundAt)
	if err != nil {
		return nil, err
	}

	if !replied {
		return checkReplyResult{Active: true}, nil
	}

	now := time.Now().UTC()
	enrollment.Status = models.EnrollmentStatusReplied
	enrollment.NextScheduledAt = nil
	enrollment.UpdatedAt = now

	if err := a.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}

	if err := a.recordEvent(ctx, enrollment.ID, enrollment.CurrentStepNumber, EventReplyDetected, ""); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Reply detected, enrollment terminated",
		"enrollment_id", enrollment.ID)

	return checkReplyResult{Active: true, Replied: true}, nil
}

// SendEmail sends the step's email. A hard bounce is a business
// outcome, not a failure: the enrollment is marked Bounced, the event
// recorded, and the result reports it so the workflow ends after
// exactly one attempt.
func (a *Activities) SendEmail(ctx context.Context, input json.RawMessage) (any, error) {
	var in sendEmailInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode send input: %w", err)
	}

	enrollment, err := a.enrollments.GetByID(ctx, in.EnrollmentID)
	if err != nil {
		return nil, err
	}

	result, err := a.email.Send(ctx, a.accessToken, email.Message{
		To:      enrollment.ContactEmail,
		Subject: in.Subject,
		Body:    in.Body,
	})

	if errors.Is(err, email.ErrBounced) {
		return a.markBounced(ctx, enrollment, in.StepNumber, err)
	}

	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	enrollment.LastOutboundAt = &now
	enrollment.UpdatedAt = now

	if err := a.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}

	if err := a.recordEvent(ctx, enrollment.ID, in.StepNumber, EventEmailSent, result.ExternalID); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Enrollment email sent",
		"enrollment_id", enrollment.ID, "step", in.StepNumber, "external_id", result.ExternalID)

	return sendEmailResult{ExternalID: result.ExternalID}, nil
}

// RecordEvent writes the audit entry for manual-follow-through step
// types (WAIT, TASK and the LinkedIn steps).
func (a *Activities) RecordEvent(ctx context.Context, input json.RawMessage) (any, error) {
	var in recordEventInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode record-event input: %w", err)
	}

	err := a.recordEvent(ctx, in.EnrollmentID, in.StepNumber, EventStepRecorded, string(in.StepType))
	if err != nil {
		return nil, err
	}

	return nil, nil
}

// Advance moves the cursor to the next step, marking the enrollment
// Completed past the last step and stamping nextScheduledAt otherwise.
func (a *Activities) Advance(ctx context.Context, input json.RawMessage) (any, error) {
	var in advanceInput

	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("failed to decode advance input: %w", err)
	}

	enrollment, err := a.enrollments.GetByID(ctx, in.EnrollmentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if in.NoStep || enrollment.CurrentStepNumber+1 > enrollment.TotalSteps {
		enrollment.Status = models.EnrollmentStatusCompleted
		enrollment.NextScheduledAt = nil
		enrollment.UpdatedAt = now

		if err := a.enrollments.Save(ctx, enrollment); err != nil {
			return nil, err
		}

		a.logger.InfoContext(ctx, "Enrollment completed", "enrollment_id", enrollment.ID)

		return advanceResult{Completed: true}, nil
	}

	enrollment.CurrentStepNumber++

	next, err := a.stepAt(ctx, enrollment.SequenceID, enrollment.CurrentStepNumber)
	if err != nil {
		return nil, err
	}

	scheduledAt := now
	if next != nil {
		scheduledAt = now.Add(next.Delay())
	}

	enrollment.NextScheduledAt = &scheduledAt
	enrollment.UpdatedAt = now

	if err := a.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}

	return advanceResult{}, nil
}

func (a *Activities) markBounced(ctx context.Context, enrollment *models.SequenceEnrollment, stepNumber int, sendErr error) (any, error) {
	now := time.Now().UTC()
	enrollment.Status = models.EnrollmentStatusBounced
	enrollment.NextScheduledAt = nil
	enrollment.ErrorMessage = sendErr.Error()
	enrollment.UpdatedAt = now

	if err := a.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}

	if err := a.recordEvent(ctx, enrollment.ID, stepNumber, EventEmailBounced, sendErr.Error()); err != nil {
		return nil, err
	}

	a.logger.WarnContext(ctx, "Enrollment email bounced",
		"enrollment_id", enrollment.ID, "step", stepNumber)

	return sendEmailResult{Bounced: true}, nil
}

func (a *Activities) recordEvent(ctx context.Context, enrollmentID string, stepNumber int, eventType, detail string) error {
	return a.enrollments.RecordEvent(ctx, &models.EnrollmentEvent{
		ID:           uuid.New().String(),
		EnrollmentID: enrollmentID,
		StepNumber:   stepNumber,
		Type:         eventType,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	})
}

func (a *Activities) stepAt(ctx context.Context, sequenceID string, number int) (*models.SequenceStep, error) {
	steps, err := a.enrollments.StepsBySequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}

	for _, step := range steps {
		if step.Number == number {
			return step, nil
		}
	}

	return nil, nil
}
