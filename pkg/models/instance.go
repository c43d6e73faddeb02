// Package models defines the core domain models for durable CRM process orchestration.
package models

import (
	"encoding/json"
	"time"
)

// DefinitionType identifies which workflow definition an instance runs.
type DefinitionType string

const (
	DefinitionMeetingBot         DefinitionType = "meeting_bot"
	DefinitionSequenceEnrollment DefinitionType = "sequence_enrollment"
)

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusRunning   InstanceStatus = "running"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusFailed    InstanceStatus = "failed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusFailed || s == InstanceStatusCancelled
}

// WaitState records an in-flight signal wait so it survives restart.
type WaitState struct {
	Names     []string  `json:"names"`
	TimeoutAt time.Time `json:"timeout_at"`
}

// WorkflowInstance is one durable, resumable execution of a long-running
// process. The ID is deterministic (e.g. "meeting-bot-<meetingId>") and
// enforces at most one live instance per key.
type WorkflowInstance struct {
	ID             string          `json:"id"              validate:"required"`
	DefinitionType DefinitionType  `json:"definition_type" validate:"required"`
	Status         InstanceStatus  `json:"status"`
	Phase          string          `json:"phase"`
	Input          json.RawMessage `json:"input,omitempty"`
	State          json.RawMessage `json:"state,omitempty"`
	HistoryCursor  int             `json:"history_cursor"`
	SignalQueue    []*Signal       `json:"signal_queue,omitempty"`
	Waiting        *WaitState      `json:"waiting,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Signal is a named, timestamped, single-shot external event delivered
// into a running workflow instance.
type Signal struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Timer is a persisted future wake-up owned by one workflow instance.
// At most one timer is pending per instance at a time.
type Timer struct {
	WorkflowID string    `json:"workflow_id"`
	FireAt     time.Time `json:"fire_at"`
	Reason     string    `json:"reason"`
}

// AttemptOutcome is the recorded result of an activity execution.
// Pending marks an attempt whose side effect was issued but whose
// outcome was never written, typically because of a crash mid-step.
type AttemptOutcome string

const (
	AttemptOutcomePending AttemptOutcome = "pending"
	AttemptOutcomeSuccess AttemptOutcome = "success"
	AttemptOutcomeFailure AttemptOutcome = "failure"
)

// ActivityAttempt records the execution of one activity step. The
// (WorkflowID, StepCursor) pair is the idempotency key: the attempt is
// written before the side effect runs, and whatever is recorded at the
// cursor is replayed instead of re-executing the step.
type ActivityAttempt struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	StepCursor    int             `json:"step_cursor"`
	ActivityName  string          `json:"activity_name"`
	AttemptNumber int             `json:"attempt_number"`
	Outcome       AttemptOutcome  `json:"outcome"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}
