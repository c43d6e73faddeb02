// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInstanceNotFound indicates no workflow instance exists for the given ID.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrTimerNotFound indicates no pending timer exists for the given workflow.
	ErrTimerNotFound = errors.New("timer not found")

	// ErrAttemptNotFound indicates no activity attempt was recorded at the given cursor.
	ErrAttemptNotFound = errors.New("activity attempt not found")

	// ErrMeetingNotFound indicates a meeting was not found by the given identifier.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrEnrollmentNotFound indicates an enrollment was not found by the given identifier.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrCampaignNotFound indicates a campaign was not found by the given identifier.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrLeadNotFound indicates a campaign lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("campaign lead not found")

	// ErrTenantNotFound indicates a tenant was not found by the given identifier.
	ErrTenantNotFound = errors.New("tenant not found")
)

// InstanceError wraps workflow-instance errors with operation context.
type InstanceError struct {
	Op         string // Operation being performed (e.g. "GetByID", "Save")
	WorkflowID string
	Err        error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow instance %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

// NewInstanceError creates an InstanceError with the given context.
func NewInstanceError(op, workflowID string, err error) *InstanceError {
	return &InstanceError{Op: op, WorkflowID: workflowID, Err: err}
}
