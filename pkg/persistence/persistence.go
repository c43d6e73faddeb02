// Package persistence provides the data storage abstraction layer for
// workflow instances, durable timers, activity attempts and the CRM
// records the orchestration processes read and write.
package persistence

import (
	"context"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
)

// Persistence bundles the repositories backed by one store.
type Persistence interface {
	InstanceRepository() InstanceRepository
	TimerRepository() TimerRepository
	AttemptRepository() AttemptRepository
	MeetingRepository() MeetingRepository
	EnrollmentRepository() EnrollmentRepository
	CampaignRepository() CampaignRepository
	PolicyRepository() PolicyRepository
	CalendarRepository() CalendarRepository
	TenantRepository() TenantRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// InstanceRepository stores workflow instances. Save persists the whole
// instance document, including the signal queue and wait state, so a
// restart resumes exactly at the next unresumed step.
type InstanceRepository interface {
	GetByID(ctx context.Context, workflowID string) (*models.WorkflowInstance, error)
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	ListRunning(ctx context.Context) ([]*models.WorkflowInstance, error)
	Delete(ctx context.Context, workflowID string) error
}

// TimerRepository stores at most one pending timer per workflow
// instance.
type TimerRepository interface {
	Save(ctx context.Context, timer *models.Timer) error
	GetByWorkflow(ctx context.Context, workflowID string) (*models.Timer, error)
	DueBefore(ctx context.Context, at time.Time) ([]*models.Timer, error)
	Delete(ctx context.Context, workflowID string) error
}

// AttemptRepository records activity executions keyed by
// (workflowID, stepCursor).
type AttemptRepository interface {
	Get(ctx context.Context, workflowID string, stepCursor int) (*models.ActivityAttempt, error)
	Save(ctx context.Context, attempt *models.ActivityAttempt) error
	DeleteForWorkflow(ctx context.Context, workflowID string) error
}

// MeetingRepository reads and writes meeting business records.
type MeetingRepository interface {
	GetByID(ctx context.Context, id string) (*models.Meeting, error)
	Save(ctx context.Context, meeting *models.Meeting) error
}

// EnrollmentRepository reads and writes sequence enrollments, their
// configured steps and the per-step audit events.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.SequenceEnrollment, error)
	Save(ctx context.Context, enrollment *models.SequenceEnrollment) error
	StepsBySequence(ctx context.Context, sequenceID string) ([]*models.SequenceStep, error)
	SaveStep(ctx context.Context, step *models.SequenceStep) error
	RecordEvent(ctx context.Context, event *models.EnrollmentEvent) error
	EventsByEnrollment(ctx context.Context, enrollmentID string) ([]*models.EnrollmentEvent, error)
}

// CampaignRepository reads and writes LinkedIn campaigns, leads,
// actions and lead messages.
type CampaignRepository interface {
	ListActive(ctx context.Context) ([]*models.LinkedInCampaign, error)
	Save(ctx context.Context, campaign *models.LinkedInCampaign) error
	LeadsDue(ctx context.Context, campaignID string, at time.Time, limit int) ([]*models.CampaignLead, error)
	SaveLead(ctx context.Context, lead *models.CampaignLead) error
	HasPendingAction(ctx context.Context, leadID string) (bool, error)
	CreateAction(ctx context.Context, action *models.LeadAction) error
	ActionsByLead(ctx context.Context, leadID string) ([]*models.LeadAction, error)
	RecordMessage(ctx context.Context, message *models.LeadMessage) error
	InboundAfter(ctx context.Context, leadID string, since time.Time) (bool, error)
}

// PolicyRepository resolves recording policies. ForUser and ForTenant
// return nil without error when no policy is configured at that scope.
type PolicyRepository interface {
	ForUser(ctx context.Context, tenantID, userID string) (*models.RecordingPolicy, error)
	ForTenant(ctx context.Context, tenantID string) (*models.RecordingPolicy, error)
	Save(ctx context.Context, policy *models.RecordingPolicy) error
}

// CalendarRepository stores synced calendar events awaiting the
// recording decision sweep.
type CalendarRepository interface {
	UpcomingEvents(ctx context.Context, from, until time.Time) ([]*models.CalendarEvent, error)
	Save(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

// TenantRepository reads tenant settings such as internal domains.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	Save(ctx context.Context, tenant *models.Tenant) error
}
