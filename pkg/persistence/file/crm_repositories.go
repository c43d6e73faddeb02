package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

const (
	meetingsDir    = "meetings"
	enrollmentsDir = "enrollments"
	stepsDir       = "sequence_steps"
	eventsDir      = "enrollment_events"
	campaignsDir   = "campaigns"
	leadsDir       = "leads"
	actionsDir     = "lead_actions"
	messagesDir    = "lead_messages"
	policiesDir    = "policies"
	calendarDir    = "calendar_events"
	tenantsDir     = "tenants"
)

// MeetingRepository returns the meeting repository.
func (p *Persistence) MeetingRepository() persistence.MeetingRepository { return p.meetings }

// EnrollmentRepository returns the enrollment repository.
func (p *Persistence) EnrollmentRepository() persistence.EnrollmentRepository { return p.enrollments }

// CampaignRepository returns the campaign repository.
func (p *Persistence) CampaignRepository() persistence.CampaignRepository { return p.campaigns }

// PolicyRepository returns the recording policy repository.
func (p *Persistence) PolicyRepository() persistence.PolicyRepository { return p.policies }

// CalendarRepository returns the calendar event repository.
func (p *Persistence) CalendarRepository() persistence.CalendarRepository { return p.calendar }

// TenantRepository returns the tenant repository.
func (p *Persistence) TenantRepository() persistence.TenantRepository { return p.tenants }

// MeetingRepository stores meeting business records.
type MeetingRepository struct {
	store *Persistence
}

func (r *MeetingRepository) GetByID(_ context.Context, id string) (*models.Meeting, error) {
	var meeting models.Meeting

	found, err := r.store.read(meetingsDir, id, &meeting)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrMeetingNotFound
	}

	return &meeting, nil
}

func (r *MeetingRepository) Save(_ context.Context, meeting *models.Meeting) error {
	meeting.UpdatedAt = time.Now().UTC()

	return r.store.write(meetingsDir, meeting.ID, meeting)
}

// EnrollmentRepository stores enrollments, sequence steps and the
// per-step audit events.
type EnrollmentRepository struct {
	store *Persistence
}

func (r *EnrollmentRepository) GetByID(_ context.Context, id string) (*models.SequenceEnrollment, error) {
	var enrollment models.SequenceEnrollment

	found, err := r.store.read(enrollmentsDir, id, &enrollment)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrEnrollmentNotFound
	}

	return &enrollment, nil
}

func (r *EnrollmentRepository) Save(_ context.Context, enrollment *models.SequenceEnrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()

	return r.store.write(enrollmentsDir, enrollment.ID, enrollment)
}

func (r *EnrollmentRepository) SaveStep(_ context.Context, step *models.SequenceStep) error {
	return r.store.write(stepsDir, step.ID, step)
}

func (r *EnrollmentRepository) StepsBySequence(_ context.Context, sequenceID string) ([]*models.SequenceStep, error) {
	ids, err := r.store.list(stepsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sequence steps: %w", err)
	}

	steps := make([]*models.SequenceStep, 0)

	for _, id := range ids {
		var step models.SequenceStep

		found, err := r.store.read(stepsDir, id, &step)
		if err != nil {
			return nil, err
		}

		if found && step.SequenceID == sequenceID {
			steps = append(steps, &step)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })

	return steps, nil
}

func (r *EnrollmentRepository) RecordEvent(_ context.Context, event *models.EnrollmentEvent) error {
	return r.store.write(eventsDir, event.ID, event)
}

func (r *EnrollmentRepository) EventsByEnrollment(_ context.Context, enrollmentID string) ([]*models.EnrollmentEvent, error) {
	ids, err := r.store.list(eventsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollment events: %w", err)
	}

	events := make([]*models.EnrollmentEvent, 0)

	for _, id := range ids {
		var event models.EnrollmentEvent

		found, err := r.store.read(eventsDir, id, &event)
		if err != nil {
			return nil, err
		}

		if found && event.EnrollmentID == enrollmentID {
			events = append(events, &event)
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })

	return events, nil
}

// CampaignRepository stores campaigns, leads, queued actions and lead
// messages.
type CampaignRepository struct {
	store *Persistence
}

func (r *CampaignRepository) ListActive(_ context.Context) ([]*models.LinkedInCampaign, error) {
	ids, err := r.store.list(campaignsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	active := make([]*models.LinkedInCampaign, 0)

	for _, id := range ids {
		var campaign models.LinkedInCampaign

		found, err := r.store.read(campaignsDir, id, &campaign)
		if err != nil {
			return nil, err
		}

		if found && campaign.Status == models.CampaignStatusActive {
			active = append(active, &campaign)
		}
	}

	return active, nil
}

func (r *CampaignRepository) Save(_ context.Context, campaign *models.LinkedInCampaign) error {
	campaign.UpdatedAt = time.Now().UTC()

	return r.store.write(campaignsDir, campaign.ID, campaign)
}

func (r *CampaignRepository) LeadsDue(_ context.Context, campaignID string, at time.Time, limit int) ([]*models.CampaignLead, error) {
	ids, err := r.store.list(leadsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	due := make([]*models.CampaignLead, 0)

	for _, id := range ids {
		var lead models.CampaignLead

		found, err := r.store.read(leadsDir, id, &lead)
		if err != nil {
			return nil, err
		}

		if !found || lead.CampaignID != campaignID || lead.Status.Terminal() {
			continue
		}

		if lead.Status == models.LeadStatusPending || (lead.NextActionAt != nil && !lead.NextActionAt.After(at)) {
			due = append(due, &lead)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *CampaignRepository) SaveLead(_ context.Context, lead *models.CampaignLead) error {
	lead.UpdatedAt = time.Now().UTC()

	return r.store.write(leadsDir, lead.ID, lead)
}

func (r *CampaignRepository) HasPendingAction(ctx context.Context, leadID string) (bool, error) {
	actions, err := r.ActionsByLead(ctx, leadID)
	if err != nil {
		return false, err
	}

	for _, action := range actions {
		if action.Status.Pending() {
			return true, nil
		}
	}

	return false, nil
}

func (r *CampaignRepository) CreateAction(_ context.Context, action *models.LeadAction) error {
	return r.store.write(actionsDir, action.ID, action)
}

func (r *CampaignRepository) ActionsByLead(_ context.Context, leadID string) ([]*models.LeadAction, error) {
	ids, err := r.store.list(actionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead actions: %w", err)
	}

	actions := make([]*models.LeadAction, 0)

	for _, id := range ids {
		var action models.LeadAction

		found, err := r.store.read(actionsDir, id, &action)
		if err != nil {
			return nil, err
		}

		if found && action.LeadID == leadID {
			actions = append(actions, &action)
		}
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].CreatedAt.Before(actions[j].CreatedAt) })

	return actions, nil
}

func (r *CampaignRepository) RecordMessage(_ context.Context, message *models.LeadMessage) error {
	return r.store.write(messagesDir, message.ID, message)
}

func (r *CampaignRepository) InboundAfter(_ context.Context, leadID string, since time.Time) (bool, error) {
	ids, err := r.store.list(messagesDir)
	if err != nil {
		return false, fmt.Errorf("failed to list lead messages: %w", err)
	}

	for _, id := range ids {
		var message models.LeadMessage

		found, err := r.store.read(messagesDir, id, &message)
		if err != nil {
			return false, err
		}

		if found && message.LeadID == leadID && message.Inbound && message.SentAt.After(since) {
			return true, nil
		}
	}

	return false, nil
}

// PolicyRepository stores recording policies. User-scoped policies are
// keyed by tenant and user, tenant defaults by tenant alone.
type PolicyRepository struct {
	store *Persistence
}

func userPolicyKey(tenantID, userID string) string {
	return fmt.Sprintf("%s-user-%s", tenantID, userID)
}

func tenantPolicyKey(tenantID string) string {
	return tenantID + "-default"
}

func (r *PolicyRepository) Save(_ context.Context, policy *models.RecordingPolicy) error {
	key := tenantPolicyKey(policy.TenantID)
	if policy.UserID != "" {
		key = userPolicyKey(policy.TenantID, policy.UserID)
	}

	return r.store.write(policiesDir, key, policy)
}

func (r *PolicyRepository) ForUser(_ context.Context, tenantID, userID string) (*models.RecordingPolicy, error) {
	var policy models.RecordingPolicy

	found, err := r.store.read(policiesDir, userPolicyKey(tenantID, userID), &policy)
	if err != nil || !found {
		return nil, err
	}

	return &policy, nil
}

func (r *PolicyRepository) ForTenant(_ context.Context, tenantID string) (*models.RecordingPolicy, error) {
	var policy models.RecordingPolicy

	found, err := r.store.read(policiesDir, tenantPolicyKey(tenantID), &policy)
	if err != nil || !found {
		return nil, err
	}

	return &policy, nil
}

// CalendarRepository stores synced calendar events.
type CalendarRepository struct {
	store *Persistence
}

func (r *CalendarRepository) Save(_ context.Context, event *models.CalendarEvent) error {
	return r.store.write(calendarDir, event.ID, event)
}

func (r *CalendarRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(calendarDir, id)
}

func (r *CalendarRepository) UpcomingEvents(_ context.Context, from, until time.Time) ([]*models.CalendarEvent, error) {
	ids, err := r.store.list(calendarDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	upcoming := make([]*models.CalendarEvent, 0)

	for _, id := range ids {
		var event models.CalendarEvent

		found, err := r.store.read(calendarDir, id, &event)
		if err != nil {
			return nil, err
		}

		if found && !event.StartsAt.Before(from) && event.StartsAt.Before(until) {
			upcoming = append(upcoming, &event)
		}
	}

	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartsAt.Before(upcoming[j].StartsAt) })

	return upcoming, nil
}

// TenantRepository stores tenant settings.
type TenantRepository struct {
	store *Persistence
}

func (r *TenantRepository) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant

	found, err := r.store.read(tenantsDir, id, &tenant)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrTenantNotFound
	}

	return &tenant, nil
}

func (r *TenantRepository) Save(_ context.Context, tenant *models.Tenant) error {
	return r.store.write(tenantsDir, tenant.ID, tenant)
}
