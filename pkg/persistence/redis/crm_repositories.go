package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

const (
	meetingsCollection    = "meetings"
	enrollmentsCollection = "enrollments"
	stepsCollection       = "sequence_steps"
	eventsCollection      = "enrollment_events"
	campaignsCollection   = "campaigns"
	leadsCollection       = "leads"
	actionsCollection     = "lead_actions"
	messagesCollection    = "lead_messages"
	policiesCollection    = "policies"
	calendarCollection    = "calendar_events"
	tenantsCollection     = "tenants"
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

func (r *MeetingRepository) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	var meeting models.Meeting

	found, err := r.store.read(ctx, meetingsCollection, id, &meeting)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrMeetingNotFound
	}

	return &meeting, nil
}

func (r *MeetingRepository) Save(ctx context.Context, meeting *models.Meeting) error {
	meeting.UpdatedAt = time.Now().UTC()

	return r.store.write(ctx, meetingsCollection, meeting.ID, meeting)
}

// EnrollmentRepository stores enrollments, sequence steps and the
// per-step audit events.
type EnrollmentRepository struct {
	store *Persistence
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.SequenceEnrollment, error) {
	var enrollment models.SequenceEnrollment

	found, err := r.store.read(ctx, enrollmentsCollection, id, &enrollment)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrEnrollmentNotFound
	}

	return &enrollment, nil
}

func (r *EnrollmentRepository) Save(ctx context.Context, enrollment *models.SequenceEnrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()

	return r.store.write(ctx, enrollmentsCollection, enrollment.ID, enrollment)
}

func (r *EnrollmentRepository) SaveStep(ctx context.Context, step *models.SequenceStep) error {
	return r.store.write(ctx, stepsCollection, step.ID, step)
}

func (r *EnrollmentRepository) StepsBySequence(ctx context.Context, sequenceID string) ([]*models.SequenceStep, error) {
	all, err := readAll[models.SequenceStep](ctx, r.store, stepsCollection)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.SequenceStep, 0)

	for _, step := range all {
		if step.SequenceID == sequenceID {
			steps = append(steps, step)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })

	return steps, nil
}

func (r *EnrollmentRepository) RecordEvent(ctx context.Context, event *models.EnrollmentEvent) error {
	return r.store.write(ctx, eventsCollection, event.ID, event)
}

func (r *EnrollmentRepository) EventsByEnrollment(ctx context.Context, enrollmentID string) ([]*models.EnrollmentEvent, error) {
	all, err := readAll[models.EnrollmentEvent](ctx, r.store, eventsCollection)
	if err != nil {
		return nil, err
	}

	events := make([]*models.EnrollmentEvent, 0)

	for _, event := range all {
		if event.EnrollmentID == enrollmentID {
			events = append(events, event)
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

func (r *CampaignRepository) ListActive(ctx context.Context) ([]*models.LinkedInCampaign, error) {
	all, err := readAll[models.LinkedInCampaign](ctx, r.store, campaignsCollection)
	if err != nil {
		return nil, err
	}

	active := make([]*models.LinkedInCampaign, 0)

	for _, campaign := range all {
		if campaign.Status == models.CampaignStatusActive {
			active = append(active, campaign)
		}
	}

	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })

	return active, nil
}

func (r *CampaignRepository) Save(ctx context.Context, campaign *models.LinkedInCampaign) error {
	campaign.UpdatedAt = time.Now().UTC()

	return r.store.write(ctx, campaignsCollection, campaign.ID, campaign)
}

func (r *CampaignRepository) LeadsDue(ctx context.Context, campaignID string, at time.Time, limit int) ([]*models.CampaignLead, error) {
	all, err := readAll[models.CampaignLead](ctx, r.store, leadsCollection)
	if err != nil {
		return nil, err
	}

	due := make([]*models.CampaignLead, 0)

	for _, lead := range all {
		if lead.CampaignID != campaignID || lead.Status.Terminal() {
			continue
		}

		if lead.Status == models.LeadStatusPending || (lead.NextActionAt != nil && !lead.NextActionAt.After(at)) {
			due = append(due, lead)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *CampaignRepository) SaveLead(ctx context.Context, lead *models.CampaignLead) error {
	lead.UpdatedAt = time.Now().UTC()

	return r.store.write(ctx, leadsCollection, lead.ID, lead)
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

func (r *CampaignRepository) CreateAction(ctx context.Context, action *models.LeadAction) error {
	return r.store.write(ctx, actionsCollection, action.ID, action)
}

func (r *CampaignRepository) ActionsByLead(ctx context.Context, leadID string) ([]*models.LeadAction, error) {
	all, err := readAll[models.LeadAction](ctx, r.store, actionsCollection)
	if err != nil {
		return nil, err
	}

	actions := make([]*models.LeadAction, 0)

	for _, action := range all {
		if action.LeadID == leadID {
			actions = append(actions, action)
		}
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].CreatedAt.Before(actions[j].CreatedAt) })

	return actions, nil
}

func (r *CampaignRepository) RecordMessage(ctx context.Context, message *models.LeadMessage) error {
	return r.store.write(ctx, messagesCollection, message.ID, message)
}

func (r *CampaignRepository) InboundAfter(ctx context.Context, leadID string, since time.Time) (bool, error) {
	all, err := readAll[models.LeadMessage](ctx, r.store, messagesCollection)
	if err != nil {
		return false, err
	}

	for _, message := range all {
		if message.LeadID == leadID && message.Inbound && message.SentAt.After(since) {
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

func (r *PolicyRepository) Save(ctx context.Context, policy *models.RecordingPolicy) error {
	key := tenantPolicyKey(policy.TenantID)
	if policy.UserID != "" {
		key = userPolicyKey(policy.TenantID, policy.UserID)
	}

	return r.store.write(ctx, policiesCollection, key, policy)
}

func (r *PolicyRepository) ForUser(ctx context.Context, tenantID, userID string) (*models.RecordingPolicy, error) {
	var policy models.RecordingPolicy

	found, err := r.store.read(ctx, policiesCollection, userPolicyKey(tenantID, userID), &policy)
	if err != nil || !found {
		return nil, err
	}

	return &policy, nil
}

func (r *PolicyRepository) ForTenant(ctx context.Context, tenantID string) (*models.RecordingPolicy, error) {
	var policy models.RecordingPolicy

	found, err := r.store.read(ctx, policiesCollection, tenantPolicyKey(tenantID), &policy)
	if err != nil || !found {
		return nil, err
	}

	return &policy, nil
}

// CalendarRepository stores synced calendar events.
type CalendarRepository struct {
	store *Persistence
}

func (r *CalendarRepository) Save(ctx context.Context, event *models.CalendarEvent) error {
	return r.store.write(ctx, calendarCollection, event.ID, event)
}

func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	return r.store.remove(ctx, calendarCollection, id)
}

func (r *CalendarRepository) UpcomingEvents(ctx context.Context, from, until time.Time) ([]*models.CalendarEvent, error) {
	all, err := readAll[models.CalendarEvent](ctx, r.store, calendarCollection)
	if err != nil {
		return nil, err
	}

	upcoming := make([]*models.CalendarEvent, 0)

	for _, event := range all {
		if !event.StartsAt.Before(from) && event.StartsAt.Before(until) {
			upcoming = append(upcoming, event)
		}
	}

	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartsAt.Before(upcoming[j].StartsAt) })

	return upcoming, nil
}

// TenantRepository stores tenant settings.
type TenantRepository struct {
	store *Persistence
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant

	found, err := r.store.read(ctx, tenantsCollection, id, &tenant)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrTenantNotFound
	}

	return &tenant, nil
}

func (r *TenantRepository) Save(ctx context.Context, tenant *models.Tenant) error {
	return r.store.write(ctx, tenantsCollection, tenant.ID, tenant)
}
