package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

// MeetingRepository stores meeting business records.
type MeetingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *MeetingRepository) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := `
		SELECT id, tenant_id, user_id, title, meeting_url, scheduled_at, status,
		       bot_id, recording_url, transcript, should_record, record_reason,
		       error_message, created_at, updated_at
		FROM meetings
		WHERE id = $1
	`

	var (
		meeting     models.Meeting
		scheduledAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&meeting.ID,
		&meeting.TenantID,
		&meeting.UserID,
		&meeting.Title,
		&meeting.MeetingURL,
		&scheduledAt,
		&meeting.Status,
		&meeting.BotID,
		&meeting.RecordingURL,
		&meeting.Transcript,
		&meeting.ShouldRecord,
		&meeting.RecordReason,
		&meeting.ErrorMessage,
		&meeting.CreatedAt,
		&meeting.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrMeetingNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}

	if scheduledAt.Valid {
		meeting.ScheduledAt = scheduledAt.Time
	}

	return &meeting, nil
}

func (r *MeetingRepository) Save(ctx context.Context, meeting *models.Meeting) error {
	meeting.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO meetings (
			id, tenant_id, user_id, title, meeting_url, scheduled_at, status,
			bot_id, recording_url, transcript, should_record, record_reason,
			error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			user_id = EXCLUDED.user_id,
			title = EXCLUDED.title,
			meeting_url = EXCLUDED.meeting_url,
			scheduled_at = EXCLUDED.scheduled_at,
			status = EXCLUDED.status,
			bot_id = EXCLUDED.bot_id,
			recording_url = EXCLUDED.recording_url,
			transcript = EXCLUDED.transcript,
			should_record = EXCLUDED.should_record,
			record_reason = EXCLUDED.record_reason,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		meeting.ID,
		meeting.TenantID,
		meeting.UserID,
		meeting.Title,
		meeting.MeetingURL,
		meeting.ScheduledAt,
		meeting.Status,
		meeting.BotID,
		meeting.RecordingURL,
		meeting.Transcript,
		meeting.ShouldRecord,
		meeting.RecordReason,
		meeting.ErrorMessage,
		meeting.CreatedAt,
		meeting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}

	return nil
}

// EnrollmentRepository stores enrollments, steps and audit events.
type EnrollmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.SequenceEnrollment, error) {
	query := `
		SELECT id, tenant_id, sequence_id, contact_id, contact_email, status,
		       current_step_number, total_steps, next_scheduled_at,
		       last_outbound_at, error_message, created_at, updated_at
		FROM sequence_enrollments
		WHERE id = $1
	`

	var (
		enrollment      models.SequenceEnrollment
		nextScheduledAt sql.NullTime
		lastOutboundAt  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&enrollment.ID,
		&enrollment.TenantID,
		&enrollment.SequenceID,
		&enrollment.ContactID,
		&enrollment.ContactEmail,
		&enrollment.Status,
		&enrollment.CurrentStepNumber,
		&enrollment.TotalSteps,
		&nextScheduledAt,
		&lastOutboundAt,
		&enrollment.ErrorMessage,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrEnrollmentNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	if nextScheduledAt.Valid {
		enrollment.NextScheduledAt = &nextScheduledAt.Time
	}

	if lastOutboundAt.Valid {
		enrollment.LastOutboundAt = &lastOutboundAt.Time
	}

	return &enrollment, nil
}

func (r *EnrollmentRepository) Save(ctx context.Context, enrollment *models.SequenceEnrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO sequence_enrollments (
			id, tenant_id, sequence_id, contact_id, contact_email, status,
			current_step_number, total_steps, next_scheduled_at,
			last_outbound_at, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step_number = EXCLUDED.current_step_number,
			total_steps = EXCLUDED.total_steps,
			next_scheduled_at = EXCLUDED.next_scheduled_at,
			last_outbound_at = EXCLUDED.last_outbound_at,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.TenantID,
		enrollment.SequenceID,
		enrollment.ContactID,
		enrollment.ContactEmail,
		enrollment.Status,
		enrollment.CurrentStepNumber,
		enrollment.TotalSteps,
		nullableTime(enrollment.NextScheduledAt),
		nullableTime(enrollment.LastOutboundAt),
		enrollment.ErrorMessage,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}

	return nil
}

func (r *EnrollmentRepository) StepsBySequence(ctx context.Context, sequenceID string) ([]*models.SequenceStep, error) {
	query := `
		SELECT id, sequence_id, number, type, enabled, delay_days, delay_hours, subject, body
		FROM sequence_steps
		WHERE sequence_id = $1
		ORDER BY number
	`

	rows, err := r.db.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequence steps: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	steps := make([]*models.SequenceStep, 0)

	for rows.Next() {
		var step models.SequenceStep

		err := rows.Scan(
			&step.ID,
			&step.SequenceID,
			&step.Number,
			&step.Type,
			&step.Enabled,
			&step.DelayDays,
			&step.DelayHours,
			&step.Subject,
			&step.Body,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sequence step: %w", err)
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sequence steps: %w", err)
	}

	return steps, nil
}

func (r *EnrollmentRepository) SaveStep(ctx context.Context, step *models.SequenceStep) error {
	query := `
		INSERT INTO sequence_steps (
			id, sequence_id, number, type, enabled, delay_days, delay_hours, subject, body
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			type = EXCLUDED.type,
			enabled = EXCLUDED.enabled,
			delay_days = EXCLUDED.delay_days,
			delay_hours = EXCLUDED.delay_hours,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body
	`

	_, err := r.db.ExecContext(ctx, query,
		step.ID,
		step.SequenceID,
		step.Number,
		step.Type,
		step.Enabled,
		step.DelayDays,
		step.DelayHours,
		step.Subject,
		step.Body,
	)
	if err != nil {
		return fmt.Errorf("failed to save sequence step: %w", err)
	}

	return nil
}

func (r *EnrollmentRepository) RecordEvent(ctx context.Context, event *models.EnrollmentEvent) error {
	query := `
		INSERT INTO enrollment_events (id, enrollment_id, step_number, type, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EnrollmentID,
		event.StepNumber,
		event.Type,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record enrollment event: %w", err)
	}

	return nil
}

func (r *EnrollmentRepository) EventsByEnrollment(ctx context.Context, enrollmentID string) ([]*models.EnrollmentEvent, error) {
	query := `
		SELECT id, enrollment_id, step_number, type, detail, created_at
		FROM enrollment_events
		WHERE enrollment_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollment events: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	events := make([]*models.EnrollmentEvent, 0)

	for rows.Next() {
		var event models.EnrollmentEvent

		err := rows.Scan(&event.ID, &event.EnrollmentID, &event.StepNumber, &event.Type, &event.Detail, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment event: %w", err)
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollment events: %w", err)
	}

	return events, nil
}

// CampaignRepository stores campaigns, leads, actions and messages.
type CampaignRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CampaignRepository) ListActive(ctx context.Context) ([]*models.LinkedInCampaign, error) {
	query := `
		SELECT id, tenant_id, name, status, sender_connected, daily_limit,
		       window, steps, created_at, updated_at
		FROM linkedin_campaigns
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, models.CampaignStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active campaigns: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	campaigns := make([]*models.LinkedInCampaign, 0)

	for rows.Next() {
		var (
			campaign models.LinkedInCampaign
			window   []byte
			steps    []byte
		)

		err := rows.Scan(
			&campaign.ID,
			&campaign.TenantID,
			&campaign.Name,
			&campaign.Status,
			&campaign.SenderConnected,
			&campaign.DailyLimit,
			&window,
			&steps,
			&campaign.CreatedAt,
			&campaign.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		if len(window) > 0 {
			if err := json.Unmarshal(window, &campaign.Window); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sending window: %w", err)
			}
		}

		if len(steps) > 0 {
			if err := json.Unmarshal(steps, &campaign.Steps); err != nil {
				return nil, fmt.Errorf("failed to unmarshal campaign steps: %w", err)
			}
		}

		campaigns = append(campaigns, &campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *CampaignRepository) Save(ctx context.Context, campaign *models.LinkedInCampaign) error {
	campaign.UpdatedAt = time.Now().UTC()

	window, err := json.Marshal(campaign.Window)
	if err != nil {
		return fmt.Errorf("failed to marshal sending window: %w", err)
	}

	steps, err := json.Marshal(campaign.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign steps: %w", err)
	}

	query := `
		INSERT INTO linkedin_campaigns (
			id, tenant_id, name, status, sender_connected, daily_limit,
			window, steps, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			sender_connected = EXCLUDED.sender_connected,
			daily_limit = EXCLUDED.daily_limit,
			window = EXCLUDED.window,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.TenantID,
		campaign.Name,
		campaign.Status,
		campaign.SenderConnected,
		campaign.DailyLimit,
		window,
		steps,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

func (r *CampaignRepository) LeadsDue(ctx context.Context, campaignID string, at time.Time, limit int) ([]*models.CampaignLead, error) {
	query := `
		SELECT id, campaign_id, status, current_step, next_action_at,
		       last_inbound_at, last_outbound_at, fields, created_at, updated_at
		FROM campaign_leads
		WHERE campaign_id = $1
		  AND status NOT IN ($2, $3)
		  AND (status = $4 OR next_action_at IS NULL OR next_action_at <= $5)
		ORDER BY created_at
		LIMIT $6
	`

	rows, err := r.db.QueryContext(ctx, query,
		campaignID,
		models.LeadStatusReplied,
		models.LeadStatusCompleted,
		models.LeadStatusPending,
		at,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due leads: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	leads := make([]*models.CampaignLead, 0)

	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

func scanLead(row rowScanner) (*models.CampaignLead, error) {
	var (
		lead           models.CampaignLead
		nextActionAt   sql.NullTime
		lastInboundAt  sql.NullTime
		lastOutboundAt sql.NullTime
		fields         []byte
	)

	err := row.Scan(
		&lead.ID,
		&lead.CampaignID,
		&lead.Status,
		&lead.CurrentStep,
		&nextActionAt,
		&lastInboundAt,
		&lastOutboundAt,
		&fields,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if nextActionAt.Valid {
		lead.NextActionAt = &nextActionAt.Time
	}

	if lastInboundAt.Valid {
		lead.LastInboundAt = &lastInboundAt.Time
	}

	if lastOutboundAt.Valid {
		lead.LastOutboundAt = &lastOutboundAt.Time
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &lead.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lead fields: %w", err)
		}
	}

	return &lead, nil
}

func (r *CampaignRepository) SaveLead(ctx context.Context, lead *models.CampaignLead) error {
	lead.UpdatedAt = time.Now().UTC()

	fields, err := json.Marshal(lead.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal lead fields: %w", err)
	}

	query := `
		INSERT INTO campaign_leads (
			id, campaign_id, status, current_step, next_action_at,
			last_inbound_at, last_outbound_at, fields, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			next_action_at = EXCLUDED.next_action_at,
			last_inbound_at = EXCLUDED.last_inbound_at,
			last_outbound_at = EXCLUDED.last_outbound_at,
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.CampaignID,
		lead.Status,
		lead.CurrentStep,
		nullableTime(lead.NextActionAt),
		nullableTime(lead.LastInboundAt),
		nullableTime(lead.LastOutboundAt),
		fields,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

func (r *CampaignRepository) HasPendingAction(ctx context.Context, leadID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM lead_actions
			WHERE lead_id = $1 AND status IN ($2, $3)
		)
	`

	var pending bool

	err := r.db.QueryRowContext(ctx, query, leadID, models.ActionStatusPending, models.ActionStatusInProgress).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("failed to query pending actions: %w", err)
	}

	return pending, nil
}

func (r *CampaignRepository) CreateAction(ctx context.Context, action *models.LeadAction) error {
	query := `
		INSERT INTO lead_actions (id, lead_id, campaign_id, type, status, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		action.ID,
		action.LeadID,
		action.CampaignID,
		action.Type,
		action.Status,
		action.Content,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lead action: %w", err)
	}

	return nil
}

func (r *CampaignRepository) ActionsByLead(ctx context.Context, leadID string) ([]*models.LeadAction, error) {
	query := `
		SELECT id, lead_id, campaign_id, type, status, content, created_at
		FROM lead_actions
		WHERE lead_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead actions: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	actions := make([]*models.LeadAction, 0)

	for rows.Next() {
		var action models.LeadAction

		err := rows.Scan(&action.ID, &action.LeadID, &action.CampaignID, &action.Type, &action.Status, &action.Content, &action.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead action: %w", err)
		}

		actions = append(actions, &action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lead actions: %w", err)
	}

	return actions, nil
}

func (r *CampaignRepository) RecordMessage(ctx context.Context, message *models.LeadMessage) error {
	query := `
		INSERT INTO lead_messages (id, lead_id, inbound, body, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, message.ID, message.LeadID, message.Inbound, message.Body, message.SentAt)
	if err != nil {
		return fmt.Errorf("failed to record lead message: %w", err)
	}

	return nil
}

func (r *CampaignRepository) InboundAfter(ctx context.Context, leadID string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM lead_messages
			WHERE lead_id = $1 AND inbound AND sent_at > $2
		)
	`

	var replied bool

	err := r.db.QueryRowContext(ctx, query, leadID, since).Scan(&replied)
	if err != nil {
		return false, fmt.Errorf("failed to query inbound messages: %w", err)
	}

	return replied, nil
}

// PolicyRepository resolves recording policies per user and tenant.
type PolicyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *PolicyRepository) ForUser(ctx context.Context, tenantID, userID string) (*models.RecordingPolicy, error) {
	return r.get(ctx, tenantID, userID)
}

func (r *PolicyRepository) ForTenant(ctx context.Context, tenantID string) (*models.RecordingPolicy, error) {
	return r.get(ctx, tenantID, "")
}

// get returns nil without error when no policy is configured at the
// requested scope.
func (r *PolicyRepository) get(ctx context.Context, tenantID, userID string) (*models.RecordingPolicy, error) {
	query := `
		SELECT id, tenant_id, user_id, rule_type, keywords
		FROM recording_policies
		WHERE tenant_id = $1 AND user_id = $2
	`

	var (
		policy   models.RecordingPolicy
		keywords []byte
	)

	err := r.db.QueryRowContext(ctx, query, tenantID, userID).Scan(
		&policy.ID,
		&policy.TenantID,
		&policy.UserID,
		&policy.RuleType,
		&keywords,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan recording policy: %w", err)
	}

	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &policy.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy keywords: %w", err)
		}
	}

	return &policy, nil
}

func (r *PolicyRepository) Save(ctx context.Context, policy *models.RecordingPolicy) error {
	keywords, err := json.Marshal(policy.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal policy keywords: %w", err)
	}

	query := `
		INSERT INTO recording_policies (id, tenant_id, user_id, rule_type, keywords)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			rule_type = EXCLUDED.rule_type,
			keywords = EXCLUDED.keywords
	`

	_, err = r.db.ExecContext(ctx, query, policy.ID, policy.TenantID, policy.UserID, policy.RuleType, keywords)
	if err != nil {
		return fmt.Errorf("failed to save recording policy: %w", err)
	}

	return nil
}

// CalendarRepository stores synced calendar events.
type CalendarRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CalendarRepository) UpcomingEvents(ctx context.Context, from, until time.Time) ([]*models.CalendarEvent, error) {
	query := `
		SELECT id, tenant_id, user_id, meeting_id, title, meeting_url, starts_at, attendees
		FROM calendar_events
		WHERE starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at
	`

	rows, err := r.db.QueryContext(ctx, query, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	events := make([]*models.CalendarEvent, 0)

	for rows.Next() {
		var (
			event     models.CalendarEvent
			attendees []byte
		)

		err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.UserID,
			&event.MeetingID,
			&event.Title,
			&event.MeetingURL,
			&event.StartsAt,
			&attendees,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}

		if len(attendees) > 0 {
			if err := json.Unmarshal(attendees, &event.Attendees); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attendees: %w", err)
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calendar events: %w", err)
	}

	return events, nil
}

func (r *CalendarRepository) Save(ctx context.Context, event *models.CalendarEvent) error {
	attendees, err := json.Marshal(event.Attendees)
	if err != nil {
		return fmt.Errorf("failed to marshal attendees: %w", err)
	}

	query := `
		INSERT INTO calendar_events (id, tenant_id, user_id, meeting_id, title, meeting_url, starts_at, attendees)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			meeting_url = EXCLUDED.meeting_url,
			starts_at = EXCLUDED.starts_at,
			attendees = EXCLUDED.attendees
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.TenantID,
		event.UserID,
		event.MeetingID,
		event.Title,
		event.MeetingURL,
		event.StartsAt,
		attendees,
	)
	if err != nil {
		return fmt.Errorf("failed to save calendar event: %w", err)
	}

	return nil
}

func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}

	return nil
}

// TenantRepository stores tenant settings.
type TenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT id, name, internal_domains FROM tenants WHERE id = $1`

	var (
		tenant  models.Tenant
		domains []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &domains)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTenantNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &tenant.InternalDomains); err != nil {
			return nil, fmt.Errorf("failed to unmarshal internal domains: %w", err)
		}
	}

	return &tenant, nil
}

func (r *TenantRepository) Save(ctx context.Context, tenant *models.Tenant) error {
	domains, err := json.Marshal(tenant.InternalDomains)
	if err != nil {
		return fmt.Errorf("failed to marshal internal domains: %w", err)
	}

	query := `
		INSERT INTO tenants (id, name, internal_domains)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			internal_domains = EXCLUDED.internal_domains
	`

	_, err = r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, domains)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	return nil
}
