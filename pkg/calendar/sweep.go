// Package calendar implements the periodic sweep over synced calendar
// events: each upcoming event is evaluated against the tenant's
// recording policy and, when recording is due, a meeting-bot workflow
// is started for it.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/recording"
	"github.com/outfield-crm/outfield/pkg/workflows/meetingbot"
)

// DefaultLookahead bounds how far into the future a sweep considers
// events. The bot workflow handles the final pre-join wait itself.
const DefaultLookahead = time.Hour

// Starter starts workflow instances. Start must be idempotent per
// workflow ID so repeated sweeps over the same event are harmless.
type Starter interface {
	StartWorkflow(ctx context.Context, workflowID string, definitionType models.DefinitionType, input any) error
}

// RunStats summarizes one sweep pass.
type RunStats struct {
	EventsSeen       int
	WorkflowsStarted int
	Skipped          int
}

// Sweep evaluates upcoming events and starts bot workflows.
type Sweep struct {
	calendars persistence.CalendarRepository
	policies  persistence.PolicyRepository
	tenants   persistence.TenantRepository
	meetings  persistence.MeetingRepository
	starter   Starter
	lookahead time.Duration
	logger    *slog.Logger
}

// NewSweep creates a calendar sweep.
func NewSweep(
	calendars persistence.CalendarRepository,
	policies persistence.PolicyRepository,
	tenants persistence.TenantRepository,
	meetings persistence.MeetingRepository,
	starter Starter,
	logger *slog.Logger,
) *Sweep {
	return &Sweep{
		calendars: calendars,
		policies:  policies,
		tenants:   tenants,
		meetings:  meetings,
		starter:   starter,
		lookahead: DefaultLookahead,
		logger:    logger.With("module", "calendar_sweep"),
	}
}

// RunOnce processes events starting within the lookahead window as of
// the given instant. Events are removed once decided, so a re-run only
// sees events synced since.
func (s *Sweep) RunOnce(ctx context.Context, at time.Time) (RunStats, error) {
	var stats RunStats

	events, err := s.calendars.UpcomingEvents(ctx, at, at.Add(s.lookahead))
	if err != nil {
		return stats, err
	}

	for _, event := range events {
		stats.EventsSeen++

		started, err := s.processEvent(ctx, event, at)
		if err != nil {
			s.logger.ErrorContext(ctx, "Event sweep failed",
				"event_id", event.ID, "tenant_id", event.TenantID, "error", err)

			continue
		}

		if started {
			stats.WorkflowsStarted++
		} else {
			stats.Skipped++
		}
	}

	return stats, nil
}

func (s *Sweep) processEvent(ctx context.Context, event *models.CalendarEvent, at time.Time) (bool, error) {
	policy, err := s.resolvePolicy(ctx, event)
	if err != nil {
		return false, err
	}

	internalDomains, err := s.internalDomains(ctx, event.TenantID)
	if err != nil {
		return false, err
	}

	decision := recording.Evaluate(policy, internalDomains, event)

	meeting, err := s.upsertMeeting(ctx, event, decision)
	if err != nil {
		return false, err
	}

	if decision.ShouldRecord {
		err = s.starter.StartWorkflow(ctx, meetingbot.WorkflowID(meeting.ID), models.DefinitionMeetingBot, meetingbot.Input{
			MeetingID:   meeting.ID,
			TenantID:    meeting.TenantID,
			UserID:      meeting.UserID,
			MeetingURL:  meeting.MeetingURL,
			ScheduledAt: meeting.ScheduledAt,
		})
		if err != nil {
			return false, err
		}

		s.logger.InfoContext(ctx, "Meeting bot workflow started",
			"meeting_id", meeting.ID, "rule", decision.RuleType, "reason", decision.Reason)
	}

	if err := s.calendars.Delete(ctx, event.ID); err != nil {
		return false, err
	}

	return decision.ShouldRecord, nil
}

func (s *Sweep) resolvePolicy(ctx context.Context, event *models.CalendarEvent) (*models.RecordingPolicy, error) {
	userPolicy, err := s.policies.ForUser(ctx, event.TenantID, event.UserID)
	if err != nil {
		return nil, err
	}

	tenantPolicy, err := s.policies.ForTenant(ctx, event.TenantID)
	if err != nil {
		return nil, err
	}

	return recording.Resolve(userPolicy, tenantPolicy), nil
}

func (s *Sweep) internalDomains(ctx context.Context, tenantID string) ([]string, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, persistence.ErrTenantNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return tenant.InternalDomains, nil
}

// upsertMeeting records the decision on the meeting row, creating it
// from the event when the CRM has not materialized it yet.
func (s *Sweep) upsertMeeting(ctx context.Context, event *models.CalendarEvent, decision recording.Decision) (*models.Meeting, error) {
	now := time.Now().UTC()

	meeting, err := s.meetings.GetByID(ctx, event.MeetingID)
	if errors.Is(err, persistence.ErrMeetingNotFound) {
		meeting = &models.Meeting{
			ID:          event.MeetingID,
			TenantID:    event.TenantID,
			UserID:      event.UserID,
			Title:       event.Title,
			MeetingURL:  event.MeetingURL,
			ScheduledAt: event.StartsAt,
			Status:      models.MeetingStatusScheduled,
			CreatedAt:   now,
		}
	} else if err != nil {
		return nil, err
	}

	meeting.ShouldRecord = decision.ShouldRecord
	meeting.RecordReason = decision.Reason
	meeting.UpdatedAt = now

	if err := s.meetings.Save(ctx, meeting); err != nil {
		return nil, err
	}

	return meeting, nil
}
