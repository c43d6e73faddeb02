// Package campaign implements the LinkedIn campaign scheduler: a
// periodic, idempotent batch pass that enqueues the next action per due
// lead. It is not durable; every invariant it needs is re-derived from
// stored campaign and lead state on each run.
package campaign

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outfield-crm/outfield/pkg/models"
	"github.com/outfield-crm/outfield/pkg/persistence"
)

// actionSpacing paces consecutive actions for the same lead.
const actionSpacing = 24 * time.Hour

// RunStats summarizes one scheduler pass.
type RunStats struct {
	CampaignsVisited int
	LeadsProcessed   int
	ActionsCreated   int
	RepliesDetected  int
}

// Scheduler enqueues LinkedIn actions for due campaign leads.
type Scheduler struct {
	campaigns persistence.CampaignRepository
	logger    *slog.Logger
}

// NewScheduler creates a campaign scheduler.
func NewScheduler(campaigns persistence.CampaignRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		campaigns: campaigns,
		logger:    logger.With("module", "campaign_scheduler"),
	}
}

// RunOnce performs one scheduling pass as of the given instant. It is
// safe to re-run: leads with a pending action are skipped, so a crashed
// or overlapping run never double-creates actions.
func (s *Scheduler) RunOnce(ctx context.Context, at time.Time) (RunStats, error) {
	var stats RunStats

	campaigns, err := s.campaigns.ListActive(ctx)
	if err != nil {
		return stats, err
	}

	for _, campaign := range campaigns {
		if campaign.Status != models.CampaignStatusActive || !campaign.SenderConnected {
			continue
		}

		if !campaign.Window.Contains(at) {
			continue
		}

		stats.CampaignsVisited++

		if err := s.runCampaign(ctx, campaign, at, &stats); err != nil {
			s.logger.ErrorContext(ctx, "Campaign pass failed",
				"campaign_id", campaign.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Scheduler pass finished",
		"campaigns", stats.CampaignsVisited,
		"leads", stats.LeadsProcessed,
		"actions", stats.ActionsCreated,
		"replies", stats.RepliesDetected)

	return stats, nil
}

func (s *Scheduler) runCampaign(ctx context.Context, campaign *models.LinkedInCampaign, at time.Time, stats *RunStats) error {
	leads, err := s.campaigns.LeadsDue(ctx, campaign.ID, at, campaign.DailyLimit)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		pending, err := s.campaigns.HasPendingAction(ctx, lead.ID)
		if err != nil {
			return err
		}

		if pending {
			continue
		}

		stats.LeadsProcessed++

		if err := s.processLead(ctx, campaign, lead, at, stats); err != nil {
			s.logger.ErrorContext(ctx, "Lead scheduling failed",
				"campaign_id", campaign.ID, "lead_id", lead.ID, "error", err)
		}
	}

	return nil
}

func (s *Scheduler) processLead(ctx context.Context, campaign *models.LinkedInCampaign, lead *models.CampaignLead, at time.Time, stats *RunStats) error {
	switch lead.Status {
	case models.LeadStatusPending:
		return s.startLead(ctx, campaign, lead, at, stats)

	case models.LeadStatusConnected, models.LeadStatusMessaged, models.LeadStatusAwaitingReply:
		return s.advanceLead(ctx, campaign, lead, at, stats)

	default:
		// CheckingProfile waits on external action execution; terminal
		// statuses never reach here via LeadsDue.
		return nil
	}
}

// startLead enqueues the initial profile view plus the first enabled
// step and moves the lead to profile checking.
func (s *Scheduler) startLead(ctx context.Context, campaign *models.LinkedInCampaign, lead *models.CampaignLead, at time.Time, stats *RunStats) error {
	if err := s.createAction(ctx, campaign, lead, models.CampaignStepView, "", at, stats); err != nil {
		return err
	}

	first := campaign.NextEnabledStep(1)
	if first != nil {
		content := Personalize(first.Template, lead.Fields)

		if err := s.createAction(ctx, campaign, lead, first.Type, content, at, stats); err != nil {
			return err
		}

		lead.CurrentStep = first.Number
	}

	lead.Status = models.LeadStatusCheckingProfile

	return s.saveLead(ctx, lead, at, at.Add(actionSpacing))
}

// advanceLead stops on a detected reply, otherwise enqueues the next
// enabled step or completes the lead when none remains.
func (s *Scheduler) advanceLead(ctx context.Context, campaign *models.LinkedInCampaign, lead *models.CampaignLead, at time.Time, stats *RunStats) error {
	replied, err := s.hasReply(ctx, lead)
	if err != nil {
		return err
	}

	if replied {
		stats.RepliesDetected++
		lead.Status = models.LeadStatusReplied
		lead.NextActionAt = nil
		lead.UpdatedAt = at

		return s.campaigns.SaveLead(ctx, lead)
	}

	next := campaign.NextEnabledStep(lead.CurrentStep + 1)
	if next == nil {
		lead.Status = models.LeadStatusCompleted
		lead.NextActionAt = nil
		lead.UpdatedAt = at

		return s.campaigns.SaveLead(ctx, lead)
	}

	content := Personalize(next.Template, lead.Fields)

	if err := s.createAction(ctx, campaign, lead, next.Type, content, at, stats); err != nil {
		return err
	}

	lead.CurrentStep = next.Number

	return s.saveLead(ctx, lead, at, at.Add(actionSpacing))
}

// hasReply is the authoritative reply check: it queries the message
// store for inbound messages after the last outbound send. The cached
// LastInboundAt timestamp is only used to skip the query when it
// already proves a reply.
func (s *Scheduler) hasReply(ctx context.Context, lead *models.CampaignLead) (bool, error) {
	if lead.LastOutboundAt == nil {
		return false, nil
	}

	if lead.LastInboundAt != nil && lead.LastInboundAt.After(*lead.LastOutboundAt) {
		return true, nil
	}

	return s.campaigns.InboundAfter(ctx, lead.ID, *lead.LastOutboundAt)
}

func (s *Scheduler) createAction(ctx context.Context, campaign *models.LinkedInCampaign, lead *models.CampaignLead, actionType models.CampaignStepType, content string, at time.Time, stats *RunStats) error {
	err := s.campaigns.CreateAction(ctx, &models.LeadAction{
		ID:         uuid.New().String(),
		LeadID:     lead.ID,
		CampaignID: campaign.ID,
		Type:       actionType,
		Status:     models.ActionStatusPending,
		Content:    content,
		CreatedAt:  at,
	})
	if err != nil {
		return err
	}

	stats.ActionsCreated++

	return nil
}

func (s *Scheduler) saveLead(ctx context.Context, lead *models.CampaignLead, at, nextActionAt time.Time) error {
	lead.NextActionAt = &nextActionAt
	lead.UpdatedAt = at

	return s.campaigns.SaveLead(ctx, lead)
}
