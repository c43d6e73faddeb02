package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/outfield-crm/outfield/pkg/calendar"
	"github.com/outfield-crm/outfield/pkg/campaign"
)

// SchedulerManager drives the periodic passes: the calendar recording
// sweep and the campaign scheduling pass.
type SchedulerManager struct {
	id               string
	logger           *slog.Logger
	sweep            *calendar.Sweep
	campaigns        *campaign.Scheduler
	sweepSchedule    string
	campaignSchedule string
	cron             *cron.Cron
}

func NewSchedulerManager(
	id string,
	sweep *calendar.Sweep,
	campaigns *campaign.Scheduler,
	sweepSchedule string,
	campaignSchedule string,
	logger *slog.Logger,
) *SchedulerManager {
	return &SchedulerManager{
		id:               id,
		logger:           logger.With("module", "scheduler_manager", "scheduler_id", id),
		sweep:            sweep,
		campaigns:        campaigns,
		sweepSchedule:    sweepSchedule,
		campaignSchedule: campaignSchedule,
	}
}

// Start registers the cron entries and blocks until interrupted.
// Overlapping runs of the same pass are skipped rather than queued.
func (m *SchedulerManager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting scheduler manager",
		"calendar_sweep_schedule", m.sweepSchedule, "campaign_schedule", m.campaignSchedule)

	m.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := m.cron.AddFunc(m.sweepSchedule, func() { m.runSweep(ctx) })
	if err != nil {
		return err
	}

	_, err = m.cron.AddFunc(m.campaignSchedule, func() { m.runCampaigns(ctx) })
	if err != nil {
		return err
	}

	m.cron.Start()
	m.logger.InfoContext(ctx, "Scheduler started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down scheduler...")

	stopCtx := m.cron.Stop()
	<-stopCtx.Done()

	return nil
}

func (m *SchedulerManager) runSweep(ctx context.Context) {
	stats, err := m.sweep.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		m.logger.ErrorContext(ctx, "Calendar sweep failed", "error", err)

		return
	}

	m.logger.InfoContext(ctx, "Calendar sweep finished",
		"events_seen", stats.EventsSeen,
		"workflows_started", stats.WorkflowsStarted,
		"skipped", stats.Skipped,
	)
}

func (m *SchedulerManager) runCampaigns(ctx context.Context) {
	stats, err := m.campaigns.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		m.logger.ErrorContext(ctx, "Campaign scheduling pass failed", "error", err)

		return
	}

	m.logger.InfoContext(ctx, "Campaign scheduling pass finished",
		"campaigns_visited", stats.CampaignsVisited,
		"leads_processed", stats.LeadsProcessed,
		"actions_created", stats.ActionsCreated,
		"replies_detected", stats.RepliesDetected,
	)
}
