package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/outfield-crm/outfield/pkg/calendar"
	"github.com/outfield-crm/outfield/pkg/campaign"
	"github.com/outfield-crm/outfield/pkg/cmd"
	"github.com/outfield-crm/outfield/pkg/log"
	"github.com/outfield-crm/outfield/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "outfield-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Run the periodic calendar sweep and campaign scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "calendar-sweep-schedule",
				Usage:   "Cron expression for the recording decision sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("CALENDAR_SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "campaign-schedule",
				Usage:   "Cron expression for the campaign scheduling pass",
				Value:   "@every 15m",
				Sources: cli.EnvVars("CAMPAIGN_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = "scheduler-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("outfield-scheduler").With("scheduler_id", schedulerID)

			logger.InfoContext(ctx, "Initializing Outfield Scheduler")

			_, err := otelhelper.NewTracer(ctx, "outfield-scheduler")
			if err != nil {
				logger.WarnContext(ctx, "Failed to initialize tracer, continuing without export", "error", err)
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "outfield-scheduler", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			starter := NewBusStarter(eventBus, logger)

			sweep := calendar.NewSweep(
				persistence.CalendarRepository(),
				persistence.PolicyRepository(),
				persistence.TenantRepository(),
				persistence.MeetingRepository(),
				starter,
				logger,
			)
			campaigns := campaign.NewScheduler(persistence.CampaignRepository(), logger)

			manager := NewSchedulerManager(
				schedulerID,
				sweep,
				campaigns,
				command.String("calendar-sweep-schedule"),
				command.String("campaign-schedule"),
				logger,
			)

			err = manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start scheduler manager", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
