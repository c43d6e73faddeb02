package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/cmd"
	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/log"
	"github.com/outfield-crm/outfield/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "outfield-engine",
		EnableShellCompletion: true,
		Usage:                 "Run the durable workflow engine for meeting bots and sequence enrollments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
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
			&cli.DurationFlag{
				Name:    "timer-poll-interval",
				Usage:   "Resolution of the durable timer poller",
				Value:   time.Second,
				Sources: cli.EnvVars("TIMER_POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:     "webhook-base-url",
				Usage:    "Public base URL the recorder posts status callbacks to",
				Required: true,
				Sources:  cli.EnvVars("WEBHOOK_BASE_URL"),
			},
			&cli.StringFlag{
				Name:     "recorder-url",
				Usage:    "Meeting recorder provider base URL",
				Required: true,
				Sources:  cli.EnvVars("RECORDER_URL"),
			},
			&cli.StringFlag{
				Name:    "recorder-api-key",
				Usage:   "Meeting recorder provider API key",
				Sources: cli.EnvVars("RECORDER_API_KEY"),
			},
			&cli.StringFlag{
				Name:     "email-provider-url",
				Usage:    "Email provider base URL",
				Required: true,
				Sources:  cli.EnvVars("EMAIL_PROVIDER_URL"),
			},
			&cli.StringFlag{
				Name:    "email-access-token",
				Usage:   "Access token for the sending email account",
				Sources: cli.EnvVars("EMAIL_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:     "insights-url",
				Usage:    "Conversation insights service base URL",
				Required: true,
				Sources:  cli.EnvVars("INSIGHTS_URL"),
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

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("outfield-engine").With("engine_id", engineID)

			logger.InfoContext(ctx, "Initializing Outfield Engine")

			_, err := otelhelper.NewTracer(ctx, "outfield-engine")
			if err != nil {
				logger.WarnContext(ctx, "Failed to initialize tracer, continuing without export", "error", err)
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "outfield-engine", logger)
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

			registry := cmd.NewActivityRegistry(persistence, cmd.ProviderConfig{
				RecorderURL:      command.String("recorder-url"),
				RecorderAPIKey:   command.String("recorder-api-key"),
				EmailProviderURL: command.String("email-provider-url"),
				EmailAccessToken: command.String("email-access-token"),
				InsightsURL:      command.String("insights-url"),
				WebhookBaseURL:   command.String("webhook-base-url"),
			}, logger)

			executor := activity.NewExecutor(registry, logger)
			eng := engine.NewEngine(persistence, executor, eventBus, logger)
			cmd.RegisterDefinitions(eng)

			poller := engine.NewTimerPoller(eng, logger, command.Duration("timer-poll-interval"))

			manager := NewEngineManager(engineID, eng, poller, eventBus, logger)

			err = manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start engine manager", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
