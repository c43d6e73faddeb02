package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/outfield-crm/outfield/pkg/cmd"
	"github.com/outfield-crm/outfield/pkg/log"
	"github.com/outfield-crm/outfield/pkg/otelhelper"
	"github.com/outfield-crm/outfield/pkg/web"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("outfield-webhook")

	command := &cli.Command{
		Name:                  "outfield-webhook",
		Usage:                 "Receive recorder and email provider callbacks and relay them as workflow signals",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the webhook server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Outfield Webhook")

			_, err := otelhelper.NewTracer(ctx, "outfield-webhook")
			if err != nil {
				logger.WarnContext(ctx, "Failed to initialize tracer, continuing without export", "error", err)
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "outfield-webhook", logger)
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

			handlers := web.NewWebhookHandlers(eventBus, persistence, logger)
			app := web.NewApp(handlers)

			go func() {
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

				<-sigChan
				logger.InfoContext(ctx, "Shutting down webhook server...")

				err := app.Shutdown()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to shut down webhook server", "error", err)
				}
			}()

			err = app.Listen(":" + strconv.Itoa(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Webhook server stopped", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
