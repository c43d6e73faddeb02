package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the webhook ingress application with all routes
// registered.
func NewApp(handlers *WebhookHandlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "outfield-webhook",
	})
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/health", handlers.HealthCheck)
	app.Post("/webhooks/recorder/:workflowID", handlers.RecorderStatus)
	app.Post("/webhooks/recorder/:workflowID/cancel", handlers.RecorderCancel)
	app.Post("/webhooks/email/:workflowID", handlers.EmailEvent)

	return app
}
