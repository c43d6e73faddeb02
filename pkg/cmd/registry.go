package cmd

import (
	"log/slog"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/providers/email"
	"github.com/outfield-crm/outfield/pkg/providers/insights"
	"github.com/outfield-crm/outfield/pkg/providers/recorder"
	"github.com/outfield-crm/outfield/pkg/workflows/enrollment"
	"github.com/outfield-crm/outfield/pkg/workflows/meetingbot"
)

// ProviderConfig carries the external service endpoints and credentials
// the workflow activities call out to.
type ProviderConfig struct {
	RecorderURL      string
	RecorderAPIKey   string
	EmailProviderURL string
	EmailAccessToken string
	InsightsURL      string
	WebhookBaseURL   string
}

// NewActivityRegistry builds the activity registry with every workflow
// activity wired to its repositories and provider clients.
func NewActivityRegistry(p persistence.Persistence, cfg ProviderConfig, logger *slog.Logger) *activity.Registry {
	registry := activity.NewRegistry(logger)

	meetingbot.NewActivities(
		p.MeetingRepository(),
		recorder.NewHTTPClient(cfg.RecorderURL, cfg.RecorderAPIKey, logger),
		insights.NewHTTPClient(cfg.InsightsURL, logger),
		cfg.WebhookBaseURL,
		logger,
	).Register(registry)

	enrollment.NewActivities(
		p.EnrollmentRepository(),
		email.NewHTTPClient(cfg.EmailProviderURL, logger),
		cfg.EmailAccessToken,
		logger,
	).Register(registry)

	return registry
}

// RegisterDefinitions adds every workflow definition to the engine.
func RegisterDefinitions(e *engine.Engine) {
	e.RegisterDefinition(meetingbot.NewDefinition())
	e.RegisterDefinition(enrollment.NewDefinition())
}
