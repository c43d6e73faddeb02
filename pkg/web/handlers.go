// Package web provides the webhook ingress: HTTP handlers that
// translate recorder-bot and email provider callbacks into workflow
// signals published on the event bus.
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/outfield-crm/outfield/pkg/eventbus"
	"github.com/outfield-crm/outfield/pkg/events"
	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/workflows/meetingbot"
)

// recorderStatusSchema validates recorder status callbacks before they
// become signals.
var recorderStatusSchema = map[string]any{
	"type":     "object",
	"required": []any{"status"},
	"properties": map[string]any{
		"status": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
		"bot_id": map[string]any{"type": "string"},
	},
}

// emailEventSchema validates email provider callbacks.
var emailEventSchema = map[string]any{
	"type":     "object",
	"required": []any{"event"},
	"properties": map[string]any{
		"event":       map[string]any{"type": "string", "minLength": 1},
		"external_id": map[string]any{"type": "string"},
	},
}

// WebhookHandlers publishes webhook payloads as signal events.
type WebhookHandlers struct {
	bus         eventbus.EventPublisher
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewWebhookHandlers creates the webhook ingress handlers.
func NewWebhookHandlers(bus eventbus.EventPublisher, p persistence.Persistence, logger *slog.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		bus:         bus,
		persistence: p,
		logger:      logger.With("module", "webhook_handlers"),
	}
}

// RecorderStatus translates a bot status callback into a
// bot-status-changed signal for the owning workflow.
func (h *WebhookHandlers) RecorderStatus(c fiber.Ctx) error {
	workflowID := c.Params("workflowID")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	payload, err := validatedBody(c, recorderStatusSchema)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return h.publishSignal(c, workflowID, meetingbot.SignalBotStatusChanged, payload)
}

// RecorderCancel translates an operator cancellation into a cancel-bot
// signal.
func (h *WebhookHandlers) RecorderCancel(c fiber.Ctx) error {
	workflowID := c.Params("workflowID")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	return h.publishSignal(c, workflowID, meetingbot.SignalCancelBot, json.RawMessage(`{}`))
}

// EmailEvent relays an email provider callback as a named signal. The
// engine drops signals for unknown or finished workflows, so delivery
// here is fire-and-forget.
func (h *WebhookHandlers) EmailEvent(c fiber.Ctx) error {
	workflowID := c.Params("workflowID")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	payload, err := validatedBody(c, emailEventSchema)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var body struct {
		Event string `json:"event"`
	}

	if err := json.Unmarshal(payload, &body); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	return h.publishSignal(c, workflowID, "email-"+body.Event, payload)
}

// HealthCheck reports bus-independent liveness plus storage health.
func (h *WebhookHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *WebhookHandlers) publishSignal(c fiber.Ctx, workflowID, signalName string, payload json.RawMessage) error {
	event := events.SignalReceived{
		BaseEvent:  events.NewBaseEvent(events.SignalReceivedEvent, workflowID),
		SignalName: signalName,
		Payload:    payload,
	}

	if err := h.bus.Publish(c.Context(), workflowID, event); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to publish signal event",
			"workflow_id", workflowID, "signal", signalName, "error", err)

		return internalError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Webhook signal accepted",
		"workflow_id", workflowID, "signal", signalName)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"workflow_id": workflowID,
		"signal":      signalName,
	})
}

// validatedBody parses the request body and validates it against the
// given JSON schema.
func validatedBody(c fiber.Ctx, schema map[string]any) (json.RawMessage, error) {
	var payload map[string]any

	if err := c.Bind().JSON(&payload); err != nil {
		return nil, fmt.Errorf("invalid JSON format")
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("validation errors: %s", strings.Join(details, "; "))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return data, nil
}
