package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/outfield-crm/outfield/pkg/eventbus"
	"github.com/outfield-crm/outfield/pkg/events"
	"github.com/outfield-crm/outfield/pkg/models"
)

// BusStarter requests workflow starts by publishing to the event bus.
// Deterministic workflow IDs make re-published requests idempotent on
// the engine side.
type BusStarter struct {
	bus    eventbus.EventPublisher
	logger *slog.Logger
}

func NewBusStarter(bus eventbus.EventPublisher, logger *slog.Logger) *BusStarter {
	return &BusStarter{
		bus:    bus,
		logger: logger.With("module", "bus_starter"),
	}
}

func (s *BusStarter) StartWorkflow(ctx context.Context, workflowID string, definitionType models.DefinitionType, input any) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow input: %w", err)
	}

	event := events.WorkflowStartRequested{
		BaseEvent:      events.NewBaseEvent(events.WorkflowStartRequestedEvent, workflowID),
		DefinitionType: definitionType,
		Input:          payload,
	}

	err = s.bus.Publish(ctx, workflowID, event)
	if err != nil {
		return fmt.Errorf("failed to publish start request: %w", err)
	}

	s.logger.InfoContext(ctx, "Requested workflow start",
		"workflow_id", workflowID, "definition_type", definitionType)

	return nil
}
