package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/eventbus"
	"github.com/outfield-crm/outfield/pkg/events"
)

// EngineManager consumes start requests and signals from the event bus
// and feeds them into the workflow engine.
type EngineManager struct {
	id       string
	logger   *slog.Logger
	engine   *engine.Engine
	poller   *engine.TimerPoller
	eventBus eventbus.EventBus
}

func NewEngineManager(
	id string,
	eng *engine.Engine,
	poller *engine.TimerPoller,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *EngineManager {
	return &EngineManager{
		id:       id,
		logger:   logger.With("module", "engine_manager", "engine_id", id),
		engine:   eng,
		poller:   poller,
		eventBus: eventBus,
	}
}

// Start recovers interrupted instances, subscribes to inbound commands
// and blocks until interrupted.
func (m *EngineManager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting engine manager")

	err := m.eventBus.Handle(events.WorkflowStartRequestedEvent, m.handleStartRequested)
	if err != nil {
		return err
	}

	err = m.eventBus.Handle(events.SignalReceivedEvent, m.handleSignalReceived)
	if err != nil {
		return err
	}

	err = m.eventBus.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = m.engine.RecoverRunning(ctx)
	if err != nil {
		return err
	}

	err = m.poller.Start(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Engine started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down engine...")

	return m.poller.Stop(ctx)
}

func (m *EngineManager) handleStartRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.WorkflowStartRequested)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for WorkflowStartRequested")

		return nil
	}

	logger := m.logger.With(
		"workflow_id", request.WorkflowID,
		"definition_type", request.DefinitionType,
		"event_id", request.ID,
	)
	logger.InfoContext(ctx, "Processing workflow start request")

	_, err := m.engine.Start(ctx, request.WorkflowID, request.DefinitionType, request.Input)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start workflow", "error", err)

		return err
	}

	return nil
}

func (m *EngineManager) handleSignalReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.SignalReceived)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for SignalReceived")

		return nil
	}

	logger := m.logger.With(
		"workflow_id", received.WorkflowID,
		"signal", received.SignalName,
		"event_id", received.ID,
	)
	logger.InfoContext(ctx, "Delivering signal")

	err := m.engine.Signal(ctx, received.WorkflowID, received.SignalName, received.Payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to deliver signal", "error", err)

		return err
	}

	return nil
}
