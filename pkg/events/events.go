// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/outfield-crm/outfield/pkg/models"
)

type EventType string

// Kafka topic carrying all workflow orchestration events.
const Topic = "outfield.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound commands.
	WorkflowStartRequestedEvent EventType = "workflow.start.requested"
	SignalReceivedEvent         EventType = "workflow.signal.received"

	// Workflow lifecycle notifications.
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	WorkflowCancelledEvent EventType = "workflow.cancelled"
	WorkflowContinuedEvent EventType = "workflow.continued"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates a base event with a fresh ID and timestamp.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowStartRequested asks the engine to start (or idempotently
// re-observe) a workflow instance.
type WorkflowStartRequested struct {
	BaseEvent

	DefinitionType models.DefinitionType `json:"definition_type"`
	Input          json.RawMessage       `json:"input,omitempty"`
}

func (e WorkflowStartRequested) GetType() EventType { return WorkflowStartRequestedEvent }

// SignalReceived carries one external signal toward a workflow
// instance, typically translated from a webhook.
type SignalReceived struct {
	BaseEvent

	SignalName string          `json:"signal_name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (e SignalReceived) GetType() EventType { return SignalReceivedEvent }

type WorkflowStarted struct {
	BaseEvent

	DefinitionType models.DefinitionType `json:"definition_type"`
}

func (e WorkflowStarted) GetType() EventType { return WorkflowStartedEvent }

type WorkflowCompleted struct {
	BaseEvent

	Phase string `json:"phase,omitempty"`
}

func (e WorkflowCompleted) GetType() EventType { return WorkflowCompletedEvent }

type WorkflowFailed struct {
	BaseEvent

	Reason string `json:"reason"`
	Phase  string `json:"phase,omitempty"`
}

func (e WorkflowFailed) GetType() EventType { return WorkflowFailedEvent }

type WorkflowCancelled struct {
	BaseEvent

	Reason string `json:"reason,omitempty"`
}

func (e WorkflowCancelled) GetType() EventType { return WorkflowCancelledEvent }

// WorkflowContinued notifies that an instance replaced its input and
// reset transient history (continue-as-new).
type WorkflowContinued struct {
	BaseEvent

	Input json.RawMessage `json:"input,omitempty"`
}

func (e WorkflowContinued) GetType() EventType { return WorkflowContinuedEvent }
