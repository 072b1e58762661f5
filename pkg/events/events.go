// Package events defines the event types published on the run lifecycle
// topic and the domain events the engine consumes.
package events

import (
	"time"
)

type EventType string

// Kafka topics.
const Topic = "dripflow.run.events"      // Run lifecycle events published by the engine
const LeadTopic = "dripflow.lead.events" // Lead domain events published by the CRM

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunWaitingEvent   EventType = "run.waiting"
	RunResumedEvent   EventType = "run.resumed"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	// Node events.
	NodeExecutedEvent EventType = "node.executed"
)

// BaseEvent carries the identifiers every run event shares.
type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	RunID          string         `json:"run_id"`
	AutomationID   string         `json:"automation_id"`
	LeadID         string         `json:"lead_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	TriggerType string `json:"trigger_type,omitempty"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunWaiting struct {
	BaseEvent

	NodeID    string     `json:"node_id"`
	WaitKind  string     `json:"wait_kind"`
	TimeoutAt *time.Time `json:"timeout_at,omitempty"`
}

func (e RunWaiting) GetType() EventType {
	return RunWaitingEvent
}

type RunResumed struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Handle string `json:"handle"`
	Cause  string `json:"cause"` // "matched", "timeout" or "unmatched"
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
	Error  string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	Reason string `json:"reason,omitempty"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type NodeExecuted struct {
	BaseEvent

	NodeID     string `json:"node_id"`
	NodeType   string `json:"node_type"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}

func (e NodeExecuted) GetType() EventType {
	return NodeExecutedEvent
}
