// Package web provides the HTTP handlers of the automation API: automation
// definition management, run control and the inbound webhooks that resume
// suspended runs.
package web

import (
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// CreateAutomationRequest is the request body for creating an automation.
type CreateAutomationRequest struct {
	OrganizationID string             `json:"organization_id" validate:"required"`
	Name           string             `json:"name"            validate:"required,min=3"`
	Description    string             `json:"description"`
	Trigger        models.TriggerRule `json:"trigger"`
	Nodes          []*models.Node     `json:"nodes"`
	Edges          []*models.Edge     `json:"edges"`
}

// UpdateAutomationRequest is the request body for a partial automation
// update. Nil fields are left untouched.
type UpdateAutomationRequest struct {
	Name        *string                  `json:"name,omitempty"   validate:"omitempty,min=3"`
	Description *string                  `json:"description,omitempty"`
	Status      *models.AutomationStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active archived"`
	Trigger     *models.TriggerRule      `json:"trigger,omitempty"`
	Nodes       []*models.Node           `json:"nodes,omitempty"`
	Edges       []*models.Edge           `json:"edges,omitempty"`
}

// StartRunRequest is the request body for starting a run directly, without
// a lead event.
type StartRunRequest struct {
	AutomationID string `json:"automation_id" validate:"required"`
	LeadID       string `json:"lead_id"       validate:"required"`
}

// CancelRunRequest is the request body for cancelling a run.
type CancelRunRequest struct {
	Reason string `json:"reason"`
}

// WhatsAppWebhookRequest is the inbound message payload posted by the
// messaging gateway.
type WhatsAppWebhookRequest struct {
	MessageID string    `json:"message_id"`
	Phone     string    `json:"phone"     validate:"required"`
	Body      string    `json:"body"`
	ButtonID  string    `json:"button_id"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceWebhookRequest is the call outcome payload posted by the voice
// provider.
type VoiceWebhookRequest struct {
	CallID  string `json:"call_id" validate:"required"`
	Outcome string `json:"outcome" validate:"required"`
}

// CompleteTaskRequest is the optional body for completing a task.
type CompleteTaskRequest struct {
	Outcome string `json:"outcome"`
}
