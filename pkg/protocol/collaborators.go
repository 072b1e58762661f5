package protocol

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// CallStatus is what the voice collaborator reports for a placed call.
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusSkipped   CallStatus = "skipped"   // Credentials absent, nothing dialed
	CallStatusSimulated CallStatus = "simulated" // Sandbox mode, nothing dialed
	CallStatusError     CallStatus = "error"
)

// SendResult identifies a delivered message.
type SendResult struct {
	MessageID string `json:"message_id"`
}

// CallResult identifies a placed (or not placed) AI voice call.
type CallResult struct {
	CallID string     `json:"call_id"`
	Status CallStatus `json:"status"`
}

// CallOptions configures an outbound AI voice call.
type CallOptions struct {
	Script   string         `json:"script,omitempty"`
	Voice    string         `json:"voice,omitempty"`
	Language string         `json:"language,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTask is the engine's request to the task collaborator.
type NewTask struct {
	LeadID         string         `json:"lead_id"`
	OrganizationID string         `json:"organization_id"`
	AssigneeID     string         `json:"assignee_id,omitempty"` // Empty leaves the task unassigned
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	DueAt          time.Time      `json:"due_at"`
	Context        map[string]any `json:"context,omitempty"`
}

// MessageChannel delivers outbound messages (WhatsApp/SMS). Delivery
// transport is out of scope; the engine only needs these three calls.
type MessageChannel interface {
	IsConfigured(ctx context.Context, orgID string) (bool, error)
	SendText(ctx context.Context, orgID, phone, text string) (*SendResult, error)
	SendTemplate(ctx context.Context, orgID, phone, templateID, lang string, components []map[string]any) (*SendResult, error)
}

// VoiceCaller places outbound AI voice calls.
type VoiceCaller interface {
	PlaceCall(ctx context.Context, orgID, phone string, opts CallOptions) (*CallResult, error)
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, orgID, to, subject, html string) (*SendResult, error)
}

// TaskService owns agent tasks. CompleteTask is expected to notify the
// engine (the API surfaces it as a resume), and the status-change hook lets
// the task side auto-complete tasks that a status update made redundant.
type TaskService interface {
	CreateTask(ctx context.Context, task NewTask) (string, error)
	CompleteTask(ctx context.Context, taskID string) error
	CheckAutoCompleteForStatusChange(ctx context.Context, leadID, newStatus string) error
}

// LeadStore is the engine's narrow view of the external lead service.
type LeadStore interface {
	Get(ctx context.Context, leadID string) (*models.Lead, error)
	Update(ctx context.Context, leadID string, fields map[string]any) error
	UpdateStatus(ctx context.Context, leadID, status string) error
	Assign(ctx context.Context, leadID, agentID string) error
	Agents(ctx context.Context, orgID string) ([]models.Agent, error)
	OpenLeadCount(ctx context.Context, agentID string) (int, error)
}

// LabelStore resolves the tenant-configurable vocabulary.
type LabelStore interface {
	Labels(ctx context.Context, orgID string) (models.Labels, error)
}

// Collaborators bundles every external capability the executors call.
type Collaborators struct {
	Messages MessageChannel
	Voice    VoiceCaller
	Mail     Mailer
	Tasks    TaskService
	Leads    LeadStore
	LabelSet LabelStore
}
