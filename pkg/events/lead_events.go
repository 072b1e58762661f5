package events

import (
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// Lead domain event types, produced by the CRM and consumed by the trigger
// matcher. They mirror the automation trigger types.
const (
	LeadCreatedEvent   EventType = "lead_created"
	LeadUpdatedEvent   EventType = "lead_updated"
	StatusChangedEvent EventType = "status_changed"
)

// LeadEvent is a change notification for one lead. The embedded lead is a
// full snapshot taken after the change; Changed lists the field paths that
// were touched on an update.
type LeadEvent struct {
	ID             string       `json:"id"`
	Type           EventType    `json:"type"`
	Timestamp      time.Time    `json:"timestamp"`
	OrganizationID string       `json:"organization_id"`
	Lead           *models.Lead `json:"lead"`
	Changed        []string     `json:"changed,omitempty"`
	PreviousStatus string       `json:"previous_status,omitempty"`
}

func (e LeadEvent) GetType() EventType {
	return e.Type
}
