// Package models defines the core domain models for the dripflow automation engine.
package models

import (
	"strings"
	"time"
)

// Agent is a CRM user that can be assigned to leads and tasks.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role,omitempty"`
	AcceptsLeads bool   `json:"accepts_leads"`
}

// StatusChange is one entry in a lead's status history.
type StatusChange struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

// Lead is a read-only snapshot of a CRM lead. The lead itself is owned by
// the external lead service; the engine only evaluates conditions against
// the snapshot and writes back through the LeadStore collaborator.
type Lead struct {
	ID              string         `json:"id"`
	OrganizationID  string         `json:"organization_id"`
	Name            string         `json:"name"`
	FirstName       string         `json:"first_name,omitempty"`
	LastName        string         `json:"last_name,omitempty"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Budget          float64        `json:"budget,omitempty"`
	Category        string         `json:"category,omitempty"`
	Location        string         `json:"location,omitempty"`
	Source          string         `json:"source,omitempty"`
	Status          string         `json:"status"`
	AssignedAgent   *Agent         `json:"assigned_agent,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	LastContactAt   *time.Time     `json:"last_contact_at,omitempty"`
	FirstResponseAt *time.Time     `json:"first_response_at,omitempty"`
	StatusHistory   []StatusChange `json:"status_history,omitempty"`
	Custom          map[string]any `json:"custom,omitempty"`
}

// Field resolves a dot-path against the snapshot. Known fields are matched
// case-insensitively on the first segment; anything else falls through to
// the custom attribute map.
func (l *Lead) Field(path string) (any, bool) {
	if l == nil || path == "" {
		return nil, false
	}

	head, rest, _ := strings.Cut(path, ".")

	switch strings.ToLower(head) {
	case "id":
		return l.ID, true
	case "name":
		return l.Name, true
	case "firstname", "first_name":
		return l.FirstName, true
	case "lastname", "last_name":
		return l.LastName, true
	case "email":
		return l.Email, true
	case "phone":
		return l.Phone, true
	case "budget":
		return l.Budget, true
	case "category":
		return l.Category, true
	case "location":
		return l.Location, true
	case "source":
		return l.Source, true
	case "status":
		return l.Status, true
	case "assignedagent", "assigned_agent":
		if l.AssignedAgent == nil {
			return nil, false
		}

		return agentField(l.AssignedAgent, rest)
	}

	return customField(l.Custom, path)
}

func agentField(agent *Agent, path string) (any, bool) {
	switch strings.ToLower(path) {
	case "":
		return agent, true
	case "id":
		return agent.ID, true
	case "name":
		return agent.Name, true
	case "email":
		return agent.Email, true
	case "phone":
		return agent.Phone, true
	case "role":
		return agent.Role, true
	}

	return nil, false
}

func customField(custom map[string]any, path string) (any, bool) {
	var current any = custom

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Labels carries the tenant-configurable vocabulary used when rendering
// templates: the organization display name and per-field display labels
// (one tenant calls an appointment a "demo", another a "site visit").
type Labels struct {
	OrganizationName string            `json:"organization_name"`
	AppointmentField string            `json:"appointment_field_label,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// FieldLabel returns the tenant label for a field, or the fallback.
func (t Labels) FieldLabel(field, fallback string) string {
	if label, ok := t.Fields[field]; ok && label != "" {
		return label
	}

	return fallback
}
