package models

import "time"

// AutomationStatus represents the lifecycle state of an automation definition.
type AutomationStatus string

const (
	AutomationStatusDraft    AutomationStatus = "draft"    // Editable, never triggered
	AutomationStatusActive   AutomationStatus = "active"   // Matched against lead events
	AutomationStatusArchived AutomationStatus = "archived" // Historical, never triggered
)

// Trigger event types matched by the trigger rule.
const (
	TriggerLeadCreated   = "lead_created"
	TriggerLeadUpdated   = "lead_updated"
	TriggerStatusChanged = "status_changed"
)

// Well-known edge handles.
const (
	HandleDefault = "default"
	HandleTrue    = "true"
	HandleFalse   = "false"
	HandleTimeout = "timeout"
	HandleFailed  = "failed"
)

// TriggerCondition is one predicate of a trigger rule, evaluated against
// the lead snapshot by the condition evaluator.
type TriggerCondition struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value"`
}

// TriggerRule decides whether a lead event starts a run. All conditions
// must pass.
type TriggerRule struct {
	Type       string             `json:"type" validate:"required"`
	Conditions []TriggerCondition `json:"conditions,omitempty"`
}

// Node is a single step in the automation graph.
type Node struct {
	ID     string         `json:"id"   validate:"required"`
	Type   string         `json:"type" validate:"required"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge connects a node's output handle to the next node.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"` // Empty means the default edge
}

// Automation is the static node graph a run executes against. It is owned
// by an organization, edited by users and strictly read-only to the engine.
type Automation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id" validate:"required"`
	Name           string           `json:"name"            validate:"required,min=3"`
	Description    string           `json:"description,omitempty"`
	Status         AutomationStatus `json:"status"          validate:"required"`
	Trigger        TriggerRule      `json:"trigger"`
	Nodes          []*Node          `json:"nodes"`
	Edges          []*Edge          `json:"edges"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NodeByID returns the node with the given ID, or nil.
func (a *Automation) NodeByID(id string) *Node {
	for _, node := range a.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EntryNodeID returns the node where a new run starts: the first node that
// is not the target of any edge, falling back to the first node.
func (a *Automation) EntryNodeID() string {
	if len(a.Nodes) == 0 {
		return ""
	}

	targets := make(map[string]bool, len(a.Edges))
	for _, edge := range a.Edges {
		targets[edge.Target] = true
	}

	for _, node := range a.Nodes {
		if !targets[node.ID] {
			return node.ID
		}
	}

	return a.Nodes[0].ID
}

// EdgeFrom returns the edge leaving nodeID whose source handle matches
// handle exactly. An empty source handle on an edge is the default edge.
func (a *Automation) EdgeFrom(nodeID, handle string) *Edge {
	for _, edge := range a.Edges {
		if edge.Source != nodeID {
			continue
		}

		if normalizeHandle(edge.SourceHandle) == normalizeHandle(handle) {
			return edge
		}
	}

	return nil
}

func normalizeHandle(handle string) string {
	if handle == "" {
		return HandleDefault
	}

	return handle
}
