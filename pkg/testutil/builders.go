// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/dripflow/dripflow/pkg/models"
)

// CreateTestLead creates a lead with sensible defaults that can be overridden.
func CreateTestLead(overrides ...func(*models.Lead)) *models.Lead {
	lead := &models.Lead{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Asha Pillai",
		FirstName:      "Asha",
		LastName:       "Pillai",
		Email:          "asha@example.com",
		Phone:          "+5511999990000",
		Budget:         500000,
		Category:       "apartment",
		Location:       "downtown",
		Source:         "website",
		Status:         "new",
	}

	for _, override := range overrides {
		override(lead)
	}

	return lead
}

// WithStatus sets the lead status.
func WithStatus(status string) func(*models.Lead) {
	return func(l *models.Lead) {
		l.Status = status
	}
}

// WithPhone sets the lead phone number.
func WithPhone(phone string) func(*models.Lead) {
	return func(l *models.Lead) {
		l.Phone = phone
	}
}

// WithAgent assigns an agent to the lead.
func WithAgent(agent models.Agent) func(*models.Lead) {
	return func(l *models.Lead) {
		l.AssignedAgent = &agent
	}
}

// AutomationBuilder assembles automation graphs for tests without the
// noise of wiring edge structs by hand.
type AutomationBuilder struct {
	automation *models.Automation
}

func NewAutomation(organizationID string) *AutomationBuilder {
	return &AutomationBuilder{automation: &models.Automation{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           "Test Automation",
		Status:         models.AutomationStatusActive,
		Trigger:        models.TriggerRule{Type: models.TriggerLeadCreated},
	}}
}

func (b *AutomationBuilder) WithName(name string) *AutomationBuilder {
	b.automation.Name = name

	return b
}

func (b *AutomationBuilder) WithStatus(status models.AutomationStatus) *AutomationBuilder {
	b.automation.Status = status

	return b
}

func (b *AutomationBuilder) WithTrigger(triggerType string, conds ...models.TriggerCondition) *AutomationBuilder {
	b.automation.Trigger = models.TriggerRule{Type: triggerType, Conditions: conds}

	return b
}

// Node appends a node to the graph.
func (b *AutomationBuilder) Node(id, nodeType string, config map[string]any) *AutomationBuilder {
	b.automation.Nodes = append(b.automation.Nodes, &models.Node{
		ID:     id,
		Type:   nodeType,
		Config: config,
	})

	return b
}

// Edge connects source to target along the default handle.
func (b *AutomationBuilder) Edge(source, target string) *AutomationBuilder {
	return b.EdgeOn(source, target, "")
}

// EdgeOn connects source to target along a specific output handle.
func (b *AutomationBuilder) EdgeOn(source, target, handle string) *AutomationBuilder {
	b.automation.Edges = append(b.automation.Edges, &models.Edge{
		ID:           uuid.New().String(),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	})

	return b
}

func (b *AutomationBuilder) Build() *models.Automation {
	return b.automation
}
