package leadops

import (
	"context"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

type UpdateStatusFactory struct {
	leads protocol.LeadStore
	tasks protocol.TaskService
}

func NewUpdateStatusFactory(leads protocol.LeadStore, tasks protocol.TaskService) *UpdateStatusFactory {
	return &UpdateStatusFactory{leads: leads, tasks: tasks}
}

func (f *UpdateStatusFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewUpdateStatusNode(node, f.leads, f.tasks), nil
}

func (f *UpdateStatusFactory) ID() string   { return TypeUpdateStatus }
func (f *UpdateStatusFactory) Name() string { return "Update Lead Status" }

func (f *UpdateStatusFactory) Description() string {
	return "Moves the lead to a new status and triggers the task auto-completion check"
}

func (f *UpdateStatusFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{"type": "string", "description": "Target lead status"},
		},
		"required": []string{"status"},
	}
}

type AssignAgentFactory struct {
	leads protocol.LeadStore
}

func NewAssignAgentFactory(leads protocol.LeadStore) *AssignAgentFactory {
	return &AssignAgentFactory{leads: leads}
}

func (f *AssignAgentFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewAssignAgentNode(node, f.leads), nil
}

func (f *AssignAgentFactory) ID() string   { return TypeAssignAgent }
func (f *AssignAgentFactory) Name() string { return "Assign Agent" }

func (f *AssignAgentFactory) Description() string {
	return "Assigns an explicit agent or the least-loaded eligible agent to the lead"
}

func (f *AssignAgentFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agentId": map[string]any{
				"type":        "string",
				"description": "Explicit agent. Empty picks the least-loaded eligible agent",
			},
		},
	}
}
