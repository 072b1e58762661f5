// Package humancall implements the humanCall node: create a follow-up task
// for the lead's agent and suspend the run until a human completes it.
package humancall

import (
	"context"
	"fmt"
	"time"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/template"
)

const (
	Type = "humanCall"

	defaultDueOffset = 24 * time.Hour
)

type Node struct {
	node  *models.Node
	tasks protocol.TaskService
}

func NewNode(node *models.Node, tasks protocol.TaskService) *Node {
	return &Node{node: node, tasks: tasks}
}

func (n *Node) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	lead := ectx.Lead
	if lead == nil {
		return models.Fail("lead snapshot unavailable"), nil
	}

	// Unassigned leads still get a task; it lands in the org's shared
	// queue instead of an agent inbox.
	assignee := ""
	if lead.AssignedAgent != nil {
		assignee = lead.AssignedAgent.ID
	}

	title := nodeconfig.StringDefault(n.node.Config, "title", "Call {{name}}")
	description := nodeconfig.String(n.node.Config, "description")

	now := time.Now()
	task := protocol.NewTask{
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		AssigneeID:     assignee,
		Type:           nodeconfig.StringDefault(n.node.Config, "taskType", "call"),
		Title:          template.Interpolate(title, lead, ectx.Context(), ectx.Labels),
		Description:    template.Interpolate(description, lead, ectx.Context(), ectx.Labels),
		DueAt:          now.Add(nodeconfig.Duration(n.node.Config, "due", defaultDueOffset)),
		Context: map[string]any{
			"runId":  ectx.Run.ID,
			"nodeId": n.node.ID,
		},
	}

	taskID, err := n.tasks.CreateTask(ctx, task)
	if err != nil {
		return models.Fail(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	result := models.Suspend(models.NewTaskWait(n.node.ID, models.TaskWait{
		TaskID:    taskID,
		StartedAt: now,
	}), map[string]any{"taskId": taskID})
	result.ContextUpdates = map[string]any{"lastTaskId": taskID}

	return result, nil
}

type Factory struct {
	tasks protocol.TaskService
}

func NewFactory(tasks protocol.TaskService) *Factory {
	return &Factory{tasks: tasks}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewNode(node, f.tasks), nil
}

func (f *Factory) ID() string   { return Type }
func (f *Factory) Name() string { return "Human Call Task" }

func (f *Factory) Description() string {
	return "Creates a call task for the lead's agent and suspends the run until the task is completed"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "default": "Call {{name}}"},
			"description": map[string]any{"type": "string"},
			"taskType":    map[string]any{"type": "string", "default": "call"},
			"due": map[string]any{
				"type":        "object",
				"description": "Due-date offset from task creation: {duration, unit}",
				"default":     map[string]any{"duration": 24, "unit": "hours"},
			},
		},
	}
}
