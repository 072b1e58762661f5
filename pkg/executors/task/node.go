// Package task implements the generic createTask node.
package task

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
	Type = "createTask"

	defaultDueOffset = 48 * time.Hour
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

	assignee := nodeconfig.String(n.node.Config, "assigneeId")
	if assignee == "" && lead.AssignedAgent != nil {
		assignee = lead.AssignedAgent.ID
	}

	now := time.Now()
	taskID, err := n.tasks.CreateTask(ctx, protocol.NewTask{
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		AssigneeID:     assignee,
		Type:           nodeconfig.StringDefault(n.node.Config, "taskType", "manual"),
		Title:          template.Interpolate(nodeconfig.StringDefault(n.node.Config, "title", "Follow up with {{name}}"), lead, ectx.Context(), ectx.Labels),
		Description:    template.Interpolate(nodeconfig.String(n.node.Config, "description"), lead, ectx.Context(), ectx.Labels),
		DueAt:          now.Add(nodeconfig.Duration(n.node.Config, "due", defaultDueOffset)),
		Context: map[string]any{
			"runId":  ectx.Run.ID,
			"nodeId": n.node.ID,
		},
	})
	if err != nil {
		return models.Fail(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	output := map[string]any{"taskId": taskID}

	var result *models.NodeResult
	if nodeconfig.Bool(n.node.Config, "waitForCompletion") {
		result = models.Suspend(models.NewTaskWait(n.node.ID, models.TaskWait{
			TaskID:    taskID,
			StartedAt: now,
		}), output)
	} else {
		result = models.Succeed(output)
	}

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
func (f *Factory) Name() string { return "Create Task" }

func (f *Factory) Description() string {
	return "Creates a manual task, optionally suspending the run until it is completed"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":             map[string]any{"type": "string"},
			"description":       map[string]any{"type": "string"},
			"taskType":          map[string]any{"type": "string", "default": "manual"},
			"assigneeId":        map[string]any{"type": "string"},
			"due":               map[string]any{"type": "object"},
			"waitForCompletion": map[string]any{"type": "boolean", "default": false},
		},
	}
}
