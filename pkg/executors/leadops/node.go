// Package leadops implements the nodes that mutate the lead itself:
// updateStatus and assignAgent.
package leadops

import (
	"context"
	"fmt"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

const (
	TypeUpdateStatus = "updateStatus"
	TypeAssignAgent  = "assignAgent"
)

// UpdateStatusNode moves the lead to a new status, appends to its status
// history (inside the lead store) and lets the task collaborator
// auto-complete tasks the change made redundant.
type UpdateStatusNode struct {
	node  *models.Node
	leads protocol.LeadStore
	tasks protocol.TaskService
}

func NewUpdateStatusNode(node *models.Node, leads protocol.LeadStore, tasks protocol.TaskService) *UpdateStatusNode {
	return &UpdateStatusNode{node: node, leads: leads, tasks: tasks}
}

func (n *UpdateStatusNode) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	status := nodeconfig.String(n.node.Config, "status")
	if status == "" {
		return models.Fail("updateStatus node has no status value configured"), nil
	}

	lead := ectx.Lead
	if lead == nil {
		return models.Fail("lead snapshot unavailable"), nil
	}

	if err := n.leads.UpdateStatus(ctx, lead.ID, status); err != nil {
		return models.Fail(fmt.Sprintf("failed to update lead status: %v", err)), nil
	}

	// Auto-completion is advisory; a failure there must not fail the run.
	if err := n.tasks.CheckAutoCompleteForStatusChange(ctx, lead.ID, status); err != nil {
		ectx.Logger.WarnContext(ctx, "Task auto-complete check failed",
			"lead_id", lead.ID, "status", status, "error", err)
	}

	result := models.Succeed(map[string]any{"status": status})
	result.ContextUpdates = map[string]any{"lastStatus": status}

	return result, nil
}

// AssignAgentNode assigns an explicit agent, or picks the least-loaded
// eligible agent (round robin by open lead count).
type AssignAgentNode struct {
	node  *models.Node
	leads protocol.LeadStore
}

func NewAssignAgentNode(node *models.Node, leads protocol.LeadStore) *AssignAgentNode {
	return &AssignAgentNode{node: node, leads: leads}
}

func (n *AssignAgentNode) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	lead := ectx.Lead
	if lead == nil {
		return models.Fail("lead snapshot unavailable"), nil
	}

	agentID := nodeconfig.String(n.node.Config, "agentId")

	if agentID == "" {
		picked, err := n.pickLeastLoaded(ctx, lead.OrganizationID)
		if err != nil {
			return models.Fail(err.Error()), nil
		}

		agentID = picked
	}

	if err := n.leads.Assign(ctx, lead.ID, agentID); err != nil {
		return models.Fail(fmt.Sprintf("failed to assign agent: %v", err)), nil
	}

	result := models.Succeed(map[string]any{"agentId": agentID})
	result.ContextUpdates = map[string]any{"assignedAgentId": agentID}

	return result, nil
}

func (n *AssignAgentNode) pickLeastLoaded(ctx context.Context, orgID string) (string, error) {
	agents, err := n.leads.Agents(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("failed to list agents: %w", err)
	}

	best := ""
	bestLoad := -1

	for _, agent := range agents {
		if !agent.AcceptsLeads {
			continue
		}

		load, err := n.leads.OpenLeadCount(ctx, agent.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read agent load: %w", err)
		}

		if bestLoad == -1 || load < bestLoad {
			best = agent.ID
			bestLoad = load
		}
	}

	if best == "" {
		return "", fmt.Errorf("no eligible agent available in organization %s", orgID)
	}

	return best, nil
}
