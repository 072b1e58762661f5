package leadops

import (
	"log/slog"
	"testing"

	"github.com/dripflow/dripflow/pkg/mocks"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executionContext(lead *models.Lead) protocol.ExecutionContext {
	return protocol.ExecutionContext{
		Run:    &models.Run{ID: "run-1", OrganizationID: "org-1", Status: models.RunStatusRunning},
		Lead:   lead,
		Logger: slog.Default(),
	}
}

func TestUpdateStatus(t *testing.T) {
	lead := &models.Lead{ID: "lead-1", OrganizationID: "org-1", Status: "New"}
	leads := mocks.NewLeadStoreMock(lead)
	tasks := mocks.NewTaskServiceMock()

	node := &models.Node{ID: "n1", Type: TypeUpdateStatus, Config: map[string]any{"status": "Cold"}}

	result, err := NewUpdateStatusNode(node, leads, tasks).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, err := leads.Get(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Cold", stored.Status)
	assert.Len(t, stored.StatusHistory, 1)

	// The status change must reach the task auto-completion hook.
	assert.Equal(t, []string{"lead-1:Cold"}, tasks.AutoCompleteFor)
}

func TestUpdateStatusFailsWithoutValue(t *testing.T) {
	lead := &models.Lead{ID: "lead-1"}
	leads := mocks.NewLeadStoreMock(lead)

	node := &models.Node{ID: "n1", Type: TypeUpdateStatus, Config: map[string]any{}}

	result, err := NewUpdateStatusNode(node, leads, mocks.NewTaskServiceMock()).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Failed())
}

func TestAssignAgentExplicit(t *testing.T) {
	lead := &models.Lead{ID: "lead-1", OrganizationID: "org-1"}
	leads := mocks.NewLeadStoreMock(lead)
	leads.AgentList = []models.Agent{{ID: "agent-9", Name: "Nina", AcceptsLeads: true}}

	node := &models.Node{ID: "n1", Type: TypeAssignAgent, Config: map[string]any{"agentId": "agent-9"}}

	result, err := NewAssignAgentNode(node, leads).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, _ := leads.Get(t.Context(), "lead-1")
	require.NotNil(t, stored.AssignedAgent)
	assert.Equal(t, "agent-9", stored.AssignedAgent.ID)
}

func TestAssignAgentRoundRobinPicksLeastLoaded(t *testing.T) {
	lead := &models.Lead{ID: "lead-1", OrganizationID: "org-1"}
	leads := mocks.NewLeadStoreMock(lead)
	leads.AgentList = []models.Agent{
		{ID: "agent-1", AcceptsLeads: true},
		{ID: "agent-2", AcceptsLeads: true},
		{ID: "agent-3", AcceptsLeads: false}, // Ineligible regardless of load
	}
	leads.OpenCounts = map[string]int{"agent-1": 12, "agent-2": 3, "agent-3": 0}

	node := &models.Node{ID: "n1", Type: TypeAssignAgent, Config: map[string]any{}}

	result, err := NewAssignAgentNode(node, leads).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "agent-2", result.Output["agentId"])
}

func TestAssignAgentFailsWithNoEligibleAgent(t *testing.T) {
	lead := &models.Lead{ID: "lead-1", OrganizationID: "org-1"}
	leads := mocks.NewLeadStoreMock(lead)
	leads.AgentList = []models.Agent{{ID: "agent-1", AcceptsLeads: false}}

	node := &models.Node{ID: "n1", Type: TypeAssignAgent, Config: map[string]any{}}

	result, err := NewAssignAgentNode(node, leads).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Failed())
}
