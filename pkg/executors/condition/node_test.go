package condition

import (
	"testing"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, config map[string]any, lead *models.Lead) *models.NodeResult {
	t.Helper()

	node := &models.Node{ID: "n1", Type: Type, Config: config}
	ectx := protocol.ExecutionContext{Run: &models.Run{ID: "run-1"}, Lead: lead}

	result, err := NewNode(node).Execute(t.Context(), ectx)
	require.NoError(t, err)

	return result
}

func TestConditionBranchesOnHandle(t *testing.T) {
	lead := &models.Lead{Budget: 500000}

	result := run(t, map[string]any{"field": "budget", "operator": "greaterThan", "value": "100000"}, lead)
	assert.Equal(t, models.HandleTrue, result.NextHandle)
	assert.Equal(t, true, result.Output["passed"])

	result = run(t, map[string]any{"field": "budget", "operator": "lessThan", "value": "100000"}, lead)
	assert.Equal(t, models.HandleFalse, result.NextHandle)
}

func TestConditionListAllLogic(t *testing.T) {
	lead := &models.Lead{Status: "New", Budget: 750000}

	config := map[string]any{
		"conditions": []any{
			map[string]any{"field": "status", "operator": "equals", "value": "new"},
			map[string]any{"field": "budget", "operator": "greaterThan", "value": float64(500000)},
		},
	}

	assert.Equal(t, models.HandleTrue, run(t, config, lead).NextHandle)

	config["conditions"] = append(config["conditions"].([]any),
		map[string]any{"field": "status", "operator": "equals", "value": "cold"})
	assert.Equal(t, models.HandleFalse, run(t, config, lead).NextHandle)
}

func TestConditionListAnyLogic(t *testing.T) {
	lead := &models.Lead{Status: "New"}

	config := map[string]any{
		"logic": "any",
		"conditions": []any{
			map[string]any{"field": "status", "operator": "equals", "value": "cold"},
			map[string]any{"field": "status", "operator": "equals", "value": "new"},
		},
	}

	assert.Equal(t, models.HandleTrue, run(t, config, lead).NextHandle)
}
