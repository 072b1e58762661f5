// Package condition implements the branching nodes. They delegate to the
// condition evaluator and route the run to the true or false handle.
package condition

import (
	"context"

	"github.com/dripflow/dripflow/pkg/conditions"
	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

const (
	Type = "condition"

	// TypeTimeout is the same evaluation placed after a timeout branch,
	// kept as its own node type so graphs read naturally.
	TypeTimeout = "conditionTimeout"
)

type Node struct {
	node *models.Node
}

func NewNode(node *models.Node) *Node {
	return &Node{node: node}
}

func (n *Node) Execute(_ context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	passed := evaluate(n.node.Config, ectx.Lead)

	handle := models.HandleFalse
	if passed {
		handle = models.HandleTrue
	}

	return models.SucceedTo(handle, map[string]any{"passed": passed}), nil
}

// evaluate supports a single {field, operator, value} config or a
// conditions list combined with all/any logic.
func evaluate(config map[string]any, lead *models.Lead) bool {
	if list := nodeconfig.List(config, "conditions"); list != nil {
		anyLogic := nodeconfig.StringDefault(config, "logic", "all") == "any"

		for _, item := range list {
			cond, ok := item.(map[string]any)
			if !ok {
				continue
			}

			passed := conditions.Evaluate(lead,
				nodeconfig.String(cond, "field"),
				nodeconfig.String(cond, "operator"),
				cond["value"])

			if anyLogic && passed {
				return true
			}

			if !anyLogic && !passed {
				return false
			}
		}

		return !anyLogic
	}

	return conditions.Evaluate(lead,
		nodeconfig.String(config, "field"),
		nodeconfig.String(config, "operator"),
		config["value"])
}

type Factory struct {
	nodeType string
}

func NewFactory() *Factory {
	return &Factory{nodeType: Type}
}

func NewTimeoutFactory() *Factory {
	return &Factory{nodeType: TypeTimeout}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewNode(node), nil
}

func (f *Factory) ID() string   { return f.nodeType }
func (f *Factory) Name() string { return "Condition" }

func (f *Factory) Description() string {
	return "Evaluates a condition against the lead snapshot and routes execution to the true or false handle"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field":    map[string]any{"type": "string"},
			"operator": map[string]any{"type": "string"},
			"value":    map[string]any{},
			"conditions": map[string]any{
				"type":        "array",
				"description": "Multiple predicates combined with logic",
			},
			"logic": map[string]any{"type": "string", "enum": []string{"all", "any"}, "default": "all"},
		},
	}
}
