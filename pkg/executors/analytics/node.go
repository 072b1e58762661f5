// Package analytics implements the analytics node: a diagnostic record on
// the execution path, nothing more. It always succeeds.
package analytics

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

const Type = "analytics"

type Node struct {
	node *models.Node
}

func NewNode(node *models.Node) *Node {
	return &Node{node: node}
}

func (n *Node) Execute(_ context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	output := map[string]any{
		"event":      nodeconfig.StringDefault(n.node.Config, "event", "automation_step"),
		"recordedAt": time.Now().UTC().Format(time.RFC3339),
	}

	if ectx.Lead != nil {
		output["leadStatus"] = ectx.Lead.Status
	}

	return models.Succeed(output), nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewNode(node), nil
}

func (f *Factory) ID() string   { return Type }
func (f *Factory) Name() string { return "Analytics" }

func (f *Factory) Description() string {
	return "Writes a diagnostic record to the execution log; always succeeds"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event": map[string]any{"type": "string", "default": "automation_step"},
		},
	}
}
