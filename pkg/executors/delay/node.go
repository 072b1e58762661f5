// Package delay implements the delay/wait nodes. A delay is persisted as a
// response-wait with no expected responses and a default timeout handle:
// the timeout sweeper provides forward progress, so an engine restart can
// never lose a pending delay and no in-process timer is needed.
package delay

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

const (
	Type = "delay"

	// TypeWait is an alias node type kept for older graph definitions.
	TypeWait = "wait"

	defaultDelay = time.Hour

	// Channel marks delay waits so inbound-message matching never
	// touches them.
	Channel = models.ChannelInternal
)

type Node struct {
	node *models.Node
}

func NewNode(node *models.Node) *Node {
	return &Node{node: node}
}

func (n *Node) Execute(_ context.Context, _ protocol.ExecutionContext) (*models.NodeResult, error) {
	duration := nodeconfig.Duration(n.node.Config, "delay", 0)
	if duration == 0 {
		duration = nodeconfig.Duration(n.node.Config, "duration", defaultDelay)
	}

	resumeAt := time.Now().Add(duration)

	return models.Suspend(models.NewResponseWait(n.node.ID, models.ResponseWait{
		Channel:       Channel,
		TimeoutAt:     &resumeAt,
		TimeoutHandle: models.HandleDefault,
	}), map[string]any{"resumeAt": resumeAt.UTC().Format(time.RFC3339)}), nil
}

type Factory struct {
	nodeType string
}

func NewFactory() *Factory {
	return &Factory{nodeType: Type}
}

func NewWaitFactory() *Factory {
	return &Factory{nodeType: TypeWait}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewNode(node), nil
}

func (f *Factory) ID() string   { return f.nodeType }
func (f *Factory) Name() string { return "Delay" }

func (f *Factory) Description() string {
	return "Defers the next step by a configured duration"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delay": map[string]any{
				"type":        "object",
				"description": "How long to defer: {duration, unit}",
				"default":     map[string]any{"duration": 1, "unit": "hours"},
			},
		},
	}
}
