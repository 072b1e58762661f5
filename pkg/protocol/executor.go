// Package protocol defines the interfaces and contracts between the engine,
// the node executors and the external CRM collaborators.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dripflow/dripflow/pkg/models"
)

// ExecutionContext is everything an executor may look at while running one
// node. Executors never mutate the run directly; every effect is returned
// as data on the NodeResult and applied by the scheduler under the
// version guard.
type ExecutionContext struct {
	Run    *models.Run
	Lead   *models.Lead
	Labels models.Labels
	Logger *slog.Logger
}

// Context returns the run's scratch context, never nil.
func (e ExecutionContext) Context() map[string]any {
	if e.Run == nil || e.Run.Context == nil {
		return map[string]any{}
	}

	return e.Run.Context
}

// Executor runs a single node. Node-level failures come back as data on
// the result; a returned error means the executor itself is broken and is
// treated as a failed result by the scheduler.
type Executor interface {
	Execute(ctx context.Context, ectx ExecutionContext) (*models.NodeResult, error)
}

// ExecutorFactory creates executor instances bound to a node's
// configuration and provides metadata about the node type.
type ExecutorFactory interface {
	// Create builds an executor for the given node instance.
	Create(ctx context.Context, node *models.Node) (Executor, error)

	// ID returns the node type this factory handles.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for configuring this node type.
	Schema() map[string]any
}
