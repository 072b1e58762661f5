// Package registry maps node types to executor factories. Adding a node
// type is registering a new factory, not editing a dispatch switch.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// ErrUnknownNodeType marks a node type with no registered factory. The
// scheduler treats it as "advance without effect", never as fatal.
var ErrUnknownNodeType = errors.New("unknown node type")

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

// Register adds a factory under its node type. Registering the same type
// twice replaces the previous factory.
func (r *Registry) Register(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

// CreateExecutor builds an executor for the node, or ErrUnknownNodeType.
func (r *Registry) CreateExecutor(ctx context.Context, node *models.Node) (protocol.Executor, error) {
	factory, ok := r.factories[node.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type)
	}

	executor, err := factory.Create(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s executor for node %s: %w", node.Type, node.ID, err)
	}

	return executor, nil
}

// Known reports whether a factory exists for the node type.
func (r *Registry) Known(nodeType string) bool {
	_, ok := r.factories[nodeType]

	return ok
}

// Types returns all registered node types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for id := range r.factories {
		types = append(types, id)
	}

	sort.Strings(types)

	return types
}

// Schema returns the config schema for a node type, or nil.
func (r *Registry) Schema(nodeType string) map[string]any {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil
	}

	return factory.Schema()
}
