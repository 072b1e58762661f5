// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dripflow/dripflow/pkg/executors/aicall"
	"github.com/dripflow/dripflow/pkg/executors/analytics"
	"github.com/dripflow/dripflow/pkg/executors/condition"
	"github.com/dripflow/dripflow/pkg/executors/delay"
	"github.com/dripflow/dripflow/pkg/executors/email"
	"github.com/dripflow/dripflow/pkg/executors/humancall"
	"github.com/dripflow/dripflow/pkg/executors/leadops"
	"github.com/dripflow/dripflow/pkg/executors/task"
	"github.com/dripflow/dripflow/pkg/executors/whatsapp"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/registry"
)

// NewRegistry builds the node-type registry with every native executor
// wired to the given collaborators.
func NewRegistry(log *slog.Logger, collaborators protocol.Collaborators) *registry.Registry {
	reg := registry.NewRegistry(log)

	reg.Register(whatsapp.NewSendFactory(collaborators.Messages))
	reg.Register(whatsapp.NewSendWithResponseFactory(collaborators.Messages))
	reg.Register(whatsapp.NewWaitForResponseFactory())
	reg.Register(aicall.NewCallFactory(collaborators.Voice))
	reg.Register(aicall.NewCallWithResponseFactory(collaborators.Voice))
	reg.Register(humancall.NewFactory(collaborators.Tasks))
	reg.Register(email.NewFactory(collaborators.Mail))
	reg.Register(task.NewFactory(collaborators.Tasks))
	reg.Register(leadops.NewUpdateStatusFactory(collaborators.Leads, collaborators.Tasks))
	reg.Register(leadops.NewAssignAgentFactory(collaborators.Leads))
	reg.Register(condition.NewFactory())
	reg.Register(condition.NewTimeoutFactory())
	reg.Register(delay.NewFactory())
	reg.Register(delay.NewWaitFactory())
	reg.Register(analytics.NewFactory())

	return reg
}
