// Package email implements the email node executor.
package email

import (
	"context"
	"fmt"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/template"
)

const Type = "email"

type Node struct {
	node *models.Node
	mail protocol.Mailer
}

func NewNode(node *models.Node, mail protocol.Mailer) *Node {
	return &Node{node: node, mail: mail}
}

func (n *Node) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	lead := ectx.Lead
	if lead == nil || lead.Email == "" {
		return models.Fail("lead has no email address"), nil
	}

	subject := template.Interpolate(nodeconfig.String(n.node.Config, "subject"), lead, ectx.Context(), ectx.Labels)
	body := template.Interpolate(nodeconfig.String(n.node.Config, "body"), lead, ectx.Context(), ectx.Labels)

	sent, err := n.mail.Send(ctx, lead.OrganizationID, lead.Email, subject, body)
	if err != nil {
		return models.Fail(fmt.Sprintf("email send failed: %v", err)), nil
	}

	result := models.Succeed(map[string]any{"messageId": sent.MessageID})
	result.ContextUpdates = map[string]any{"lastEmailId": sent.MessageID}

	return result, nil
}

type Factory struct {
	mail protocol.Mailer
}

func NewFactory(mail protocol.Mailer) *Factory {
	return &Factory{mail: mail}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewNode(node, f.mail), nil
}

func (f *Factory) ID() string   { return Type }
func (f *Factory) Name() string { return "Send Email" }

func (f *Factory) Description() string {
	return "Sends an interpolated email to the lead"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{"type": "string", "description": "Supports {{placeholders}}"},
			"body":    map[string]any{"type": "string", "description": "HTML body, supports {{placeholders}}"},
		},
		"required": []string{"subject", "body"},
	}
}
