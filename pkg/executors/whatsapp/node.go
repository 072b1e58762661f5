// Package whatsapp implements the WhatsApp node executors: fire-and-forget
// sends, sends that wait for a reply, and bare waits after a prior send.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/template"
)

const (
	TypeSend             = "whatsapp"
	TypeSendWithResponse = "whatsappWithResponse"
	TypeWaitForResponse  = "waitForResponse"

	defaultResponseTimeout = 24 * time.Hour
)

// SendNode sends a templated or freeform WhatsApp message.
type SendNode struct {
	node     *models.Node
	messages protocol.MessageChannel
}

func NewSendNode(node *models.Node, messages protocol.MessageChannel) *SendNode {
	return &SendNode{node: node, messages: messages}
}

func (n *SendNode) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	result, _ := send(ctx, n.messages, n.node, ectx)

	return result, nil
}

// SendWithResponseNode sends a message and suspends the run until the lead
// replies or the timeout elapses.
type SendWithResponseNode struct {
	node     *models.Node
	messages protocol.MessageChannel
}

func NewSendWithResponseNode(node *models.Node, messages protocol.MessageChannel) *SendWithResponseNode {
	return &SendWithResponseNode{node: node, messages: messages}
}

func (n *SendWithResponseNode) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	result, sent := send(ctx, n.messages, n.node, ectx)
	if !sent {
		// Send failures and unconfigured channels never enter a wait.
		return result, nil
	}

	wait := responseWait(n.node, ectx, time.Now())
	result.Wait = wait

	return result, nil
}

// WaitForResponseNode suspends the run without sending anything, used after
// an earlier send node.
type WaitForResponseNode struct {
	node *models.Node
}

func NewWaitForResponseNode(node *models.Node) *WaitForResponseNode {
	return &WaitForResponseNode{node: node}
}

func (n *WaitForResponseNode) Execute(_ context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	return models.Suspend(responseWait(n.node, ectx, time.Now()), nil), nil
}

// send delivers the configured message. The boolean reports whether the
// message actually went out, so callers know whether entering a wait makes
// sense.
func send(ctx context.Context, messages protocol.MessageChannel, node *models.Node, ectx protocol.ExecutionContext) (*models.NodeResult, bool) {
	lead := ectx.Lead
	if lead == nil || lead.Phone == "" {
		return models.Fail("lead has no phone number"), false
	}

	configured, err := messages.IsConfigured(ctx, lead.OrganizationID)
	if err != nil {
		return models.Fail(fmt.Sprintf("failed to check channel configuration: %v", err)), false
	}

	if !configured {
		return models.Skip("whatsapp channel not configured for organization"), false
	}

	var sendResult *protocol.SendResult

	if templateID := nodeconfig.String(node.Config, "templateId"); templateID != "" {
		lang := nodeconfig.StringDefault(node.Config, "language", "en")
		components := templateComponents(node.Config, ectx)

		sendResult, err = messages.SendTemplate(ctx, lead.OrganizationID, lead.Phone, templateID, lang, components)
	} else {
		text := template.Interpolate(nodeconfig.String(node.Config, "message"), lead, ectx.Context(), ectx.Labels)
		if text == "" {
			return models.Fail("message template rendered empty"), false
		}

		sendResult, err = messages.SendText(ctx, lead.OrganizationID, lead.Phone, text)
	}

	if err != nil {
		return models.Fail(fmt.Sprintf("whatsapp send failed: %v", err)), false
	}

	result := models.Succeed(map[string]any{"messageId": sendResult.MessageID})
	result.ContextUpdates = map[string]any{"lastMessageId": sendResult.MessageID}

	return result, true
}

func templateComponents(config map[string]any, ectx protocol.ExecutionContext) []map[string]any {
	raw := nodeconfig.List(config, "components")
	if raw == nil {
		return nil
	}

	components := make([]map[string]any, 0, len(raw))

	for _, item := range raw {
		component, ok := item.(map[string]any)
		if !ok {
			continue
		}

		rendered := make(map[string]any, len(component))
		for key, value := range component {
			if s, ok := value.(string); ok {
				rendered[key] = template.Interpolate(s, ectx.Lead, ectx.Context(), ectx.Labels)
			} else {
				rendered[key] = value
			}
		}

		components = append(components, rendered)
	}

	return components
}

func responseWait(node *models.Node, ectx protocol.ExecutionContext, now time.Time) *models.WaitDescriptor {
	timeout := nodeconfig.Duration(node.Config, "timeout", defaultResponseTimeout)
	deadline := now.Add(timeout)

	phone := ""
	if ectx.Lead != nil {
		phone = ectx.Lead.Phone
	}

	return models.NewResponseWait(node.ID, models.ResponseWait{
		Channel:       nodeconfig.StringDefault(node.Config, "channel", "whatsapp"),
		Phone:         phone,
		Expected:      ExpectedResponses(node.Config),
		TimeoutAt:     &deadline,
		TimeoutHandle: nodeconfig.StringDefault(node.Config, "timeoutHandle", models.HandleTimeout),
	})
}

// ExpectedResponses builds the expected-reply list from an explicit
// expectedResponses config, falling back to implicit extraction from the
// button definitions of an interactive message.
func ExpectedResponses(config map[string]any) []models.ExpectedResponse {
	if explicit := nodeconfig.List(config, "expectedResponses"); explicit != nil {
		expected := make([]models.ExpectedResponse, 0, len(explicit))

		for _, item := range explicit {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}

			value := nodeconfig.String(entry, "value")
			if value == "" {
				continue
			}

			expected = append(expected, models.ExpectedResponse{
				Type:       nodeconfig.StringDefault(entry, "type", "exact"),
				Value:      value,
				NextHandle: nodeconfig.StringDefault(entry, "nextHandle", handleFromValue(value)),
			})
		}

		return expected
	}

	buttons := nodeconfig.List(config, "buttons")
	expected := make([]models.ExpectedResponse, 0, len(buttons))

	for _, item := range buttons {
		button, ok := item.(map[string]any)
		if !ok {
			continue
		}

		value := nodeconfig.StringDefault(button, "value", nodeconfig.String(button, "label"))
		if value == "" {
			continue
		}

		expected = append(expected, models.ExpectedResponse{
			Type:       "button",
			Value:      value,
			NextHandle: nodeconfig.StringDefault(button, "nextHandle", handleFromValue(value)),
		})
	}

	if len(expected) == 0 {
		return nil
	}

	return expected
}

func handleFromValue(value string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", "_"))
}
