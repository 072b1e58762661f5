package whatsapp

import (
	"context"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// SendFactory creates SendNode executors.
type SendFactory struct {
	messages protocol.MessageChannel
}

func NewSendFactory(messages protocol.MessageChannel) *SendFactory {
	return &SendFactory{messages: messages}
}

func (f *SendFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewSendNode(node, f.messages), nil
}

func (f *SendFactory) ID() string   { return TypeSend }
func (f *SendFactory) Name() string { return "Send WhatsApp Message" }

func (f *SendFactory) Description() string {
	return "Sends a templated or freeform WhatsApp message to the lead"
}

func (f *SendFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Freeform message body. Supports {{placeholders}}",
			},
			"templateId": map[string]any{
				"type":        "string",
				"description": "Pre-approved template ID. Takes precedence over message",
			},
			"language": map[string]any{
				"type":    "string",
				"default": "en",
			},
			"components": map[string]any{
				"type":        "array",
				"description": "Template components, values support {{placeholders}}",
			},
		},
	}
}

// SendWithResponseFactory creates SendWithResponseNode executors.
type SendWithResponseFactory struct {
	messages protocol.MessageChannel
}

func NewSendWithResponseFactory(messages protocol.MessageChannel) *SendWithResponseFactory {
	return &SendWithResponseFactory{messages: messages}
}

func (f *SendWithResponseFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewSendWithResponseNode(node, f.messages), nil
}

func (f *SendWithResponseFactory) ID() string   { return TypeSendWithResponse }
func (f *SendWithResponseFactory) Name() string { return "Send WhatsApp and Wait for Reply" }

func (f *SendWithResponseFactory) Description() string {
	return "Sends a WhatsApp message and suspends the run until the lead replies or the timeout elapses"
}

func (f *SendWithResponseFactory) Schema() map[string]any {
	schema := NewSendFactory(f.messages).Schema()
	properties, _ := schema["properties"].(map[string]any)

	properties["expectedResponses"] = map[string]any{
		"type":        "array",
		"description": "Explicit reply matches: [{value, nextHandle, type}]",
	}
	properties["buttons"] = map[string]any{
		"type":        "array",
		"description": "Interactive buttons; each implies an expected response",
	}
	properties["timeout"] = map[string]any{
		"type":        "object",
		"description": "Reply timeout: {duration, unit}",
		"default":     map[string]any{"duration": 24, "unit": "hours"},
	}
	properties["timeoutHandle"] = map[string]any{
		"type":    "string",
		"default": models.HandleTimeout,
	}

	return schema
}

// WaitForResponseFactory creates WaitForResponseNode executors.
type WaitForResponseFactory struct{}

func NewWaitForResponseFactory() *WaitForResponseFactory {
	return &WaitForResponseFactory{}
}

func (f *WaitForResponseFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewWaitForResponseNode(node), nil
}

func (f *WaitForResponseFactory) ID() string   { return TypeWaitForResponse }
func (f *WaitForResponseFactory) Name() string { return "Wait for Response" }

func (f *WaitForResponseFactory) Description() string {
	return "Suspends the run until an inbound message arrives, without sending anything"
}

func (f *WaitForResponseFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"channel":           map[string]any{"type": "string", "default": "whatsapp"},
			"expectedResponses": map[string]any{"type": "array"},
			"timeout":           map[string]any{"type": "object"},
			"timeoutHandle":     map[string]any{"type": "string", "default": models.HandleTimeout},
		},
	}
}
