package aicall

import (
	"context"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// CallFactory creates CallNode executors.
type CallFactory struct {
	voice protocol.VoiceCaller
}

func NewCallFactory(voice protocol.VoiceCaller) *CallFactory {
	return &CallFactory{voice: voice}
}

func (f *CallFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewCallNode(node, f.voice), nil
}

func (f *CallFactory) ID() string   { return TypeCall }
func (f *CallFactory) Name() string { return "AI Voice Call" }

func (f *CallFactory) Description() string {
	return "Places an outbound AI voice call to the lead"
}

func (f *CallFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{
				"type":        "string",
				"description": "Call script or prompt. Supports {{placeholders}}",
			},
			"voice":    map[string]any{"type": "string"},
			"language": map[string]any{"type": "string"},
		},
	}
}

// CallWithResponseFactory creates CallWithResponseNode executors.
type CallWithResponseFactory struct {
	voice protocol.VoiceCaller
}

func NewCallWithResponseFactory(voice protocol.VoiceCaller) *CallWithResponseFactory {
	return &CallWithResponseFactory{voice: voice}
}

func (f *CallWithResponseFactory) Create(_ context.Context, node *models.Node) (protocol.Executor, error) {
	return NewCallWithResponseNode(node, f.voice), nil
}

func (f *CallWithResponseFactory) ID() string   { return TypeCallWithResponse }
func (f *CallWithResponseFactory) Name() string { return "AI Voice Call with Outcome" }

func (f *CallWithResponseFactory) Description() string {
	return "Places an AI voice call and suspends the run until the outcome webhook arrives or the timeout elapses"
}

func (f *CallWithResponseFactory) Schema() map[string]any {
	properties := map[string]any{
		"script":        map[string]any{"type": "string"},
		"voice":         map[string]any{"type": "string"},
		"language":      map[string]any{"type": "string"},
		"timeout":       map[string]any{"type": "object", "default": map[string]any{"duration": 30, "unit": "minutes"}},
		"timeoutHandle": map[string]any{"type": "string", "default": models.HandleTimeout},
	}

	for _, mapping := range outcomeFlags {
		properties[mapping.flag] = map[string]any{
			"type":        "boolean",
			"description": "Route the " + mapping.outcome + " outcome to the " + mapping.outcome + " handle",
		}
	}

	return map[string]any{"type": "object", "properties": properties}
}
