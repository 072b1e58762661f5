// Package aicall implements the AI voice call node executors.
package aicall

import (
	"context"
	"fmt"
	"time"

	"github.com/dripflow/dripflow/pkg/executors/nodeconfig"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/template"
)

const (
	TypeCall             = "aiCall"
	TypeCallWithResponse = "aiCallWithResponse"

	defaultOutcomeTimeout = 30 * time.Minute
)

// outcomeFlags maps the boolean config flags of an aiCallWithResponse node
// to the outcome value (and handle) each one enables.
var outcomeFlags = []struct {
	flag    string
	outcome string
}{
	{"onInterested", "interested"},
	{"onNotInterested", "not_interested"},
	{"onAnswered", "answered"},
	{"onNoAnswer", "no_answer"},
	{"onVoicemail", "voicemail"},
	{"onBusy", "busy"},
	{"onFailed", "failed"},
	{"onCallbackRequested", "callback_requested"},
}

// CallNode places an outbound AI voice call without waiting for its outcome.
type CallNode struct {
	node  *models.Node
	voice protocol.VoiceCaller
}

func NewCallNode(node *models.Node, voice protocol.VoiceCaller) *CallNode {
	return &CallNode{node: node, voice: voice}
}

func (n *CallNode) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	result, _ := placeCall(ctx, n.voice, n.node, ectx)

	return result, nil
}

// CallWithResponseNode places a call and suspends the run until the outcome
// webhook arrives or the timeout elapses.
type CallWithResponseNode struct {
	node  *models.Node
	voice protocol.VoiceCaller
}

func NewCallWithResponseNode(node *models.Node, voice protocol.VoiceCaller) *CallWithResponseNode {
	return &CallWithResponseNode{node: node, voice: voice}
}

func (n *CallWithResponseNode) Execute(ctx context.Context, ectx protocol.ExecutionContext) (*models.NodeResult, error) {
	result, callID := placeCall(ctx, n.voice, n.node, ectx)
	if callID == "" {
		// A call that never went out has no outcome to wait for.
		return result, nil
	}

	deadline := time.Now().Add(nodeconfig.Duration(n.node.Config, "timeout", defaultOutcomeTimeout))

	result.Wait = models.NewCallWait(n.node.ID, models.CallWait{
		CallID:        callID,
		Expected:      expectedOutcomes(n.node.Config),
		TimeoutAt:     &deadline,
		TimeoutHandle: nodeconfig.StringDefault(n.node.Config, "timeoutHandle", models.HandleTimeout),
	})

	return result, nil
}

// placeCall dials the lead. The returned call ID is empty unless the call
// was actually initiated: skipped and simulated calls are non-successful
// completions, never silent successes.
func placeCall(ctx context.Context, voice protocol.VoiceCaller, node *models.Node, ectx protocol.ExecutionContext) (*models.NodeResult, string) {
	lead := ectx.Lead
	if lead == nil || lead.Phone == "" {
		return models.Fail("lead has no phone number"), ""
	}

	opts := protocol.CallOptions{
		Script:   template.Interpolate(nodeconfig.String(node.Config, "script"), lead, ectx.Context(), ectx.Labels),
		Voice:    nodeconfig.String(node.Config, "voice"),
		Language: nodeconfig.String(node.Config, "language"),
	}

	callResult, err := voice.PlaceCall(ctx, lead.OrganizationID, lead.Phone, opts)
	if err != nil {
		return models.Fail(fmt.Sprintf("failed to place AI call: %v", err)), ""
	}

	switch callResult.Status {
	case protocol.CallStatusInitiated:
		result := models.Succeed(map[string]any{"callId": callResult.CallID})
		result.ContextUpdates = map[string]any{"lastCallId": callResult.CallID}

		return result, callResult.CallID

	case protocol.CallStatusSkipped, protocol.CallStatusSimulated:
		return models.Skip(fmt.Sprintf("AI call %s: voice credentials not configured", callResult.Status)), ""

	case protocol.CallStatusError:
		return models.Fail("voice provider reported an error initiating the call"), ""
	}

	return models.Fail(fmt.Sprintf("unexpected call status %q", callResult.Status)), ""
}

func expectedOutcomes(config map[string]any) []models.ExpectedOutcome {
	var expected []models.ExpectedOutcome

	for _, mapping := range outcomeFlags {
		if nodeconfig.Bool(config, mapping.flag) {
			expected = append(expected, models.ExpectedOutcome{
				Outcome:    mapping.outcome,
				NextHandle: mapping.outcome,
			})
		}
	}

	return expected
}
