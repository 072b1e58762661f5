package whatsapp

import (
	"errors"
	"testing"
	"time"

	"github.com/dripflow/dripflow/pkg/mocks"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executionContext(lead *models.Lead) protocol.ExecutionContext {
	return protocol.ExecutionContext{
		Run:    &models.Run{ID: "run-1", OrganizationID: "org-1", Status: models.RunStatusRunning},
		Lead:   lead,
		Labels: models.Labels{AppointmentField: "Demo"},
	}
}

func TestSendInterpolatesMessage(t *testing.T) {
	messages := mocks.NewMessageChannelMock()
	node := &models.Node{
		ID:     "n1",
		Type:   TypeSend,
		Config: map[string]any{"message": "Hi {{name}}, your {{appointmentLabel}} awaits"},
	}

	lead := &models.Lead{ID: "lead-1", OrganizationID: "org-1", Name: "Asha", Phone: "+5511999990000"}

	result, err := NewSendNode(node, messages).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "msg-1", result.Output["messageId"])
	assert.Equal(t, "msg-1", result.ContextUpdates["lastMessageId"])

	require.Len(t, messages.Sent, 1)
	assert.Equal(t, "Hi Asha, your Demo awaits", messages.Sent[0].Text)
}

func TestSendFailsWithoutPhone(t *testing.T) {
	messages := mocks.NewMessageChannelMock()
	node := &models.Node{ID: "n1", Type: TypeSend, Config: map[string]any{"message": "hi"}}

	result, err := NewSendNode(node, messages).Execute(t.Context(), executionContext(&models.Lead{ID: "lead-1"}))
	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Empty(t, messages.Sent)
}

func TestSendSkipsWhenChannelNotConfigured(t *testing.T) {
	messages := mocks.NewMessageChannelMock()
	messages.Configured = false

	node := &models.Node{ID: "n1", Type: TypeSend, Config: map[string]any{"message": "hi"}}
	lead := &models.Lead{ID: "lead-1", Phone: "+5511999990000"}

	result, err := NewSendNode(node, messages).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.False(t, result.Failed(), "an unconfigured channel is non-fatal")
}

func TestSendTemplateMessage(t *testing.T) {
	messages := mocks.NewMessageChannelMock()
	node := &models.Node{
		ID:   "n1",
		Type: TypeSend,
		Config: map[string]any{
			"templateId": "welcome_v2",
			"language":   "pt_BR",
		},
	}
	lead := &models.Lead{ID: "lead-1", Phone: "+5511999990000"}

	result, err := NewSendNode(node, messages).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, messages.Sent, 1)
	assert.Equal(t, "welcome_v2", messages.Sent[0].TemplateID)
	assert.Equal(t, "pt_BR", messages.Sent[0].Language)
}

func TestSendWithResponseEntersWait(t *testing.T) {
	messages := mocks.NewMessageChannelMock()
	node := &models.Node{
		ID:   "n1",
		Type: TypeSendWithResponse,
		Config: map[string]any{
			"message": "Interested?",
			"buttons": []any{
				map[string]any{"label": "Yes please", "nextHandle": "interested"},
				map[string]any{"label": "No"},
			},
			"timeout": map[string]any{"duration": float64(1), "unit": "hours"},
		},
	}
	lead := &models.Lead{ID: "lead-1", Phone: "+5511999990000"}

	before := time.Now()
	result, err := NewSendWithResponseNode(node, messages).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)

	require.NotNil(t, result.Wait)
	require.Equal(t, models.WaitKindResponse, result.Wait.Kind)
	require.NoError(t, result.Wait.Validate())

	wait := result.Wait.Response
	assert.Equal(t, "whatsapp", wait.Channel)
	assert.Equal(t, "+5511999990000", wait.Phone)
	assert.Equal(t, models.HandleTimeout, wait.TimeoutHandle)
	require.NotNil(t, wait.TimeoutAt)
	assert.WithinDuration(t, before.Add(time.Hour), *wait.TimeoutAt, 5*time.Second)

	// Buttons imply expected responses; missing nextHandle is derived.
	require.Len(t, wait.Expected, 2)
	assert.Equal(t, models.ExpectedResponse{Type: "button", Value: "Yes please", NextHandle: "interested"}, wait.Expected[0])
	assert.Equal(t, models.ExpectedResponse{Type: "button", Value: "No", NextHandle: "no"}, wait.Expected[1])
}

func TestSendWithResponseDoesNotWaitOnSendFailure(t *testing.T) {
	messages := mocks.NewMessageChannelMock()
	messages.SendErr = errors.New("gateway down")

	node := &models.Node{ID: "n1", Type: TypeSendWithResponse, Config: map[string]any{"message": "hi"}}
	lead := &models.Lead{ID: "lead-1", Phone: "+5511999990000"}

	result, err := NewSendWithResponseNode(node, messages).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Nil(t, result.Wait)
}

func TestWaitForResponseAlwaysWaits(t *testing.T) {
	node := &models.Node{
		ID:   "n2",
		Type: TypeWaitForResponse,
		Config: map[string]any{
			"expectedResponses": []any{
				map[string]any{"value": "stop", "nextHandle": "opt_out"},
			},
		},
	}
	lead := &models.Lead{ID: "lead-1", Phone: "+5511999990000"}

	result, err := NewWaitForResponseNode(node).Execute(t.Context(), executionContext(lead))
	require.NoError(t, err)
	require.NotNil(t, result.Wait)
	assert.Equal(t, "n2", result.Wait.NodeID)
	require.Len(t, result.Wait.Response.Expected, 1)
	assert.Equal(t, "opt_out", result.Wait.Response.Expected[0].NextHandle)
}
