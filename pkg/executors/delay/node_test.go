package delay

import (
	"testing"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelaySuspendsOnInternalWait(t *testing.T) {
	node := &models.Node{
		ID:     "n1",
		Type:   Type,
		Config: map[string]any{"delay": map[string]any{"duration": float64(2), "unit": "hours"}},
	}

	before := time.Now()
	result, err := NewNode(node).Execute(t.Context(), protocol.ExecutionContext{Run: &models.Run{ID: "run-1"}})
	require.NoError(t, err)

	require.NotNil(t, result.Wait)
	require.NoError(t, result.Wait.Validate())
	assert.Equal(t, models.WaitKindResponse, result.Wait.Kind)

	wait := result.Wait.Response
	assert.Equal(t, Channel, wait.Channel)
	assert.Empty(t, wait.Expected, "a delay matches no inbound message")
	assert.Equal(t, models.HandleDefault, wait.TimeoutHandle)
	require.NotNil(t, wait.TimeoutAt)
	assert.WithinDuration(t, before.Add(2*time.Hour), *wait.TimeoutAt, 5*time.Second)
}

func TestDelayDefaultsToOneHour(t *testing.T) {
	node := &models.Node{ID: "n1", Type: TypeWait, Config: map[string]any{}}

	result, err := NewNode(node).Execute(t.Context(), protocol.ExecutionContext{Run: &models.Run{ID: "run-1"}})
	require.NoError(t, err)
	require.NotNil(t, result.Wait)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *result.Wait.Response.TimeoutAt, 5*time.Second)
}
