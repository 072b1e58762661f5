package engine_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/testutil"
)

func newSweeper(h *harness) *engine.Sweeper {
	return engine.NewSweeper(h.engine, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSweepResumesExpiredWaitAlongTimeoutEdge(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("ask", "whatsappWithResponse", map[string]any{"message": "Still looking?"}).
		Node("cold", "updateStatus", map[string]any{"status": "Cold"}).
		EdgeOn("ask", "cold", models.HandleTimeout).
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusWaitingForResponse, run.Status)

	sweeper := newSweeper(h)

	// Deadline still in the future: nothing to do.
	sweeper.Sweep(t.Context())

	waiting, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaitingForResponse, waiting.Status)

	h.expireWait(t, run.ID)
	sweeper.Sweep(t.Context())

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cold", updated.Status)
}

func TestSweepFiresEachTimeoutOnce(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("ask", "whatsappWithResponse", map[string]any{"message": "Anyone home?"}).
		Node("cold", "updateStatus", map[string]any{"status": "Cold"}).
		EdgeOn("ask", "cold", models.HandleTimeout).
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	h.expireWait(t, run.ID)

	sweeper := newSweeper(h)
	sweeper.Sweep(t.Context())
	sweeper.Sweep(t.Context())

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	// ask + cold once; the second sweep found nothing expired.
	assert.Len(t, final.ExecutionPath, 2)
}

func TestSweepExpiredWaitWithoutTimeoutEdgeCompletesRun(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("ask", "whatsappWithResponse", map[string]any{"message": "Ping"}).
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	h.expireWait(t, run.ID)
	newSweeper(h).Sweep(t.Context())

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Nil(t, final.Wait)
}

func TestDelayResumesOnlyViaSweeper(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("pause", "delay", map[string]any{"delay": map[string]any{"duration": float64(2), "unit": "hours"}}).
		Node("after", "updateStatus", map[string]any{"status": "followed_up"}).
		Edge("pause", "after").
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusWaitingForResponse, run.Status)
	require.NotNil(t, run.Wait.Response)
	assert.Equal(t, models.ChannelInternal, run.Wait.Response.Channel)

	// An inbound message from the lead must not cut the delay short.
	require.NoError(t, h.engine.HandleInbound(t.Context(), events.InboundMessage{
		Phone: lead.Phone,
		Body:  "hello?",
	}))

	paused, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaitingForResponse, paused.Status)

	h.expireWait(t, run.ID)
	newSweeper(h).Sweep(t.Context())

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "followed_up", updated.Status)
}

func TestPurgeDropsOnlyEntriesPastRetention(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	old := &models.ExecutionLogEntry{
		ID:             "old",
		RunID:          "run-1",
		OrganizationID: "org-1",
		NodeID:         "n1",
		Status:         models.StepStatusCompleted,
		Timestamp:      time.Now().UTC().Add(-models.ExecutionLogRetention - time.Hour),
	}
	recent := &models.ExecutionLogEntry{
		ID:             "recent",
		RunID:          "run-1",
		OrganizationID: "org-1",
		NodeID:         "n2",
		Status:         models.StepStatusCompleted,
		Timestamp:      time.Now().UTC(),
	}
	require.NoError(t, h.store.ExecutionLog().Append(t.Context(), old))
	require.NoError(t, h.store.ExecutionLog().Append(t.Context(), recent))

	newSweeper(h).Purge(t.Context())

	entries, err := h.store.ExecutionLog().ListByRun(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent", entries[0].ID)
}
