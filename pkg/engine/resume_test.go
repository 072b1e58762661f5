package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/testutil"
)

func buttonAutomation() *models.Automation {
	return testutil.NewAutomation("org-1").
		Node("ask", "whatsappWithResponse", map[string]any{
			"message": "Interested in a visit?",
			"buttons": []any{
				map[string]any{"value": "yes", "label": "Yes"},
				map[string]any{"value": "no", "label": "No"},
			},
		}).
		Node("book", "updateStatus", map[string]any{"status": "visit_scheduled"}).
		Node("close", "updateStatus", map[string]any{"status": "not_interested"}).
		Node("nudge", "updateStatus", map[string]any{"status": "needs_review"}).
		EdgeOn("ask", "book", "yes").
		EdgeOn("ask", "close", "no").
		EdgeOn("ask", "nudge", models.HandleDefault).
		Build()
}

func TestInboundButtonReplyResumesMatchedBranch(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := buttonAutomation()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusWaitingForResponse, run.Status)
	require.NotNil(t, run.Wait)
	assert.Equal(t, lead.Phone, run.Wait.Response.Phone)

	err = h.engine.HandleInbound(t.Context(), events.InboundMessage{
		Phone:    lead.Phone,
		ButtonID: "yes",
	})
	require.NoError(t, err)

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Nil(t, final.Wait)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "visit_scheduled", updated.Status)

	types := h.bus.PublishedTypes()
	assert.Contains(t, types, events.RunResumedEvent)
}

func TestInboundExactTextMatchIsCaseInsensitive(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("ask", "whatsappWithResponse", map[string]any{
			"message": "Reply STOP to opt out",
			"expectedResponses": []any{
				map[string]any{"type": "exact", "value": "STOP", "nextHandle": "optout"},
			},
		}).
		Node("optout", "updateStatus", map[string]any{"status": "opted_out"}).
		EdgeOn("ask", "optout", "optout").
		Build()
	h.save(t, automation)

	_, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	err = h.engine.HandleInbound(t.Context(), events.InboundMessage{
		Phone: lead.Phone,
		Body:  "  stop ",
	})
	require.NoError(t, err)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "opted_out", updated.Status)
}

func TestInboundUnmatchedTextTakesDefaultHandle(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := buttonAutomation()
	h.save(t, automation)

	_, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	err = h.engine.HandleInbound(t.Context(), events.InboundMessage{
		Phone: lead.Phone,
		Body:  "maybe next week",
	})
	require.NoError(t, err)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "needs_review", updated.Status)
}

func TestDuplicateInboundEventResumesOnce(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := buttonAutomation()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	msg := events.InboundMessage{Phone: lead.Phone, ButtonID: "no"}
	require.NoError(t, h.engine.HandleInbound(t.Context(), msg))

	// The duplicate finds no waiting run and is dropped without error.
	require.NoError(t, h.engine.HandleInbound(t.Context(), msg))

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	// Exactly one resume: ask + close, no third step from the duplicate.
	assert.Len(t, final.ExecutionPath, 2)

	resumes := 0
	for _, eventType := range h.bus.PublishedTypes() {
		if eventType == events.RunResumedEvent {
			resumes++
		}
	}

	assert.Equal(t, 1, resumes)
}

func TestInboundWithNoWaitingRunIsDropped(t *testing.T) {
	h := newHarness(t, testutil.CreateTestLead())

	err := h.engine.HandleInbound(t.Context(), events.InboundMessage{
		Phone: "+5511000000000",
		Body:  "hello?",
	})
	assert.NoError(t, err)
	assert.Empty(t, h.bus.Published())
}

func TestCallOutcomeRoutesConfiguredBranch(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("call", "aiCallWithResponse", map[string]any{
			"script":     "Hi {{firstName}}",
			"onNoAnswer": true,
		}).
		Node("retryLater", "updateStatus", map[string]any{"status": "call_back"}).
		Node("done", "updateStatus", map[string]any{"status": "called"}).
		EdgeOn("call", "retryLater", "no_answer").
		EdgeOn("call", "done", models.HandleDefault).
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusWaitingForCall, run.Status)
	require.NotNil(t, run.Wait.Call)

	err = h.engine.HandleCallOutcome(t.Context(), events.CallOutcome{
		CallID:  run.Wait.Call.CallID,
		Outcome: "no_answer",
	})
	require.NoError(t, err)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "call_back", updated.Status)
}

func TestCallOutcomeWithoutBranchTakesDefault(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("call", "aiCallWithResponse", map[string]any{
			"script":     "Hi",
			"onNoAnswer": true,
		}).
		Node("done", "updateStatus", map[string]any{"status": "called"}).
		EdgeOn("call", "done", models.HandleDefault).
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	// "interested" is not among the configured outcomes: default edge.
	err = h.engine.HandleCallOutcome(t.Context(), events.CallOutcome{
		CallID:  run.Wait.Call.CallID,
		Outcome: "interested",
	})
	require.NoError(t, err)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "called", updated.Status)
}

func TestTaskCompletionResumesRun(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	automation := testutil.NewAutomation("org-1").
		Node("handoff", "createTask", map[string]any{
			"title":             "Call {{name}}",
			"waitForCompletion": true,
		}).
		Node("after", "updateStatus", map[string]any{"status": "agent_contacted"}).
		Edge("handoff", "after").
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusWaitingForTask, run.Status)
	require.NotNil(t, run.Wait.Task)
	require.Len(t, h.tasks.Created, 1)

	err = h.engine.HandleTaskCompleted(t.Context(), events.TaskCompleted{
		TaskID: run.Wait.Task.TaskID,
	})
	require.NoError(t, err)

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	updated, err := h.leads.Get(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent_contacted", updated.Status)
}

func TestResumeWithoutEdgeForHandleCompletesRun(t *testing.T) {
	lead := testutil.CreateTestLead()
	h := newHarness(t, lead)

	// "no" has no outgoing edge: the path simply ends there.
	automation := testutil.NewAutomation("org-1").
		Node("ask", "whatsappWithResponse", map[string]any{
			"message": "Interested?",
			"buttons": []any{map[string]any{"value": "no"}},
		}).
		Build()
	h.save(t, automation)

	run, err := h.engine.StartRun(t.Context(), automation.ID, lead.ID)
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleInbound(t.Context(), events.InboundMessage{
		Phone:    lead.Phone,
		ButtonID: "no",
	}))

	final, err := h.engine.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
}
