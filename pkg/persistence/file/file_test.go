package file_test

import (
	"testing"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/persistence/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func TestAutomationSaveAndGet(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	automation := &models.Automation{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Cold lead follow-up",
		Status:         models.AutomationStatusActive,
		Trigger:        models.TriggerRule{Type: models.TriggerLeadCreated},
		Nodes: []*models.Node{
			{ID: "n1", Type: "whatsapp", Config: map[string]any{"message": "hi"}},
		},
	}

	require.NoError(t, p.Automations().Save(ctx, automation))

	loaded, err := p.Automations().GetByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.Name, loaded.Name)
	assert.Equal(t, models.AutomationStatusActive, loaded.Status)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "whatsapp", loaded.Nodes[0].Type)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestAutomationGetByIDNotFound(t *testing.T) {
	p := newPersistence(t)

	_, err := p.Automations().GetByID(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)
}

func TestListActiveFiltersStatusAndOrganization(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	save := func(org string, status models.AutomationStatus) {
		require.NoError(t, p.Automations().Save(ctx, &models.Automation{
			ID:             uuid.New().String(),
			OrganizationID: org,
			Name:           "a",
			Status:         status,
		}))
	}

	save("org-1", models.AutomationStatusActive)
	save("org-1", models.AutomationStatusDraft)
	save("org-1", models.AutomationStatusArchived)
	save("org-2", models.AutomationStatusActive)

	active, err := p.Automations().ListActive(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := p.Automations().ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	listed, err := p.Automations().List(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestRunCreateAndGet(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	run := &models.Run{
		ID:             uuid.New().String(),
		AutomationID:   "auto-1",
		LeadID:         "lead-1",
		OrganizationID: "org-1",
		Status:         models.RunStatusRunning,
	}

	require.NoError(t, p.Runs().Create(ctx, run))
	assert.EqualValues(t, 1, run.Version)

	loaded, err := p.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, loaded.Status)
	assert.EqualValues(t, 1, loaded.Version)

	err = p.Runs().Create(ctx, run)
	assert.ErrorIs(t, err, persistence.ErrRunAlreadyExists)
}

func TestCompareAndSwapBumpsVersion(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	run := &models.Run{ID: uuid.New().String(), AutomationID: "a", LeadID: "l", OrganizationID: "o", Status: models.RunStatusRunning}
	require.NoError(t, p.Runs().Create(ctx, run))

	updated, err := p.Runs().CompareAndSwap(ctx, run.ID, 1, func(r *models.Run) error {
		r.Status = models.RunStatusCompleted

		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Version)
	assert.Equal(t, models.RunStatusCompleted, updated.Status)
}

func TestCompareAndSwapRejectsStaleVersion(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	run := &models.Run{ID: uuid.New().String(), AutomationID: "a", LeadID: "l", OrganizationID: "o", Status: models.RunStatusRunning}
	require.NoError(t, p.Runs().Create(ctx, run))

	_, err := p.Runs().CompareAndSwap(ctx, run.ID, 1, func(r *models.Run) error {
		r.SetContext("winner", "first")

		return nil
	})
	require.NoError(t, err)

	// A second writer still holding version 1 must lose.
	_, err = p.Runs().CompareAndSwap(ctx, run.ID, 1, func(r *models.Run) error {
		r.SetContext("winner", "second")

		return nil
	})
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	loaded, err := p.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.Context["winner"])
}

func TestCompareAndSwapMutatorErrorDiscardsWrite(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	run := &models.Run{ID: uuid.New().String(), AutomationID: "a", LeadID: "l", OrganizationID: "o", Status: models.RunStatusRunning}
	require.NoError(t, p.Runs().Create(ctx, run))

	_, err := p.Runs().CompareAndSwap(ctx, run.ID, 1, func(r *models.Run) error {
		r.Status = models.RunStatusFailed

		return assert.AnError
	})
	require.Error(t, err)

	loaded, err := p.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, loaded.Status)
	assert.EqualValues(t, 1, loaded.Version)
}

func waitingRun(t *testing.T, p *file.Persistence, wait *models.WaitDescriptor) *models.Run {
	t.Helper()

	run := &models.Run{
		ID:             uuid.New().String(),
		AutomationID:   "a",
		LeadID:         "l",
		OrganizationID: "o",
		Status:         models.RunStatusRunning,
	}
	require.NoError(t, p.Runs().Create(t.Context(), run))

	updated, err := p.Runs().CompareAndSwap(t.Context(), run.ID, 1, func(r *models.Run) error {
		r.EnterWait(wait)

		return nil
	})
	require.NoError(t, err)

	return updated
}

func TestFindWaitingByPhoneSkipsInternalChannel(t *testing.T) {
	p := newPersistence(t)
	timeout := time.Now().Add(time.Hour)

	waitingRun(t, p, models.NewResponseWait("n1", models.ResponseWait{
		Channel: models.ChannelInternal, TimeoutAt: &timeout, TimeoutHandle: models.HandleDefault,
	}))
	expected := waitingRun(t, p, models.NewResponseWait("n2", models.ResponseWait{
		Channel: "whatsapp", Phone: "+5511999990000", TimeoutAt: &timeout, TimeoutHandle: models.HandleTimeout,
	}))

	found, err := p.Runs().FindWaitingByPhone(t.Context(), "+5511999990000")
	require.NoError(t, err)
	assert.Equal(t, expected.ID, found.ID)

	_, err = p.Runs().FindWaitingByPhone(t.Context(), "+5511000000000")
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestFindWaitingByCallAndTask(t *testing.T) {
	p := newPersistence(t)

	callRun := waitingRun(t, p, models.NewCallWait("n1", models.CallWait{CallID: "call-42"}))
	taskRun := waitingRun(t, p, models.NewTaskWait("n2", models.TaskWait{TaskID: "task-7", StartedAt: time.Now()}))

	found, err := p.Runs().FindWaitingByCallID(t.Context(), "call-42")
	require.NoError(t, err)
	assert.Equal(t, callRun.ID, found.ID)

	found, err = p.Runs().FindWaitingByTaskID(t.Context(), "task-7")
	require.NoError(t, err)
	assert.Equal(t, taskRun.ID, found.ID)

	_, err = p.Runs().FindWaitingByCallID(t.Context(), "call-unknown")
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestFindExpiredWaitsOrdersByDeadline(t *testing.T) {
	p := newPersistence(t)

	past := time.Now().Add(-2 * time.Hour)
	pastLater := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	second := waitingRun(t, p, models.NewResponseWait("n1", models.ResponseWait{Channel: "whatsapp", TimeoutAt: &pastLater, TimeoutHandle: models.HandleTimeout}))
	first := waitingRun(t, p, models.NewCallWait("n2", models.CallWait{CallID: "c1", TimeoutAt: &past, TimeoutHandle: models.HandleTimeout}))
	waitingRun(t, p, models.NewResponseWait("n3", models.ResponseWait{Channel: "whatsapp", TimeoutAt: &future, TimeoutHandle: models.HandleTimeout}))
	waitingRun(t, p, models.NewTaskWait("n4", models.TaskWait{TaskID: "t1", StartedAt: time.Now()}))

	expired, err := p.Runs().FindExpiredWaits(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, first.ID, expired[0].ID)
	assert.Equal(t, second.ID, expired[1].ID)

	limited, err := p.Runs().FindExpiredWaits(t.Context(), time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)
}

func TestExecutionLogAppendListPurge(t *testing.T) {
	p := newPersistence(t)
	ctx := t.Context()

	old := &models.ExecutionLogEntry{
		ID:        uuid.New().String(),
		RunID:     "run-1",
		NodeID:    "n1",
		NodeType:  "whatsapp",
		Status:    models.StepStatusCompleted,
		Timestamp: time.Now().Add(-91 * 24 * time.Hour),
	}
	fresh := &models.ExecutionLogEntry{
		ID:        uuid.New().String(),
		RunID:     "run-1",
		NodeID:    "n2",
		NodeType:  "condition",
		Status:    models.StepStatusCompleted,
		Timestamp: time.Now(),
	}

	require.NoError(t, p.ExecutionLog().Append(ctx, old))
	require.NoError(t, p.ExecutionLog().Append(ctx, fresh))

	entries, err := p.ExecutionLog().ListByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	purged, err := p.ExecutionLog().PurgeOlderThan(ctx, time.Now().Add(-models.ExecutionLogRetention))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	entries, err = p.ExecutionLog().ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fresh.ID, entries[0].ID)
}
