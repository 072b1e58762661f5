package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"execution_log", "runs", "automations", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("dripflow_test"),
			postgres.WithUsername("dripflow"),
			postgres.WithPassword("dripflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx
}

func TestRunLifecycleIntegration(t *testing.T) {
	p, ctx := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	automation := &models.Automation{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "Lead nurture",
		Status:         models.AutomationStatusActive,
		Trigger:        models.TriggerRule{Type: models.TriggerLeadCreated},
		Nodes:          []*models.Node{{ID: "n1", Type: "whatsapp"}},
	}
	require.NoError(t, p.Automations().Save(ctx, automation))

	active, err := p.Automations().ListActive(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, automation.ID, active[0].ID)

	run := &models.Run{
		ID:             uuid.New().String(),
		AutomationID:   automation.ID,
		LeadID:         "lead-1",
		OrganizationID: "org-1",
		Status:         models.RunStatusRunning,
	}
	require.NoError(t, p.Runs().Create(ctx, run))

	// Suspend the run on a response-wait.
	timeout := time.Now().Add(time.Hour).UTC()
	updated, err := p.Runs().CompareAndSwap(ctx, run.ID, 1, func(r *models.Run) error {
		r.EnterWait(models.NewResponseWait("n1", models.ResponseWait{
			Channel:       "whatsapp",
			Phone:         "+5511999990000",
			TimeoutAt:     &timeout,
			TimeoutHandle: models.HandleTimeout,
		}))

		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Version)

	// Wait columns are extracted, so the phone lookup finds it.
	found, err := p.Runs().FindWaitingByPhone(ctx, "+5511999990000")
	require.NoError(t, err)
	assert.Equal(t, run.ID, found.ID)

	// A writer holding the stale version loses.
	_, err = p.Runs().CompareAndSwap(ctx, run.ID, 1, func(r *models.Run) error { return nil })
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	// Not expired yet.
	expired, err := p.Runs().FindExpiredWaits(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = p.Runs().FindExpiredWaits(ctx, time.Now().Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, run.ID, expired[0].ID)

	// Resume and complete; the wait columns clear with the document.
	updated, err = p.Runs().CompareAndSwap(ctx, run.ID, 2, func(r *models.Run) error {
		r.ClearWait()
		r.Complete(models.RunStatusCompleted, "", time.Now().UTC())

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, updated.Status)

	_, err = p.Runs().FindWaitingByPhone(ctx, "+5511999990000")
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestExecutionLogIntegration(t *testing.T) {
	p, ctx := setupTestDB(t)

	entry := &models.ExecutionLogEntry{
		ID:             uuid.New().String(),
		RunID:          "run-1",
		AutomationID:   "auto-1",
		LeadID:         "lead-1",
		OrganizationID: "org-1",
		NodeID:         "n1",
		NodeType:       "whatsapp",
		Status:         models.StepStatusCompleted,
		Attempt:        1,
		Timestamp:      time.Now().UTC(),
	}
	require.NoError(t, p.ExecutionLog().Append(ctx, entry))

	stale := *entry
	stale.ID = uuid.New().String()
	stale.Timestamp = time.Now().Add(-91 * 24 * time.Hour).UTC()
	require.NoError(t, p.ExecutionLog().Append(ctx, &stale))

	entries, err := p.ExecutionLog().ListByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	purged, err := p.ExecutionLog().PurgeOlderThan(ctx, time.Now().Add(-models.ExecutionLogRetention))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	entries, err = p.ExecutionLog().ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}
