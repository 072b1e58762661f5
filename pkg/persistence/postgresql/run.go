package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// RunRepository handles run-related database operations. The run document
// lives in the data column; status, version and the wait_* columns are
// extracted on every write so lookups and the optimistic lock never parse
// JSON.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	run.Version = 1

	data, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	wait := extractWaitColumns(run)

	query := `
		INSERT INTO runs (
			id, automation_id, lead_id, organization_id, status, version,
			wait_channel, wait_phone, wait_call_id, wait_task_id, wait_timeout_at,
			data, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID, run.AutomationID, run.LeadID, run.OrganizationID,
		string(run.Status), run.Version,
		wait.channel, wait.phone, wait.callID, wait.taskID, wait.timeoutAt,
		data, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	if affected == 0 {
		return persistence.NewRunError("Create", run.ID, persistence.ErrRunAlreadyExists)
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, "SELECT data FROM runs WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return unmarshalRun(id, data)
}

// CompareAndSwap loads the run, applies the mutator and persists with a
// version-guarded UPDATE. The guard makes the swap safe across engine
// instances: whichever writer commits first wins, the other sees zero
// affected rows.
func (r *RunRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate persistence.RunMutator) (*models.Run, error) {
	run, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if run.Version != expectedVersion {
		return nil, persistence.NewRunError("CompareAndSwap", id, persistence.ErrVersionConflict)
	}

	if err := mutate(run); err != nil {
		return nil, persistence.NewRunError("CompareAndSwap", id, err)
	}

	run.Version = expectedVersion + 1
	run.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(run)
	if err != nil {
		return nil, persistence.NewRunError("CompareAndSwap", id, err)
	}

	wait := extractWaitColumns(run)

	query := `
		UPDATE runs SET
			status = $3
		  , version = $4
		  , wait_channel = $5
		  , wait_phone = $6
		  , wait_call_id = $7
		  , wait_task_id = $8
		  , wait_timeout_at = $9
		  , data = $10
		  , updated_at = $11
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		id, expectedVersion,
		string(run.Status), run.Version,
		wait.channel, wait.phone, wait.callID, wait.taskID, wait.timeoutAt,
		data, run.UpdatedAt)
	if err != nil {
		return nil, persistence.NewRunError("CompareAndSwap", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, persistence.NewRunError("CompareAndSwap", id, err)
	}

	if affected == 0 {
		return nil, persistence.NewRunError("CompareAndSwap", id, persistence.ErrVersionConflict)
	}

	return run, nil
}

func (r *RunRepository) ListByLead(ctx context.Context, leadID string) ([]*models.Run, error) {
	query := `
		SELECT data FROM runs
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`

	return r.query(ctx, query, leadID)
}

func (r *RunRepository) FindWaitingByPhone(ctx context.Context, phone string) (*models.Run, error) {
	query := `
		SELECT data FROM runs
		WHERE status = $1 AND wait_phone = $2 AND wait_channel <> $3
		ORDER BY updated_at DESC
		LIMIT 1
	`

	return r.queryOne(ctx, "FindWaitingByPhone", phone, query,
		string(models.RunStatusWaitingForResponse), phone, models.ChannelInternal)
}

func (r *RunRepository) FindWaitingByCallID(ctx context.Context, callID string) (*models.Run, error) {
	query := `
		SELECT data FROM runs
		WHERE status = $1 AND wait_call_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	return r.queryOne(ctx, "FindWaitingByCallID", callID, query,
		string(models.RunStatusWaitingForCall), callID)
}

func (r *RunRepository) FindWaitingByTaskID(ctx context.Context, taskID string) (*models.Run, error) {
	query := `
		SELECT data FROM runs
		WHERE status = $1 AND wait_task_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	return r.queryOne(ctx, "FindWaitingByTaskID", taskID, query,
		string(models.RunStatusWaitingForTask), taskID)
}

func (r *RunRepository) FindExpiredWaits(ctx context.Context, before time.Time, limit int) ([]*models.Run, error) {
	query := `
		SELECT data FROM runs
		WHERE status IN ($1, $2, $3) AND wait_timeout_at IS NOT NULL AND wait_timeout_at <= $4
		ORDER BY wait_timeout_at ASC
		LIMIT $5
	`

	if limit <= 0 {
		limit = 100
	}

	return r.query(ctx, query,
		string(models.RunStatusWaitingForResponse),
		string(models.RunStatusWaitingForCall),
		string(models.RunStatusWaitingForTask),
		before, limit)
}

func (r *RunRepository) queryOne(ctx context.Context, op, target, query string, args ...any) (*models.Run, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError(op, target, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError(op, target, err)
	}

	return unmarshalRun(target, data)
}

func (r *RunRepository) query(ctx context.Context, query string, args ...any) ([]*models.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run, err := unmarshalRun("", data)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func unmarshalRun(id string, data []byte) (*models.Run, error) {
	var run models.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("corrupt run document: %w", err))
	}

	return &run, nil
}

type waitColumns struct {
	channel   sql.NullString
	phone     sql.NullString
	callID    sql.NullString
	taskID    sql.NullString
	timeoutAt sql.NullTime
}

func extractWaitColumns(run *models.Run) waitColumns {
	var cols waitColumns

	if run.Wait == nil {
		return cols
	}

	if deadline := run.Wait.Deadline(); deadline != nil {
		cols.timeoutAt = sql.NullTime{Time: *deadline, Valid: true}
	}

	switch run.Wait.Kind {
	case models.WaitKindResponse:
		if run.Wait.Response != nil {
			cols.channel = sql.NullString{String: run.Wait.Response.Channel, Valid: true}

			if run.Wait.Response.Phone != "" {
				cols.phone = sql.NullString{String: run.Wait.Response.Phone, Valid: true}
			}
		}
	case models.WaitKindCall:
		if run.Wait.Call != nil {
			cols.callID = sql.NullString{String: run.Wait.Call.CallID, Valid: true}
		}
	case models.WaitKindTask:
		if run.Wait.Task != nil {
			cols.taskID = sql.NullString{String: run.Wait.Task.TaskID, Valid: true}
		}
	}

	return cols
}
