package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// ExecutionLogRepository handles the append-only execution log.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry %s: %w", entry.ID, err)
	}

	query := `
		INSERT INTO execution_log (id, run_id, organization_id, data, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.RunID, entry.OrganizationID, data, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append log entry %s: %w", entry.ID, err)
	}

	return nil
}

func (r *ExecutionLogRepository) ListByRun(ctx context.Context, runID string) ([]models.ExecutionLogEntry, error) {
	query := `
		SELECT data FROM execution_log
		WHERE run_id = $1
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution log for run %s: %w", runID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]models.ExecutionLogEntry, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		var entry models.ExecutionLogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("corrupt log entry: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution log: %w", err)
	}

	return entries, nil
}

func (r *ExecutionLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM execution_log WHERE recorded_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge execution log: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged log entries: %w", err)
	}

	return purged, nil
}
