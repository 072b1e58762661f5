package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// ExecutionLogRepository stores one JSON array of entries per run under
// <root>/logs.
type ExecutionLogRepository struct {
	persistence *Persistence
}

func (r *ExecutionLogRepository) dir() string {
	return filepath.Join(r.persistence.root, "logs")
}

func (r *ExecutionLogRepository) path(runID string) string {
	return filepath.Join(r.dir(), runID+".json")
}

func (r *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLogEntry) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	entries, err := r.read(entry.RunID)
	if err != nil {
		return err
	}

	entries = append(entries, *entry)

	return r.write(entry.RunID, entries)
}

func (r *ExecutionLogRepository) ListByRun(ctx context.Context, runID string) ([]models.ExecutionLogEntry, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.read(runID)
}

func (r *ExecutionLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return 0, fmt.Errorf("failed to list log files: %w", err)
	}

	var purged int64

	for _, file := range files {
		runID := file[:len(file)-len(".json")]

		entries, err := r.read(runID)
		if err != nil {
			return purged, err
		}

		kept := entries[:0]

		for _, entry := range entries {
			if entry.Timestamp.Before(cutoff) {
				purged++
			} else {
				kept = append(kept, entry)
			}
		}

		if len(kept) == len(entries) {
			continue
		}

		if len(kept) == 0 {
			if err := os.Remove(r.path(runID)); err != nil {
				return purged, fmt.Errorf("failed to remove empty log file: %w", err)
			}

			continue
		}

		if err := r.write(runID, kept); err != nil {
			return purged, err
		}
	}

	return purged, nil
}

func (r *ExecutionLogRepository) read(runID string) ([]models.ExecutionLogEntry, error) {
	data, err := os.ReadFile(r.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.ExecutionLogEntry{}, nil
		}

		return nil, fmt.Errorf("failed to read log file for run %s: %w", runID, err)
	}

	var entries []models.ExecutionLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt log file for run %s: %w", runID, err)
	}

	return entries, nil
}

func (r *ExecutionLogRepository) write(runID string, entries []models.ExecutionLogEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log entries for run %s: %w", runID, err)
	}

	if err := os.WriteFile(r.path(runID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write log file for run %s: %w", runID, err)
	}

	return nil
}
