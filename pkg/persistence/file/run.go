package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// RunRepository stores run documents as JSON files under <root>/runs. The
// compare-and-swap holds the shared persistence mutex across the
// read-mutate-write, which is the whole concurrency story for the file
// backend.
type RunRepository struct {
	persistence *Persistence
}

func (r *RunRepository) dir() string {
	return filepath.Join(r.persistence.root, "runs")
}

func (r *RunRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	if _, err := os.Stat(r.path(run.ID)); err == nil {
		return persistence.NewRunError("Create", run.ID, persistence.ErrRunAlreadyExists)
	}

	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	run.Version = 1

	return r.write(run)
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.read(id)
}

func (r *RunRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate persistence.RunMutator) (*models.Run, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	run, err := r.read(id)
	if err != nil {
		return nil, err
	}

	if run.Version != expectedVersion {
		return nil, persistence.NewRunError("CompareAndSwap", id, persistence.ErrVersionConflict)
	}

	if err := mutate(run); err != nil {
		return nil, persistence.NewRunError("CompareAndSwap", id, err)
	}

	run.Version++
	run.UpdatedAt = time.Now().UTC()

	if err := r.write(run); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *RunRepository) ListByLead(ctx context.Context, leadID string) ([]*models.Run, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	runs, err := r.scan(func(run *models.Run) bool {
		return run.LeadID == leadID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

func (r *RunRepository) FindWaitingByPhone(ctx context.Context, phone string) (*models.Run, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	runs, err := r.scan(func(run *models.Run) bool {
		if run.Status != models.RunStatusWaitingForResponse || run.Wait == nil || run.Wait.Response == nil {
			return false
		}

		wait := run.Wait.Response

		return wait.Channel != models.ChannelInternal && wait.Phone == phone
	})
	if err != nil {
		return nil, err
	}

	return newestOf(runs, "FindWaitingByPhone", phone)
}

func (r *RunRepository) FindWaitingByCallID(ctx context.Context, callID string) (*models.Run, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	runs, err := r.scan(func(run *models.Run) bool {
		return run.Status == models.RunStatusWaitingForCall &&
			run.Wait != nil && run.Wait.Call != nil && run.Wait.Call.CallID == callID
	})
	if err != nil {
		return nil, err
	}

	return newestOf(runs, "FindWaitingByCallID", callID)
}

func (r *RunRepository) FindWaitingByTaskID(ctx context.Context, taskID string) (*models.Run, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	runs, err := r.scan(func(run *models.Run) bool {
		return run.Status == models.RunStatusWaitingForTask &&
			run.Wait != nil && run.Wait.Task != nil && run.Wait.Task.TaskID == taskID
	})
	if err != nil {
		return nil, err
	}

	return newestOf(runs, "FindWaitingByTaskID", taskID)
}

func (r *RunRepository) FindExpiredWaits(ctx context.Context, before time.Time, limit int) ([]*models.Run, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	runs, err := r.scan(func(run *models.Run) bool {
		if !run.Status.Waiting() || run.Wait == nil {
			return false
		}

		deadline := run.Wait.Deadline()

		return deadline != nil && !deadline.After(before)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Wait.Deadline().Before(*runs[j].Wait.Deadline())
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

func (r *RunRepository) read(id string) (*models.Run, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	var run models.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("corrupt run document: %w", err))
	}

	return &run, nil
}

func (r *RunRepository) write(run *models.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	if err := os.WriteFile(r.path(run.ID), data, 0o600); err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}

func (r *RunRepository) scan(keep func(*models.Run) bool) ([]*models.Run, error) {
	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.Run, 0)

	for _, file := range files {
		run, err := r.read(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if keep(run) {
			runs = append(runs, run)
		}
	}

	return runs, nil
}

func newestOf(runs []*models.Run, op, target string) (*models.Run, error) {
	if len(runs) == 0 {
		return nil, persistence.NewRunError(op, target, persistence.ErrRunNotFound)
	}

	newest := runs[0]
	for _, run := range runs[1:] {
		if run.UpdatedAt.After(newest.UpdatedAt) {
			newest = run
		}
	}

	return newest, nil
}
