// Package persistence provides the data storage abstraction layer for
// automations, runs and the execution log.
package persistence

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// Persistence bundles the repositories backing the engine. Implementations
// live in the file and postgresql subpackages.
type Persistence interface {
	Automations() AutomationRepository
	Runs() RunRepository
	ExecutionLog() ExecutionLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository stores automation definitions.
type AutomationRepository interface {
	Save(ctx context.Context, automation *models.Automation) error
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	List(ctx context.Context, organizationID string) ([]*models.Automation, error)
	// ListActive returns automations with status active, used by the
	// trigger matcher. An empty organizationID matches all organizations.
	ListActive(ctx context.Context, organizationID string) ([]*models.Automation, error)
	Delete(ctx context.Context, id string) error
}

// RunMutator mutates a freshly loaded run inside a compare-and-swap. The
// repository bumps the version and persists only when the mutator returns
// nil.
type RunMutator func(run *models.Run) error

// RunRepository stores run state. All state transitions go through
// CompareAndSwap so that concurrent resume attempts (inbound event, timeout
// sweep, cancellation) cannot both win.
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	ListByLead(ctx context.Context, leadID string) ([]*models.Run, error)

	// CompareAndSwap loads the run, verifies its version still equals
	// expectedVersion, applies mutate, increments the version and persists
	// atomically. Returns ErrVersionConflict when another writer got there
	// first; callers re-read and re-decide.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate RunMutator) (*models.Run, error)

	// FindWaitingByPhone returns the most recently updated run waiting for
	// a response on the given phone number. Internal-channel waits
	// (delays) are never matched.
	FindWaitingByPhone(ctx context.Context, phone string) (*models.Run, error)
	FindWaitingByCallID(ctx context.Context, callID string) (*models.Run, error)
	FindWaitingByTaskID(ctx context.Context, taskID string) (*models.Run, error)

	// FindExpiredWaits returns waiting runs whose wait deadline is at or
	// before the given instant, oldest deadline first.
	FindExpiredWaits(ctx context.Context, before time.Time, limit int) ([]*models.Run, error)
}

// ExecutionLogRepository stores the append-only execution log.
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry *models.ExecutionLogEntry) error
	ListByRun(ctx context.Context, runID string) ([]models.ExecutionLogEntry, error)
	// PurgeOlderThan deletes entries older than the cutoff and returns how
	// many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
