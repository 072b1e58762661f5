// Package file provides file-based persistence, one JSON document per
// automation and run. It exists for development and tests; production
// deployments use the postgresql package.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dripflow/dripflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system. A single mutex spans all repositories so a compare-and-swap
// on a run is atomic with respect to every other writer in this process.
type Persistence struct {
	root string
	mu   sync.RWMutex

	automationRepo *AutomationRepository
	runRepo        *RunRepository
	logRepo        *ExecutionLogRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.automationRepo = &AutomationRepository{persistence: p}
	p.runRepo = &RunRepository{persistence: p}
	p.logRepo = &ExecutionLogRepository{persistence: p}

	return p
}

func (p *Persistence) Automations() persistence.AutomationRepository {
	return p.automationRepo
}

func (p *Persistence) Runs() persistence.RunRepository {
	return p.runRepo
}

func (p *Persistence) ExecutionLog() persistence.ExecutionLogRepository {
	return p.logRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there
// is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
