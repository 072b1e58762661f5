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

// AutomationRepository stores automation definitions as JSON files under
// <root>/automations.
type AutomationRepository struct {
	persistence *Persistence
}

func (r *AutomationRepository) dir() string {
	return filepath.Join(r.persistence.root, "automations")
}

func (r *AutomationRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	data, err := json.MarshalIndent(automation, "", "  ")
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	if err := os.WriteFile(r.path(automation.ID), data, 0o600); err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.read(id)
}

func (r *AutomationRepository) read(id string) (*models.Automation, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	var automation models.Automation
	if err := json.Unmarshal(data, &automation); err != nil {
		return nil, persistence.NewAutomationError("GetByID", id, fmt.Errorf("corrupt automation document: %w", err))
	}

	return &automation, nil
}

func (r *AutomationRepository) List(ctx context.Context, organizationID string) ([]*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.list(func(a *models.Automation) bool {
		return organizationID == "" || a.OrganizationID == organizationID
	})
}

func (r *AutomationRepository) ListActive(ctx context.Context, organizationID string) ([]*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.list(func(a *models.Automation) bool {
		if a.Status != models.AutomationStatusActive {
			return false
		}

		return organizationID == "" || a.OrganizationID == organizationID
	})
}

func (r *AutomationRepository) list(keep func(*models.Automation) bool) ([]*models.Automation, error) {
	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list automation files: %w", err)
	}

	automations := make([]*models.Automation, 0, len(files))

	for _, file := range files {
		automation, err := r.read(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if keep(automation) {
			automations = append(automations, automation)
		}
	}

	sort.Slice(automations, func(i, j int) bool {
		return automations[i].CreatedAt.After(automations[j].CreatedAt)
	})

	return automations, nil
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	err := os.Remove(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
		}

		return persistence.NewAutomationError("Delete", id, err)
	}

	return nil
}
