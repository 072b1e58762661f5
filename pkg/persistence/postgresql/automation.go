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

// AutomationRepository handles automation-related database operations. The
// full definition is stored as one JSONB document; organization and status
// columns exist for the list queries.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	data, err := json.Marshal(automation)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	query := `
		INSERT INTO automations (id, organization_id, name, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id
		  , name = EXCLUDED.name
		  , status = EXCLUDED.status
		  , data = EXCLUDED.data
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID, automation.OrganizationID, automation.Name,
		string(automation.Status), data, automation.CreatedAt, automation.UpdatedAt)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, "SELECT data FROM automations WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	query := `
		SELECT data FROM automations
		WHERE ($1 = '' OR organization_id = $1)
		ORDER BY created_at DESC
	`

	return r.query(ctx, query, organizationID)
}

func (r *AutomationRepository) ListActive(ctx context.Context, organizationID string) ([]*models.Automation, error) {
	query := `
		SELECT data FROM automations
		WHERE status = 'active' AND ($1 = '' OR organization_id = $1)
		ORDER BY created_at DESC
	`

	return r.query(ctx, query, organizationID)
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = $1", id)
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
	}

	return nil
}

func (r *AutomationRepository) query(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		var automation models.Automation
		if err := json.Unmarshal(data, &automation); err != nil {
			return nil, fmt.Errorf("corrupt automation document: %w", err)
		}

		automations = append(automations, &automation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}
