package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hrcore/leave-api/internal/models"
)

// OrgRepository reads the organizational catalog projection.
type OrgRepository struct {
	db *sqlx.DB
}

// NewOrgRepository constructs the repository.
func NewOrgRepository(db *sqlx.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

const orgColumns = "id, kind, code, name, parent_id, is_active"

// FindByID returns one unit.
func (r *OrgRepository) FindByID(ctx context.Context, id string) (*models.OrgUnit, error) {
	query := fmt.Sprintf("SELECT %s FROM org_units WHERE id = $1", orgColumns)
	var unit models.OrgUnit
	if err := r.db.GetContext(ctx, &unit, query, id); err != nil {
		return nil, err
	}
	return &unit, nil
}

// ListActive returns the whole active tree, parents before children.
func (r *OrgRepository) ListActive(ctx context.Context) ([]models.OrgUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM org_units
        WHERE is_active = TRUE
        ORDER BY CASE kind
            WHEN 'direction' THEN 1
            WHEN 'division' THEN 2
            ELSE 3
        END, name`, orgColumns)
	var units []models.OrgUnit
	if err := r.db.SelectContext(ctx, &units, query); err != nil {
		return nil, fmt.Errorf("list org units: %w", err)
	}
	return units, nil
}

// ListChildren returns the active units directly under a parent.
func (r *OrgRepository) ListChildren(ctx context.Context, parentID string) ([]models.OrgUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM org_units
        WHERE parent_id = $1 AND is_active = TRUE
        ORDER BY name`, orgColumns)
	var units []models.OrgUnit
	if err := r.db.SelectContext(ctx, &units, query, parentID); err != nil {
		return nil, fmt.Errorf("list child units: %w", err)
	}
	return units, nil
}
