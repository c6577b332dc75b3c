package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hrcore/leave-api/internal/models"
)

// CategoryRepository handles persistence of leave categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, code, name, description, paid, annual_days, prorata_monthly,
        carry_over_years, exclude_weekends, requires_approval, is_active, created_at`

// List returns categories ordered by name, optionally restricted to active ones.
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]models.LeaveCategory, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_categories", categoryColumns)
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY name"

	var categories []models.LeaveCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindByID returns a category by its ID.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.LeaveCategory, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_categories WHERE id = $1", categoryColumns)
	var category models.LeaveCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByCode returns a category by its unique code.
func (r *CategoryRepository) FindByCode(ctx context.Context, code string) (*models.LeaveCategory, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_categories WHERE code = $1", categoryColumns)
	var category models.LeaveCategory
	if err := r.db.GetContext(ctx, &category, query, code); err != nil {
		return nil, err
	}
	return &category, nil
}

// Create persists a new category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.LeaveCategory) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO leave_categories (id, code, name, description, paid, annual_days,
        prorata_monthly, carry_over_years, exclude_weekends, requires_approval, is_active, created_at)
        VALUES (:id, :code, :name, :description, :paid, :annual_days,
        :prorata_monthly, :carry_over_years, :exclude_weekends, :requires_approval, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update applies an administrative correction to an existing category.
func (r *CategoryRepository) Update(ctx context.Context, category *models.LeaveCategory) error {
	const query = `UPDATE leave_categories SET name = :name, description = :description, paid = :paid,
        annual_days = :annual_days, prorata_monthly = :prorata_monthly, carry_over_years = :carry_over_years,
        exclude_weekends = :exclude_weekends, requires_approval = :requires_approval, is_active = :is_active
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, category)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
