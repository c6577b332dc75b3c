package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hrcore/leave-api/internal/models"
)

// HistoryRepository reads the immutable audit trail. Rows are written inside
// the request repository's transactions and are never updated or deleted.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, request_id, employee_id, category_id, start_date, end_date,
        previous_status, new_status, acted_by, comment, created_at`

// ListByRequest returns the trail for one request, oldest first.
func (r *HistoryRepository) ListByRequest(ctx context.Context, requestID string) ([]models.HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_request_history
        WHERE request_id = $1
        ORDER BY created_at ASC`, historyColumns)
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list request history: %w", err)
	}
	return entries, nil
}

// ListByEmployee returns the trail for one employee, newest first. Includes
// rows whose request has since been cancelled and deleted.
func (r *HistoryRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]models.HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_request_history
        WHERE employee_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, historyColumns)
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, limit); err != nil {
		return nil, fmt.Errorf("list employee history: %w", err)
	}
	return entries, nil
}
