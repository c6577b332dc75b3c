package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-api/internal/models"
)

// BalanceRepository handles persistence of the yearly entitlement ledger.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs the repository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

const balanceColumns = `id, employee_id, category_id, year, opening, accrued, used,
        carried_over, expired, closing, updated_at`

// Find returns the ledger entry for the unique (employee, category, year) key.
func (r *BalanceRepository) Find(ctx context.Context, employeeID, categoryID string, year int) (*models.BalanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_balances
        WHERE employee_id = $1 AND category_id = $2 AND year = $3`, balanceColumns)
	var entry models.BalanceEntry
	if err := r.db.GetContext(ctx, &entry, query, employeeID, categoryID, year); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByID returns a ledger entry by its surrogate id.
func (r *BalanceRepository) FindByID(ctx context.Context, id string) (*models.BalanceEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_balances WHERE id = $1", balanceColumns)
	var entry models.BalanceEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByPair returns one employee-category pair's entries up to and
// including maxYear, oldest first. The rollover job scans these for carry
// and expiration.
func (r *BalanceRepository) ListByPair(ctx context.Context, employeeID, categoryID string, maxYear int) ([]models.BalanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_balances
        WHERE employee_id = $1 AND category_id = $2 AND year <= $3
        ORDER BY year ASC`, balanceColumns)
	var entries []models.BalanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, categoryID, maxYear); err != nil {
		return nil, fmt.Errorf("list pair balances: %w", err)
	}
	return entries, nil
}

// ListByEmployee returns the employee's entries for the given years with
// category context, newest year first.
func (r *BalanceRepository) ListByEmployee(ctx context.Context, employeeID string, years []int) ([]models.BalanceDetail, error) {
	query, args, err := sqlx.In(`SELECT b.id, b.employee_id, b.category_id, b.year, b.opening, b.accrued,
        b.used, b.carried_over, b.expired, b.closing, b.updated_at,
        c.code AS category_code, c.name AS category_name, e.full_name AS employee_name
        FROM leave_balances b
        JOIN leave_categories c ON c.id = b.category_id
        JOIN employees e ON e.id = b.employee_id
        WHERE b.employee_id = ? AND b.year IN (?)
        ORDER BY b.year DESC, c.name`, employeeID, years)
	if err != nil {
		return nil, fmt.Errorf("build balance query: %w", err)
	}
	query = r.db.Rebind(query)

	var entries []models.BalanceDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return entries, nil
}

// ListYear returns every entry for a ledger year with context, for reporting.
func (r *BalanceRepository) ListYear(ctx context.Context, year int) ([]models.BalanceDetail, error) {
	const query = `SELECT b.id, b.employee_id, b.category_id, b.year, b.opening, b.accrued,
        b.used, b.carried_over, b.expired, b.closing, b.updated_at,
        c.code AS category_code, c.name AS category_name, e.full_name AS employee_name
        FROM leave_balances b
        JOIN leave_categories c ON c.id = b.category_id
        JOIN employees e ON e.id = b.employee_id
        WHERE b.year = $1
        ORDER BY e.full_name, c.name`
	var entries []models.BalanceDetail
	if err := r.db.SelectContext(ctx, &entries, query, year); err != nil {
		return nil, fmt.Errorf("list year balances: %w", err)
	}
	return entries, nil
}

// Create inserts a fresh ledger entry.
func (r *BalanceRepository) Create(ctx context.Context, entry *models.BalanceEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO leave_balances (id, employee_id, category_id, year, opening, accrued,
        used, carried_over, expired, closing, updated_at)
        VALUES (:id, :employee_id, :category_id, :year, :opening, :accrued,
        :used, :carried_over, :expired, :closing, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create balance: %w", err)
	}
	return nil
}

// UpsertRollover atomically creates the target-year entry or, when it already
// exists, refreshes carried_over and recomputes closing from the stored
// operands. accrued and used are never touched on the update path, which is
// what makes a re-run deterministic. Returns true when a row was created.
func (r *BalanceRepository) UpsertRollover(ctx context.Context, entry *models.BalanceEntry) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.UpdatedAt = time.Now().UTC()

	const insert = `INSERT INTO leave_balances (id, employee_id, category_id, year, opening, accrued,
        used, carried_over, expired, closing, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (employee_id, category_id, year) DO NOTHING
        RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, insert,
		entry.ID, entry.EmployeeID, entry.CategoryID, entry.Year,
		entry.Opening, entry.Accrued, entry.Used, entry.CarriedOver,
		entry.Expired, entry.Closing, entry.UpdatedAt,
	).Scan(&insertedID)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("insert rollover balance: %w", err)
	}

	const update = `UPDATE leave_balances
        SET carried_over = $4,
            closing = opening + accrued + $4 - used - expired,
            updated_at = $5
        WHERE employee_id = $1 AND category_id = $2 AND year = $3`
	if _, err := r.db.ExecContext(ctx, update,
		entry.EmployeeID, entry.CategoryID, entry.Year, entry.CarriedOver, entry.UpdatedAt,
	); err != nil {
		return false, fmt.Errorf("update rollover balance: %w", err)
	}
	return false, nil
}

// ApplyExpiration records the forfeited amount on a prior-year entry and
// recomputes its closing in the same statement.
func (r *BalanceRepository) ApplyExpiration(ctx context.Context, id string, amount decimal.Decimal) error {
	const query = `UPDATE leave_balances
        SET expired = $2,
            closing = opening + accrued + carried_over - used - $2,
            updated_at = $3
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply expiration: %w", err)
	}
	return nil
}

// UpdateAccrual replaces the accrued amount and recomputes closing.
func (r *BalanceRepository) UpdateAccrual(ctx context.Context, id string, accrued decimal.Decimal) error {
	const query = `UPDATE leave_balances
        SET accrued = $2,
            closing = opening + $2 + carried_over - used - expired,
            updated_at = $3
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, accrued, time.Now().UTC()); err != nil {
		return fmt.Errorf("update accrual: %w", err)
	}
	return nil
}

// ResetUsed zeroes the used amount and recomputes closing, preserving the
// accrual and carry-over history. Administrative correction only.
func (r *BalanceRepository) ResetUsed(ctx context.Context, id string) (*models.BalanceEntry, error) {
	query := fmt.Sprintf(`UPDATE leave_balances
        SET used = 0,
            closing = opening + accrued + carried_over - expired,
            updated_at = $2
        WHERE id = $1
        RETURNING %s`, balanceColumns)
	var entry models.BalanceEntry
	if err := r.db.GetContext(ctx, &entry, query, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &entry, nil
}
