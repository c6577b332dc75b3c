package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

// RequestRepository handles persistence of leave requests and their
// transactional coupling to the balance ledger.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, employee_id, category_id, start_date, end_date, days,
        status, reason, approver_id, decided_at, created_at`

// Create inserts the request and its submission audit row in one transaction.
func (r *RequestRepository) Create(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var commit bool
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const insertReq = `INSERT INTO leave_requests (id, employee_id, category_id, start_date, end_date,
        days, status, reason, approver_id, decided_at, created_at)
        VALUES (:id, :employee_id, :category_id, :start_date, :end_date,
        :days, :status, :reason, :approver_id, :decided_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertReq, req); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	hist.RequestID = &req.ID
	if err := insertHistoryTx(ctx, tx, hist); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	commit = true
	return nil
}

// FindByID returns a request by id.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_requests WHERE id = $1", requestColumns)
	var req models.LeaveRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindDetailByID returns a request joined with employee and category context.
func (r *RequestRepository) FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error) {
	const query = `SELECT r.id, r.employee_id, r.category_id, r.start_date, r.end_date, r.days,
        r.status, r.reason, r.approver_id, r.decided_at, r.created_at,
        e.full_name AS employee_name, c.code AS category_code, c.name AS category_name
        FROM leave_requests r
        JOIN employees e ON e.id = r.employee_id
        JOIN leave_categories c ON c.id = r.category_id
        WHERE r.id = $1`
	var detail models.RequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

var requestSortColumns = map[string]string{
	"created_at": "r.created_at",
	"start_date": "r.start_date",
	"status":     "r.status",
	"employee":   "e.full_name",
}

// List returns requests matching the filter, restricted to the caller's
// approval scope, with total count for pagination.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	appendArg := func(cond string, val interface{}) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	switch {
	case filter.Scope.All:
		// no scope restriction
	case filter.Scope.ServiceID != "":
		appendArg("e.service_id = $%d", filter.Scope.ServiceID)
	case filter.Scope.DivisionID != "":
		appendArg("e.division_id = $%d AND e.service_id IS NULL", filter.Scope.DivisionID)
	case filter.Scope.DirectionID != "":
		appendArg("e.direction_id = $%d AND e.division_id IS NULL AND e.service_id IS NULL", filter.Scope.DirectionID)
	default:
		return []models.RequestDetail{}, 0, nil
	}

	if filter.EmployeeID != "" {
		appendArg("r.employee_id = $%d", filter.EmployeeID)
	}
	if filter.CategoryID != "" {
		appendArg("r.category_id = $%d", filter.CategoryID)
	}
	if filter.Status != "" {
		appendArg("r.status = $%d", filter.Status)
	}
	if filter.Year != 0 {
		appendArg("EXTRACT(YEAR FROM r.start_date) = $%d", filter.Year)
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*)
        FROM leave_requests r
        JOIN employees e ON e.id = r.employee_id
        WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	sortCol, ok := requestSortColumns[filter.SortBy]
	if !ok {
		sortCol = "r.created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	offset := (filter.Page - 1) * filter.PageSize
	query := fmt.Sprintf(`SELECT r.id, r.employee_id, r.category_id, r.start_date, r.end_date, r.days,
        r.status, r.reason, r.approver_id, r.decided_at, r.created_at,
        e.full_name AS employee_name, c.code AS category_code, c.name AS category_name
        FROM leave_requests r
        JOIN employees e ON e.id = r.employee_id
        JOIN leave_categories c ON c.id = r.category_id
        WHERE %s
        ORDER BY %s %s
        LIMIT $%d OFFSET $%d`, where, sortCol, sortOrder, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, offset)

	var requests []models.RequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return requests, total, nil
}

// DeductionParams carries the ledger side of an approval.
type DeductionParams struct {
	Year            int
	Days            decimal.Decimal
	DefaultEntitled decimal.Decimal
	AllowOverdraft  bool
}

// ApproveWithDeduction marks the request approved and deducts its days from
// the ledger entry of the request's starting year, in one transaction. The
// status update is guarded on the pending state so concurrent decisions on
// the same request cannot both win. The ledger row is created lazily with the
// category's full entitlement when the employee has no entry for that year.
func (r *RequestRepository) ApproveWithDeduction(ctx context.Context, req *models.LeaveRequest, approverID string, params DeductionParams, hist *models.HistoryEntry) (*models.BalanceEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	var commit bool
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	decidedAt := time.Now().UTC()
	const approve = `UPDATE leave_requests
        SET status = $2, approver_id = $3, decided_at = $4
        WHERE id = $1 AND status = $5`
	res, err := tx.ExecContext(ctx, approve, req.ID, models.RequestApproved, approverID, decidedAt, models.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("approve request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("approve request: %w", err)
	}
	if affected == 0 {
		return nil, appErrors.ErrInvalidTransition.Wrap(
			fmt.Errorf("request %s is not pending", req.ID))
	}

	entry, err := lockOrCreateEntryTx(ctx, tx, req.EmployeeID, req.CategoryID, params)
	if err != nil {
		return nil, err
	}

	entry.Used = entry.Used.Add(params.Days)
	entry.RecalculateClosing()
	if !params.AllowOverdraft && entry.Closing.IsNegative() {
		return nil, appErrors.ErrInsufficientBalance.Wrap(
			fmt.Errorf("closing balance %s for employee %s", entry.Closing, req.EmployeeID))
	}

	entry.UpdatedAt = decidedAt
	const updateBalance = `UPDATE leave_balances
        SET used = $2, closing = $3, updated_at = $4
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateBalance, entry.ID, entry.Used, entry.Closing, entry.UpdatedAt); err != nil {
		return nil, fmt.Errorf("deduct balance: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, hist); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	commit = true

	req.Status = models.RequestApproved
	req.ApproverID = &approverID
	req.DecidedAt = &decidedAt
	return entry, nil
}

// Reject marks the request rejected and writes the audit row. The ledger is
// never touched on rejection.
func (r *RequestRepository) Reject(ctx context.Context, req *models.LeaveRequest, approverID string, hist *models.HistoryEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var commit bool
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	decidedAt := time.Now().UTC()
	const reject = `UPDATE leave_requests
        SET status = $2, approver_id = $3, decided_at = $4
        WHERE id = $1 AND status = $5`
	res, err := tx.ExecContext(ctx, reject, req.ID, models.RequestRejected, approverID, decidedAt, models.RequestPending)
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrInvalidTransition.Wrap(
			fmt.Errorf("request %s is not pending", req.ID))
	}

	if err := insertHistoryTx(ctx, tx, hist); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	commit = true

	req.Status = models.RequestRejected
	req.ApproverID = &approverID
	req.DecidedAt = &decidedAt
	return nil
}

// CancelWithAudit writes the denormalized audit row first, then deletes the
// request, in one transaction. The delete is guarded on pending so a decided
// request cannot be withdrawn.
func (r *RequestRepository) CancelWithAudit(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var commit bool
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if err := insertHistoryTx(ctx, tx, hist); err != nil {
		return err
	}

	const del = `DELETE FROM leave_requests WHERE id = $1 AND status = $2`
	res, err := tx.ExecContext(ctx, del, req.ID, models.RequestPending)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrInvalidTransition.Wrap(
			fmt.Errorf("request %s is not pending", req.ID))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	commit = true
	return nil
}

// lockOrCreateEntryTx loads the (employee, category, year) ledger row under a
// row lock, creating it with the default entitlement when absent.
func lockOrCreateEntryTx(ctx context.Context, tx *sqlx.Tx, employeeID, categoryID string, params DeductionParams) (*models.BalanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_balances
        WHERE employee_id = $1 AND category_id = $2 AND year = $3
        FOR UPDATE`, balanceColumns)
	var entry models.BalanceEntry
	err := tx.GetContext(ctx, &entry, query, employeeID, categoryID, params.Year)
	if err == nil {
		return &entry, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lock balance: %w", err)
	}

	entry = models.BalanceEntry{
		ID:          uuid.NewString(),
		EmployeeID:  employeeID,
		CategoryID:  categoryID,
		Year:        params.Year,
		Opening:     decimal.Zero,
		Accrued:     params.DefaultEntitled,
		Used:        decimal.Zero,
		CarriedOver: decimal.Zero,
		Expired:     decimal.Zero,
		Closing:     params.DefaultEntitled,
		UpdatedAt:   time.Now().UTC(),
	}
	const insert = `INSERT INTO leave_balances (id, employee_id, category_id, year, opening, accrued,
        used, carried_over, expired, closing, updated_at)
        VALUES (:id, :employee_id, :category_id, :year, :opening, :accrued,
        :used, :carried_over, :expired, :closing, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, &entry); err != nil {
		return nil, fmt.Errorf("create balance: %w", err)
	}
	return &entry, nil
}

// insertHistoryTx appends an audit row within an open transaction.
func insertHistoryTx(ctx context.Context, tx *sqlx.Tx, hist *models.HistoryEntry) error {
	if hist.ID == "" {
		hist.ID = uuid.NewString()
	}
	if hist.CreatedAt.IsZero() {
		hist.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO leave_request_history (id, request_id, employee_id, category_id,
        start_date, end_date, previous_status, new_status, acted_by, comment, created_at)
        VALUES (:id, :request_id, :employee_id, :category_id,
        :start_date, :end_date, :previous_status, :new_status, :acted_by, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, hist); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}
