package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a leave request.
type RequestStatus string

// pending is the only non-terminal state; cancelled is reachable solely from
// pending and solely by the request's own employee.
const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// LeaveRequest is an employee's application for absence over a date range.
// Days is computed at submission from the range and the category's weekend
// exclusion flag, and never changes afterwards.
type LeaveRequest struct {
	ID         string          `db:"id" json:"id"`
	EmployeeID string          `db:"employee_id" json:"employee_id"`
	CategoryID string          `db:"category_id" json:"category_id"`
	StartDate  time.Time       `db:"start_date" json:"start_date"`
	EndDate    time.Time       `db:"end_date" json:"end_date"`
	Days       decimal.Decimal `db:"days" json:"days"`
	Status     RequestStatus   `db:"status" json:"status"`
	Reason     string          `db:"reason" json:"reason,omitempty"`
	ApproverID *string         `db:"approver_id" json:"approver_id,omitempty"`
	DecidedAt  *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// RequestDetail enriches a request with employee and category context.
type RequestDetail struct {
	LeaveRequest
	EmployeeName string `db:"employee_name" json:"employee_name"`
	CategoryCode string `db:"category_code" json:"category_code"`
	CategoryName string `db:"category_name" json:"category_name"`
}

// RequestFilter narrows request list queries. Scope carries the acting
// user's authorization predicate and is always applied.
type RequestFilter struct {
	Scope      Scope
	EmployeeID string
	CategoryID string
	Status     RequestStatus
	Year       int
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// HistoryEntry is one immutable audit record of a lifecycle transition.
// The request summary fields are denormalized so the record stays readable
// after a pending request is cancelled and hard-deleted.
type HistoryEntry struct {
	ID             string        `db:"id" json:"id"`
	RequestID      *string       `db:"request_id" json:"request_id,omitempty"`
	EmployeeID     string        `db:"employee_id" json:"employee_id"`
	CategoryID     string        `db:"category_id" json:"category_id"`
	StartDate      time.Time     `db:"start_date" json:"start_date"`
	EndDate        time.Time     `db:"end_date" json:"end_date"`
	PreviousStatus RequestStatus `db:"previous_status" json:"previous_status,omitempty"`
	NewStatus      RequestStatus `db:"new_status" json:"new_status"`
	ActedBy        string        `db:"acted_by" json:"acted_by"`
	Comment        string        `db:"comment" json:"comment,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
