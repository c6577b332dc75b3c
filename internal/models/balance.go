package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceEntry is the yearly entitlement ledger for one employee and one
// leave category, uniquely keyed by (employee, category, year).
//
// Invariant after any mutation:
//
//	closing == opening + accrued + carried_over - used - expired
//
// All operand fields are non-negative; closing may only go negative through
// an approval deduction when the overdraft policy allows it.
type BalanceEntry struct {
	ID         string `db:"id" json:"id"`
	EmployeeID string `db:"employee_id" json:"employee_id"`
	CategoryID string `db:"category_id" json:"category_id"`
	Year       int    `db:"year" json:"year"`
	// Opening is a balance seeded administratively (migrations, corrections).
	// Normal rollover records its carry in CarriedOver and leaves Opening at
	// zero; both are additive in Closing, so the split is audit-only.
	Opening     decimal.Decimal `db:"opening" json:"opening"`
	Accrued     decimal.Decimal `db:"accrued" json:"accrued"`
	Used        decimal.Decimal `db:"used" json:"used"`
	CarriedOver decimal.Decimal `db:"carried_over" json:"carried_over"`
	Expired     decimal.Decimal `db:"expired" json:"expired"`
	Closing     decimal.Decimal `db:"closing" json:"closing"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// RecalculateClosing recomputes Closing from the five operand fields.
// Call after every mutation of an operand.
func (b *BalanceEntry) RecalculateClosing() {
	b.Closing = b.Opening.Add(b.Accrued).Add(b.CarriedOver).Sub(b.Used).Sub(b.Expired)
}

// BalanceDetail enriches a ledger entry with category context for views.
type BalanceDetail struct {
	BalanceEntry
	CategoryCode string `db:"category_code" json:"category_code"`
	CategoryName string `db:"category_name" json:"category_name"`
	EmployeeName string `db:"employee_name" json:"employee_name"`
}

// BatchTotals summarises a rollover, initialization or recalculation run.
type BatchTotals struct {
	Year        int             `json:"year"`
	FromYear    int             `json:"from_year,omitempty"`
	DryRun      bool            `json:"dry_run"`
	Created     int             `json:"created"`
	Updated     int             `json:"updated"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	CarriedOver decimal.Decimal `json:"carried_over"`
	Expired     decimal.Decimal `json:"expired"`
}
