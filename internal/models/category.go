package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaveCategory defines a kind of absence and its accrual/carry-over rules.
// Once a ledger entry references a category it is immutable except for
// administrative correction; deactivation stops new ledger creation but
// preserves history.
type LeaveCategory struct {
	ID          string `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	// Paid marks the category as paid absence.
	Paid bool `db:"paid" json:"paid"`
	// AnnualDays is the nominal yearly entitlement in days.
	AnnualDays decimal.Decimal `db:"annual_days" json:"annual_days"`
	// ProrataMonthly accrues the entitlement per month worked instead of
	// granting it in full on January 1.
	ProrataMonthly bool `db:"prorata_monthly" json:"prorata_monthly"`
	// CarryOverYears is how many years an unused balance survives before it
	// is forfeited.
	CarryOverYears int `db:"carry_over_years" json:"carry_over_years"`
	// ExcludeWeekends skips Saturdays and Sundays when counting consumed days.
	ExcludeWeekends  bool      `db:"exclude_weekends" json:"exclude_weekends"`
	RequiresApproval bool      `db:"requires_approval" json:"requires_approval"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
