package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
	"github.com/hrcore/leave-api/pkg/export"
)

type balanceStore interface {
	Find(ctx context.Context, employeeID, categoryID string, year int) (*models.BalanceEntry, error)
	FindByID(ctx context.Context, id string) (*models.BalanceEntry, error)
	ListByEmployee(ctx context.Context, employeeID string, years []int) ([]models.BalanceDetail, error)
	ListYear(ctx context.Context, year int) ([]models.BalanceDetail, error)
	ResetUsed(ctx context.Context, id string) (*models.BalanceEntry, error)
}

type employeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

// twelve is the proration denominator; entitlements accrue in twelfths.
var twelve = decimal.NewFromInt(12)

// AccrualMonths returns how many months of the given year count toward
// accrual for an employee hired on hireDate. A full year yields 12, a hire
// after the year yields 0, and a mid-year hire counts the hire month itself
// and every month after it.
func AccrualMonths(hireDate time.Time, year int) int {
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	endOfYear := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if !hireDate.After(startOfYear) {
		return 12
	}
	if hireDate.After(endOfYear) {
		return 0
	}
	return 12 - int(hireDate.Month()) + 1
}

// ComputeAccrual returns the entitlement an employee accrues for a category
// in a year. Prorated categories grant annual/12 per counted month, rounded
// to two decimals half away from zero; non-prorated categories grant the
// full annual amount to anyone employed at any point in the year.
func ComputeAccrual(category *models.LeaveCategory, hireDate time.Time, year int) decimal.Decimal {
	months := AccrualMonths(hireDate, year)
	if months == 0 {
		return decimal.Zero
	}
	if !category.ProrataMonthly {
		return category.AnnualDays.Round(2)
	}
	monthly := category.AnnualDays.Div(twelve)
	return monthly.Mul(decimal.NewFromInt(int64(months))).Round(2)
}

// BalanceService exposes ledger views and administrative corrections.
type BalanceService struct {
	balances   balanceStore
	employees  employeeReader
	cache      *CacheService
	logger     *zap.Logger
	yearWindow int
	cacheTTL   time.Duration
	now        func() time.Time
}

// NewBalanceService constructs BalanceService.
func NewBalanceService(balances balanceStore, employees employeeReader, cache *CacheService, logger *zap.Logger, yearWindow int, cacheTTL time.Duration) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if yearWindow <= 0 {
		yearWindow = 3
	}
	return &BalanceService{
		balances:   balances,
		employees:  employees,
		cache:      cache,
		logger:     logger,
		yearWindow: yearWindow,
		cacheTTL:   cacheTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// windowYears lists the ledger years the balance view covers, newest first.
func (s *BalanceService) windowYears() []int {
	current := s.now().Year()
	years := make([]int, 0, s.yearWindow)
	for i := 0; i < s.yearWindow; i++ {
		years = append(years, current-i)
	}
	return years
}

// ListForEmployee returns the employee's ledger entries over the configured
// year window, served from cache when possible.
func (s *BalanceService) ListForEmployee(ctx context.Context, employeeID string) ([]models.BalanceDetail, error) {
	key := BalanceCacheKey(employeeID)
	var cached []models.BalanceDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	if _, err := s.employees.FindByID(ctx, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	entries, err := s.balances.ListByEmployee(ctx, employeeID, s.windowYears())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list balances")
	}
	if err := s.cache.Set(ctx, key, entries, s.cacheTTL); err != nil {
		s.logger.Debug("balance cache set failed", zap.Error(err))
	}
	return entries, nil
}

// ResetUsed zeroes the used counter on one ledger entry and recomputes its
// closing. Administrative correction for mis-recorded deductions.
func (s *BalanceService) ResetUsed(ctx context.Context, entryID string) (*models.BalanceEntry, error) {
	entry, err := s.balances.ResetUsed(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "balance entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset balance")
	}
	if err := s.cache.Invalidate(ctx, BalanceCacheKey(entry.EmployeeID)); err != nil {
		s.logger.Debug("balance cache invalidate failed", zap.Error(err))
	}
	s.logger.Info("balance usage reset",
		zap.String("entry_id", entry.ID),
		zap.String("employee_id", entry.EmployeeID),
		zap.Int("year", entry.Year),
	)
	return entry, nil
}

// ExportYearCSV renders every ledger entry of a year as CSV.
func (s *BalanceService) ExportYearCSV(ctx context.Context, year int) ([]byte, error) {
	if year == 0 {
		year = s.now().Year()
	}
	entries, err := s.balances.ListYear(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list balances")
	}

	table := export.Table{
		Columns: []string{"employee", "category", "year", "opening", "accrued", "carried_over", "used", "expired", "closing"},
		Records: make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		table.Records = append(table.Records, []string{
			e.EmployeeName,
			e.CategoryCode,
			fmt.Sprintf("%d", e.Year),
			e.Opening.StringFixed(2),
			e.Accrued.StringFixed(2),
			e.CarriedOver.StringFixed(2),
			e.Used.StringFixed(2),
			e.Expired.StringFixed(2),
			e.Closing.StringFixed(2),
		})
	}

	payload, err := export.CSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}
