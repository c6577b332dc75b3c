package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

type ledgerBatchStore interface {
	Find(ctx context.Context, employeeID, categoryID string, year int) (*models.BalanceEntry, error)
	ListByPair(ctx context.Context, employeeID, categoryID string, maxYear int) ([]models.BalanceEntry, error)
	UpsertRollover(ctx context.Context, entry *models.BalanceEntry) (bool, error)
	ApplyExpiration(ctx context.Context, id string, amount decimal.Decimal) error
	UpdateAccrual(ctx context.Context, id string, accrued decimal.Decimal) error
}

type employeeLister interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	ListActive(ctx context.Context) ([]models.Employee, error)
}

type categoryLister interface {
	List(ctx context.Context, activeOnly bool) ([]models.LeaveCategory, error)
}

// RolloverService runs the year-boundary ledger batches: initialization,
// rollover with expiration, and accrual recalculation. Every employee x
// active category pair is independent, so the batches fan out over a bounded
// worker pool; a pair that fails is logged, counted and skipped without
// aborting the run.
type RolloverService struct {
	balances    ledgerBatchStore
	employees   employeeLister
	categories  categoryLister
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// NewRolloverService constructs RolloverService.
func NewRolloverService(balances ledgerBatchStore, employees employeeLister, categories categoryLister, cache *CacheService, metrics *MetricsService, logger *zap.Logger, concurrency int) *RolloverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &RolloverService{
		balances:    balances,
		employees:   employees,
		categories:  categories,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type ledgerPair struct {
	employee models.Employee
	category models.LeaveCategory
}

// batchAccumulator collects batch outcomes under a lock.
type batchAccumulator struct {
	mu     sync.Mutex
	totals models.BatchTotals
}

func (a *batchAccumulator) created()                      { a.mu.Lock(); a.totals.Created++; a.mu.Unlock() }
func (a *batchAccumulator) updated()                      { a.mu.Lock(); a.totals.Updated++; a.mu.Unlock() }
func (a *batchAccumulator) skipped()                      { a.mu.Lock(); a.totals.Skipped++; a.mu.Unlock() }
func (a *batchAccumulator) failed()                       { a.mu.Lock(); a.totals.Failed++; a.mu.Unlock() }
func (a *batchAccumulator) carried(d decimal.Decimal)     { a.mu.Lock(); a.totals.CarriedOver = a.totals.CarriedOver.Add(d); a.mu.Unlock() }
func (a *batchAccumulator) expiredDays(d decimal.Decimal) { a.mu.Lock(); a.totals.Expired = a.totals.Expired.Add(d); a.mu.Unlock() }

// forEachPair fans pairs out to the worker pool and waits for completion.
func (s *RolloverService) forEachPair(ctx context.Context, pairs []ledgerPair, fn func(context.Context, ledgerPair)) {
	jobs := make(chan ledgerPair)
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range jobs {
				fn(ctx, pair)
			}
		}()
	}
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- pair:
		}
	}
	close(jobs)
	wg.Wait()
}

func (s *RolloverService) collectPairs(ctx context.Context) ([]ledgerPair, error) {
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	categories, err := s.categories.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	pairs := make([]ledgerPair, 0, len(employees)*len(categories))
	for _, e := range employees {
		for _, c := range categories {
			pairs = append(pairs, ledgerPair{employee: e, category: c})
		}
	}
	return pairs, nil
}

// Rollover carries closing balances from fromYear into toYear and applies
// the per-category expiration policy to stale prior years. With dryRun set
// it reports the totals without writing anything. Re-running is safe: the
// target-year upsert refreshes carried_over only, and already-expired
// entries have nothing left to expire.
func (s *RolloverService) Rollover(ctx context.Context, fromYear, toYear int, dryRun bool) (*models.BatchTotals, error) {
	if toYear == 0 {
		toYear = s.now().Year()
	}
	if fromYear == 0 {
		fromYear = toYear - 1
	}
	if fromYear >= toYear {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from_year must precede to_year")
	}

	pairs, err := s.collectPairs(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	acc := &batchAccumulator{totals: models.BatchTotals{Year: toYear, FromYear: fromYear, DryRun: dryRun}}
	s.forEachPair(ctx, pairs, func(ctx context.Context, pair ledgerPair) {
		s.rolloverPair(ctx, pair, fromYear, toYear, dryRun, acc)
	})

	t := acc.totals
	s.metrics.RecordBatch("rollover", s.now().Sub(start), t.Created, t.Updated, t.Skipped, t.Failed)
	if !dryRun {
		if err := s.cache.Invalidate(ctx, "leave:balances:*"); err != nil {
			s.logger.Debug("balance cache invalidate failed", zap.Error(err))
		}
	}
	s.logger.Info("rollover finished",
		zap.Int("from_year", fromYear),
		zap.Int("to_year", toYear),
		zap.Bool("dry_run", dryRun),
		zap.Int("created", t.Created),
		zap.Int("updated", t.Updated),
		zap.Int("skipped", t.Skipped),
		zap.Int("failed", t.Failed),
		zap.String("carried_over", t.CarriedOver.String()),
		zap.String("expired", t.Expired.String()),
	)
	return &t, nil
}

func (s *RolloverService) rolloverPair(ctx context.Context, pair ledgerPair, fromYear, toYear int, dryRun bool, acc *batchAccumulator) {
	entries, err := s.balances.ListByPair(ctx, pair.employee.ID, pair.category.ID, fromYear)
	if err != nil {
		s.logger.Warn("rollover pair failed",
			zap.String("employee_id", pair.employee.ID),
			zap.String("category", pair.category.Code),
			zap.Error(err),
		)
		acc.failed()
		return
	}

	var prior *models.BalanceEntry
	for i := range entries {
		entry := &entries[i]
		if entry.Year == fromYear {
			prior = entry
		}
		// Stale years forfeit their whole remaining balance.
		if expire := ExpireStaleBalance(entry, toYear, &pair.category); expire.IsPositive() {
			acc.expiredDays(expire)
			if dryRun {
				continue
			}
			if err := s.balances.ApplyExpiration(ctx, entry.ID, entry.Expired.Add(expire)); err != nil {
				s.logger.Warn("expiration failed",
					zap.String("entry_id", entry.ID),
					zap.Error(err),
				)
				acc.failed()
				return
			}
		}
	}

	if prior == nil {
		acc.skipped()
		return
	}

	carry := decimal.Zero
	if toYear-fromYear <= pair.category.CarryOverYears && prior.Closing.IsPositive() {
		carry = prior.Closing.Round(2)
	}
	accrued := ComputeAccrual(&pair.category, pair.employee.HireDate, toYear)

	acc.carried(carry)
	if dryRun {
		if existing, err := s.balances.Find(ctx, pair.employee.ID, pair.category.ID, toYear); err == nil && existing != nil {
			acc.updated()
		} else {
			acc.created()
		}
		return
	}

	entry := &models.BalanceEntry{
		EmployeeID:  pair.employee.ID,
		CategoryID:  pair.category.ID,
		Year:        toYear,
		Opening:     decimal.Zero,
		Accrued:     accrued,
		Used:        decimal.Zero,
		CarriedOver: carry,
		Expired:     decimal.Zero,
	}
	entry.RecalculateClosing()

	created, err := s.balances.UpsertRollover(ctx, entry)
	if err != nil {
		s.logger.Warn("rollover upsert failed",
			zap.String("employee_id", pair.employee.ID),
			zap.String("category", pair.category.Code),
			zap.Error(err),
		)
		acc.failed()
		return
	}
	if created {
		acc.created()
	} else {
		acc.updated()
	}
}

// InitializeYear creates ledger entries with prorated accrual for every
// active employee x category pair that has none for the year. Existing
// entries are left alone and counted as skipped.
func (s *RolloverService) InitializeYear(ctx context.Context, year int) (*models.BatchTotals, error) {
	if year == 0 {
		year = s.now().Year()
	}
	pairs, err := s.collectPairs(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	acc := &batchAccumulator{totals: models.BatchTotals{Year: year}}
	s.forEachPair(ctx, pairs, func(ctx context.Context, pair ledgerPair) {
		s.initPair(ctx, pair.employee, pair.category, year, acc)
	})

	t := acc.totals
	s.metrics.RecordBatch("initialize_year", s.now().Sub(start), t.Created, t.Updated, t.Skipped, t.Failed)
	s.logger.Info("year initialization finished",
		zap.Int("year", year),
		zap.Int("created", t.Created),
		zap.Int("skipped", t.Skipped),
		zap.Int("failed", t.Failed),
	)
	return &t, nil
}

func (s *RolloverService) initPair(ctx context.Context, employee models.Employee, category models.LeaveCategory, year int, acc *batchAccumulator) {
	if existing, err := s.balances.Find(ctx, employee.ID, category.ID, year); err == nil && existing != nil {
		acc.skipped()
		return
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		acc.failed()
		return
	}

	accrued := ComputeAccrual(&category, employee.HireDate, year)
	entry := &models.BalanceEntry{
		EmployeeID:  employee.ID,
		CategoryID:  category.ID,
		Year:        year,
		Opening:     decimal.Zero,
		Accrued:     accrued,
		Used:        decimal.Zero,
		CarriedOver: decimal.Zero,
		Expired:     decimal.Zero,
	}
	entry.RecalculateClosing()

	created, err := s.balances.UpsertRollover(ctx, entry)
	if err != nil {
		s.logger.Warn("initialization upsert failed",
			zap.String("employee_id", employee.ID),
			zap.String("category", category.Code),
			zap.Error(err),
		)
		acc.failed()
		return
	}
	if created {
		acc.created()
	} else {
		acc.skipped()
	}
}

// Recalculate reapplies the accrual computation to existing entries of a
// year, optionally for a single employee, and reports how many changed.
// used, carried_over and expired are preserved; closing is recomputed.
func (s *RolloverService) Recalculate(ctx context.Context, year int, employeeID string) (*models.BatchTotals, error) {
	if year == 0 {
		year = s.now().Year()
	}

	var pairs []ledgerPair
	if employeeID != "" {
		employee, err := s.employees.FindByID(ctx, employeeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
		categories, err := s.categories.List(ctx, true)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
		}
		for _, c := range categories {
			pairs = append(pairs, ledgerPair{employee: *employee, category: c})
		}
	} else {
		var err error
		pairs, err = s.collectPairs(ctx)
		if err != nil {
			return nil, err
		}
	}

	start := s.now()
	acc := &batchAccumulator{totals: models.BatchTotals{Year: year}}
	s.forEachPair(ctx, pairs, func(ctx context.Context, pair ledgerPair) {
		s.recalculatePair(ctx, pair, year, acc)
	})

	t := acc.totals
	s.metrics.RecordBatch("recalculate", s.now().Sub(start), t.Created, t.Updated, t.Skipped, t.Failed)
	if err := s.cache.Invalidate(ctx, "leave:balances:*"); err != nil {
		s.logger.Debug("balance cache invalidate failed", zap.Error(err))
	}
	return &t, nil
}

func (s *RolloverService) recalculatePair(ctx context.Context, pair ledgerPair, year int, acc *batchAccumulator) {
	entry, err := s.balances.Find(ctx, pair.employee.ID, pair.category.ID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			acc.skipped()
			return
		}
		acc.failed()
		return
	}

	accrued := ComputeAccrual(&pair.category, pair.employee.HireDate, year)
	if accrued.Equal(entry.Accrued) {
		acc.skipped()
		return
	}
	if err := s.balances.UpdateAccrual(ctx, entry.ID, accrued); err != nil {
		s.logger.Warn("accrual update failed", zap.String("entry_id", entry.ID), zap.Error(err))
		acc.failed()
		return
	}
	acc.updated()
}

// InitEmployeeBalances seeds the year's entries for one employee across all
// active categories. Used when a new hire appears mid-year.
func (s *RolloverService) InitEmployeeBalances(ctx context.Context, employeeID string, year int) (*models.BatchTotals, error) {
	if year == 0 {
		year = s.now().Year()
	}
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	categories, err := s.categories.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}

	acc := &batchAccumulator{totals: models.BatchTotals{Year: year}}
	for _, category := range categories {
		s.initPair(ctx, *employee, category, year, acc)
	}
	if err := s.cache.Invalidate(ctx, BalanceCacheKey(employeeID)); err != nil {
		s.logger.Debug("balance cache invalidate failed", zap.Error(err))
	}
	t := acc.totals
	return &t, nil
}

// ExpireStaleBalance returns the amount of an entry's balance that is
// forfeited as of currentYear under the category's carry-over policy: the
// full remaining closing once the entry is older than carry_over_years,
// zero otherwise. Pure query; the caller applies the result.
func ExpireStaleBalance(entry *models.BalanceEntry, currentYear int, category *models.LeaveCategory) decimal.Decimal {
	if currentYear-entry.Year <= category.CarryOverYears {
		return decimal.Zero
	}
	if !entry.Closing.IsPositive() {
		return decimal.Zero
	}
	return entry.Closing.Round(2)
}
