package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/internal/repository"
	"github.com/hrcore/leave-api/pkg/calendar"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error)
	ApproveWithDeduction(ctx context.Context, req *models.LeaveRequest, approverID string, params repository.DeductionParams, hist *models.HistoryEntry) (*models.BalanceEntry, error)
	Reject(ctx context.Context, req *models.LeaveRequest, approverID string, hist *models.HistoryEntry) error
	CancelWithAudit(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error
}

type categoryReader interface {
	FindByID(ctx context.Context, id string) (*models.LeaveCategory, error)
	FindByCode(ctx context.Context, code string) (*models.LeaveCategory, error)
}

type historyReader interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.HistoryEntry, error)
	ListByEmployee(ctx context.Context, employeeID string, limit int) ([]models.HistoryEntry, error)
}

// SubmitRequest is the payload for filing a leave request.
type SubmitRequest struct {
	// EmployeeID may name another employee only when the actor holds an
	// override role; everyone else files for themselves.
	EmployeeID string `json:"employee_id"`
	CategoryID string `json:"category_id" validate:"required"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason" validate:"max=1000"`
}

// DecisionRequest is the payload for approve and reject.
type DecisionRequest struct {
	Comment string `json:"comment" validate:"max=1000"`
}

// RequestService orchestrates the request lifecycle.
type RequestService struct {
	requests      requestStore
	categories    categoryReader
	employees     employeeReader
	history       historyReader
	notifications *NotificationService
	cache         *CacheService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger

	allowOverdraft bool
}

// NewRequestService constructs RequestService.
func NewRequestService(
	requests requestStore,
	categories categoryReader,
	employees employeeReader,
	history historyReader,
	notifications *NotificationService,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	allowOverdraft bool,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		requests:       requests,
		categories:     categories,
		employees:      employees,
		history:        history,
		notifications:  notifications,
		cache:          cache,
		metrics:        metrics,
		validator:      validate,
		logger:         logger,
		allowOverdraft: allowOverdraft,
	}
}

// Submit files a leave request. The day count is computed here from the date
// range and the category's weekend-exclusion flag, and never changes
// afterwards. The request starts pending unless its category waives
// approval, in which case it is decided immediately.
func (s *RequestService) Submit(ctx context.Context, actor models.Actor, req SubmitRequest) (*models.LeaveRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	employeeID := actor.EmployeeID
	if req.EmployeeID != "" && req.EmployeeID != actor.EmployeeID {
		if !actor.ScopeOverride || actor.ReadOnly {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot file a request for another employee")
		}
		employeeID = req.EmployeeID
	}

	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !employee.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee is inactive")
	}

	category, err := s.categories.FindByID(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	if !category.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category is inactive")
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date before start date")
	}

	days := calendar.CountDays(start, end, category.ExcludeWeekends)
	if days == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requested range contains no countable days")
	}

	request := &models.LeaveRequest{
		EmployeeID: employeeID,
		CategoryID: category.ID,
		StartDate:  start,
		EndDate:    end,
		Days:       decimal.NewFromInt(int64(days)),
		Status:     models.RequestPending,
		Reason:     req.Reason,
	}
	hist := &models.HistoryEntry{
		EmployeeID: employeeID,
		CategoryID: category.ID,
		StartDate:  start,
		EndDate:    end,
		NewStatus:  models.RequestPending,
		ActedBy:    actor.EmployeeID,
	}
	if err := s.requests.Create(ctx, request, hist); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.metrics.RecordTransition("submitted")
	s.logger.Info("leave request submitted",
		zap.String("request_id", request.ID),
		zap.String("employee_id", employeeID),
		zap.String("category", category.Code),
		zap.String("days", request.Days.String()),
	)

	if !category.RequiresApproval {
		if err := s.applyApproval(ctx, request, category, actor.EmployeeID, "auto-approved"); err != nil {
			return nil, err
		}
		s.invalidateCaches(ctx, employeeID)
		s.notifications.RequestDecided(ctx, request, employee)
		return request, nil
	}

	s.notifications.RequestSubmitted(ctx, request, employee)
	return request, nil
}

// Approve decides a pending request in the actor's favor and deducts its day
// count from the (employee, category, start-year) ledger entry in the same
// unit of work.
func (s *RequestService) Approve(ctx context.Context, actor models.Actor, requestID string, req DecisionRequest) (*models.LeaveRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	request, employee, err := s.loadForDecision(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	category, err := s.categories.FindByID(ctx, request.CategoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	if err := s.applyApproval(ctx, request, category, actor.EmployeeID, req.Comment); err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx, request.EmployeeID)
	s.notifications.RequestDecided(ctx, request, employee)
	return request, nil
}

func (s *RequestService) applyApproval(ctx context.Context, request *models.LeaveRequest, category *models.LeaveCategory, actedBy, comment string) error {
	hist := &models.HistoryEntry{
		RequestID:      &request.ID,
		EmployeeID:     request.EmployeeID,
		CategoryID:     request.CategoryID,
		StartDate:      request.StartDate,
		EndDate:        request.EndDate,
		PreviousStatus: models.RequestPending,
		NewStatus:      models.RequestApproved,
		ActedBy:        actedBy,
		Comment:        comment,
	}
	params := repository.DeductionParams{
		Year:            request.StartDate.Year(),
		Days:            request.Days,
		DefaultEntitled: category.AnnualDays.Round(2),
		AllowOverdraft:  s.allowOverdraft,
	}
	entry, err := s.requests.ApproveWithDeduction(ctx, request, actedBy, params, hist)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
	}
	s.metrics.RecordTransition("approved")
	s.logger.Info("leave request approved",
		zap.String("request_id", request.ID),
		zap.String("acted_by", actedBy),
		zap.String("closing", entry.Closing.String()),
	)
	return nil
}

// Reject declines a pending request. The ledger is untouched.
func (s *RequestService) Reject(ctx context.Context, actor models.Actor, requestID string, req DecisionRequest) (*models.LeaveRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	request, employee, err := s.loadForDecision(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	hist := &models.HistoryEntry{
		RequestID:      &request.ID,
		EmployeeID:     request.EmployeeID,
		CategoryID:     request.CategoryID,
		StartDate:      request.StartDate,
		EndDate:        request.EndDate,
		PreviousStatus: models.RequestPending,
		NewStatus:      models.RequestRejected,
		ActedBy:        actor.EmployeeID,
		Comment:        req.Comment,
	}
	if err := s.requests.Reject(ctx, request, actor.EmployeeID, hist); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}
	s.metrics.RecordTransition("rejected")
	s.logger.Info("leave request rejected",
		zap.String("request_id", request.ID),
		zap.String("acted_by", actor.EmployeeID),
	)

	s.notifications.RequestDecided(ctx, request, employee)
	return request, nil
}

// Cancel withdraws the actor's own pending request. The request row is hard
// deleted; the audit trail keeps a denormalized terminal entry.
func (s *RequestService) Cancel(ctx context.Context, actor models.Actor, requestID string) error {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.EmployeeID != actor.EmployeeID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requesting employee may cancel")
	}
	if request.Status != models.RequestPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending requests can be cancelled")
	}

	hist := &models.HistoryEntry{
		RequestID:      &request.ID,
		EmployeeID:     request.EmployeeID,
		CategoryID:     request.CategoryID,
		StartDate:      request.StartDate,
		EndDate:        request.EndDate,
		PreviousStatus: models.RequestPending,
		NewStatus:      models.RequestCancelled,
		ActedBy:        actor.EmployeeID,
	}
	if err := s.requests.CancelWithAudit(ctx, request, hist); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	s.metrics.RecordTransition("cancelled")
	s.logger.Info("leave request cancelled",
		zap.String("request_id", request.ID),
		zap.String("employee_id", actor.EmployeeID),
	)
	return nil
}

// Get returns one request with context, restricted to the actor's scope.
func (s *RequestService) Get(ctx context.Context, actor models.Actor, requestID string) (*models.RequestDetail, error) {
	detail, err := s.requests.FindDetailByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if err := s.authorizeView(ctx, actor, &detail.LeaveRequest); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns requests visible to the actor. Owners always see their own;
// everything else is filtered through the resolved scope.
func (s *RequestService) List(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	scope := ResolveScope(actor)
	if filter.EmployeeID == actor.EmployeeID && filter.EmployeeID != "" {
		// own requests are always visible
		scope = models.Scope{All: true}
	} else if scope.None() {
		if filter.EmployeeID != "" {
			// someone else's requests, nothing visible
			return []models.RequestDetail{}, 0, nil
		}
		// non-heads default to their own requests
		filter.EmployeeID = actor.EmployeeID
		scope = models.Scope{All: true}
	}
	filter.Scope = scope

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, total, nil
}

// History returns the audit trail for one request the actor may view.
func (s *RequestService) History(ctx context.Context, actor models.Actor, requestID string) ([]models.HistoryEntry, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if err := s.authorizeView(ctx, actor, request); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list history")
	}
	return entries, nil
}

// EmployeeHistory returns the audit trail across an employee's requests,
// including entries whose request was cancelled and deleted.
func (s *RequestService) EmployeeHistory(ctx context.Context, actor models.Actor, employeeID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if employeeID != actor.EmployeeID && !actor.ScopeOverride {
		employee, err := s.employees.FindByID(ctx, employeeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
		if !ResolveScope(actor).Matches(employee) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "employee outside approval scope")
		}
	}
	entries, err := s.history.ListByEmployee(ctx, employeeID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list history")
	}
	return entries, nil
}

// loadForDecision fetches a request and checks the actor may decide on it.
func (s *RequestService) loadForDecision(ctx context.Context, actor models.Actor, requestID string) (*models.LeaveRequest, *models.Employee, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.Status != models.RequestPending {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is not pending")
	}

	employee, err := s.employees.FindByID(ctx, request.EmployeeID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !CanDecide(actor, employee) {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "request outside approval scope")
	}
	return request, employee, nil
}

// authorizeView checks read access: owner, scope match, or override.
func (s *RequestService) authorizeView(ctx context.Context, actor models.Actor, request *models.LeaveRequest) error {
	if request.EmployeeID == actor.EmployeeID || actor.ScopeOverride {
		return nil
	}
	employee, err := s.employees.FindByID(ctx, request.EmployeeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !ResolveScope(actor).Matches(employee) {
		return appErrors.Clone(appErrors.ErrForbidden, "request outside approval scope")
	}
	return nil
}

func (s *RequestService) invalidateCaches(ctx context.Context, employeeID string) {
	if err := s.cache.Invalidate(ctx, BalanceCacheKey(employeeID)); err != nil {
		s.logger.Debug("balance cache invalidate failed", zap.Error(err))
	}
}
