package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

type categoryRepo interface {
	List(ctx context.Context, activeOnly bool) ([]models.LeaveCategory, error)
	FindByID(ctx context.Context, id string) (*models.LeaveCategory, error)
	FindByCode(ctx context.Context, code string) (*models.LeaveCategory, error)
	Create(ctx context.Context, category *models.LeaveCategory) error
	Update(ctx context.Context, category *models.LeaveCategory) error
}

// CreateCategoryRequest is the payload for defining a new leave category.
type CreateCategoryRequest struct {
	Code             string  `json:"code" validate:"required,alphanum,uppercase,max=8"`
	Name             string  `json:"name" validate:"required,max=120"`
	Description      string  `json:"description" validate:"max=500"`
	Paid             bool    `json:"paid"`
	AnnualDays       float64 `json:"annual_days" validate:"required,gt=0,lte=366"`
	ProrataMonthly   bool    `json:"prorata_monthly"`
	CarryOverYears   int     `json:"carry_over_years" validate:"gte=0,lte=10"`
	ExcludeWeekends  bool    `json:"exclude_weekends"`
	RequiresApproval bool    `json:"requires_approval"`
}

// UpdateCategoryRequest is the payload for adjusting a category definition.
// The code is immutable; ledger history keys off it.
type UpdateCategoryRequest struct {
	Name             *string  `json:"name" validate:"omitempty,max=120"`
	Description      *string  `json:"description" validate:"omitempty,max=500"`
	Paid             *bool    `json:"paid"`
	AnnualDays       *float64 `json:"annual_days" validate:"omitempty,gt=0,lte=366"`
	ProrataMonthly   *bool    `json:"prorata_monthly"`
	CarryOverYears   *int     `json:"carry_over_years" validate:"omitempty,gte=0,lte=10"`
	ExcludeWeekends  *bool    `json:"exclude_weekends"`
	RequiresApproval *bool    `json:"requires_approval"`
	IsActive         *bool    `json:"is_active"`
}

// CategoryService manages leave category definitions.
type CategoryService struct {
	categories categoryRepo
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCategoryService constructs CategoryService.
func NewCategoryService(categories categoryRepo, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{categories: categories, validator: validate, logger: logger}
}

// List returns category definitions.
func (s *CategoryService) List(ctx context.Context, activeOnly bool) ([]models.LeaveCategory, error) {
	categories, err := s.categories.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Get returns one category.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.LeaveCategory, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	return category, nil
}

// Create defines a new category. Codes are unique and stored uppercase.
func (s *CategoryService) Create(ctx context.Context, req CreateCategoryRequest) (*models.LeaveCategory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	code := strings.ToUpper(req.Code)
	if existing, err := s.categories.FindByCode(ctx, code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "category code already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check category code")
	}

	category := &models.LeaveCategory{
		Code:             code,
		Name:             req.Name,
		Description:      req.Description,
		Paid:             req.Paid,
		AnnualDays:       decimal.NewFromFloat(req.AnnualDays).Round(2),
		ProrataMonthly:   req.ProrataMonthly,
		CarryOverYears:   req.CarryOverYears,
		ExcludeWeekends:  req.ExcludeWeekends,
		RequiresApproval: req.RequiresApproval,
		IsActive:         true,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}

	s.logger.Info("category created", zap.String("code", category.Code), zap.String("id", category.ID))
	return category, nil
}

// Update adjusts an existing category. Changes apply to future accrual runs
// only; existing ledger entries keep the amounts computed at the time.
func (s *CategoryService) Update(ctx context.Context, id string, req UpdateCategoryRequest) (*models.LeaveCategory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.Paid != nil {
		category.Paid = *req.Paid
	}
	if req.AnnualDays != nil {
		category.AnnualDays = decimal.NewFromFloat(*req.AnnualDays).Round(2)
	}
	if req.ProrataMonthly != nil {
		category.ProrataMonthly = *req.ProrataMonthly
	}
	if req.CarryOverYears != nil {
		category.CarryOverYears = *req.CarryOverYears
	}
	if req.ExcludeWeekends != nil {
		category.ExcludeWeekends = *req.ExcludeWeekends
	}
	if req.RequiresApproval != nil {
		category.RequiresApproval = *req.RequiresApproval
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}

	s.logger.Info("category updated", zap.String("code", category.Code), zap.String("id", category.ID))
	return category, nil
}

// Deactivate retires a category from new ledger creation while keeping its
// history intact.
func (s *CategoryService) Deactivate(ctx context.Context, id string) (*models.LeaveCategory, error) {
	inactive := false
	return s.Update(ctx, id, UpdateCategoryRequest{IsActive: &inactive})
}
