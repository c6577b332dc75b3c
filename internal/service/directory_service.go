package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

type orgReader interface {
	FindByID(ctx context.Context, id string) (*models.OrgUnit, error)
	ListActive(ctx context.Context) ([]models.OrgUnit, error)
	ListChildren(ctx context.Context, parentID string) ([]models.OrgUnit, error)
}

type employeeDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	ListActive(ctx context.Context) ([]models.Employee, error)
	FindApprovers(ctx context.Context, emp *models.Employee) ([]models.Employee, error)
}

// DirectoryService serves the read-only organizational catalog: units,
// employees and the approver chain an employee's requests route to.
type DirectoryService struct {
	org       orgReader
	employees employeeDirectory
	logger    *zap.Logger
}

// NewDirectoryService constructs DirectoryService.
func NewDirectoryService(org orgReader, employees employeeDirectory, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{org: org, employees: employees, logger: logger}
}

// Units returns the active organizational tree, parents before children.
func (s *DirectoryService) Units(ctx context.Context) ([]models.OrgUnit, error) {
	units, err := s.org.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list units")
	}
	return units, nil
}

// Unit returns one organizational unit.
func (s *DirectoryService) Unit(ctx context.Context, id string) (*models.OrgUnit, error) {
	unit, err := s.org.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	return unit, nil
}

// UnitChildren returns the active units directly under a parent.
func (s *DirectoryService) UnitChildren(ctx context.Context, parentID string) ([]models.OrgUnit, error) {
	if _, err := s.Unit(ctx, parentID); err != nil {
		return nil, err
	}
	children, err := s.org.ListChildren(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list child units")
	}
	return children, nil
}

// Employees returns every active employee.
func (s *DirectoryService) Employees(ctx context.Context) ([]models.Employee, error) {
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, nil
}

// Employee returns one employee.
func (s *DirectoryService) Employee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// Approvers returns the heads an employee's requests route to, nearest first.
func (s *DirectoryService) Approvers(ctx context.Context, employeeID string) ([]models.Employee, error) {
	employee, err := s.Employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	approvers, err := s.employees.FindApprovers(ctx, employee)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find approvers")
	}
	return approvers, nil
}
