package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hrcore/leave-api/internal/models"
)

// EmployeeRepository reads the employee catalog projection.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, full_name, email, hire_date, direction_id, division_id,
        service_id, position, active`

// FindByID returns one employee.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE id = $1", employeeColumns)
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, id); err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListActive returns every active employee, ordered by name. Batch jobs
// iterate this set.
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees
        WHERE active = TRUE
        ORDER BY full_name`, employeeColumns)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return employees, nil
}

// FindApprovers returns the heads able to decide on this employee's requests.
// Levels are tried in order, service head first, then division, then
// direction, and the first level with an active head wins; a vacant level
// falls through to the next. The employee is excluded so a head never
// receives their own requests.
func (r *EmployeeRepository) FindApprovers(ctx context.Context, emp *models.Employee) ([]models.Employee, error) {
	type level struct {
		condition string
		unitID    string
	}
	levels := make([]level, 0, 3)
	if emp.ServiceID != nil {
		levels = append(levels, level{"position = 'unit_head_service' AND service_id = $2", *emp.ServiceID})
	}
	if emp.DivisionID != nil {
		levels = append(levels, level{"position = 'unit_head_division' AND division_id = $2 AND service_id IS NULL", *emp.DivisionID})
	}
	levels = append(levels, level{"position = 'unit_head_direction' AND direction_id = $2 AND division_id IS NULL AND service_id IS NULL", emp.DirectionID})

	for _, l := range levels {
		query := fmt.Sprintf(`SELECT %s FROM employees
        WHERE active = TRUE AND id <> $1 AND %s
        ORDER BY full_name`, employeeColumns, l.condition)
		var approvers []models.Employee
		if err := r.db.SelectContext(ctx, &approvers, query, emp.ID, l.unitID); err != nil {
			return nil, fmt.Errorf("find approvers: %w", err)
		}
		if len(approvers) > 0 {
			return approvers, nil
		}
	}
	return nil, nil
}
