package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-api/internal/models"
)

func newEmployeeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func employeeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "email", "hire_date", "direction_id",
		"division_id", "service_id", "position", "active"})
}

func serviceAttachedEmployee() *models.Employee {
	division := "div-1"
	service := "svc-1"
	return &models.Employee{
		ID: "emp-1", FullName: "Ada Diallo", Email: "ada@example.org",
		HireDate: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), DirectionID: "dir-1",
		DivisionID: &division, ServiceID: &service,
		Position: models.PositionIndividual, Active: true,
	}
}

func TestFindApproversStopsAtServiceHead(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_service' AND service_id = $2")).
		WithArgs("emp-1", "svc-1").
		WillReturnRows(employeeRows().
			AddRow("head-1", "Sam Keita", "sam@example.org", time.Now(), "dir-1", "div-1", "svc-1", "unit_head_service", true))

	approvers, err := repo.FindApprovers(context.Background(), serviceAttachedEmployee())
	require.NoError(t, err)
	require.Len(t, approvers, 1)
	require.Equal(t, "head-1", approvers[0].ID)
	// no division or direction query once the service head answered
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindApproversFallsBackToDivisionHead(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_service' AND service_id = $2")).
		WithArgs("emp-1", "svc-1").
		WillReturnRows(employeeRows())
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_division' AND division_id = $2 AND service_id IS NULL")).
		WithArgs("emp-1", "div-1").
		WillReturnRows(employeeRows().
			AddRow("head-2", "Lena Toure", "lena@example.org", time.Now(), "dir-1", "div-1", nil, "unit_head_division", true))

	approvers, err := repo.FindApprovers(context.Background(), serviceAttachedEmployee())
	require.NoError(t, err)
	require.Len(t, approvers, 1)
	require.Equal(t, "head-2", approvers[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindApproversReachesDirectionHead(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_service' AND service_id = $2")).
		WithArgs("emp-1", "svc-1").
		WillReturnRows(employeeRows())
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_division' AND division_id = $2 AND service_id IS NULL")).
		WithArgs("emp-1", "div-1").
		WillReturnRows(employeeRows())
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_direction' AND direction_id = $2 AND division_id IS NULL AND service_id IS NULL")).
		WithArgs("emp-1", "dir-1").
		WillReturnRows(employeeRows().
			AddRow("head-3", "Omar Ba", "omar@example.org", time.Now(), "dir-1", nil, nil, "unit_head_direction", true))

	approvers, err := repo.FindApprovers(context.Background(), serviceAttachedEmployee())
	require.NoError(t, err)
	require.Len(t, approvers, 1)
	require.Equal(t, "head-3", approvers[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindApproversSkipsUnattachedLevels(t *testing.T) {
	db, mock, cleanup := newEmployeeRepoMock(t)
	defer cleanup()

	repo := NewEmployeeRepository(db)
	// a direction-attached employee has no service or division clauses
	mock.ExpectQuery(regexp.QuoteMeta("position = 'unit_head_direction' AND direction_id = $2 AND division_id IS NULL AND service_id IS NULL")).
		WithArgs("emp-9", "dir-1").
		WillReturnRows(employeeRows())

	emp := &models.Employee{ID: "emp-9", DirectionID: "dir-1", Position: models.PositionIndividual, Active: true}
	approvers, err := repo.FindApprovers(context.Background(), emp)
	require.NoError(t, err)
	require.Empty(t, approvers)
	require.NoError(t, mock.ExpectationsWereMet())
}
