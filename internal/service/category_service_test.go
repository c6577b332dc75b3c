package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

type mockCategoryRepo struct {
	categories map[string]*models.LeaveCategory
	nextID     int
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[string]*models.LeaveCategory)}
}

func (m *mockCategoryRepo) List(ctx context.Context, activeOnly bool) ([]models.LeaveCategory, error) {
	var out []models.LeaveCategory
	for _, c := range m.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCategoryRepo) FindByID(ctx context.Context, id string) (*models.LeaveCategory, error) {
	if c, ok := m.categories[id]; ok {
		found := *c
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryRepo) FindByCode(ctx context.Context, code string) (*models.LeaveCategory, error) {
	for _, c := range m.categories {
		if c.Code == code {
			found := *c
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryRepo) Create(ctx context.Context, category *models.LeaveCategory) error {
	m.nextID++
	category.ID = fmt.Sprintf("cat-%d", m.nextID)
	stored := *category
	m.categories[category.ID] = &stored
	return nil
}

func (m *mockCategoryRepo) Update(ctx context.Context, category *models.LeaveCategory) error {
	if _, ok := m.categories[category.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *category
	m.categories[category.ID] = &stored
	return nil
}

func TestCategoryCreateNormalizesAndValidates(t *testing.T) {
	repo := newMockCategoryRepo()
	svc := NewCategoryService(repo, nil, nil)

	category, err := svc.Create(context.Background(), CreateCategoryRequest{
		Code: "CA", Name: "Annual leave", AnnualDays: 22,
		ProrataMonthly: true, CarryOverYears: 2, ExcludeWeekends: true, RequiresApproval: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "CA", category.Code)
	assert.True(t, category.IsActive)
	assert.True(t, dec("22").Equal(category.AnnualDays))

	_, err = svc.Create(context.Background(), CreateCategoryRequest{
		Code: "CA", Name: "Duplicate", AnnualDays: 5,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict.Code))

	_, err = svc.Create(context.Background(), CreateCategoryRequest{
		Code: "SL", Name: "Zero entitlement", AnnualDays: 0,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestCategoryUpdateAppliesOnlyProvidedFields(t *testing.T) {
	repo := newMockCategoryRepo()
	svc := NewCategoryService(repo, nil, nil)

	category, err := svc.Create(context.Background(), CreateCategoryRequest{
		Code: "CA", Name: "Annual leave", AnnualDays: 22, CarryOverYears: 2,
	})
	require.NoError(t, err)

	days := 25.0
	updated, err := svc.Update(context.Background(), category.ID, UpdateCategoryRequest{AnnualDays: &days})
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(updated.AnnualDays))
	assert.Equal(t, "Annual leave", updated.Name)
	assert.Equal(t, 2, updated.CarryOverYears)

	_, err = svc.Update(context.Background(), "missing", UpdateCategoryRequest{AnnualDays: &days})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound.Code))
}

func TestCategoryDeactivateHidesFromActiveList(t *testing.T) {
	repo := newMockCategoryRepo()
	svc := NewCategoryService(repo, nil, nil)

	category, err := svc.Create(context.Background(), CreateCategoryRequest{
		Code: "CA", Name: "Annual leave", AnnualDays: 22,
	})
	require.NoError(t, err)

	retired, err := svc.Deactivate(context.Background(), category.ID)
	require.NoError(t, err)
	assert.False(t, retired.IsActive)

	active, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
