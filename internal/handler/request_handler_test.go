package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-api/internal/middleware"
	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/internal/repository"
	"github.com/hrcore/leave-api/internal/service"
	"github.com/hrcore/leave-api/pkg/response"
)

type requestStoreMock struct {
	requests map[string]*models.LeaveRequest
}

func (m *requestStoreMock) Create(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error {
	req.ID = "req-1"
	stored := *req
	m.requests[req.ID] = &stored
	return nil
}

func (m *requestStoreMock) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if r, ok := m.requests[id]; ok {
		found := *r
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *requestStoreMock) FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error) {
	r, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.RequestDetail{LeaveRequest: *r}, nil
}

func (m *requestStoreMock) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	var out []models.RequestDetail
	for _, r := range m.requests {
		out = append(out, models.RequestDetail{LeaveRequest: *r})
	}
	return out, len(out), nil
}

func (m *requestStoreMock) ApproveWithDeduction(ctx context.Context, req *models.LeaveRequest, approverID string, params repository.DeductionParams, hist *models.HistoryEntry) (*models.BalanceEntry, error) {
	stored := m.requests[req.ID]
	stored.Status = models.RequestApproved
	req.Status = models.RequestApproved
	entry := &models.BalanceEntry{
		EmployeeID: req.EmployeeID, CategoryID: req.CategoryID, Year: params.Year,
		Accrued: params.DefaultEntitled, Used: params.Days,
	}
	entry.RecalculateClosing()
	return entry, nil
}

func (m *requestStoreMock) Reject(ctx context.Context, req *models.LeaveRequest, approverID string, hist *models.HistoryEntry) error {
	m.requests[req.ID].Status = models.RequestRejected
	req.Status = models.RequestRejected
	return nil
}

func (m *requestStoreMock) CancelWithAudit(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error {
	delete(m.requests, req.ID)
	return nil
}

type categoryReaderMock struct {
	category *models.LeaveCategory
}

func (m *categoryReaderMock) FindByID(ctx context.Context, id string) (*models.LeaveCategory, error) {
	if m.category != nil && m.category.ID == id {
		return m.category, nil
	}
	return nil, sql.ErrNoRows
}

func (m *categoryReaderMock) FindByCode(ctx context.Context, code string) (*models.LeaveCategory, error) {
	if m.category != nil && m.category.Code == code {
		return m.category, nil
	}
	return nil, sql.ErrNoRows
}

type employeeReaderMock struct {
	employee *models.Employee
}

func (m *employeeReaderMock) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	if m.employee != nil && m.employee.ID == id {
		return m.employee, nil
	}
	return nil, sql.ErrNoRows
}

type historyReaderMock struct{}

func (m *historyReaderMock) ListByRequest(ctx context.Context, requestID string) ([]models.HistoryEntry, error) {
	return nil, nil
}

func (m *historyReaderMock) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]models.HistoryEntry, error) {
	return nil, nil
}

func newLifecycleHandler() (*RequestHandler, *requestStoreMock) {
	store := &requestStoreMock{requests: make(map[string]*models.LeaveRequest)}
	svc := service.NewRequestService(store,
		&categoryReaderMock{category: &models.LeaveCategory{
			ID: "cat-1", Code: "CA", Name: "Annual leave",
			AnnualDays: decimal.NewFromInt(22), ExcludeWeekends: true,
			RequiresApproval: true, IsActive: true,
		}},
		&employeeReaderMock{employee: &models.Employee{
			ID: "emp-1", FullName: "Ada Diallo", Email: "ada@example.org",
			HireDate: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
			DirectionID: "dir-1", Position: models.PositionIndividual, Active: true,
		}},
		&historyReaderMock{}, nil, nil, nil, nil, nil, true)
	return NewRequestHandler(svc), store
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func TestRequestHandlerRequiresActor(t *testing.T) {
	handler := NewRequestHandler(nil)
	c, w := testContext(t, http.MethodGet, "/requests", nil)

	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestHandlerSubmitInvalidBody(t *testing.T) {
	handler := NewRequestHandler(nil)
	c, w := testContext(t, http.MethodPost, "/requests", []byte(`invalid`))
	c.Set(middleware.ContextActorKey, models.Actor{EmployeeID: "emp-1", Role: models.RoleEmployee})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerLifecycle(t *testing.T) {
	handler, store := newLifecycleHandler()
	actor := models.Actor{EmployeeID: "emp-1", Role: models.RoleEmployee, Position: models.PositionIndividual, DirectionID: "dir-1"}

	body, _ := json.Marshal(service.SubmitRequest{
		CategoryID: "cat-1",
		StartDate:  "2023-08-07",
		EndDate:    "2023-08-11",
	})
	c, w := testContext(t, http.MethodPost, "/requests", body)
	c.Set(middleware.ContextActorKey, actor)
	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	created, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "5", created["days"])

	c, w = testContext(t, http.MethodDelete, "/requests/req-1", nil)
	c.Set(middleware.ContextActorKey, actor)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Cancel(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.requests)
}

func TestRequestHandlerApproveWithoutBody(t *testing.T) {
	handler, store := newLifecycleHandler()
	store.requests["req-1"] = &models.LeaveRequest{
		ID: "req-1", EmployeeID: "emp-1", CategoryID: "cat-1",
		StartDate: time.Date(2023, 8, 7, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 8, 11, 0, 0, 0, 0, time.UTC),
		Days:      decimal.NewFromInt(5), Status: models.RequestPending,
	}
	approver := models.Actor{EmployeeID: "hr-1", Role: models.RoleHR, ScopeOverride: true}

	c, w := testContext(t, http.MethodPut, "/requests/req-1/approve", nil)
	c.Set(middleware.ContextActorKey, approver)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestApproved, store.requests["req-1"].Status)
}
