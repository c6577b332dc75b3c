package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/internal/repository"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

type mockRequestStore struct {
	requests       map[string]*models.LeaveRequest
	balances       map[string]*models.BalanceEntry
	history        []models.HistoryEntry
	allowOverdraft bool
	listCalls      int
}

func newMockRequestStore() *mockRequestStore {
	return &mockRequestStore{
		requests: make(map[string]*models.LeaveRequest),
		balances: make(map[string]*models.BalanceEntry),
	}
}

func (m *mockRequestStore) Create(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error {
	if req.ID == "" {
		req.ID = "req-1"
	}
	stored := *req
	m.requests[req.ID] = &stored
	m.history = append(m.history, *hist)
	return nil
}

func (m *mockRequestStore) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if r, ok := m.requests[id]; ok {
		found := *r
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestStore) FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error) {
	r, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.RequestDetail{LeaveRequest: *r}, nil
}

func (m *mockRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	m.listCalls++
	var out []models.RequestDetail
	for _, r := range m.requests {
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, models.RequestDetail{LeaveRequest: *r})
	}
	return out, len(out), nil
}

func (m *mockRequestStore) ApproveWithDeduction(ctx context.Context, req *models.LeaveRequest, approverID string, params repository.DeductionParams, hist *models.HistoryEntry) (*models.BalanceEntry, error) {
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is not pending")
	}

	key := balanceKey(req.EmployeeID, req.CategoryID, params.Year)
	entry, ok := m.balances[key]
	if !ok {
		entry = &models.BalanceEntry{
			ID: "bal-" + req.ID, EmployeeID: req.EmployeeID, CategoryID: req.CategoryID,
			Year: params.Year, Accrued: params.DefaultEntitled, Closing: params.DefaultEntitled,
		}
		m.balances[key] = entry
	}
	entry.Used = entry.Used.Add(params.Days)
	entry.RecalculateClosing()
	if !params.AllowOverdraft && entry.Closing.IsNegative() {
		entry.Used = entry.Used.Sub(params.Days)
		entry.RecalculateClosing()
		return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "insufficient leave balance")
	}

	stored.Status = models.RequestApproved
	stored.ApproverID = &approverID
	req.Status = models.RequestApproved
	req.ApproverID = &approverID
	m.history = append(m.history, *hist)
	out := *entry
	return &out, nil
}

func (m *mockRequestStore) Reject(ctx context.Context, req *models.LeaveRequest, approverID string, hist *models.HistoryEntry) error {
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != models.RequestPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "request is not pending")
	}
	stored.Status = models.RequestRejected
	req.Status = models.RequestRejected
	m.history = append(m.history, *hist)
	return nil
}

func (m *mockRequestStore) CancelWithAudit(ctx context.Context, req *models.LeaveRequest, hist *models.HistoryEntry) error {
	stored, ok := m.requests[req.ID]
	if !ok || stored.Status != models.RequestPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "request is not pending")
	}
	m.history = append(m.history, *hist)
	delete(m.requests, req.ID)
	return nil
}

type mockCategoryReader struct {
	categories map[string]*models.LeaveCategory
}

func (m *mockCategoryReader) FindByID(ctx context.Context, id string) (*models.LeaveCategory, error) {
	if c, ok := m.categories[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryReader) FindByCode(ctx context.Context, code string) (*models.LeaveCategory, error) {
	for _, c := range m.categories {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockHistoryReader struct {
	entries []models.HistoryEntry
}

func (m *mockHistoryReader) ListByRequest(ctx context.Context, requestID string) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	for _, e := range m.entries {
		if e.RequestID != nil && *e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockHistoryReader) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	for _, e := range m.entries {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func testEmployees() *mockEmployeeReader {
	return &mockEmployeeReader{employees: map[string]*models.Employee{
		"emp-1": {
			ID: "emp-1", FullName: "Ada Diallo", Email: "ada@example.org",
			HireDate: date(2023, 7, 1), DirectionID: "dir-1",
			DivisionID: strPtr("div-1"), ServiceID: strPtr("svc-1"),
			Position: models.PositionIndividual, Active: true,
		},
		"head-1": {
			ID: "head-1", FullName: "Sam Keita", Email: "sam@example.org",
			HireDate: date(2018, 1, 15), DirectionID: "dir-1",
			DivisionID: strPtr("div-1"), ServiceID: strPtr("svc-1"),
			Position: models.PositionUnitHeadService, Active: true,
		},
	}}
}

func testCategories() *mockCategoryReader {
	return &mockCategoryReader{categories: map[string]*models.LeaveCategory{
		"cat-ca": {
			ID: "cat-ca", Code: "CA", Name: "Annual leave",
			AnnualDays: dec("22"), ProrataMonthly: true, CarryOverYears: 2,
			ExcludeWeekends: true, RequiresApproval: true, IsActive: true,
		},
	}}
}

func newTestRequestService(store *mockRequestStore, allowOverdraft bool) *RequestService {
	return NewRequestService(store, testCategories(), testEmployees(), &mockHistoryReader{},
		nil, nil, nil, nil, nil, allowOverdraft)
}

func serviceHeadActor() models.Actor {
	return models.Actor{
		EmployeeID: "head-1", Role: models.RoleEmployee,
		Position: models.PositionUnitHeadService,
		DirectionID: "dir-1", DivisionID: "div-1", ServiceID: "svc-1",
	}
}

func employeeActor() models.Actor {
	return models.Actor{
		EmployeeID: "emp-1", Role: models.RoleEmployee,
		Position: models.PositionIndividual,
		DirectionID: "dir-1", DivisionID: "div-1", ServiceID: "svc-1",
	}
}

func TestSubmitComputesDaysExcludingWeekends(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	request, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca",
		StartDate:  "2023-08-07",
		EndDate:    "2023-08-11",
	})
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(request.Days), "Mon-Fri week counts 5 days")
	assert.Equal(t, models.RequestPending, request.Status)
	require.Len(t, store.history, 1)
	assert.Equal(t, models.RequestPending, store.history[0].NewStatus)
}

func TestSubmitRejectsInvalidRanges(t *testing.T) {
	svc := newTestRequestService(newMockRequestStore(), true)

	_, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca",
		StartDate:  "2023-08-11",
		EndDate:    "2023-08-07",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))

	// weekend-only range with weekend exclusion yields zero countable days
	_, err = svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca",
		StartDate:  "2023-08-12",
		EndDate:    "2023-08-13",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestSubmitOnBehalfRequiresOverride(t *testing.T) {
	svc := newTestRequestService(newMockRequestStore(), true)

	_, err := svc.Submit(context.Background(), serviceHeadActor(), SubmitRequest{
		EmployeeID: "emp-1",
		CategoryID: "cat-ca",
		StartDate:  "2023-08-07",
		EndDate:    "2023-08-11",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))

	hr := models.Actor{EmployeeID: "head-1", Role: models.RoleHR, ScopeOverride: true}
	request, err := svc.Submit(context.Background(), hr, SubmitRequest{
		EmployeeID: "emp-1",
		CategoryID: "cat-ca",
		StartDate:  "2023-08-07",
		EndDate:    "2023-08-11",
	})
	require.NoError(t, err)
	assert.Equal(t, "emp-1", request.EmployeeID)
}

func TestApproveDeductsFromLedger(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	request, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca",
		StartDate:  "2023-08-07",
		EndDate:    "2023-08-11",
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)

	// the ledger entry was lazily created with the full entitlement
	entry := store.balances[balanceKey("emp-1", "cat-ca", 2023)]
	require.NotNil(t, entry)
	assert.True(t, dec("5").Equal(entry.Used))
	assert.True(t, dec("17").Equal(entry.Closing))
}

func TestApproveOutsideScopeFails(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	request, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca",
		StartDate:  "2023-08-07",
		EndDate:    "2023-08-11",
	})
	require.NoError(t, err)

	outsider := serviceHeadActor()
	outsider.ServiceID = "svc-2"
	_, err = svc.Approve(context.Background(), outsider, request.ID, DecisionRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized.Code))

	auditor := models.Actor{EmployeeID: "aud-1", Role: models.RoleAuditor, ScopeOverride: true, ReadOnly: true}
	_, err = svc.Approve(context.Background(), auditor, request.ID, DecisionRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized.Code))
}

func TestApproveOverdraftPolicy(t *testing.T) {
	// seed an almost empty balance, then approve more days than remain
	seed := func(store *mockRequestStore) {
		entry := &models.BalanceEntry{
			ID: "bal-1", EmployeeID: "emp-1", CategoryID: "cat-ca", Year: 2023,
			Accrued: dec("2"),
		}
		entry.RecalculateClosing()
		store.balances[balanceKey("emp-1", "cat-ca", 2023)] = entry
	}

	strictStore := newMockRequestStore()
	seed(strictStore)
	strict := newTestRequestService(strictStore, false)
	request, err := strict.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)
	_, err = strict.Approve(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientBalance.Code))

	permissiveStore := newMockRequestStore()
	seed(permissiveStore)
	permissive := newTestRequestService(permissiveStore, true)
	request, err = permissive.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)
	_, err = permissive.Approve(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{})
	require.NoError(t, err)
	entry := permissiveStore.balances[balanceKey("emp-1", "cat-ca", 2023)]
	assert.True(t, dec("-3").Equal(entry.Closing), "permissive policy allows a deficit")
}

func TestLifecycleGuards(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	request, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{})
	require.NoError(t, err)

	// decided requests accept no further transitions
	_, err = svc.Approve(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition.Code))
	_, err = svc.Reject(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition.Code))
	err = svc.Cancel(context.Background(), employeeActor(), request.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition.Code))
}

func TestCancelIsOwnerOnly(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	request, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)

	// even an in-scope approver may not cancel
	err = svc.Cancel(context.Background(), serviceHeadActor(), request.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))

	err = svc.Cancel(context.Background(), employeeActor(), request.ID)
	require.NoError(t, err)

	// hard deleted, but the audit trail keeps the terminal entry
	_, err = store.FindByID(context.Background(), request.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	last := store.history[len(store.history)-1]
	assert.Equal(t, models.RequestCancelled, last.NewStatus)
	assert.Equal(t, "emp-1", last.EmployeeID)
	require.NotNil(t, last.RequestID)
	assert.Equal(t, request.ID, *last.RequestID)
}

func TestRejectLeavesLedgerUntouched(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	request, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), serviceHeadActor(), request.ID, DecisionRequest{Comment: "coverage gap"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	assert.Empty(t, store.balances)
}

func TestListDefaultsNonHeadsToOwnRequests(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	_, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)

	requests, total, err := svc.List(context.Background(), employeeActor(), models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, "emp-1", requests[0].EmployeeID)
}

func TestListAnswersEmptyForSomeoneElsesRequests(t *testing.T) {
	store := newMockRequestStore()
	svc := newTestRequestService(store, true)

	_, err := svc.Submit(context.Background(), employeeActor(), SubmitRequest{
		CategoryID: "cat-ca", StartDate: "2023-08-07", EndDate: "2023-08-11",
	})
	require.NoError(t, err)

	// a non-head asking for another employee's requests gets nothing, not a
	// silently rewritten view of their own
	requests, total, err := svc.List(context.Background(), employeeActor(), models.RequestFilter{EmployeeID: "emp-2"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, requests)
	assert.Zero(t, store.listCalls)
}
