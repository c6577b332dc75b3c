package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/pkg/jobs"
)

type recordingNotifier struct {
	mu        sync.Mutex
	delivered []Notification
	signal    chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{signal: make(chan struct{}, 8)}
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	n.delivered = append(n.delivered, msg)
	n.mu.Unlock()
	n.signal <- struct{}{}
	return nil
}

func (n *recordingNotifier) waitForDelivery(t *testing.T) Notification {
	t.Helper()
	select {
	case <-n.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered[len(n.delivered)-1]
}

type approverDirectoryMock struct {
	employees map[string]*models.Employee
	approvers []models.Employee
}

func (m *approverDirectoryMock) FindByID(_ context.Context, id string) (*models.Employee, error) {
	return m.employees[id], nil
}

func (m *approverDirectoryMock) FindApprovers(_ context.Context, _ *models.Employee) ([]models.Employee, error) {
	return m.approvers, nil
}

func newTestNotificationService(t *testing.T, notifier Notifier, directory approverDirectory) *NotificationService {
	t.Helper()
	svc := NewNotificationService(notifier, directory, jobs.Options{Workers: 1, BufferSize: 4}, nil, true)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func submittedRequest() *models.LeaveRequest {
	return &models.LeaveRequest{
		ID:         "req-1",
		EmployeeID: "emp-1",
		CategoryID: "cat-ca",
		StartDate:  date(2024, 3, 4),
		EndDate:    date(2024, 3, 8),
		Days:       dec("5"),
		Status:     models.RequestPending,
	}
}

func TestRequestSubmittedNotifiesApproversAndEmployee(t *testing.T) {
	employee := &models.Employee{ID: "emp-1", FullName: "Ada Diallo", Email: "ada@example.org"}
	head := models.Employee{ID: "head-1", FullName: "Sam Keita", Email: "sam@example.org"}
	notifier := newRecordingNotifier()
	svc := newTestNotificationService(t, notifier, &approverDirectoryMock{approvers: []models.Employee{head}})

	svc.RequestSubmitted(context.Background(), submittedRequest(), employee)

	msg := notifier.waitForDelivery(t)
	assert.Equal(t, "request.submitted", msg.Event)
	assert.Equal(t, "req-1", msg.RequestID)
	assert.Equal(t, []string{"sam@example.org", "ada@example.org"}, msg.Recipients)
}

func TestRequestSubmittedWithoutApproversStillNotifiesEmployee(t *testing.T) {
	employee := &models.Employee{ID: "emp-1", FullName: "Ada Diallo", Email: "ada@example.org"}
	notifier := newRecordingNotifier()
	svc := newTestNotificationService(t, notifier, &approverDirectoryMock{})

	svc.RequestSubmitted(context.Background(), submittedRequest(), employee)

	msg := notifier.waitForDelivery(t)
	assert.Equal(t, []string{"ada@example.org"}, msg.Recipients)
}

func TestRequestDecidedNotifiesEmployeeOnly(t *testing.T) {
	employee := &models.Employee{ID: "emp-1", FullName: "Ada Diallo", Email: "ada@example.org"}
	head := models.Employee{ID: "head-1", Email: "sam@example.org"}
	notifier := newRecordingNotifier()
	svc := newTestNotificationService(t, notifier, &approverDirectoryMock{approvers: []models.Employee{head}})

	req := submittedRequest()
	req.Status = models.RequestApproved
	svc.RequestDecided(context.Background(), req, employee)

	msg := notifier.waitForDelivery(t)
	assert.Equal(t, "request.approved", msg.Event)
	assert.Equal(t, []string{"ada@example.org"}, msg.Recipients)
}

func TestDisabledServiceDispatchesNothing(t *testing.T) {
	employee := &models.Employee{ID: "emp-1", Email: "ada@example.org"}
	notifier := newRecordingNotifier()
	svc := NewNotificationService(notifier, &approverDirectoryMock{}, jobs.Options{Workers: 1}, nil, false)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	svc.RequestSubmitted(context.Background(), submittedRequest(), employee)
	svc.RequestDecided(context.Background(), submittedRequest(), employee)

	select {
	case <-notifier.signal:
		t.Fatal("disabled service must not dispatch")
	case <-time.After(100 * time.Millisecond):
	}
	require.Empty(t, notifier.delivered)
}
