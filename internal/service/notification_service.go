package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/pkg/jobs"
)

// Notification is one outbound message about a lifecycle event.
type Notification struct {
	Event      string   `json:"event"`
	RequestID  string   `json:"request_id"`
	EmployeeID string   `json:"employee_id"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// Notifier delivers a notification to its recipients.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It stands in for a mail or
// chat gateway in environments without one.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Info("notification dispatched",
		zap.String("event", msg.Event),
		zap.String("request_id", msg.RequestID),
		zap.Strings("recipients", msg.Recipients),
		zap.String("subject", msg.Subject),
	)
	return nil
}

type approverDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	FindApprovers(ctx context.Context, emp *models.Employee) ([]models.Employee, error)
}

// NotificationService resolves recipients and dispatches notifications
// through a background queue. Delivery is best-effort: a failed dispatch is
// retried by the queue and then dropped, never blocking the lifecycle
// transition that triggered it.
type NotificationService struct {
	notifier  Notifier
	employees approverDirectory
	queue     *jobs.Queue
	logger    *zap.Logger
	enabled   bool
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(notifier Notifier, employees approverDirectory, opts jobs.Options, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		notifier:  notifier,
		employees: employees,
		logger:    logger,
		enabled:   enabled,
	}
	opts.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, opts)
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(Notification)
	if !ok {
		s.logger.Error("notification payload has unexpected type", zap.String("job_id", job.ID))
		return nil
	}
	return s.notifier.Notify(ctx, n)
}

func (s *NotificationService) enqueue(n Notification) {
	if !s.enabled || len(n.Recipients) == 0 {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: n.Event, Payload: n}); err != nil {
		s.logger.Warn("notification enqueue failed", zap.String("event", n.Event), zap.Error(err))
	}
}

// RequestSubmitted notifies the employee's approvers, walking the fallback
// chain (service head, then division head, then direction head), and the
// employee as confirmation.
func (s *NotificationService) RequestSubmitted(ctx context.Context, req *models.LeaveRequest, employee *models.Employee) {
	if s == nil || !s.enabled {
		return
	}
	approvers, err := s.employees.FindApprovers(ctx, employee)
	if err != nil {
		s.logger.Warn("approver lookup failed", zap.String("employee_id", employee.ID), zap.Error(err))
		return
	}
	recipients := make([]string, 0, len(approvers)+1)
	for _, a := range approvers {
		recipients = append(recipients, a.Email)
	}
	recipients = append(recipients, employee.Email)
	s.enqueue(Notification{
		Event:      "request.submitted",
		RequestID:  req.ID,
		EmployeeID: employee.ID,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Leave request from %s", employee.FullName),
		Body: fmt.Sprintf("%s requested leave from %s to %s (%s days).",
			employee.FullName, req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"), req.Days),
	})
}

// RequestDecided notifies the requesting employee of an approval or
// rejection.
func (s *NotificationService) RequestDecided(ctx context.Context, req *models.LeaveRequest, employee *models.Employee) {
	if s == nil || !s.enabled {
		return
	}
	s.enqueue(Notification{
		Event:      fmt.Sprintf("request.%s", req.Status),
		RequestID:  req.ID,
		EmployeeID: employee.ID,
		Recipients: []string{employee.Email},
		Subject:    fmt.Sprintf("Your leave request was %s", req.Status),
		Body: fmt.Sprintf("Your leave from %s to %s was %s.",
			req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"), req.Status),
	})
}
