package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/observability"
)

const (
	// slaWarningWindow is how far ahead of the deadline the approaching pass
	// looks.
	slaWarningWindow = time.Hour
	// slaWarningDedupWindow suppresses repeat approaching alerts for the same
	// (complaint, recipient) pair.
	slaWarningDedupWindow = 2 * time.Hour
	// defaultSweepBatchLimit bounds one sweep's result set.
	defaultSweepBatchLimit = 500

	// Alert titles double as the dedup scan keys.
	slaWarningTitle = "SLA deadline approaching"
	slaBreachTitle  = "SLA BREACHED"
)

// SweepSource is the record-store view the monitor sweeps.
type SweepSource interface {
	ListOpenDue(ctx context.Context, dueBefore time.Time, limit int) ([]domain.Complaint, error)
}

// MonitorNotifier sends alerts and answers whether an equivalent alert was
// already stored. The stored notifications are the monitor's only dedup
// state, which keeps repeated sweeps idempotent.
type MonitorNotifier interface {
	Enqueue(ctx context.Context, input NotificationInput) error
	HasAlertSince(ctx context.Context, complaintID, recipientID, title string, since time.Time) (bool, error)
}

// SLAMonitor periodically surfaces approaching and breached SLA deadlines to
// the assigned officer.
type SLAMonitor struct {
	complaints SweepSource
	notifier   MonitorNotifier
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	batchLimit int
}

// SLAMonitorDependencies bundles collaborators for the monitor.
type SLAMonitorDependencies struct {
	Complaints SweepSource
	Notifier   MonitorNotifier
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
	BatchLimit int
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(deps SLAMonitorDependencies) *SLAMonitor {
	monitor := &SLAMonitor{
		complaints: deps.Complaints,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
		batchLimit: deps.BatchLimit,
	}
	if monitor.logger == nil {
		monitor.logger = zap.NewNop()
	}
	if monitor.now == nil {
		monitor.now = time.Now
	}
	if monitor.batchLimit <= 0 {
		monitor.batchLimit = defaultSweepBatchLimit
	}
	return monitor
}

// RunSweep scans open, assigned complaints due within the warning window or
// already overdue, and alerts the assignee once per dedup window. One
// complaint's failure never aborts the rest of the batch.
func (m *SLAMonitor) RunSweep(ctx context.Context) error {
	now := m.now()
	complaints, err := m.complaints.ListOpenDue(ctx, now.Add(slaWarningWindow), m.batchLimit)
	if err != nil {
		return fmt.Errorf("sla sweep query: %w", err)
	}

	var alerts, failures int
	for i := range complaints {
		complaint := &complaints[i]
		if complaint.AssigneeID == nil {
			continue
		}
		sent, err := m.checkComplaint(ctx, complaint, now)
		if err != nil {
			failures++
			m.logger.Warn("sla sweep: complaint check failed",
				zap.String("complaint_id", complaint.ID),
				zap.String("reference", complaint.Reference),
				zap.Error(err))
			continue
		}
		if sent {
			alerts++
		}
	}

	m.logger.Info("sla sweep finished",
		zap.Int("scanned", len(complaints)),
		zap.Int("alerts", alerts),
		zap.Int("failures", failures))
	return nil
}

func (m *SLAMonitor) checkComplaint(ctx context.Context, complaint *domain.Complaint, now time.Time) (bool, error) {
	if IsSLABreached(complaint.SLADeadline, complaint.Status, now) {
		return m.alertBreached(ctx, complaint, now)
	}
	return m.alertApproaching(ctx, complaint, now)
}

// alertApproaching fires at most one warning per (complaint, recipient) per
// dedup window while the deadline sits inside the warning window.
func (m *SLAMonitor) alertApproaching(ctx context.Context, complaint *domain.Complaint, now time.Time) (bool, error) {
	recipient := *complaint.AssigneeID
	sent, err := m.notifier.HasAlertSince(ctx, complaint.ID, recipient, slaWarningTitle, now.Add(-slaWarningDedupWindow))
	if err != nil {
		return false, err
	}
	if sent {
		return false, nil
	}

	remaining := SLARemaining(complaint.SLADeadline, now)
	err = m.notifier.Enqueue(ctx, NotificationInput{
		RecipientID: recipient,
		Type:        domain.NotificationAlert,
		Title:       slaWarningTitle,
		Message: fmt.Sprintf("Complaint %s is due in %s (deadline %s).",
			complaint.Reference, remaining.Round(time.Minute), complaint.SLADeadline.Format(time.RFC3339)),
		ComplaintID: &complaint.ID,
	})
	if err != nil {
		return false, err
	}
	m.metrics.RecordSweepAlert("approaching")
	m.publishAlertEvent(ctx, complaint, events.EventSLAWarning, false)
	return true, nil
}

// alertBreached fires at most one breach alert per (complaint, recipient) per
// calendar day.
func (m *SLAMonitor) alertBreached(ctx context.Context, complaint *domain.Complaint, now time.Time) (bool, error) {
	recipient := *complaint.AssigneeID
	sent, err := m.notifier.HasAlertSince(ctx, complaint.ID, recipient, slaBreachTitle, startOfDay(now))
	if err != nil {
		return false, err
	}
	if sent {
		return false, nil
	}

	overdue := -SLARemaining(complaint.SLADeadline, now)
	err = m.notifier.Enqueue(ctx, NotificationInput{
		RecipientID: recipient,
		Type:        domain.NotificationAlert,
		Title:       slaBreachTitle,
		Message: fmt.Sprintf("Complaint %s is overdue by %s (deadline was %s).",
			complaint.Reference, overdue.Round(time.Minute), complaint.SLADeadline.Format(time.RFC3339)),
		ComplaintID: &complaint.ID,
	})
	if err != nil {
		return false, err
	}
	m.metrics.RecordSweepAlert("breached")
	m.publishAlertEvent(ctx, complaint, events.EventSLABreached, true)
	return true, nil
}

func (m *SLAMonitor) publishAlertEvent(ctx context.Context, complaint *domain.Complaint, eventType events.EventType, overdue bool) {
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		ComplaintID: complaint.ID,
		Timestamp:   m.now(),
		Payload: events.SLAAlertPayload{
			Reference:   complaint.Reference,
			SLADeadline: complaint.SLADeadline,
			Overdue:     overdue,
		},
	})
}

func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
