package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
)

type fakeSweepSource struct {
	complaints []domain.Complaint
	err        error
	lastCutoff time.Time
	lastLimit  int
}

func (f *fakeSweepSource) ListOpenDue(_ context.Context, dueBefore time.Time, limit int) ([]domain.Complaint, error) {
	f.lastCutoff = dueBefore
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.complaints, nil
}

// fakeMonitorNotifier answers HasAlertSince from its own sent log, the same
// way the real gateway scans stored notifications: a match counts only when
// it was sent at or after the since cutoff.
type fakeMonitorNotifier struct {
	alerts    []NotificationInput
	sentAt    []time.Time
	clock     func() time.Time
	lastSince map[string]time.Time
	hasErr    error
	sendErr   func(input NotificationInput) error
}

func (f *fakeMonitorNotifier) Enqueue(_ context.Context, input NotificationInput) error {
	if f.sendErr != nil {
		if err := f.sendErr(input); err != nil {
			return err
		}
	}
	f.alerts = append(f.alerts, input)
	f.sentAt = append(f.sentAt, f.clock())
	return nil
}

func (f *fakeMonitorNotifier) HasAlertSince(_ context.Context, complaintID, recipientID, title string, since time.Time) (bool, error) {
	if f.lastSince == nil {
		f.lastSince = map[string]time.Time{}
	}
	f.lastSince[title] = since
	if f.hasErr != nil {
		return false, f.hasErr
	}
	for i, alert := range f.alerts {
		if alert.ComplaintID != nil && *alert.ComplaintID == complaintID &&
			alert.RecipientID == recipientID && alert.Title == title &&
			!f.sentAt[i].Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type monitorFixture struct {
	source     *fakeSweepSource
	notifier   *fakeMonitorNotifier
	dispatcher *recordingDispatcher
	monitor    *SLAMonitor
	now        time.Time
}

func newMonitorFixture() *monitorFixture {
	fx := &monitorFixture{
		source:     &fakeSweepSource{},
		notifier:   &fakeMonitorNotifier{},
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	fx.notifier.clock = func() time.Time { return fx.now }
	fx.monitor = NewSLAMonitor(SLAMonitorDependencies{
		Complaints: fx.source,
		Notifier:   fx.notifier,
		Dispatcher: fx.dispatcher,
		Now:        func() time.Time { return fx.now },
	})
	return fx
}

func sweepComplaint(id string, deadline time.Time, assigneeID string) domain.Complaint {
	complaint := domain.Complaint{
		ID:          id,
		Reference:   "GRV-" + strings.ToUpper(id),
		CitizenID:   "user-citizen",
		Category:    domain.CategoryWaterSupply,
		Status:      domain.StatusInProgress,
		SLADeadline: deadline,
	}
	if assigneeID != "" {
		complaint.AssigneeID = &assigneeID
	}
	return complaint
}

func TestRunSweep_WarnsOnApproachingDeadline(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(30*time.Minute), "user-officer"),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))

	// The sweep cutoff is deadline <= now + warning window.
	assert.Equal(t, fx.now.Add(time.Hour), fx.source.lastCutoff)
	assert.Equal(t, 500, fx.source.lastLimit)

	require.Len(t, fx.notifier.alerts, 1)
	alert := fx.notifier.alerts[0]
	assert.Equal(t, "user-officer", alert.RecipientID)
	assert.Equal(t, domain.NotificationAlert, alert.Type)
	assert.Equal(t, "SLA deadline approaching", alert.Title)
	assert.Contains(t, alert.Message, "due in 30m0s")
	assert.Contains(t, alert.Message, "2025-03-10T09:30:00Z")

	require.Len(t, fx.dispatcher.published, 1)
	assert.Equal(t, events.EventSLAWarning, fx.dispatcher.published[0].Type)
	payload, ok := fx.dispatcher.published[0].Payload.(events.SLAAlertPayload)
	require.True(t, ok)
	assert.False(t, payload.Overdue)
}

func TestRunSweep_ApproachingAlertDedupedAcrossSweeps(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(45*time.Minute), "user-officer"),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.NoError(t, fx.monitor.RunSweep(context.Background()))

	assert.Len(t, fx.notifier.alerts, 1)
	assert.Len(t, fx.dispatcher.published, 1)
	// Dedup looks back over the warning dedup window.
	assert.Equal(t, fx.now.Add(-2*time.Hour), fx.notifier.lastSince["SLA deadline approaching"])
}

func TestRunSweep_WarningRealertsAfterDedupWindow(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(2*time.Hour+30*time.Minute), "user-officer"),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 1)

	// Inside the dedup window the stored alert still suppresses.
	fx.now = fx.now.Add(90 * time.Minute)
	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 1)

	// Past the window the stored alert no longer counts and a fresh warning
	// goes out.
	fx.now = fx.now.Add(31 * time.Minute)
	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 2)
	assert.Equal(t, "SLA deadline approaching", fx.notifier.alerts[1].Title)
	assert.Contains(t, fx.notifier.alerts[1].Message, "due in 29m0s")
}

func TestRunSweep_BreachRealertsNextCalendarDay(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(-2*time.Hour), "user-officer"),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 1)

	// Later the same day the morning alert still suppresses.
	fx.now = time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 1)

	// After midnight the scan window moves past it and the breach re-alerts.
	fx.now = time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC)
	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 2)
	assert.Equal(t, "SLA BREACHED", fx.notifier.alerts[1].Title)
	assert.Contains(t, fx.notifier.alerts[1].Message, "overdue by 17h30m0s")
}

func TestRunSweep_AlertsOnBreach(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(-2*time.Hour), "user-officer"),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))

	require.Len(t, fx.notifier.alerts, 1)
	alert := fx.notifier.alerts[0]
	assert.Equal(t, domain.NotificationAlert, alert.Type)
	assert.Equal(t, "SLA BREACHED", alert.Title)
	assert.Contains(t, alert.Message, "overdue by 2h0m0s")
	assert.Contains(t, alert.Message, "2025-03-10T07:00:00Z")

	// Breach alerts repeat at most daily: the dedup scan starts at midnight.
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), fx.notifier.lastSince["SLA BREACHED"])

	require.Len(t, fx.dispatcher.published, 1)
	assert.Equal(t, events.EventSLABreached, fx.dispatcher.published[0].Type)
	payload, ok := fx.dispatcher.published[0].Payload.(events.SLAAlertPayload)
	require.True(t, ok)
	assert.True(t, payload.Overdue)
}

func TestRunSweep_ClassifiesMixedBatch(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c-late", fx.now.Add(-30*time.Minute), "user-officer"),
		sweepComplaint("c-soon", fx.now.Add(50*time.Minute), "user-officer-2"),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))

	require.Len(t, fx.notifier.alerts, 2)
	assert.Equal(t, "SLA BREACHED", fx.notifier.alerts[0].Title)
	assert.Equal(t, "SLA deadline approaching", fx.notifier.alerts[1].Title)
}

func TestRunSweep_SkipsUnassigned(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(-time.Hour), ""),
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	assert.Empty(t, fx.notifier.alerts)
	assert.Empty(t, fx.dispatcher.published)
}

func TestRunSweep_OneFailureDoesNotAbortBatch(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c-fail", fx.now.Add(20*time.Minute), "user-officer"),
		sweepComplaint("c-ok", fx.now.Add(40*time.Minute), "user-officer-2"),
	}
	fx.notifier.sendErr = func(input NotificationInput) error {
		if input.ComplaintID != nil && *input.ComplaintID == "c-fail" {
			return fmt.Errorf("notification store down")
		}
		return nil
	}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))

	require.Len(t, fx.notifier.alerts, 1)
	require.NotNil(t, fx.notifier.alerts[0].ComplaintID)
	assert.Equal(t, "c-ok", *fx.notifier.alerts[0].ComplaintID)
}

func TestRunSweep_DedupLookupFailureCountsAsFailure(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.complaints = []domain.Complaint{
		sweepComplaint("c1", fx.now.Add(30*time.Minute), "user-officer"),
	}
	fx.notifier.hasErr = fmt.Errorf("query timeout")

	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	assert.Empty(t, fx.notifier.alerts)
}

func TestRunSweep_QueryErrorPropagates(t *testing.T) {
	fx := newMonitorFixture()
	fx.source.err = fmt.Errorf("connection refused")

	err := fx.monitor.RunSweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sla sweep query")
}

// A complaint may be resolved between the sweep query and the alert send. The
// monitor does not lock against that; the stored-alert dedup keeps repeated
// sweeps idempotent, so the worst case is one redundant alert.
func TestRunSweep_ToleratesResolutionRace(t *testing.T) {
	fx := newMonitorFixture()
	stale := sweepComplaint("c1", fx.now.Add(-time.Hour), "user-officer")
	fx.source.complaints = []domain.Complaint{stale}

	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	require.Len(t, fx.notifier.alerts, 1)

	// The complaint is resolved now, but the next sweep still sees the stale
	// open row. Same-day dedup suppresses a second breach alert.
	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	assert.Len(t, fx.notifier.alerts, 1)

	// Once the query catches up the complaint drops out of the batch.
	fx.source.complaints = nil
	require.NoError(t, fx.monitor.RunSweep(context.Background()))
	assert.Len(t, fx.notifier.alerts, 1)
	assert.Len(t, fx.dispatcher.published, 1)
}
