package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

type fakeComplaintStore struct {
	complaints map[string]*domain.Complaint
	history    map[string][]domain.StatusHistoryEntry
	comments   map[string][]domain.OfficerComment
	clock      func() time.Time
	createErr  error
	updateErr  error
	seq        int
}

func newFakeComplaintStore() *fakeComplaintStore {
	return &fakeComplaintStore{
		complaints: map[string]*domain.Complaint{},
		history:    map[string][]domain.StatusHistoryEntry{},
		comments:   map[string][]domain.OfficerComment{},
		clock:      time.Now,
	}
}

func (f *fakeComplaintStore) Create(_ context.Context, complaint *domain.Complaint, seed *domain.StatusHistoryEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	complaint.ID = fmt.Sprintf("complaint-%d", f.seq)
	complaint.Version = 1
	complaint.CreatedAt = f.clock()
	complaint.UpdatedAt = complaint.CreatedAt
	stored := *complaint
	f.complaints[complaint.ID] = &stored

	seed.ComplaintID = complaint.ID
	seed.ChangedAt = complaint.CreatedAt
	f.history[complaint.ID] = append(f.history[complaint.ID], *seed)
	return nil
}

func (f *fakeComplaintStore) ApplyUpdate(_ context.Context, complaint *domain.Complaint, entry *domain.StatusHistoryEntry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.complaints[complaint.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != complaint.Version {
		return repository.ErrVersionConflict
	}
	complaint.Version++
	complaint.UpdatedAt = f.clock()
	copied := *complaint
	f.complaints[complaint.ID] = &copied

	if entry != nil {
		entry.ComplaintID = complaint.ID
		entry.ChangedAt = complaint.UpdatedAt
		f.history[complaint.ID] = append(f.history[complaint.ID], *entry)
	}
	return nil
}

func (f *fakeComplaintStore) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	stored, ok := f.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeComplaintStore) GetByReference(_ context.Context, reference string) (*domain.Complaint, error) {
	for _, stored := range f.complaints {
		if stored.Reference == reference {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeComplaintStore) ListWithFilter(_ context.Context, _ repository.ComplaintFilter) ([]domain.Complaint, error) {
	result := make([]domain.Complaint, 0, len(f.complaints))
	for _, stored := range f.complaints {
		result = append(result, *stored)
	}
	return result, nil
}

func (f *fakeComplaintStore) ListOpenDue(_ context.Context, _ time.Time, _ int) ([]domain.Complaint, error) {
	return nil, nil
}

func (f *fakeComplaintStore) ListHistory(_ context.Context, complaintID string) ([]domain.StatusHistoryEntry, error) {
	return f.history[complaintID], nil
}

func (f *fakeComplaintStore) AddComment(_ context.Context, comment *domain.OfficerComment) error {
	f.seq++
	comment.ID = fmt.Sprintf("comment-%d", f.seq)
	comment.AddedAt = f.clock()
	f.comments[comment.ComplaintID] = append(f.comments[comment.ComplaintID], *comment)
	return nil
}

func (f *fakeComplaintStore) ListComments(_ context.Context, complaintID string) ([]domain.OfficerComment, error) {
	return f.comments[complaintID], nil
}

func (f *fakeComplaintStore) CountByStatus(_ context.Context) (map[domain.ComplaintStatus]int64, error) {
	return map[domain.ComplaintStatus]int64{}, nil
}

func (f *fakeComplaintStore) CountByCategory(_ context.Context) (map[domain.ComplaintCategory]int64, error) {
	return map[domain.ComplaintCategory]int64{}, nil
}

func (f *fakeComplaintStore) SLAStats(_ context.Context, _ time.Time) (*repository.SLAStats, error) {
	return &repository.SLAStats{}, nil
}

type fakeUserDirectory struct {
	users map[string]*domain.User
}

func (f *fakeUserDirectory) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := f.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeNotifier struct {
	direct     []NotificationInput
	admin      []AdminNotificationInput
	enqueueErr error
	adminErr   error
}

func (f *fakeNotifier) Enqueue(_ context.Context, input NotificationInput) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.direct = append(f.direct, input)
	return nil
}

func (f *fakeNotifier) EnqueueForAllAdmins(_ context.Context, input AdminNotificationInput) error {
	if f.adminErr != nil {
		return f.adminErr
	}
	f.admin = append(f.admin, input)
	return nil
}

type fakeAudit struct {
	entries  []AuditInput
	writeErr error
}

func (f *fakeAudit) Write(_ context.Context, input AuditInput) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.entries = append(f.entries, input)
	return nil
}

type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

var (
	testCitizen = domain.User{ID: "user-citizen", Name: "Asha Rao", Email: "asha@example.com", Role: domain.RoleCitizen, Active: true}
	testOfficer = domain.User{ID: "user-officer", Name: "Vikram Iyer", Email: "vikram@example.com", Role: domain.RoleOfficer, Active: true}
	testAdmin   = domain.User{ID: "user-admin", Name: "Meera Pillai", Email: "meera@example.com", Role: domain.RoleAdmin, Active: true}
)

type lifecycleFixture struct {
	store      *fakeComplaintStore
	users      *fakeUserDirectory
	notifier   *fakeNotifier
	audit      *fakeAudit
	dispatcher *recordingDispatcher
	svc        *LifecycleService
	now        time.Time
}

func newLifecycleFixture() *lifecycleFixture {
	fx := &lifecycleFixture{
		store:      newFakeComplaintStore(),
		notifier:   &fakeNotifier{},
		audit:      &fakeAudit{},
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	fx.users = &fakeUserDirectory{users: map[string]*domain.User{
		testCitizen.ID: &testCitizen,
		testOfficer.ID: &testOfficer,
		testAdmin.ID:   &testAdmin,
	}}
	fx.store.clock = func() time.Time { return fx.now }
	fx.svc = NewLifecycleService(LifecycleDependencies{
		ComplaintRepo: fx.store,
		Users:         fx.users,
		Notifications: fx.notifier,
		Audits:        fx.audit,
		Dispatcher:    fx.dispatcher,
		Now:           func() time.Time { return fx.now },
	})
	return fx
}

func (fx *lifecycleFixture) addUser(user domain.User) {
	fx.users.users[user.ID] = &user
}

// seedComplaint plants a complaint directly in the store so transition tests
// start from a clean side-effect ledger.
func (fx *lifecycleFixture) seedComplaint(id string, status domain.ComplaintStatus, mutate func(*domain.Complaint)) *domain.Complaint {
	complaint := domain.Complaint{
		ID:          id,
		Reference:   "GRV-" + strings.ToUpper(id),
		CitizenID:   testCitizen.ID,
		Category:    domain.CategoryElectricity,
		Title:       "Power outage in ward 4",
		Description: "No power since last night.",
		Status:      status,
		SLADeadline: fx.now.Add(12 * time.Hour),
		Version:     1,
		CreatedAt:   fx.now,
		UpdatedAt:   fx.now,
	}
	if mutate != nil {
		mutate(&complaint)
	}
	stored := complaint
	fx.store.complaints[id] = &stored
	fx.store.history[id] = []domain.StatusHistoryEntry{{
		ComplaintID:   id,
		Status:        domain.StatusNew,
		ChangedByID:   testCitizen.ID,
		ChangedByRole: domain.RoleCitizen,
		Notes:         "complaint filed",
		ChangedAt:     complaint.CreatedAt,
	}}
	return &complaint
}

func assignedTo(officerID string) func(*domain.Complaint) {
	return func(c *domain.Complaint) {
		c.AssigneeID = &officerID
		assignedAt := c.CreatedAt.Add(30 * time.Minute)
		c.AssignedAt = &assignedAt
	}
}

func requireDomainErrCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestCreateComplaint_FilesNewComplaint(t *testing.T) {
	fx := newLifecycleFixture()

	complaint, err := fx.svc.CreateComplaint(context.Background(), &testCitizen, CreateComplaintInput{
		Category:    domain.CategoryElectricity,
		Title:       "  Power outage in ward 4  ",
		Description: "No power since last night.",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, complaint.Status)
	assert.Equal(t, testCitizen.ID, complaint.CitizenID)
	assert.Equal(t, "Power outage in ward 4", complaint.Title)
	assert.True(t, strings.HasPrefix(complaint.Reference, "GRV-"))
	assert.Len(t, complaint.Reference, 12)
	assert.Equal(t, fx.now.Add(12*time.Hour), complaint.SLADeadline)
	assert.Nil(t, complaint.AssigneeID)
	assert.Nil(t, complaint.ResolvedAt)
	assert.Nil(t, complaint.IsSLAMet)

	history := fx.store.history[complaint.ID]
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusNew, history[0].Status)
	assert.Equal(t, testCitizen.ID, history[0].ChangedByID)
	assert.Equal(t, "complaint filed", history[0].Notes)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, domain.AuditComplaintCreated, fx.audit.entries[0].Action)
	assert.Equal(t, complaint.ID, fx.audit.entries[0].EntityID)

	require.Len(t, fx.notifier.direct, 1)
	assert.Equal(t, testCitizen.ID, fx.notifier.direct[0].RecipientID)
	assert.Equal(t, domain.NotificationInfo, fx.notifier.direct[0].Type)
	require.Len(t, fx.notifier.admin, 1)
	assert.Equal(t, domain.NotificationAction, fx.notifier.admin[0].Type)

	require.Len(t, fx.dispatcher.published, 1)
	assert.Equal(t, events.EventComplaintCreated, fx.dispatcher.published[0].Type)
}

func TestCreateComplaint_OnlyCitizensMayFile(t *testing.T) {
	fx := newLifecycleFixture()

	for _, actor := range []*domain.User{&testOfficer, &testAdmin, nil} {
		_, err := fx.svc.CreateComplaint(context.Background(), actor, CreateComplaintInput{
			Category:    domain.CategoryOther,
			Title:       "t",
			Description: "d",
		})
		requireDomainErrCode(t, err, "FORBIDDEN")
	}
	assert.Empty(t, fx.store.complaints)
	assert.Empty(t, fx.notifier.direct)
	assert.Empty(t, fx.audit.entries)
}

func TestCreateComplaint_Validation(t *testing.T) {
	fx := newLifecycleFixture()

	cases := []struct {
		name  string
		input CreateComplaintInput
	}{
		{"blank title", CreateComplaintInput{Category: domain.CategoryOther, Title: "   ", Description: "d"}},
		{"blank description", CreateComplaintInput{Category: domain.CategoryOther, Title: "t", Description: ""}},
		{"unknown category", CreateComplaintInput{Category: "MOON_DUST", Title: "t", Description: "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.CreateComplaint(context.Background(), &testCitizen, tc.input)
			requireDomainErrCode(t, err, "VALIDATION_FAILED")
		})
	}
	assert.Empty(t, fx.store.complaints)
}

func TestApplyTransition_AdminAssignsOfficer(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusNew, nil)

	officerID := testOfficer.ID
	complaint, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusAssigned, TransitionInput{
		AssigneeID: &officerID,
		Notes:      "routed to field team",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, complaint.Status)
	require.NotNil(t, complaint.AssigneeID)
	assert.Equal(t, testOfficer.ID, *complaint.AssigneeID)
	require.NotNil(t, complaint.AssignedAt)
	assert.Equal(t, fx.now, *complaint.AssignedAt)
	assert.Equal(t, 2, complaint.Version)

	history := fx.store.history["c1"]
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusAssigned, history[1].Status)
	assert.Equal(t, testAdmin.ID, history[1].ChangedByID)
	assert.Equal(t, "routed to field team", history[1].Notes)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, domain.AuditComplaintAssigned, fx.audit.entries[0].Action)

	require.Len(t, fx.notifier.direct, 2)
	officerNote := fx.notifier.direct[0]
	assert.Equal(t, testOfficer.ID, officerNote.RecipientID)
	assert.Equal(t, domain.NotificationAction, officerNote.Type)
	assert.Contains(t, officerNote.Message, complaint.SLADeadline.Format(time.RFC3339))
	citizenNote := fx.notifier.direct[1]
	assert.Equal(t, testCitizen.ID, citizenNote.RecipientID)
	assert.Equal(t, domain.NotificationInfo, citizenNote.Type)

	require.Len(t, fx.dispatcher.published, 1)
	assert.Equal(t, events.EventComplaintAssigned, fx.dispatcher.published[0].Type)
}

func TestApplyTransition_FreshAssignmentRequiresAssignee(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusNew, nil)

	_, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusAssigned, TransitionInput{})
	requireDomainErrCode(t, err, "INVALID_ASSIGNEE")
	assert.Equal(t, domain.StatusNew, fx.store.complaints["c1"].Status)
}

func TestApplyTransition_AssigneeMustBeActiveOfficer(t *testing.T) {
	fx := newLifecycleFixture()
	fx.addUser(domain.User{ID: "user-retired", Role: domain.RoleOfficer, Active: false})

	cases := []struct {
		name       string
		assigneeID string
	}{
		{"unknown user", "user-ghost"},
		{"inactive officer", "user-retired"},
		{"not an officer", testCitizen.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx.seedComplaint("c-"+tc.assigneeID, domain.StatusNew, nil)
			assigneeID := tc.assigneeID
			_, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c-"+tc.assigneeID, domain.StatusAssigned, TransitionInput{AssigneeID: &assigneeID})
			requireDomainErrCode(t, err, "INVALID_ASSIGNEE")
		})
	}
}

func TestApplyTransition_ForbiddenEdgeLeavesEverythingUntouched(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusNew, nil)

	_, err := fx.svc.ApplyTransition(context.Background(), &testCitizen, "c1", domain.StatusClosed, TransitionInput{})
	requireDomainErrCode(t, err, "FORBIDDEN")

	stored := fx.store.complaints["c1"]
	assert.Equal(t, domain.StatusNew, stored.Status)
	assert.Equal(t, 1, stored.Version)
	assert.Len(t, fx.store.history["c1"], 1)
	assert.Empty(t, fx.notifier.direct)
	assert.Empty(t, fx.notifier.admin)
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.dispatcher.published)
}

func TestApplyTransition_CitizenScopedToOwnComplaints(t *testing.T) {
	fx := newLifecycleFixture()
	stranger := domain.User{ID: "user-stranger", Role: domain.RoleCitizen, Active: true}
	fx.addUser(stranger)
	fx.seedComplaint("c1", domain.StatusResolved, nil)

	_, err := fx.svc.ApplyTransition(context.Background(), &stranger, "c1", domain.StatusClosed, TransitionInput{})
	requireDomainErrCode(t, err, "FORBIDDEN")
	assert.Equal(t, domain.StatusResolved, fx.store.complaints["c1"].Status)
}

func TestApplyTransition_OfficerScopedToOwnAssignments(t *testing.T) {
	fx := newLifecycleFixture()
	rival := domain.User{ID: "user-rival", Role: domain.RoleOfficer, Active: true}
	fx.addUser(rival)
	fx.seedComplaint("c1", domain.StatusAssigned, assignedTo(testOfficer.ID))

	_, err := fx.svc.ApplyTransition(context.Background(), &rival, "c1", domain.StatusInProgress, TransitionInput{})
	requireDomainErrCode(t, err, "FORBIDDEN")
	assert.Equal(t, domain.StatusAssigned, fx.store.complaints["c1"].Status)
}

func TestApplyTransition_OfficerAcceptsAssignment(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusAssigned, assignedTo(testOfficer.ID))

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testOfficer, "c1", domain.StatusInProgress, TransitionInput{Notes: "on site"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, complaint.Status)

	require.Len(t, fx.notifier.direct, 1)
	assert.Equal(t, testCitizen.ID, fx.notifier.direct[0].RecipientID)
	assert.Equal(t, domain.NotificationInfo, fx.notifier.direct[0].Type)
	require.Len(t, fx.notifier.admin, 1)
	assert.Equal(t, domain.NotificationInfo, fx.notifier.admin[0].Type)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, domain.AuditStatusChanged, fx.audit.entries[0].Action)
}

func TestApplyTransition_ResolveWithinSLA(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))
	fx.now = fx.now.Add(10 * time.Hour)

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testOfficer, "c1", domain.StatusResolved, TransitionInput{
		ResolutionProof: []string{"photos/after-repair.jpg"},
		ResolutionNotes: "transformer fuse replaced",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusResolved, complaint.Status)
	require.NotNil(t, complaint.ResolvedAt)
	assert.Equal(t, fx.now, *complaint.ResolvedAt)
	require.NotNil(t, complaint.IsSLAMet)
	assert.True(t, *complaint.IsSLAMet)
	assert.Equal(t, []string{"photos/after-repair.jpg"}, complaint.ResolutionProof)
	assert.Equal(t, "transformer fuse replaced", complaint.ResolutionNotes)

	require.Len(t, fx.notifier.admin, 1)
	assert.Equal(t, domain.NotificationInfo, fx.notifier.admin[0].Type)
	assert.Equal(t, "Complaint resolved within SLA", fx.notifier.admin[0].Title)
}

func TestApplyTransition_ResolveAfterDeadline(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))
	fx.now = fx.now.Add(13 * time.Hour)

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testOfficer, "c1", domain.StatusResolved, TransitionInput{
		ResolutionProof: []string{"photos/late-fix.jpg"},
	})
	require.NoError(t, err)

	require.NotNil(t, complaint.IsSLAMet)
	assert.False(t, *complaint.IsSLAMet)

	require.Len(t, fx.notifier.admin, 1)
	assert.Equal(t, domain.NotificationAlert, fx.notifier.admin[0].Type)
	assert.Equal(t, "Complaint resolved past SLA", fx.notifier.admin[0].Title)
}

func TestApplyTransition_ResolveRequiresProof(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))

	_, err := fx.svc.ApplyTransition(context.Background(), &testOfficer, "c1", domain.StatusResolved, TransitionInput{
		ResolutionNotes: "done, trust me",
	})
	requireDomainErrCode(t, err, "MISSING_RESOLUTION_PROOF")

	stored := fx.store.complaints["c1"]
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.Nil(t, stored.ResolvedAt)
	assert.Nil(t, stored.IsSLAMet)
	assert.Len(t, fx.store.history["c1"], 1)
}

func TestApplyTransition_SendBackKeepsCustody(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testOfficer, "c1", domain.StatusAssigned, TransitionInput{Notes: "needs parts"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, complaint.Status)
	require.NotNil(t, complaint.AssigneeID)
	assert.Equal(t, testOfficer.ID, *complaint.AssigneeID)
}

func TestApplyTransition_OfficerCannotReassign(t *testing.T) {
	fx := newLifecycleFixture()
	rival := domain.User{ID: "user-rival", Role: domain.RoleOfficer, Active: true}
	fx.addUser(rival)
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))

	rivalID := rival.ID
	_, err := fx.svc.ApplyTransition(context.Background(), &testOfficer, "c1", domain.StatusAssigned, TransitionInput{AssigneeID: &rivalID})
	requireDomainErrCode(t, err, "FORBIDDEN")
	assert.Equal(t, domain.StatusInProgress, fx.store.complaints["c1"].Status)
}

func TestApplyTransition_AdminReassignsInFlight(t *testing.T) {
	fx := newLifecycleFixture()
	second := domain.User{ID: "user-officer-2", Role: domain.RoleOfficer, Active: true}
	fx.addUser(second)
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))
	fx.now = fx.now.Add(2 * time.Hour)

	secondID := second.ID
	complaint, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusAssigned, TransitionInput{AssigneeID: &secondID})
	require.NoError(t, err)

	require.NotNil(t, complaint.AssigneeID)
	assert.Equal(t, second.ID, *complaint.AssigneeID)
	require.NotNil(t, complaint.AssignedAt)
	assert.Equal(t, fx.now, *complaint.AssignedAt)
}

func TestApplyTransition_CitizenClosesOwnResolved(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusResolved, func(c *domain.Complaint) {
		assignedTo(testOfficer.ID)(c)
		resolvedAt := c.CreatedAt.Add(10 * time.Hour)
		met := true
		c.ResolvedAt = &resolvedAt
		c.IsSLAMet = &met
	})

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testCitizen, "c1", domain.StatusClosed, TransitionInput{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusClosed, complaint.Status)
	require.NotNil(t, complaint.IsSLAMet)
	assert.True(t, *complaint.IsSLAMet)
	require.NotNil(t, complaint.ResolvedAt)
}

func TestApplyTransition_AdminReopensRejected(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusRejected, nil)

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusNew, TransitionInput{Notes: "rejection overturned"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, complaint.Status)

	history := fx.store.history["c1"]
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusNew, history[1].Status)
}

func TestApplyTransition_OverrideKeepsResolutionFields(t *testing.T) {
	fx := newLifecycleFixture()
	resolvedAt := time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)
	met := true
	fx.seedComplaint("c1", domain.StatusResolved, func(c *domain.Complaint) {
		assignedTo(testOfficer.ID)(c)
		c.ResolvedAt = &resolvedAt
		c.IsSLAMet = &met
		c.ResolutionProof = []string{"photos/fix.jpg"}
	})

	complaint, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusInProgress, TransitionInput{Notes: "not actually fixed"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInProgress, complaint.Status)
	require.NotNil(t, complaint.ResolvedAt)
	assert.Equal(t, resolvedAt, *complaint.ResolvedAt)
	require.NotNil(t, complaint.IsSLAMet)
	assert.True(t, *complaint.IsSLAMet)
	require.NotNil(t, complaint.AssigneeID)
	assert.Equal(t, testOfficer.ID, *complaint.AssigneeID)
	require.NotNil(t, complaint.AssignedAt)
}

func TestApplyTransition_VersionConflict(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusNew, nil)
	fx.store.updateErr = repository.ErrVersionConflict

	officerID := testOfficer.ID
	_, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusAssigned, TransitionInput{AssigneeID: &officerID})
	requireDomainErrCode(t, err, "CONFLICT")
	assert.Empty(t, fx.notifier.direct)
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.dispatcher.published)
}

func TestApplyTransition_UnknownComplaint(t *testing.T) {
	fx := newLifecycleFixture()

	_, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "no-such-id", domain.StatusRejected, TransitionInput{})
	requireDomainErrCode(t, err, "NOT_FOUND")
}

func TestApplyTransition_SideEffectFailuresDoNotUnwind(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusNew, nil)
	fx.notifier.enqueueErr = fmt.Errorf("smtp down")
	fx.notifier.adminErr = fmt.Errorf("smtp down")
	fx.audit.writeErr = fmt.Errorf("audit store down")

	officerID := testOfficer.ID
	complaint, err := fx.svc.ApplyTransition(context.Background(), &testAdmin, "c1", domain.StatusAssigned, TransitionInput{AssigneeID: &officerID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, complaint.Status)
	assert.Equal(t, domain.StatusAssigned, fx.store.complaints["c1"].Status)
	// The event still goes out: side effects are independent of each other.
	require.Len(t, fx.dispatcher.published, 1)
}

func TestApplyTransition_FullLifecycleHistory(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusNew, nil)

	officerID := testOfficer.ID
	steps := []struct {
		actor  *domain.User
		target domain.ComplaintStatus
		input  TransitionInput
	}{
		{&testAdmin, domain.StatusAssigned, TransitionInput{AssigneeID: &officerID}},
		{&testOfficer, domain.StatusInProgress, TransitionInput{}},
		{&testOfficer, domain.StatusResolved, TransitionInput{ResolutionProof: []string{"p.jpg"}}},
		{&testCitizen, domain.StatusClosed, TransitionInput{}},
	}
	for _, step := range steps {
		_, err := fx.svc.ApplyTransition(context.Background(), step.actor, "c1", step.target, step.input)
		require.NoError(t, err)
	}

	history := fx.store.history["c1"]
	require.Len(t, history, 5)
	wantStatuses := []domain.ComplaintStatus{
		domain.StatusNew, domain.StatusAssigned, domain.StatusInProgress,
		domain.StatusResolved, domain.StatusClosed,
	}
	for i, want := range wantStatuses {
		assert.Equal(t, want, history[i].Status, "history position %d", i)
	}
	assert.Equal(t, 5, fx.store.complaints["c1"].Version)
}

func TestAddOfficerComment_AssignedOfficer(t *testing.T) {
	fx := newLifecycleFixture()
	fx.seedComplaint("c1", domain.StatusInProgress, assignedTo(testOfficer.ID))

	comment, err := fx.svc.AddOfficerComment(context.Background(), &testOfficer, "c1", "waiting on replacement parts")
	require.NoError(t, err)

	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, "c1", comment.ComplaintID)
	assert.Equal(t, testOfficer.ID, comment.AddedByID)

	// Comments notify the citizen but never touch status or history.
	assert.Equal(t, domain.StatusInProgress, fx.store.complaints["c1"].Status)
	assert.Len(t, fx.store.history["c1"], 1)
	require.Len(t, fx.notifier.direct, 1)
	assert.Equal(t, testCitizen.ID, fx.notifier.direct[0].RecipientID)
	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, domain.AuditCommentAdded, fx.audit.entries[0].Action)
	require.Len(t, fx.dispatcher.published, 1)
	assert.Equal(t, events.EventComplaintCommentAdded, fx.dispatcher.published[0].Type)
}

func TestAddOfficerComment_Gates(t *testing.T) {
	fx := newLifecycleFixture()
	rival := domain.User{ID: "user-rival", Role: domain.RoleOfficer, Active: true}
	fx.addUser(rival)

	fx.seedComplaint("in-progress", domain.StatusInProgress, assignedTo(testOfficer.ID))
	fx.seedComplaint("still-new", domain.StatusNew, nil)

	t.Run("only while in progress", func(t *testing.T) {
		_, err := fx.svc.AddOfficerComment(context.Background(), &testOfficer, "still-new", "too early")
		requireDomainErrCode(t, err, "FORBIDDEN")
	})
	t.Run("only the assigned officer", func(t *testing.T) {
		_, err := fx.svc.AddOfficerComment(context.Background(), &rival, "in-progress", "not mine")
		requireDomainErrCode(t, err, "FORBIDDEN")
	})
	t.Run("citizens cannot comment", func(t *testing.T) {
		_, err := fx.svc.AddOfficerComment(context.Background(), &testCitizen, "in-progress", "hello")
		requireDomainErrCode(t, err, "FORBIDDEN")
	})
	t.Run("admins may comment", func(t *testing.T) {
		_, err := fx.svc.AddOfficerComment(context.Background(), &testAdmin, "in-progress", "supervisor note")
		require.NoError(t, err)
	})
	t.Run("blank comment", func(t *testing.T) {
		_, err := fx.svc.AddOfficerComment(context.Background(), &testOfficer, "in-progress", "   ")
		requireDomainErrCode(t, err, "VALIDATION_FAILED")
	})
}
