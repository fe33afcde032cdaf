package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/institutoberea/enrollment-api/internal/models"
	"github.com/institutoberea/enrollment-api/internal/repository"
)

type mockRequestRepo struct {
	requests map[string]models.EnrollmentRequest
	created  *models.EnrollmentRequest
	updates  map[string]models.RequestStatus
	notes    map[string]*string
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.EnrollmentRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.EnrollmentRequest)
	}
	if request.ID == "" {
		request.ID = "new-request"
	}
	m.requests[request.ID] = *request
	m.created = request
	return nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, note *string) error {
	if m.updates == nil {
		m.updates = make(map[string]models.RequestStatus)
		m.notes = make(map[string]*string)
	}
	m.updates[id] = status
	m.notes[id] = note
	return nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.EnrollmentRequest, int, error) {
	var out []models.EnrollmentRequest
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, len(out), nil
}

type mockRosterRepo struct {
	memberships map[string]models.RosterMembership
	created     *models.RosterMembership
	createErr   error
}

func rosterKey(learnerID, sectionID string) string {
	return learnerID + "/" + sectionID
}

func (m *mockRosterRepo) Find(ctx context.Context, learnerID, sectionID string) (*models.RosterMembership, error) {
	if mem, ok := m.memberships[rosterKey(learnerID, sectionID)]; ok {
		return &mem, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterRepo) Create(ctx context.Context, membership *models.RosterMembership) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.memberships == nil {
		m.memberships = make(map[string]models.RosterMembership)
	}
	if membership.ID == "" {
		membership.ID = "new-membership"
	}
	m.memberships[rosterKey(membership.LearnerID, membership.SectionID)] = *membership
	m.created = membership
	return nil
}

type mockSectionFinder struct {
	sections map[string]models.ClassroomSection
}

func (m *mockSectionFinder) FindByID(ctx context.Context, id string) (*models.ClassroomSection, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func newRequestService(requests *mockRequestRepo, roster *mockRosterRepo, sections *mockSectionFinder) *EnrollmentRequestService {
	return NewEnrollmentRequestService(requests, roster, sections, nil, nil, nil, nil, nil)
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	requests := &mockRequestRepo{}
	sections := &mockSectionFinder{sections: map[string]models.ClassroomSection{
		"sec-1": {ID: "sec-1", CourseID: "greek-1"},
	}}
	svc := newRequestService(requests, &mockRosterRepo{}, sections)

	request, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{LearnerID: "learner-1", SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	require.NotNil(t, requests.created)
	assert.Equal(t, "learner-1", requests.created.LearnerID)
}

func TestSubmitUnknownSection(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockRosterRepo{}, &mockSectionFinder{})

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{LearnerID: "learner-1", SectionID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section not found")
}

func TestSubmitValidatesPayload(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockRosterRepo{}, &mockSectionFinder{})

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{LearnerID: "", SectionID: ""})
	require.Error(t, err)
}

func TestApproveCreatesMembershipAndAccepts(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.EnrollmentRequest{
		"req-1": {ID: "req-1", LearnerID: "learner-1", SectionID: "sec-1", Status: models.RequestStatusPending},
	}}
	roster := &mockRosterRepo{}
	svc := newRequestService(requests, roster, &mockSectionFinder{})

	request, membership, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, request.Status)
	require.NotNil(t, membership)
	assert.Equal(t, models.MembershipStatusInProgress, membership.Status)
	assert.Equal(t, "learner-1", membership.LearnerID)
	assert.Equal(t, "sec-1", membership.SectionID)
	assert.Equal(t, models.RequestStatusAccepted, requests.updates["req-1"])
}

func TestApproveIsIdempotentWhenMembershipExists(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.EnrollmentRequest{
		"req-1": {ID: "req-1", LearnerID: "learner-1", SectionID: "sec-1", Status: models.RequestStatusPending},
	}}
	roster := &mockRosterRepo{memberships: map[string]models.RosterMembership{
		rosterKey("learner-1", "sec-1"): {ID: "mem-1", LearnerID: "learner-1", SectionID: "sec-1", Status: models.MembershipStatusInProgress},
	}}
	svc := newRequestService(requests, roster, &mockSectionFinder{})

	request, membership, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, request.Status)
	require.NotNil(t, membership)
	assert.Equal(t, "mem-1", membership.ID, "existing membership must be reused")
	assert.Nil(t, roster.created, "no duplicate membership row may be created")
}

func TestApproveSurvivesDuplicateRace(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.EnrollmentRequest{
		"req-1": {ID: "req-1", LearnerID: "learner-1", SectionID: "sec-1", Status: models.RequestStatusPending},
	}}
	// Find misses but Create hits the unique index: a concurrent approval
	// inserted the row between the two calls.
	roster := &mockRosterRepo{createErr: repository.ErrDuplicateMembership}
	svc := newRequestService(requests, roster, &mockSectionFinder{})

	_, _, err := svc.Approve(context.Background(), "req-1")
	require.Error(t, err, "re-find after the duplicate must surface its own miss in this fixture")

	roster.memberships = map[string]models.RosterMembership{
		rosterKey("learner-1", "sec-1"): {ID: "mem-race", LearnerID: "learner-1", SectionID: "sec-1", Status: models.MembershipStatusInProgress},
	}
	// With Find now primed the Create call is skipped entirely and the
	// winner's row is returned.
	request, membership, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, request.Status)
	assert.Equal(t, "mem-race", membership.ID)
}

func TestApproveUnknownRequest(t *testing.T) {
	svc := newRequestService(&mockRequestRepo{}, &mockRosterRepo{}, &mockSectionFinder{})

	_, _, err := svc.Approve(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrollment request not found")
}

func TestRejectStoresNote(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.EnrollmentRequest{
		"req-1": {ID: "req-1", LearnerID: "learner-1", SectionID: "sec-1", Status: models.RequestStatusPending},
	}}
	svc := newRequestService(requests, &mockRosterRepo{}, &mockSectionFinder{})

	note := "cupo completo"
	request, err := svc.Reject(context.Background(), "req-1", RejectEnrollmentRequest{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, request.Status)
	require.NotNil(t, request.Note)
	assert.Equal(t, note, *request.Note)
	assert.Equal(t, models.RequestStatusRejected, requests.updates["req-1"])
	require.NotNil(t, requests.notes["req-1"])
	assert.Equal(t, note, *requests.notes["req-1"])
}

func TestRejectHasNoRosterSideEffect(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.EnrollmentRequest{
		"req-1": {ID: "req-1", LearnerID: "learner-1", SectionID: "sec-1", Status: models.RequestStatusPending},
	}}
	roster := &mockRosterRepo{}
	svc := newRequestService(requests, roster, &mockSectionFinder{})

	_, err := svc.Reject(context.Background(), "req-1", RejectEnrollmentRequest{})
	require.NoError(t, err)
	assert.Nil(t, roster.created)
	assert.Empty(t, roster.memberships)
}

func TestListPaginationDefaults(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.EnrollmentRequest{
		"req-1": {ID: "req-1"},
		"req-2": {ID: "req-2"},
	}}
	svc := newRequestService(requests, &mockRosterRepo{}, &mockSectionFinder{})

	list, pagination, err := svc.List(context.Background(), models.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}
