package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/institutoberea/enrollment-api/internal/models"
	"github.com/institutoberea/enrollment-api/internal/service"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
)

type fakeWorkflow struct {
	submitResp  *models.EnrollmentRequest
	submitErr   error
	approveReq  *models.EnrollmentRequest
	approveMem  *models.RosterMembership
	approveErr  error
	rejectResp  *models.EnrollmentRequest
	rejectErr   error
	lastID      string
	lastNote    *string
	lastSubmit  service.SubmitEnrollmentRequest
	listFilter  models.RequestFilter
}

func (f *fakeWorkflow) Submit(_ context.Context, req service.SubmitEnrollmentRequest) (*models.EnrollmentRequest, error) {
	f.lastSubmit = req
	return f.submitResp, f.submitErr
}

func (f *fakeWorkflow) Approve(_ context.Context, id string) (*models.EnrollmentRequest, *models.RosterMembership, error) {
	f.lastID = id
	return f.approveReq, f.approveMem, f.approveErr
}

func (f *fakeWorkflow) Reject(_ context.Context, id string, req service.RejectEnrollmentRequest) (*models.EnrollmentRequest, error) {
	f.lastID = id
	f.lastNote = req.Note
	return f.rejectResp, f.rejectErr
}

func (f *fakeWorkflow) List(_ context.Context, filter models.RequestFilter) ([]models.EnrollmentRequest, *models.Pagination, error) {
	f.listFilter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func TestEnrollmentRequestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &fakeWorkflow{submitResp: &models.EnrollmentRequest{ID: "req-1", Status: models.RequestStatusPending}}
	handler := NewEnrollmentRequestHandler(workflow)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"learner_id":"learner-1","section_id":"sec-1"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollment-requests", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "learner-1", workflow.lastSubmit.LearnerID)
	assert.Equal(t, "sec-1", workflow.lastSubmit.SectionID)
}

func TestEnrollmentRequestHandlerCreateBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentRequestHandler(&fakeWorkflow{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollment-requests", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentRequestHandlerApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &fakeWorkflow{
		approveReq: &models.EnrollmentRequest{ID: "req-1", Status: models.RequestStatusAccepted},
		approveMem: &models.RosterMembership{ID: "mem-1", Status: models.MembershipStatusInProgress},
	}
	handler := NewEnrollmentRequestHandler(workflow)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollment-requests/req-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", workflow.lastID)

	var envelope struct {
		Data struct {
			Request    models.EnrollmentRequest `json:"request"`
			Membership models.RosterMembership  `json:"membership"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.RequestStatusAccepted, envelope.Data.Request.Status)
	assert.Equal(t, "mem-1", envelope.Data.Membership.ID)
}

func TestEnrollmentRequestHandlerApproveNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentRequestHandler(&fakeWorkflow{
		approveErr: appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollment-requests/missing/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Approve(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollmentRequestHandlerRejectWithNote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &fakeWorkflow{rejectResp: &models.EnrollmentRequest{ID: "req-1", Status: models.RequestStatusRejected}}
	handler := NewEnrollmentRequestHandler(workflow)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollment-requests/req-1/reject", strings.NewReader(`{"note":"cupo completo"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, workflow.lastNote)
	assert.Equal(t, "cupo completo", *workflow.lastNote)
}

func TestEnrollmentRequestHandlerRejectWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &fakeWorkflow{rejectResp: &models.EnrollmentRequest{ID: "req-1", Status: models.RequestStatusRejected}}
	handler := NewEnrollmentRequestHandler(workflow)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollment-requests/req-1/reject", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, workflow.lastNote)
}

func TestEnrollmentRequestHandlerListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	workflow := &fakeWorkflow{}
	handler := NewEnrollmentRequestHandler(workflow)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollment-requests?learnerId=learner-1&status=pending&page=2&limit=5", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "learner-1", workflow.listFilter.LearnerID)
	assert.Equal(t, models.RequestStatus("PENDING"), workflow.listFilter.Status)
	assert.Equal(t, 2, workflow.listFilter.Page)
	assert.Equal(t, 5, workflow.listFilter.PageSize)
}
