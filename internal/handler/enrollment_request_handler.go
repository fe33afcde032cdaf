package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/institutoberea/enrollment-api/internal/dto"
	"github.com/institutoberea/enrollment-api/internal/models"
	"github.com/institutoberea/enrollment-api/internal/service"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
	"github.com/institutoberea/enrollment-api/pkg/response"
)

type enrollmentWorkflow interface {
	Submit(ctx context.Context, req service.SubmitEnrollmentRequest) (*models.EnrollmentRequest, error)
	Approve(ctx context.Context, id string) (*models.EnrollmentRequest, *models.RosterMembership, error)
	Reject(ctx context.Context, id string, req service.RejectEnrollmentRequest) (*models.EnrollmentRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.EnrollmentRequest, *models.Pagination, error)
}

// EnrollmentRequestHandler exposes the request workflow endpoints.
type EnrollmentRequestHandler struct {
	workflow enrollmentWorkflow
}

// NewEnrollmentRequestHandler constructs EnrollmentRequestHandler.
func NewEnrollmentRequestHandler(workflow enrollmentWorkflow) *EnrollmentRequestHandler {
	return &EnrollmentRequestHandler{workflow: workflow}
}

// List godoc
// @Summary List enrollment requests
// @Tags Enrollment Requests
// @Produce json
// @Param learnerId query string false "Filter by learner"
// @Param sectionId query string false "Filter by section"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [get]
func (h *EnrollmentRequestHandler) List(c *gin.Context) {
	var filter models.RequestFilter
	filter.LearnerID = c.Query("learnerId")
	filter.SectionID = c.Query("sectionId")
	filter.Status = models.RequestStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	requests, pagination, err := h.workflow.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Create godoc
// @Summary Submit an enrollment request
// @Tags Enrollment Requests
// @Accept json
// @Produce json
// @Param payload body service.SubmitEnrollmentRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-requests [post]
func (h *EnrollmentRequestHandler) Create(c *gin.Context) {
	var req service.SubmitEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.workflow.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve godoc
// @Summary Approve an enrollment request
// @Tags Enrollment Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/approve [post]
func (h *EnrollmentRequestHandler) Approve(c *gin.Context) {
	request, membership, err := h.workflow.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ApprovalResponse{Request: request, Membership: membership}, nil)
}

// Reject godoc
// @Summary Reject an enrollment request
// @Tags Enrollment Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RejectEnrollmentRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/reject [post]
func (h *EnrollmentRequestHandler) Reject(c *gin.Context) {
	var req service.RejectEnrollmentRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	request, err := h.workflow.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
