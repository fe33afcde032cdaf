package handler

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/institutoberea/enrollment-api/internal/models"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
	"github.com/institutoberea/enrollment-api/pkg/jobs"
	"github.com/institutoberea/enrollment-api/pkg/response"
)

type exportManager interface {
	NewJob(ctx context.Context, sectionID string, format models.ExportFormat) (*models.ExportJob, error)
	Job(id string) (*models.ExportJob, bool)
	Open(token string) (*os.File, string, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ExportHandler exposes roster export endpoints.
type ExportHandler struct {
	exports exportManager
	queue   jobEnqueuer
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportManager, queue jobEnqueuer) *ExportHandler {
	return &ExportHandler{exports: exports, queue: queue}
}

type createExportRequest struct {
	Format string `json:"format"`
}

// Create godoc
// @Summary Queue a roster export for a section
// @Tags Roster Exports
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body createExportRequest false "Export format, csv or pdf"
// @Success 202 {object} response.Envelope
// @Router /sections/{id}/roster-exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req createExportRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	format := models.ExportFormat(strings.ToUpper(req.Format))
	if format == "" {
		format = models.ExportFormatCSV
	}

	job, err := h.exports.NewJob(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "roster-export", Payload: job.ID}); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export"))
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Get roster export job status
// @Tags Roster Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /roster-exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, ok := h.exports.Job(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export job not found"))
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished roster export
// @Tags Roster Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /roster-exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, contentType, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+info.Name())
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
