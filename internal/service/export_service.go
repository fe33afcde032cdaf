package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/institutoberea/enrollment-api/internal/models"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
	"github.com/institutoberea/enrollment-api/pkg/export"
	"github.com/institutoberea/enrollment-api/pkg/jobs"
	"github.com/institutoberea/enrollment-api/pkg/storage"
)

type rosterDetailReader interface {
	ListConfirmedDetail(ctx context.Context, sectionID string) ([]models.RosterEntryDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes roster export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders a section's confirmed roster into downloadable CSV
// or PDF files. Generation runs on a background queue; job progress is
// tracked in memory and results are fetched through signed tokens.
type ExportService struct {
	roster   rosterDetailReader
	sections sectionFinder
	storage  fileStorage
	signer   *storage.SignedURLSigner
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportConfig

	mu       sync.RWMutex
	jobsByID map[string]*models.ExportJob
}

// NewExportService constructs an ExportService.
func NewExportService(roster rosterDetailReader, sections sectionFinder, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		roster:   roster,
		sections: sections,
		storage:  store,
		signer:   signer,
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
		cfg:      cfg,
		jobsByID: make(map[string]*models.ExportJob),
	}
}

// NewJob validates the request and registers a queued export job. The caller
// is responsible for enqueueing it on the worker queue.
func (s *ExportService) NewJob(ctx context.Context, sectionID string, format models.ExportFormat) (*models.ExportJob, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if _, err := s.sections.FindByID(ctx, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		SectionID:   sectionID,
		Format:      format,
		Status:      models.ExportJobStatusQueued,
		RequestedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobsByID[job.ID] = job
	s.mu.Unlock()
	return job, nil
}

// Job returns a snapshot of the job's current state.
func (s *ExportService) Job(id string) (*models.ExportJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobsByID[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// HandleJob processes one queued export; it satisfies jobs.Handler with the
// export job id as payload.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected export job payload %T", job.Payload)
	}

	s.mu.RLock()
	tracked, found := s.jobsByID[id]
	s.mu.RUnlock()
	if !found {
		return fmt.Errorf("export job %s not tracked", id)
	}

	if err := s.generate(ctx, tracked); err != nil {
		s.mu.Lock()
		tracked.Status = models.ExportJobStatusFailed
		tracked.Error = err.Error()
		s.mu.Unlock()
		return err
	}
	return nil
}

// Open resolves a signed token to the stored file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	contentType := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		contentType = "application/pdf"
	}
	return file, contentType, nil
}

// Cleanup removes expired export files from disk.
func (s *ExportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "count", len(deleted))
	}
}

func (s *ExportService) generate(ctx context.Context, job *models.ExportJob) error {
	entries, err := s.roster.ListConfirmedDetail(ctx, job.SectionID)
	if err != nil {
		return err
	}

	dataset := export.Dataset{
		Headers: []string{"Learner", "Status", "Joined"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Learner": entry.LearnerName,
			"Status":  string(entry.Status),
			"Joined":  entry.JoinedAt.Format("2006-01-02"),
		})
	}

	var payload []byte
	var ext string
	switch job.Format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Section roster %s", job.SectionID))
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("roster_%s_%s.%s", job.SectionID, job.ID, ext)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.mu.Lock()
	job.Status = models.ExportJobStatusCompleted
	job.DownloadURL = fmt.Sprintf("%s/roster-exports/download/%s", prefix, token)
	job.ExpiresAt = &expiresAt
	s.mu.Unlock()
	return nil
}
