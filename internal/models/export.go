package models

import "time"

// ExportFormat enumerates supported roster export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "CSV"
	ExportFormatPDF ExportFormat = "PDF"
)

// ExportJobStatus tracks the lifecycle of an asynchronous export job.
type ExportJobStatus string

const (
	ExportJobStatusQueued    ExportJobStatus = "QUEUED"
	ExportJobStatusCompleted ExportJobStatus = "COMPLETED"
	ExportJobStatusFailed    ExportJobStatus = "FAILED"
)

// ExportJob describes one roster export request and its outcome.
type ExportJob struct {
	ID          string          `json:"id"`
	SectionID   string          `json:"section_id"`
	Format      ExportFormat    `json:"format"`
	Status      ExportJobStatus `json:"status"`
	DownloadURL string          `json:"download_url,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
}
