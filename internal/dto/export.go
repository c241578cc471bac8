package dto

import "time"

// ExportFormat selects the artifact type for a timetable export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportRequest enqueues a render of the active timetable.
type ExportRequest struct {
	Format ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobStatus reports the state of a queued export.
type ExportJobStatus struct {
	JobID       string     `json:"job_id"`
	Format      ExportFormat `json:"format"`
	Status      string     `json:"status"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
