package models

import "time"

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// Valid returns true for a supported format.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportFormatCSV, ReportFormatPDF, ReportFormatXLSX:
		return true
	default:
		return false
	}
}

// ReportJobStatus is the lifecycle state of a report job.
type ReportJobStatus string

const (
	ReportJobPending   ReportJobStatus = "PENDING"
	ReportJobRunning   ReportJobStatus = "RUNNING"
	ReportJobCompleted ReportJobStatus = "COMPLETED"
	ReportJobFailed    ReportJobStatus = "FAILED"
)

// ReportJob tracks an asynchronous attendance export.
type ReportJob struct {
	ID          string          `db:"id" json:"id"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	ClassID     string          `db:"class_id" json:"class_id"`
	DateFrom    time.Time       `db:"date_from" json:"date_from"`
	DateTo      time.Time       `db:"date_to" json:"date_to"`
	Format      ReportFormat    `db:"format" json:"format"`
	Status      ReportJobStatus `db:"status" json:"status"`
	FilePath    *string         `db:"file_path" json:"file_path,omitempty"`
	ErrorText   *string         `db:"error_text" json:"error_text,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
