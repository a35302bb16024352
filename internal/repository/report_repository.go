package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schooldesk/attendance-api/internal/models"
)

// ReportRepository tracks asynchronous report export jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists a new job in PENDING state.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.ReportJobPending
	}
	const query = `INSERT INTO report_jobs (id, requested_by, class_id, date_from, date_to, format, status, created_at, updated_at)
        VALUES (:id, :requested_by, :class_id, :date_from, :date_to, :format, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns a job by its ID.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, requested_by, class_id, date_from, date_to, format, status,
        file_path, error_text, created_at, updated_at
        FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByRequester returns the most recent jobs requested by a user.
func (r *ReportRepository) ListByRequester(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, requested_by, class_id, date_from, date_to, format, status,
        file_path, error_text, created_at, updated_at
        FROM report_jobs WHERE requested_by = $1
        ORDER BY created_at DESC LIMIT %d`, limit)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunning transitions a job to RUNNING.
func (r *ReportRepository) MarkRunning(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.ReportJobRunning, nil, nil)
}

// MarkCompleted transitions a job to COMPLETED with the produced file path.
func (r *ReportRepository) MarkCompleted(ctx context.Context, id, filePath string) error {
	return r.setStatus(ctx, id, models.ReportJobCompleted, &filePath, nil)
}

// MarkFailed transitions a job to FAILED with the failure reason.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.setStatus(ctx, id, models.ReportJobFailed, nil, &reason)
}

func (r *ReportRepository) setStatus(ctx context.Context, id string, status models.ReportJobStatus, filePath, errorText *string) error {
	const query = `UPDATE report_jobs SET status = $1,
        file_path = COALESCE($2, file_path),
        error_text = COALESCE($3, error_text),
        updated_at = $4
        WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, status, filePath, errorText, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update report job %s: %w", id, err)
	}
	return nil
}

// DeleteOlderThan removes completed or failed jobs past the retention window.
func (r *ReportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM report_jobs WHERE updated_at < $1 AND status IN ($2, $3)`
	res, err := r.db.ExecContext(ctx, query, cutoff, models.ReportJobCompleted, models.ReportJobFailed)
	if err != nil {
		return 0, fmt.Errorf("cleanup report jobs: %w", err)
	}
	return res.RowsAffected()
}
