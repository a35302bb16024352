package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
	"github.com/schooldesk/attendance-api/pkg/export"
	"github.com/schooldesk/attendance-api/pkg/jobs"
	"github.com/schooldesk/attendance-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByRequester(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type reportSessionLister interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
}

type reportAttendanceReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
}

// CreateReportRequest queues an attendance export for a class and
// date range.
type CreateReportRequest struct {
	ClassID  string `json:"class_id" validate:"required"`
	DateFrom string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"required,datetime=2006-01-02"`
	Format   string `json:"format" validate:"required,oneof=csv pdf xlsx"`
}

// ReportJobResponse is the queued job plus a download token once the
// job completes.
type ReportJobResponse struct {
	models.ReportJob
	DownloadURL string `json:"download_url,omitempty"`
}

// ReportService runs attendance exports on a background worker pool and
// serves the results through signed URLs.
type ReportService struct {
	repo       reportRepository
	sessions   reportSessionLister
	attendance reportAttendanceReader
	classes    classReader
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	metrics    *MetricsService
	queue      *jobs.Queue
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	xlsx       *export.XLSXExporter
	validator  *validator.Validate
	logger     *zap.Logger
}

// ReportQueueConfig sizes the background worker pool.
type ReportQueueConfig struct {
	Concurrency int
	Retries     int
}

// NewReportService constructs a ReportService and its job queue. Call
// Start before queueing reports and Stop on shutdown.
func NewReportService(repo reportRepository, sessions reportSessionLister, attendance reportAttendanceReader, classes classReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ReportQueueConfig, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		repo:       repo,
		sessions:   sessions,
		attendance: attendance,
		classes:    classes,
		store:      store,
		signer:     signer,
		metrics:    metrics,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		xlsx:       export.NewXLSXExporter(),
		validator:  validate,
		logger:     logger,
	}
	s.queue = jobs.NewQueue("reports", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Concurrency,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Create validates the request and queues the export.
func (s *ReportService) Create(ctx context.Context, requestedBy string, req CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	from, err := time.Parse("2006-01-02", req.DateFrom)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date_from")
	}
	to, err := time.Parse("2006-01-02", req.DateTo)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date_to")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not precede date_from")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	job := &models.ReportJob{
		RequestedBy: requestedBy,
		ClassID:     req.ClassID,
		DateFrom:    from,
		DateTo:      to,
		Format:      models.ReportFormat(req.Format),
		Status:      models.ReportJobPending,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "attendance_report", Payload: job.ID}); err != nil {
		reason := "worker pool unavailable"
		if markErr := s.repo.MarkFailed(ctx, job.ID, reason); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report job")
	}

	return job, nil
}

// Get returns the job, adding a signed download token when completed.
func (s *ReportService) Get(ctx context.Context, id, requesterID string, isAdmin bool) (*ReportJobResponse, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if !isAdmin && job.RequestedBy != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}

	resp := &ReportJobResponse{ReportJob: *job}
	if job.Status == models.ReportJobCompleted && job.FilePath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
		}
		resp.DownloadURL = "/api/v1/reports/download/" + token
	}
	return resp, nil
}

// ListMine returns the requester's recent jobs.
func (s *ReportService) ListMine(ctx context.Context, requesterID string, limit int) ([]models.ReportJob, error) {
	jobsList, err := s.repo.ListByRequester(ctx, requesterID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return jobsList, nil
}

// ResolveDownload validates a signed token and returns the stored file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (string, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportJobCompleted || job.FilePath == nil || *job.FilePath != relPath {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "report file not available")
	}
	return s.store.Path(relPath), relPath, nil
}

func (s *ReportService) handleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected report payload type %T", job.Payload)
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}
	if err := s.repo.MarkRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark report job running: %w", err)
	}

	filename, err := s.render(ctx, record)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		if s.metrics != nil {
			s.metrics.RecordReportJob(string(models.ReportJobFailed))
		}
		return err
	}

	if err := s.repo.MarkCompleted(ctx, jobID, filename); err != nil {
		return fmt.Errorf("mark report job completed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordReportJob(string(models.ReportJobCompleted))
	}
	s.logger.Info("report job completed",
		zap.String("job_id", jobID),
		zap.String("file", filename))
	return nil
}

func (s *ReportService) render(ctx context.Context, job *models.ReportJob) (string, error) {
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return "", err
	}

	title := fmt.Sprintf("Attendance %s to %s",
		job.DateFrom.Format("2006-01-02"), job.DateTo.Format("2006-01-02"))

	var payload []byte
	switch job.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case models.ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	default:
		return "", fmt.Errorf("unsupported report format %q", job.Format)
	}
	if err != nil {
		return "", fmt.Errorf("render %s report: %w", job.Format, err)
	}

	filename := fmt.Sprintf("attendance_%s_%s.%s", job.ClassID, job.ID, job.Format)
	if _, err := s.store.Save(filename, payload); err != nil {
		return "", fmt.Errorf("store report file: %w", err)
	}
	return filename, nil
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	filter := models.SessionFilter{
		ClassID:  job.ClassID,
		DateFrom: &job.DateFrom,
		DateTo:   &job.DateTo,
		Page:     1,
		PageSize: 100,
	}
	var sessions []models.SessionDetail
	for {
		page, total, err := s.sessions.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, page...)
		if len(page) == 0 || len(sessions) >= total {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"session_date", "student", "status"},
	}
	for _, session := range sessions {
		records, err := s.attendance.ListBySession(ctx, session.ID)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("list attendance for session %s: %w", session.ID, err)
		}
		for _, record := range records {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"session_date": session.SessionDate.Format("2006-01-02"),
				"student":      record.StudentName,
				"status":       string(record.Status),
			})
		}
	}
	if len(dataset.Rows) == 0 {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"session_date": "-",
			"student":      "no records in range",
			"status":       "-",
		})
	}
	return dataset, nil
}
