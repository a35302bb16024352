package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type attendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	BulkUpsert(ctx context.Context, marks []models.Attendance) error
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) error
	StudentHistory(ctx context.Context, studentID, classID string, limit int) ([]models.AttendanceHistoryRow, error)
	StudentSummary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
}

type rosterReader interface {
	Exists(ctx context.Context, studentID, classID string) (bool, error)
}

// MarkAttendanceRequest records marks for a session's roster.
type MarkAttendanceRequest struct {
	SessionID string           `json:"session_id" validate:"required"`
	Marks     []AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// AttendanceMark is a single student's status inside a roll call.
type AttendanceMark struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT"`
}

// UpdateAttendanceRequest corrects a single mark.
type UpdateAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT"`
}

// AttendanceService records and corrects attendance marks.
type AttendanceService struct {
	repo      attendanceRepository
	sessions  sessionReader
	roster    rosterReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, sessions sessionReader, roster rosterReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, sessions: sessions, roster: roster, metrics: metrics, validator: validate, logger: logger}
}

// Mark records attendance for the session's students. The session must be
// ONGOING and every student must be enrolled in the session's class.
// Re-marking an already marked student overwrites the previous status.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status != models.SessionStatusOngoing {
		return nil, appErrors.Clone(appErrors.ErrSessionEnded, "attendance can only be recorded while the session is ongoing")
	}

	seen := make(map[string]struct{}, len(req.Marks))
	marks := make([]models.Attendance, 0, len(req.Marks))
	for _, mark := range req.Marks {
		if _, dup := seen[mark.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate mark for student %s", mark.StudentID))
		}
		seen[mark.StudentID] = struct{}{}

		enrolled, err := s.roster.Exists(ctx, mark.StudentID, session.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("student %s is not enrolled in this class", mark.StudentID))
		}

		marks = append(marks, models.Attendance{
			StudentID: mark.StudentID,
			ClassID:   session.ClassID,
			SessionID: session.ID,
			Status:    mark.Status,
		})
	}

	if err := s.repo.BulkUpsert(ctx, marks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if s.metrics != nil {
		for _, mark := range marks {
			s.metrics.RecordAttendanceMark(string(mark.Status))
		}
	}

	records, err := s.repo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session attendance")
	}
	return records, nil
}

// Update corrects one mark. The owning session must still be ONGOING.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	attendance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}

	session, err := s.sessions.FindByID(ctx, attendance.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status != models.SessionStatusOngoing {
		return nil, appErrors.Clone(appErrors.ErrSessionEnded, "attendance cannot be changed after the session ended")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance record")
	}

	attendance.Status = req.Status
	return attendance, nil
}

// SessionRecords returns all marks for a session.
func (s *AttendanceService) SessionRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session attendance")
	}
	return records, nil
}

// History returns a student's per-session history, newest first.
func (s *AttendanceService) History(ctx context.Context, studentID, classID string, limit int) ([]models.AttendanceHistoryRow, error) {
	rows, err := s.repo.StudentHistory(ctx, studentID, classID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return rows, nil
}

// Summary aggregates a student's marks into counts and a rate.
func (s *AttendanceService) Summary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error) {
	summary, err := s.repo.StudentSummary(ctx, studentID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance summary")
	}
	return summary, nil
}
