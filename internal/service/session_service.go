package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error)
	Create(ctx context.Context, session *models.AttendanceSession) error
	End(ctx context.Context, id string, endedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type teacherProfileReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

// StartSessionRequest opens a session for a class on a given date.
// Date defaults to today when omitted.
type StartSessionRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Date    string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// SessionService drives the attendance session lifecycle.
type SessionService struct {
	repo      sessionRepository
	classes   classReader
	teachers  teacherProfileReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(repo sessionRepository, classes classReader, teachers teacherProfileReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, classes: classes, teachers: teachers, metrics: metrics, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns sessions with pagination metadata.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.AttendanceSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Start opens an ONGOING session for the class. Only the class's owning
// teacher may start it, and at most one session exists per class and date.
func (s *SessionService) Start(ctx context.Context, actor *models.JWTClaims, req StartSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if err := s.authorizeClassOwner(ctx, actor, class); err != nil {
		return nil, err
	}

	date := s.now().Truncate(24 * time.Hour)
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date")
		}
	}

	if existing, err := s.repo.FindByClassAndDate(ctx, req.ClassID, date); err == nil {
		if existing.Status == models.SessionStatusOngoing {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an ongoing session already exists for this class today")
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "a session was already held for this class on this date")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing session")
	}

	session := &models.AttendanceSession{
		ClassID:     req.ClassID,
		SessionDate: date,
		Status:      models.SessionStatusOngoing,
		StartedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session")
	}

	if s.metrics != nil {
		s.metrics.RecordSessionStart()
	}
	return session, nil
}

// End closes an ONGOING session. Ending an already ended session is
// rejected with SESSION_ENDED.
func (s *SessionService) End(ctx context.Context, actor *models.JWTClaims, id string) (*models.AttendanceSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, session.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.authorizeClassOwner(ctx, actor, class); err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusEnded {
		return nil, appErrors.Clone(appErrors.ErrSessionEnded, "")
	}

	endedAt := s.now()
	ended, err := s.repo.End(ctx, id, endedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end session")
	}
	if !ended {
		return nil, appErrors.Clone(appErrors.ErrSessionEnded, "")
	}

	session.Status = models.SessionStatusEnded
	session.EndedAt = &endedAt
	return session, nil
}

// Delete removes a mistakenly opened session; its marks go with it.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

// authorizeClassOwner allows admins through and requires teachers to own
// the class.
func (s *SessionService) authorizeClassOwner(ctx context.Context, actor *models.JWTClaims, class *models.Class) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers manage sessions")
	}
	teacher, err := s.teachers.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "teacher profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}
	if teacher.ID != class.TeacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}
	return nil
}
