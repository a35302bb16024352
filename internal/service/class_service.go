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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ExistsByOffering(ctx context.Context, class *models.Class, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	HasEnrollments(ctx context.Context, id string) (bool, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// classEventPublisher receives change events for the realtime feed.
type classEventPublisher interface {
	PublishClassEvent(event models.ClassEvent)
}

// ClassRequest is the create/update payload for class offerings.
type ClassRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=2,max=120"`
	YearLevel int    `json:"year_level" validate:"required,min=1,max=6"`
	Block     string `json:"block" validate:"required,oneof=A B C D"`
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// ClassService manages class offerings and emits change events.
type ClassService struct {
	repo      classRepository
	teachers  teacherReader
	courses   courseReader
	publisher classEventPublisher
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, teachers teacherReader, courses courseReader, publisher classEventPublisher, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, teachers: teachers, courses: courses, publisher: publisher, cache: cache, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class offering and broadcasts a created event.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.Class, error) {
	class, err := s.buildClass(ctx, req)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByOffering(ctx, class, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class offering")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an identical class offering already exists")
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.emit(models.ClassEventCreated, class.ID, class)
	s.invalidateDashboards(ctx)
	return class, nil
}

// Update amends a class offering and broadcasts an updated event.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.Class, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	class, err := s.buildClass(ctx, req)
	if err != nil {
		return nil, err
	}
	class.ID = id

	exists, err := s.repo.ExistsByOffering(ctx, class, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class offering")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an identical class offering already exists")
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(models.ClassEventUpdated, id, updated)
	s.invalidateDashboards(ctx)
	return updated, nil
}

// Delete removes a class that has no enrollments and broadcasts a
// deleted event.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	enrolled, err := s.repo.HasEnrollments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class enrollments")
	}
	if enrolled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has enrolled students")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}

	s.emit(models.ClassEventDeleted, id, nil)
	s.invalidateDashboards(ctx)
	return nil
}

func (s *ClassService) buildClass(ctx context.Context, req ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return &models.Class{
		TeacherID: req.TeacherID,
		CourseID:  req.CourseID,
		Name:      req.Name,
		YearLevel: req.YearLevel,
		Block:     models.Block(req.Block),
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, nil
}

func (s *ClassService) emit(action, classID string, class *models.Class) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishClassEvent(models.ClassEvent{
		Action:    action,
		ClassID:   classID,
		Class:     class,
		EmittedAt: time.Now().UTC(),
	})
}

func (s *ClassService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
