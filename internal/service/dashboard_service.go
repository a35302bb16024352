package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type dashboardRepository interface {
	ClassSummaries(ctx context.Context, teacherID string) ([]models.ClassAttendanceSummary, error)
	StudentSummaries(ctx context.Context, studentID, teacherID string) ([]models.StudentAttendanceSummary, error)
	LowAttendance(ctx context.Context, threshold float64, teacherID string) ([]models.StudentAttendanceSummary, error)
	Totals(ctx context.Context) (students, teachers, classes int, err error)
	OverallRate(ctx context.Context) (float64, error)
	RateByBlock(ctx context.Context) (map[string]float64, error)
	RateByDayOfWeek(ctx context.Context) (map[string]float64, error)
}

type attendanceSummaryReader interface {
	StudentSummary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error)
}

// DashboardService assembles role-scoped dashboards from the
// aggregation views, with a short-lived cache in front.
type DashboardService struct {
	repo       dashboardRepository
	attendance attendanceSummaryReader
	cache      *CacheService
	threshold  float64
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, attendance attendanceSummaryReader, cache *CacheService, threshold float64, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if threshold <= 0 {
		threshold = 75
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, attendance: attendance, cache: cache, threshold: threshold, cacheTTL: cacheTTL, logger: logger}
}

// Admin returns the school-wide dashboard. Returns true when served
// from cache.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	const key = "dashboard:admin"
	var cached models.AdminDashboard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	students, teachers, classes, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard totals")
	}
	overall, err := s.repo.OverallRate(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overall rate")
	}
	classSummaries, err := s.repo.ClassSummaries(ctx, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class summaries")
	}
	low, err := s.repo.LowAttendance(ctx, s.threshold, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load low attendance list")
	}
	byBlock, err := s.repo.RateByBlock(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load block rates")
	}
	byDay, err := s.repo.RateByDayOfWeek(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekday rates")
	}

	dashboard := &models.AdminDashboard{
		TotalStudents:   students,
		TotalTeachers:   teachers,
		TotalClasses:    classes,
		OverallRate:     overall,
		Classes:         classSummaries,
		LowAttendance:   low,
		RateByBlock:     byBlock,
		RateByDayOfWeek: byDay,
	}

	if err := s.cache.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache admin dashboard", zap.Error(err))
	}
	return dashboard, false, nil
}

// Teacher returns the dashboard scoped to one teacher's classes.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*models.TeacherDashboard, bool, error) {
	key := "dashboard:teacher:" + teacherID
	var cached models.TeacherDashboard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	classSummaries, err := s.repo.ClassSummaries(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class summaries")
	}
	low, err := s.repo.LowAttendance(ctx, s.threshold, teacherID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load low attendance list")
	}

	dashboard := &models.TeacherDashboard{
		TeacherID:     teacherID,
		Classes:       classSummaries,
		LowAttendance: low,
	}

	if err := s.cache.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache teacher dashboard", zap.Error(err))
	}
	return dashboard, false, nil
}

// Student returns the dashboard scoped to one student.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, bool, error) {
	key := "dashboard:student:" + studentID
	var cached models.StudentDashboard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	summaries, err := s.repo.StudentSummaries(ctx, studentID, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student summaries")
	}
	overall, err := s.attendance.StudentSummary(ctx, studentID, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overall summary")
	}

	dashboard := &models.StudentDashboard{
		StudentID: studentID,
		Classes:   summaries,
		Overall:   *overall,
	}

	if err := s.cache.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache student dashboard", zap.Error(err))
	}
	return dashboard, false, nil
}
