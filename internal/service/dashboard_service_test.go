package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
)

type mockDashboardRepo struct {
	classSummaries   []models.ClassAttendanceSummary
	studentSummaries []models.StudentAttendanceSummary
	low              []models.StudentAttendanceSummary
	lowThreshold     float64
}

func (m *mockDashboardRepo) ClassSummaries(ctx context.Context, teacherID string) ([]models.ClassAttendanceSummary, error) {
	if teacherID != "" {
		var scoped []models.ClassAttendanceSummary
		for _, c := range m.classSummaries {
			if c.TeacherID == teacherID {
				scoped = append(scoped, c)
			}
		}
		return scoped, nil
	}
	return m.classSummaries, nil
}

func (m *mockDashboardRepo) StudentSummaries(ctx context.Context, studentID, teacherID string) ([]models.StudentAttendanceSummary, error) {
	return m.studentSummaries, nil
}

func (m *mockDashboardRepo) LowAttendance(ctx context.Context, threshold float64, teacherID string) ([]models.StudentAttendanceSummary, error) {
	m.lowThreshold = threshold
	return m.low, nil
}

func (m *mockDashboardRepo) Totals(ctx context.Context) (int, int, int, error) {
	return 120, 9, 14, nil
}

func (m *mockDashboardRepo) OverallRate(ctx context.Context) (float64, error) {
	return 87.5, nil
}

func (m *mockDashboardRepo) RateByBlock(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"A": 90, "B": 85}, nil
}

func (m *mockDashboardRepo) RateByDayOfWeek(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"1": 92, "5": 78}, nil
}

type mockSummaryReader struct{}

func (m *mockSummaryReader) StudentSummary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{Present: 18, Absent: 2, Total: 20, Percent: 90}, nil
}

func newDashboardFixture() (*mockDashboardRepo, *DashboardService) {
	repo := &mockDashboardRepo{
		classSummaries: []models.ClassAttendanceSummary{
			{ClassID: "c1", ClassName: "Algebra I", TeacherID: "t1", Block: models.BlockA, Rate: 90},
			{ClassID: "c2", ClassName: "Biology", TeacherID: "t2", Block: models.BlockB, Rate: 70},
		},
		studentSummaries: []models.StudentAttendanceSummary{
			{StudentID: "s1", ClassID: "c1", ClassName: "Algebra I", Rate: 90},
		},
		low: []models.StudentAttendanceSummary{
			{StudentID: "s9", ClassID: "c2", Rate: 55},
		},
	}
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewDashboardService(repo, &mockSummaryReader{}, cache, 75, time.Minute, zap.NewNop())
	return repo, svc
}

func TestDashboardServiceAdmin(t *testing.T) {
	repo, svc := newDashboardFixture()

	dashboard, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 120, dashboard.TotalStudents)
	assert.Equal(t, 9, dashboard.TotalTeachers)
	assert.Equal(t, 14, dashboard.TotalClasses)
	assert.InDelta(t, 87.5, dashboard.OverallRate, 0.01)
	assert.Len(t, dashboard.Classes, 2)
	assert.Len(t, dashboard.LowAttendance, 1)
	assert.InDelta(t, 90, dashboard.RateByBlock["A"], 0.01)
	assert.InDelta(t, 78, dashboard.RateByDayOfWeek["5"], 0.01)
	assert.InDelta(t, 75, repo.lowThreshold, 0.01)
}

func TestDashboardServiceTeacherScoped(t *testing.T) {
	_, svc := newDashboardFixture()

	dashboard, cached, err := svc.Teacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, dashboard.Classes, 1)
	assert.Equal(t, "c1", dashboard.Classes[0].ClassID)
}

func TestDashboardServiceStudent(t *testing.T) {
	_, svc := newDashboardFixture()

	dashboard, cached, err := svc.Student(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, dashboard.Classes, 1)
	assert.Equal(t, 20, dashboard.Overall.Total)
	assert.InDelta(t, 90, dashboard.Overall.Percent, 0.01)
}
