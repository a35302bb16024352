package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/schooldesk/attendance-api/internal/middleware"
	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/service"
)

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, s := range f.students {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error { return nil }

func (f *fakeStudentRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeHistoryRepo struct {
	rows map[string][]models.AttendanceHistoryRow
}

func (f *fakeHistoryRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeHistoryRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeHistoryRepo) BulkUpsert(ctx context.Context, marks []models.Attendance) error {
	return nil
}

func (f *fakeHistoryRepo) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) error {
	return nil
}

func (f *fakeHistoryRepo) StudentHistory(ctx context.Context, studentID, classID string, limit int) ([]models.AttendanceHistoryRow, error) {
	return f.rows[studentID], nil
}

func (f *fakeHistoryRepo) StudentSummary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{}, nil
}

type fakeHistorySessionReader struct{}

func (fakeHistorySessionReader) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	return nil, sql.ErrNoRows
}

type fakeHistoryRosterReader struct{}

func (fakeHistoryRosterReader) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	return false, nil
}

func newStudentHandler(students *fakeStudentRepo, history *fakeHistoryRepo) *StudentHandler {
	studentSvc := service.NewStudentService(students, nil, nil)
	attendanceSvc := service.NewAttendanceService(history, fakeHistorySessionReader{}, fakeHistoryRosterReader{}, nil, nil, nil)
	return NewStudentHandler(studentSvc, attendanceSvc)
}

func historyFixture() (*fakeStudentRepo, *fakeHistoryRepo) {
	students := &fakeStudentRepo{students: map[string]*models.Student{
		"st-self":  {ID: "st-self", UserID: "u-self", FullName: "Dana Reyes"},
		"st-other": {ID: "st-other", UserID: "u-other", FullName: "Chris Tan"},
	}}
	history := &fakeHistoryRepo{rows: map[string][]models.AttendanceHistoryRow{
		"st-other": {{SessionID: "s1", ClassID: "c1", ClassName: "Algebra I", Status: models.AttendanceStatusAbsent}},
	}}
	return students, history
}

func TestStudentHistoryOwnRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	students, history := historyFixture()
	history.rows["st-self"] = []models.AttendanceHistoryRow{
		{SessionID: "s2", ClassID: "c1", ClassName: "Algebra I", Status: models.AttendanceStatusPresent},
	}
	handler := newStudentHandler(students, history)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/st-self/attendance", nil)
	c.Params = gin.Params{{Key: "id", Value: "st-self"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-self", Role: models.RoleStudent})

	handler.History(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "s2")
}

func TestStudentHistoryOtherStudentForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	students, history := historyFixture()
	handler := newStudentHandler(students, history)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/st-other/attendance", nil)
	c.Params = gin.Params{{Key: "id", Value: "st-other"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-self", Role: models.RoleStudent})

	handler.History(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var envelope errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "FORBIDDEN", envelope.Error.Code)
	assert.NotContains(t, rec.Body.String(), "ABSENT")
}

func TestStudentSummaryOtherStudentForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	students, history := historyFixture()
	handler := newStudentHandler(students, history)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/st-other/attendance/summary", nil)
	c.Params = gin.Params{{Key: "id", Value: "st-other"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-self", Role: models.RoleStudent})

	handler.Summary(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStudentGetAsTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	students, history := historyFixture()
	handler := newStudentHandler(students, history)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/st-other", nil)
	c.Params = gin.Params{{Key: "id", Value: "st-other"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-teacher", Role: models.RoleTeacher})

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chris Tan")
}

func TestStudentHistoryWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	students, history := historyFixture()
	handler := newStudentHandler(students, history)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/st-other/attendance", nil)
	c.Params = gin.Params{{Key: "id", Value: "st-other"}}

	handler.History(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
