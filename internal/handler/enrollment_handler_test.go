package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/service"
)

type fakeEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	block       models.Block
	exists      bool
}

func (f *fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return f.enrollments[id], nil
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, nil
	}
	return &models.EnrollmentDetail{Enrollment: *e, StudentName: "Sam Okafor", ClassName: "Algebra I", Block: models.BlockA}, nil
}

func (f *fakeEnrollmentRepo) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	return f.exists, nil
}

func (f *fakeEnrollmentRepo) StudentBlock(ctx context.Context, studentID string) (models.Block, error) {
	return f.block, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if f.enrollments == nil {
		f.enrollments = map[string]*models.Enrollment{}
	}
	f.enrollments[enrollment.ID] = enrollment
	return nil
}

func (f *fakeEnrollmentRepo) Delete(ctx context.Context, id string) error {
	delete(f.enrollments, id)
	return nil
}

func (f *fakeEnrollmentRepo) ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type fakeStudentReader struct{}

func (f *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, FullName: "Sam Okafor"}, nil
}

type fakeClassReader struct {
	block models.Block
}

func (f *fakeClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return &models.Class{ID: id, Name: "Algebra I", Block: f.block}, nil
}

func newEnrollmentHandler(repo *fakeEnrollmentRepo, classBlock models.Block) *EnrollmentHandler {
	svc := service.NewEnrollmentService(repo, &fakeStudentReader{}, &fakeClassReader{block: classBlock}, nil, nil)
	return NewEnrollmentHandler(svc)
}

func TestEnrollmentHandlerEnrollSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeEnrollmentRepo{}
	handler := newEnrollmentHandler(repo, models.BlockA)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments",
		strings.NewReader(`{"student_id":"s1","class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentHandlerEnrollBlockMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeEnrollmentRepo{block: models.BlockB}
	handler := newEnrollmentHandler(repo, models.BlockA)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments",
		strings.NewReader(`{"student_id":"s1","class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Enroll(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "BLOCK_MISMATCH", envelope.Error.Code)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentHandlerEnrollInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandler(&fakeEnrollmentRepo{}, models.BlockA)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(`{`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Enroll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
