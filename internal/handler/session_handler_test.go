package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/schooldesk/attendance-api/internal/middleware"
	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/service"
)

type fakeSessionRepo struct {
	sessions map[string]*models.AttendanceSession
	existing *models.AttendanceSession
}

func (f *fakeSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (f *fakeSessionRepo) FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error) {
	if f.existing != nil {
		return f.existing, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *models.AttendanceSession) error {
	if f.sessions == nil {
		f.sessions = map[string]*models.AttendanceSession{}
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusOngoing {
		return false, nil
	}
	s.Status = models.SessionStatusEnded
	return true, nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

type fakeTeacherProfiles struct {
	teacherID string
}

func (f *fakeTeacherProfiles) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	return &models.Teacher{ID: f.teacherID, UserID: userID}, nil
}

func newSessionHandler(repo *fakeSessionRepo, classTeacherID, actorTeacherID string) *SessionHandler {
	classes := &fakeSessionClassReader{teacherID: classTeacherID}
	teachers := &fakeTeacherProfiles{teacherID: actorTeacherID}
	svc := service.NewSessionService(repo, classes, teachers, nil, nil, nil)
	return NewSessionHandler(svc)
}

type fakeSessionClassReader struct {
	teacherID string
}

func (f *fakeSessionClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return &models.Class{ID: id, TeacherID: f.teacherID, Name: "Algebra I", Block: models.BlockA}, nil
}

func TestSessionHandlerStartAsOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSessionRepo{}
	handler := newSessionHandler(repo, "t1", "t1")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})

	handler.Start(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.sessions, 1)
}

func TestSessionHandlerStartAsNonOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSessionRepo{}
	handler := newSessionHandler(repo, "t1", "t2")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher})

	handler.Start(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, repo.sessions)
}

func TestSessionHandlerStartWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSessionHandler(&fakeSessionRepo{}, "t1", "t1")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"class_id":"c1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Start(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionHandlerEndAlreadyEnded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSessionRepo{sessions: map[string]*models.AttendanceSession{
		"sess1": {ID: "sess1", ClassID: "c1", Status: models.SessionStatusEnded},
	}}
	handler := newSessionHandler(repo, "t1", "t1")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/sessions/sess1/end", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})

	handler.End(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "SESSION_ENDED", envelope.Error.Code)
}

func TestSessionHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSessionRepo{sessions: map[string]*models.AttendanceSession{
		"sess1": {ID: "sess1", ClassID: "c1", Status: models.SessionStatusOngoing},
	}}
	handler := newSessionHandler(repo, "t1", "t1")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/sessions/sess1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.sessions)
}

func TestSessionHandlerDeleteMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSessionHandler(&fakeSessionRepo{}, "t1", "t1")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/sessions/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
