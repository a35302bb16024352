package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]models.AttendanceSession
	byDate   map[string]models.AttendanceSession
	created  *models.AttendanceSession
	ended    []string
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	return nil, 0, nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error) {
	if s, ok := m.byDate[classID+"/"+date.Format("2006-01-02")]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.AttendanceSession) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.AttendanceSession)
	}
	if session.ID == "" {
		session.ID = "new-session"
	}
	m.sessions[session.ID] = *session
	m.created = session
	return nil
}

func (m *mockSessionRepo) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != models.SessionStatusOngoing {
		return false, nil
	}
	s.Status = models.SessionStatusEnded
	s.EndedAt = &endedAt
	m.sessions[id] = s
	m.ended = append(m.ended, id)
	return true, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type mockTeacherProfiles struct {
	byUser map[string]*models.Teacher
}

func (m *mockTeacherProfiles) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	if t, ok := m.byUser[userID]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func newSessionFixture() (*mockSessionRepo, *SessionService) {
	repo := &mockSessionRepo{}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"c1": {ID: "c1", TeacherID: "t1", Block: models.BlockA},
	}}
	teachers := &mockTeacherProfiles{byUser: map[string]*models.Teacher{
		"u-owner": {ID: "t1", UserID: "u-owner"},
		"u-other": {ID: "t2", UserID: "u-other"},
	}}
	return repo, NewSessionService(repo, classes, teachers, nil, validator.New(), zap.NewNop())
}

func ownerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-owner", Role: models.RoleTeacher}
}

func TestSessionServiceStart(t *testing.T) {
	repo, svc := newSessionFixture()

	session, err := svc.Start(context.Background(), ownerClaims(), StartSessionRequest{ClassID: "c1", Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusOngoing, session.Status)
	require.NotNil(t, repo.created)
	assert.Equal(t, "c1", repo.created.ClassID)
}

func TestSessionServiceStartNotOwner(t *testing.T) {
	_, svc := newSessionFixture()

	_, err := svc.Start(context.Background(), &models.JWTClaims{UserID: "u-other", Role: models.RoleTeacher}, StartSessionRequest{ClassID: "c1"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSessionServiceStartAdminAllowed(t *testing.T) {
	repo, svc := newSessionFixture()

	_, err := svc.Start(context.Background(), &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin}, StartSessionRequest{ClassID: "c1", Date: "2026-03-02"})
	require.NoError(t, err)
	assert.NotNil(t, repo.created)
}

func TestSessionServiceStartDuplicateDate(t *testing.T) {
	repo, svc := newSessionFixture()
	repo.byDate = map[string]models.AttendanceSession{
		"c1/2026-03-02": {ID: "ses-1", ClassID: "c1", Status: models.SessionStatusEnded},
	}

	_, err := svc.Start(context.Background(), ownerClaims(), StartSessionRequest{ClassID: "c1", Date: "2026-03-02"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSessionServiceEnd(t *testing.T) {
	repo, svc := newSessionFixture()
	repo.sessions = map[string]models.AttendanceSession{
		"ses-1": {ID: "ses-1", ClassID: "c1", Status: models.SessionStatusOngoing},
	}

	session, err := svc.End(context.Background(), ownerClaims(), "ses-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, session.Status)
	require.NotNil(t, session.EndedAt)
	assert.Contains(t, repo.ended, "ses-1")
}

func TestSessionServiceEndAlreadyEnded(t *testing.T) {
	repo, svc := newSessionFixture()
	endedAt := time.Now()
	repo.sessions = map[string]models.AttendanceSession{
		"ses-1": {ID: "ses-1", ClassID: "c1", Status: models.SessionStatusEnded, EndedAt: &endedAt},
	}

	_, err := svc.End(context.Background(), ownerClaims(), "ses-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSessionEnded.Code, appErr.Code)
}
