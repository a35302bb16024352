package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records  map[string]models.Attendance
	upserted []models.Attendance
	updated  map[string]models.AttendanceStatus
}

func (m *mockAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	var list []models.AttendanceRecord
	for _, a := range m.records {
		if a.SessionID == sessionID {
			list = append(list, models.AttendanceRecord{Attendance: a})
		}
	}
	for _, a := range m.upserted {
		list = append(list, models.AttendanceRecord{Attendance: a})
	}
	return list, nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	if a, ok := m.records[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, marks []models.Attendance) error {
	m.upserted = append(m.upserted, marks...)
	return nil
}

func (m *mockAttendanceRepo) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) error {
	if m.updated == nil {
		m.updated = make(map[string]models.AttendanceStatus)
	}
	m.updated[id] = status
	return nil
}

func (m *mockAttendanceRepo) StudentHistory(ctx context.Context, studentID, classID string, limit int) ([]models.AttendanceHistoryRow, error) {
	return nil, nil
}

func (m *mockAttendanceRepo) StudentSummary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{}, nil
}

type mockSessionReader struct {
	sessions map[string]*models.AttendanceSession
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockRosterReader struct {
	pairs map[string]bool
}

func (m *mockRosterReader) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	return m.pairs[studentID+"/"+classID], nil
}

func newAttendanceFixture(status models.SessionStatus) (*mockAttendanceRepo, *AttendanceService) {
	repo := &mockAttendanceRepo{}
	sessions := &mockSessionReader{sessions: map[string]*models.AttendanceSession{
		"ses-1": {ID: "ses-1", ClassID: "c1", Status: status},
	}}
	roster := &mockRosterReader{pairs: map[string]bool{"s1/c1": true, "s2/c1": true}}
	return repo, NewAttendanceService(repo, sessions, roster, nil, validator.New(), zap.NewNop())
}

func TestAttendanceServiceMark(t *testing.T) {
	repo, svc := newAttendanceFixture(models.SessionStatusOngoing)

	records, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		SessionID: "ses-1",
		Marks: []AttendanceMark{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
			{StudentID: "s2", Status: models.AttendanceStatusAbsent},
		},
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, "c1", repo.upserted[0].ClassID)
	assert.Equal(t, "ses-1", repo.upserted[0].SessionID)
}

func TestAttendanceServiceMarkEndedSession(t *testing.T) {
	repo, svc := newAttendanceFixture(models.SessionStatusEnded)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		SessionID: "ses-1",
		Marks:     []AttendanceMark{{StudentID: "s1", Status: models.AttendanceStatusPresent}},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSessionEnded.Code, appErr.Code)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceMarkNotEnrolled(t *testing.T) {
	repo, svc := newAttendanceFixture(models.SessionStatusOngoing)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		SessionID: "ses-1",
		Marks:     []AttendanceMark{{StudentID: "outsider", Status: models.AttendanceStatusPresent}},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceMarkDuplicateStudent(t *testing.T) {
	_, svc := newAttendanceFixture(models.SessionStatusOngoing)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		SessionID: "ses-1",
		Marks: []AttendanceMark{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
			{StudentID: "s1", Status: models.AttendanceStatusAbsent},
		},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAttendanceServiceUpdate(t *testing.T) {
	repo, svc := newAttendanceFixture(models.SessionStatusOngoing)
	repo.records = map[string]models.Attendance{
		"a1": {ID: "a1", StudentID: "s1", ClassID: "c1", SessionID: "ses-1", Status: models.AttendanceStatusAbsent},
	}

	updated, err := svc.Update(context.Background(), "a1", UpdateAttendanceRequest{Status: models.AttendanceStatusPresent})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, updated.Status)
	assert.Equal(t, models.AttendanceStatusPresent, repo.updated["a1"])
}

func TestAttendanceServiceUpdateEndedSession(t *testing.T) {
	repo, svc := newAttendanceFixture(models.SessionStatusEnded)
	repo.records = map[string]models.Attendance{
		"a1": {ID: "a1", StudentID: "s1", ClassID: "c1", SessionID: "ses-1", Status: models.AttendanceStatusAbsent},
	}

	_, err := svc.Update(context.Background(), "a1", UpdateAttendanceRequest{Status: models.AttendanceStatusPresent})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSessionEnded.Code, appErr.Code)
}
