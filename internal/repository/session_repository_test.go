package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

func TestSessionRepositoryCreateDuplicateDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_sessions")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), &models.AttendanceSession{
		ClassID:     "class-1",
		SessionDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:      models.SessionStatusOngoing,
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryEnd(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	endedAt := time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_sessions SET status = $1, ended_at = $2")).
		WithArgs(models.SessionStatusEnded, endedAt, "ses-1", models.SessionStatusOngoing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ended, err := repo.End(context.Background(), "ses-1", endedAt)
	require.NoError(t, err)
	require.True(t, ended)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryEndAlreadyEnded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	endedAt := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_sessions SET status = $1, ended_at = $2")).
		WithArgs(models.SessionStatusEnded, endedAt, "ses-1", models.SessionStatusOngoing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ended, err := repo.End(context.Background(), "ses-1", endedAt)
	require.NoError(t, err)
	require.False(t, ended)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindByClassAndDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "class_id", "session_date", "status", "started_at", "ended_at"}).
		AddRow("ses-1", "class-1", date, models.SessionStatusOngoing, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, session_date, status, started_at, ended_at")).
		WithArgs("class-1", date).
		WillReturnRows(rows)

	session, err := repo.FindByClassAndDate(context.Background(), "class-1", date)
	require.NoError(t, err)
	require.Equal(t, "ses-1", session.ID)
	require.Equal(t, models.SessionStatusOngoing, session.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
