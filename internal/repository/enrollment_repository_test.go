package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryStudentBlock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"block"}).AddRow("B")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.block FROM class_enrollment ce")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	block, err := repo.StudentBlock(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, models.Block("B"), block)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryStudentBlockEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.block FROM class_enrollment ce")).
		WithArgs("stu-9").
		WillReturnRows(sqlmock.NewRows([]string{"block"}))

	block, err := repo.StudentBlock(context.Background(), "stu-9")
	require.NoError(t, err)
	require.Empty(t, block)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateBlockMismatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_enrollment")).
		WillReturnError(&pq.Error{
			Code:    "P0001",
			Message: "BLOCK_MISMATCH: student stu-1 already enrolled in block A",
		})

	err := repo.Create(context.Background(), &models.Enrollment{
		StudentID:  "stu-1",
		ClassID:    "class-2",
		EnrolledAt: time.Now(),
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrBlockMismatch.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_enrollment")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), &models.Enrollment{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_enrollment WHERE student_id = $1 AND class_id = $2")).
		WithArgs("stu-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "stu-1", "class-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
