package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/attendance-api/internal/models"
)

func TestAttendanceRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	marks := []models.Attendance{
		{StudentID: "stu-1", ClassID: "class-1", SessionID: "ses-1", Status: models.AttendanceStatusPresent},
		{StudentID: "stu-2", ClassID: "class-1", SessionID: "ses-1", Status: models.AttendanceStatusAbsent},
	}
	err := repo.BulkUpsert(context.Background(), marks)
	require.NoError(t, err)
	require.NotEmpty(t, marks[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	require.NoError(t, repo.BulkUpsert(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "total"}).AddRow(8, 2, 10)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", "")
	require.NoError(t, err)
	require.Equal(t, 8, summary.Present)
	require.Equal(t, 2, summary.Absent)
	require.InDelta(t, 80.0, summary.Percent, 0.01)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummaryNoMarks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "total"}).AddRow(0, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", "")
	require.NoError(t, err)
	require.Zero(t, summary.Total)
	require.Zero(t, summary.Percent)
	require.NoError(t, mock.ExpectationsWereMet())
}
