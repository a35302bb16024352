package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/attendance-api/internal/models"
)

func TestUserRepositoryCreateWithStudentProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "dana@school.test", PasswordHash: "x", FullName: "Dana Reyes", Role: models.RoleStudent, Active: true}
	student := &models.Student{DepartmentID: "d1", CourseID: "crs1", YearLevel: 2, FullName: "Dana Reyes", Email: "dana@school.test"}

	err := repo.CreateWithProfile(context.Background(), user, nil, student)
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, user.ID, student.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateWithProfileRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).
		WillReturnError(errors.New("departments fk violated"))
	mock.ExpectRollback()

	user := &models.User{Email: "sam@school.test", PasswordHash: "x", FullName: "Sam Cruz", Role: models.RoleTeacher, Active: true}
	teacher := &models.Teacher{DepartmentID: "missing", FullName: "Sam Cruz", Email: "sam@school.test"}

	err := repo.CreateWithProfile(context.Background(), user, teacher, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateWithoutProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "root@school.test", PasswordHash: "x", FullName: "Root Admin", Role: models.RoleAdmin, Active: true}
	require.NoError(t, repo.CreateWithProfile(context.Background(), user, nil, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
