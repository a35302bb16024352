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

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	pairs       map[string]bool
	block       models.Block
	created     *models.Enrollment
	deleted     []string
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	return m.pairs[studentID+"/"+classID], nil
}

func (m *mockEnrollmentRepo) StudentBlock(ctx context.Context, studentID string) (models.Block, error) {
	return m.block, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.enrollments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEnrollmentRepo) ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.ClassID == classID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReader struct {
	classes map[string]*models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentFixture(block models.Block) (*mockEnrollmentRepo, *EnrollmentService) {
	repo := &mockEnrollmentRepo{block: block}
	students := &mockStudentReader{students: map[string]*models.Student{"s1": {ID: "s1"}}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"c1": {ID: "c1", Block: models.BlockA},
		"c2": {ID: "c2", Block: models.BlockB},
	}}
	svc := NewEnrollmentService(repo, students, classes, validator.New(), zap.NewNop())
	return repo, svc
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo, svc := newEnrollmentFixture("")

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", ClassID: "c1"})
	require.NoError(t, err)
	assert.NotNil(t, detail)
	require.NotNil(t, repo.created)
	assert.Equal(t, "c1", repo.created.ClassID)
}

func TestEnrollmentServiceEnrollSameBlockAllowed(t *testing.T) {
	repo, svc := newEnrollmentFixture(models.BlockA)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", ClassID: "c1"})
	require.NoError(t, err)
	assert.NotNil(t, repo.created)
}

func TestEnrollmentServiceEnrollBlockMismatch(t *testing.T) {
	repo, svc := newEnrollmentFixture(models.BlockA)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", ClassID: "c2"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrBlockMismatch.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo, svc := newEnrollmentFixture("")
	repo.pairs = map[string]bool{"s1/c1": true}

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", ClassID: "c1"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollClassNotFound(t *testing.T) {
	_, svc := newEnrollmentFixture("")

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", ClassID: "missing"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceUnenroll(t *testing.T) {
	repo, svc := newEnrollmentFixture("")
	repo.enrollments = map[string]models.Enrollment{"e1": {ID: "e1", StudentID: "s1", ClassID: "c1"}}

	require.NoError(t, svc.Unenroll(context.Background(), "e1"))
	assert.Contains(t, repo.deleted, "e1")
}
