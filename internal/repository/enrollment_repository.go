package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schooldesk/attendance-api/internal/models"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
)

// EnrollmentRepository handles persistence of class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM class_enrollment ce
JOIN students s ON s.id = ce.student_id
JOIN classes c ON c.id = ce.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ce.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("ce.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Block != "" {
		conditions = append(conditions, fmt.Sprintf("c.block = $%d", len(args)+1))
		args = append(args, filter.Block)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{
		"enrolled_at":  "ce.enrolled_at",
		"student_name": "s.full_name",
		"class_name":   "c.name",
	}, "enrolled_at")
	limit, offset := pageClause(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT ce.id, ce.student_id, ce.class_id, ce.enrolled_at,
        s.full_name AS student_name, c.name AS class_name, c.block
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, limit, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, enrolled_at FROM class_enrollment WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT ce.id, ce.student_id, ce.class_id, ce.enrolled_at,
        s.full_name AS student_name, c.name AS class_name, c.block
        FROM class_enrollment ce
        JOIN students s ON s.id = ce.student_id
        JOIN classes c ON c.id = ce.class_id
        WHERE ce.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks if the (student, class) pair is already enrolled.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM class_enrollment WHERE student_id = $1 AND class_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// StudentBlock returns the block letter of the student's existing
// enrollments, or empty when the student has none.
func (r *EnrollmentRepository) StudentBlock(ctx context.Context, studentID string) (models.Block, error) {
	const query = `SELECT c.block FROM class_enrollment ce
        JOIN classes c ON c.id = ce.class_id
        WHERE ce.student_id = $1 LIMIT 1`
	var block models.Block
	if err := r.db.GetContext(ctx, &block, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("resolve student block: %w", err)
	}
	return block, nil
}

// Create persists a new enrollment. The database trigger backs up the
// same-block invariant; its exception is translated into a typed error.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_enrollment (id, student_id, class_id, enrolled_at)
        VALUES (:id, :student_id, :class_id, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if strings.Contains(pqErr.Message, "BLOCK_MISMATCH") {
				return appErrors.Clone(appErrors.ErrBlockMismatch, "")
			}
			if pqErr.Code == "23505" {
				return appErrors.Clone(appErrors.ErrConflict, "student already enrolled in class")
			}
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM class_enrollment WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// ListByClass returns the roster for a class.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT ce.id, ce.student_id, ce.class_id, ce.enrolled_at,
        s.full_name AS student_name, c.name AS class_name, c.block
        FROM class_enrollment ce
        JOIN students s ON s.id = ce.student_id
        JOIN classes c ON c.id = ce.class_id
        WHERE ce.class_id = $1
        ORDER BY s.full_name ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return enrollments, nil
}
