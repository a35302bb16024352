package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schooldesk/attendance-api/internal/models"
)

// ClassRepository handles persistence of class offerings.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes with teacher and course context.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := `FROM classes c
JOIN teachers t ON t.id = c.teacher_id
JOIN courses co ON co.id = c.course_id`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("c.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Block != "" {
		conditions = append(conditions, fmt.Sprintf("c.block = $%d", len(args)+1))
		args = append(args, filter.Block)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("c.day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.YearLevel > 0 {
		conditions = append(conditions, fmt.Sprintf("c.year_level = $%d", len(args)+1))
		args = append(args, filter.YearLevel)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{
		"name":       "c.name",
		"block":      "c.block",
		"day":        "c.day_of_week",
		"start_time": "c.start_time",
		"created_at": "c.created_at",
	}, "name")
	limit, offset := pageClause(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT c.id, c.teacher_id, c.course_id, c.name, c.year_level, c.block, c.day_of_week,
        to_char(c.start_time, 'HH24:MI') AS start_time, to_char(c.end_time, 'HH24:MI') AS end_time,
        c.created_at, c.updated_at,
        t.full_name AS teacher_name, co.name AS course_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, limit, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, teacher_id, course_id, name, year_level, block, day_of_week,
        to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time,
        created_at, updated_at
        FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ExistsByOffering checks the uniqueness tuple for a class offering.
func (r *ClassRepository) ExistsByOffering(ctx context.Context, class *models.Class, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM classes
        WHERE course_id = $1 AND name = $2 AND year_level = $3 AND block = $4 AND day_of_week = $5 AND start_time = $6`
	args := []interface{}{class.CourseID, class.Name, class.YearLevel, class.Block, class.DayOfWeek, class.StartTime}
	if excludeID != "" {
		query += " AND id <> $7"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check class offering: %w", err)
	}
	return count > 0, nil
}

// Create persists a new class offering.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, teacher_id, course_id, name, year_level, block, day_of_week, start_time, end_time, created_at, updated_at)
        VALUES (:id, :teacher_id, :course_id, :name, :year_level, :block, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of a class offering.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET teacher_id = :teacher_id, name = :name, year_level = :year_level, block = :block,
        day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class offering.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// HasEnrollments reports whether any student is enrolled in the class.
func (r *ClassRepository) HasEnrollments(ctx context.Context, id string) (bool, error) {
	const query = `SELECT COUNT(*) FROM class_enrollment WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return false, fmt.Errorf("check class enrollments: %w", err)
	}
	return count > 0, nil
}
