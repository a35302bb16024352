package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schooldesk/attendance-api/internal/models"
)

// AttendanceRepository handles persistence of attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListBySession returns all marks for a session with student names.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.student_id, a.class_id, a.session_id, a.status,
        a.created_at, a.updated_at, s.full_name AS student_name
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        WHERE a.session_id = $1
        ORDER BY s.full_name ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return records, nil
}

// FindByID returns a mark by its ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	const query = `SELECT id, student_id, class_id, session_id, status, created_at, updated_at
        FROM attendance WHERE id = $1`
	var attendance models.Attendance
	if err := r.db.GetContext(ctx, &attendance, query, id); err != nil {
		return nil, err
	}
	return &attendance, nil
}

// BulkUpsert inserts or updates marks for a session in one transaction.
// On conflict with the (student, class, session) constraint the status
// is overwritten, making repeated roll calls idempotent.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, marks []models.Attendance) error {
	if len(marks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO attendance (id, student_id, class_id, session_id, status, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :session_id, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, class_id, session_id)
        DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range marks {
		if marks[i].ID == "" {
			marks[i].ID = uuid.NewString()
		}
		marks[i].CreatedAt = now
		marks[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, marks[i]); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateStatus changes the status of a single mark.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) error {
	const query = `UPDATE attendance SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// StudentHistory returns a student's per-session history, most recent first.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, studentID, classID string, limit int) ([]models.AttendanceHistoryRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT a.session_id, ses.session_date, a.class_id, c.name AS class_name, a.status
        FROM attendance a
        JOIN attendance_sessions ses ON ses.id = a.session_id
        JOIN classes c ON c.id = a.class_id
        WHERE a.student_id = $1`
	args := []interface{}{studentID}
	if classID != "" {
		query += " AND a.class_id = $2"
		args = append(args, classID)
	}
	query += fmt.Sprintf(" ORDER BY ses.session_date DESC LIMIT %d", limit)

	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}

// StudentSummary aggregates a student's marks into counts and a rate.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID, classID string) (*models.AttendanceSummary, error) {
	query := `SELECT
        COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
        COUNT(*) AS total
        FROM attendance WHERE student_id = $1`
	args := []interface{}{studentID}
	if classID != "" {
		query += " AND class_id = $2"
		args = append(args, classID)
	}

	var row struct {
		Present int `db:"present"`
		Absent  int `db:"absent"`
		Total   int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}

	summary := &models.AttendanceSummary{Present: row.Present, Absent: row.Absent, Total: row.Total}
	if row.Total > 0 {
		summary.Percent = float64(row.Present) * 100 / float64(row.Total)
	}
	return summary, nil
}
