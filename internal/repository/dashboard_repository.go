package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schooldesk/attendance-api/internal/models"
)

// DashboardRepository reads the attendance aggregation views.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// ClassSummaries returns per-class aggregates, optionally scoped to a teacher.
func (r *DashboardRepository) ClassSummaries(ctx context.Context, teacherID string) ([]models.ClassAttendanceSummary, error) {
	query := `SELECT class_id, class_name, teacher_id, block, day_of_week,
        sessions_held, present_count, absent_count, rate
        FROM class_attendance_summary`
	var args []interface{}
	if teacherID != "" {
		query += " WHERE teacher_id = $1"
		args = append(args, teacherID)
	}
	query += " ORDER BY class_name ASC"

	var summaries []models.ClassAttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("class summaries: %w", err)
	}
	return summaries, nil
}

// StudentSummaries returns per-student-per-class aggregates. Either studentID
// or teacherID may scope the result; both empty returns the full view.
func (r *DashboardRepository) StudentSummaries(ctx context.Context, studentID, teacherID string) ([]models.StudentAttendanceSummary, error) {
	query := `SELECT sas.student_id, sas.student_name, sas.class_id, sas.class_name,
        sas.present_count, sas.absent_count, sas.rate
        FROM student_attendance_summary sas`
	var args []interface{}
	switch {
	case studentID != "":
		query += " WHERE sas.student_id = $1"
		args = append(args, studentID)
	case teacherID != "":
		query += ` JOIN classes c ON c.id = sas.class_id WHERE c.teacher_id = $1`
		args = append(args, teacherID)
	}
	query += " ORDER BY sas.rate ASC"

	var summaries []models.StudentAttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("student summaries: %w", err)
	}
	return summaries, nil
}

// LowAttendance returns students below the given rate threshold, optionally
// scoped to a teacher's classes.
func (r *DashboardRepository) LowAttendance(ctx context.Context, threshold float64, teacherID string) ([]models.StudentAttendanceSummary, error) {
	query := `SELECT sas.student_id, sas.student_name, sas.class_id, sas.class_name,
        sas.present_count, sas.absent_count, sas.rate
        FROM student_attendance_summary sas`
	args := []interface{}{threshold}
	if teacherID != "" {
		query += ` JOIN classes c ON c.id = sas.class_id
        WHERE sas.rate < $1 AND c.teacher_id = $2`
		args = append(args, teacherID)
	} else {
		query += " WHERE sas.rate < $1"
	}
	query += " ORDER BY sas.rate ASC"

	var summaries []models.StudentAttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("low attendance: %w", err)
	}
	return summaries, nil
}

// Totals returns school-wide entity counters.
func (r *DashboardRepository) Totals(ctx context.Context) (students, teachers, classes int, err error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS students,
        (SELECT COUNT(*) FROM teachers) AS teachers,
        (SELECT COUNT(*) FROM classes) AS classes`
	var row struct {
		Students int `db:"students"`
		Teachers int `db:"teachers"`
		Classes  int `db:"classes"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, 0, fmt.Errorf("dashboard totals: %w", err)
	}
	return row.Students, row.Teachers, row.Classes, nil
}

// OverallRate returns the school-wide attendance percentage.
func (r *DashboardRepository) OverallRate(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(
        ROUND(COUNT(*) FILTER (WHERE status = 'PRESENT') * 100.0 / NULLIF(COUNT(*), 0), 2),
        0) AS rate FROM attendance`
	var rate float64
	if err := r.db.GetContext(ctx, &rate, query); err != nil {
		return 0, fmt.Errorf("overall rate: %w", err)
	}
	return rate, nil
}

// RateByBlock returns the attendance percentage per block letter.
func (r *DashboardRepository) RateByBlock(ctx context.Context) (map[string]float64, error) {
	const query = `SELECT c.block AS bucket,
        COALESCE(ROUND(COUNT(*) FILTER (WHERE a.status = 'PRESENT') * 100.0 / NULLIF(COUNT(*), 0), 2), 0) AS rate
        FROM attendance a
        JOIN classes c ON c.id = a.class_id
        GROUP BY c.block`
	return r.bucketRates(ctx, query)
}

// RateByDayOfWeek returns the attendance percentage per weekday (as "0".."6").
func (r *DashboardRepository) RateByDayOfWeek(ctx context.Context) (map[string]float64, error) {
	const query = `SELECT c.day_of_week::text AS bucket,
        COALESCE(ROUND(COUNT(*) FILTER (WHERE a.status = 'PRESENT') * 100.0 / NULLIF(COUNT(*), 0), 2), 0) AS rate
        FROM attendance a
        JOIN classes c ON c.id = a.class_id
        GROUP BY c.day_of_week`
	return r.bucketRates(ctx, query)
}

func (r *DashboardRepository) bucketRates(ctx context.Context, query string) (map[string]float64, error) {
	var rows []struct {
		Bucket string  `db:"bucket"`
		Rate   float64 `db:"rate"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("bucket rates: %w", err)
	}
	rates := make(map[string]float64, len(rows))
	for _, row := range rows {
		rates[row.Bucket] = row.Rate
	}
	return rates, nil
}
