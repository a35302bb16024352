package repository

import (
	"context"
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

// SessionRepository handles persistence of attendance sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions filtered by the provided criteria.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	base := `FROM attendance_sessions ses
JOIN classes c ON c.id = ses.class_id`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("ses.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("ses.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("ses.session_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("ses.session_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{
		"session_date": "ses.session_date",
		"started_at":   "ses.started_at",
		"status":       "ses.status",
	}, "session_date")
	limit, offset := pageClause(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT ses.id, ses.class_id, ses.session_date, ses.status,
        ses.started_at, ses.ended_at, c.name AS class_name, c.block
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, limit, offset)

	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	const query = `SELECT id, class_id, session_date, status, started_at, ended_at
        FROM attendance_sessions WHERE id = $1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByClassAndDate returns the session for a class on a given date.
func (r *SessionRepository) FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error) {
	const query = `SELECT id, class_id, session_date, status, started_at, ended_at
        FROM attendance_sessions WHERE class_id = $1 AND session_date = $2`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, classID, date); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create persists a new session. The unique constraint on
// (class_id, session_date) is translated into a conflict error.
func (r *SessionRepository) Create(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_sessions (id, class_id, session_date, status, started_at)
        VALUES (:id, :class_id, :session_date, :status, :started_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.Clone(appErrors.ErrConflict, "a session already exists for this class and date")
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// End marks an ongoing session as ended. Returns false when the session
// was not ongoing (already ended or missing).
func (r *SessionRepository) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	const query = `UPDATE attendance_sessions SET status = $1, ended_at = $2
        WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.SessionStatusEnded, endedAt, id, models.SessionStatusOngoing)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a session and, via cascade, its attendance marks.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM attendance_sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
