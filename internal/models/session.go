package models

import "time"

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionStatusOngoing SessionStatus = "ONGOING"
	SessionStatusEnded   SessionStatus = "ENDED"
)

// AttendanceSession is one calendar-day instance of a class during which
// attendance is recorded. One session per (class, date).
type AttendanceSession struct {
	ID          string        `db:"id" json:"id"`
	ClassID     string        `db:"class_id" json:"class_id"`
	SessionDate time.Time     `db:"session_date" json:"session_date"`
	Status      SessionStatus `db:"status" json:"status"`
	StartedAt   time.Time     `db:"started_at" json:"started_at"`
	EndedAt     *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
}

// SessionDetail extends the session with class context.
type SessionDetail struct {
	AttendanceSession
	ClassName string `db:"class_name" json:"class_name"`
	Block     Block  `db:"block" json:"block"`
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	ClassID   string
	Status    SessionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
