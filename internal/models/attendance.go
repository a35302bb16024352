package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Attendance is one mark per (student, class, session).
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	SessionID string           `db:"session_id" json:"session_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the mark with student metadata for roster views.
type AttendanceRecord struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceHistoryRow captures one session in a student's history.
type AttendanceHistoryRow struct {
	SessionID   string           `db:"session_id" json:"session_id"`
	SessionDate time.Time        `db:"session_date" json:"session_date"`
	ClassID     string           `db:"class_id" json:"class_id"`
	ClassName   string           `db:"class_name" json:"class_name"`
	Status      AttendanceStatus `db:"status" json:"status"`
}

// AttendanceSummary summarises counts for a student or class.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}
