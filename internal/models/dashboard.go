package models

// ClassAttendanceSummary mirrors the class_attendance_summary view.
type ClassAttendanceSummary struct {
	ClassID      string  `db:"class_id" json:"class_id"`
	ClassName    string  `db:"class_name" json:"class_name"`
	TeacherID    string  `db:"teacher_id" json:"teacher_id"`
	Block        Block   `db:"block" json:"block"`
	DayOfWeek    int     `db:"day_of_week" json:"day_of_week"`
	SessionsHeld int     `db:"sessions_held" json:"sessions_held"`
	PresentCount int     `db:"present_count" json:"present_count"`
	AbsentCount  int     `db:"absent_count" json:"absent_count"`
	Rate         float64 `db:"rate" json:"rate"`
}

// StudentAttendanceSummary mirrors the student_attendance_summary view.
type StudentAttendanceSummary struct {
	StudentID    string  `db:"student_id" json:"student_id"`
	StudentName  string  `db:"student_name" json:"student_name"`
	ClassID      string  `db:"class_id" json:"class_id"`
	ClassName    string  `db:"class_name" json:"class_name"`
	PresentCount int     `db:"present_count" json:"present_count"`
	AbsentCount  int     `db:"absent_count" json:"absent_count"`
	Rate         float64 `db:"rate" json:"rate"`
}

// AdminDashboard aggregates school-wide attendance figures.
type AdminDashboard struct {
	TotalStudents   int                        `json:"total_students"`
	TotalTeachers   int                        `json:"total_teachers"`
	TotalClasses    int                        `json:"total_classes"`
	OverallRate     float64                    `json:"overall_rate"`
	Classes         []ClassAttendanceSummary   `json:"classes"`
	LowAttendance   []StudentAttendanceSummary `json:"low_attendance"`
	RateByBlock     map[string]float64         `json:"rate_by_block"`
	RateByDayOfWeek map[string]float64         `json:"rate_by_day_of_week"`
}

// TeacherDashboard scopes aggregates to one teacher's classes.
type TeacherDashboard struct {
	TeacherID     string                     `json:"teacher_id"`
	Classes       []ClassAttendanceSummary   `json:"classes"`
	LowAttendance []StudentAttendanceSummary `json:"low_attendance"`
}

// StudentDashboard scopes aggregates to one student.
type StudentDashboard struct {
	StudentID string                     `json:"student_id"`
	Classes   []StudentAttendanceSummary `json:"classes"`
	Overall   AttendanceSummary          `json:"overall"`
}
