package models

import "time"

// Student represents a learner tied to an auth user, a department,
// a course and a year level.
type Student struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	YearLevel    int       `db:"year_level" json:"year_level"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with department and course names.
type StudentDetail struct {
	Student
	DepartmentName string `db:"department_name" json:"department_name"`
	CourseName     string `db:"course_name" json:"course_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	DepartmentID string
	CourseID     string
	YearLevel    int
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
