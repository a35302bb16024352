package models

import "time"

// Course is a programme of study offered by a department.
type Course struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail extends Course with the owning department name.
type CourseDetail struct {
	Course
	DepartmentName string `db:"department_name" json:"department_name"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
