package models

import "time"

// Teacher represents an instructor record tied to an auth user.
type Teacher struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail enriches Teacher with department info.
type TeacherDetail struct {
	Teacher
	DepartmentName string `db:"department_name" json:"department_name"`
}

// TeacherFilter defines filter criteria for listing teachers.
type TeacherFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
