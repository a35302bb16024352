package models

import "time"

// Block is the single-letter section designation partitioning class
// offerings. Students may only enroll across classes sharing one block.
type Block string

// Supported block letters.
const (
	BlockA Block = "A"
	BlockB Block = "B"
	BlockC Block = "C"
	BlockD Block = "D"
)

// Valid returns true when the block is a supported letter.
func (b Block) Valid() bool {
	switch b {
	case BlockA, BlockB, BlockC, BlockD:
		return true
	default:
		return false
	}
}

// Class represents a scheduled class offering owned by a teacher.
type Class struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Name      string    `db:"name" json:"name"`
	YearLevel int       `db:"year_level" json:"year_level"`
	Block     Block     `db:"block" json:"block"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with teacher and course names.
type ClassDetail struct {
	Class
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TeacherID string
	CourseID  string
	Block     Block
	DayOfWeek *int
	YearLevel int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Class event actions published on the realtime feed.
const (
	ClassEventCreated = "created"
	ClassEventUpdated = "updated"
	ClassEventDeleted = "deleted"
)

// ClassEvent is broadcast over the websocket feed whenever the classes
// table changes.
type ClassEvent struct {
	Action    string    `json:"action"`
	ClassID   string    `json:"class_id"`
	Class     *Class    `json:"class,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}
