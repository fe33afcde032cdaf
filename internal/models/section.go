package models

import "time"

// ClassroomSection is a scheduled instance of a course within a cycle.
// Capacity is declarative: it annotates the catalog but is never compared
// against the confirmed count to block enrollment.
type ClassroomSection struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	CycleID   string    `db:"cycle_id" json:"cycle_id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SectionDetail enriches ClassroomSection with course and level info.
type SectionDetail struct {
	ClassroomSection
	CourseName    string  `db:"course_name" json:"course_name"`
	CourseLevelID *string `db:"course_level_id" json:"course_level_id,omitempty"`
	LevelName     *string `db:"level_name" json:"level_name,omitempty"`
}
