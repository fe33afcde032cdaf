package models

import "time"

// PrerequisiteKind distinguishes the two kinds of prerequisite edges.
type PrerequisiteKind string

const (
	// PrerequisiteKindCourse requires a specific course to be approved.
	PrerequisiteKindCourse PrerequisiteKind = "COURSE"
	// PrerequisiteKindLevel requires every non-elective course of a level
	// (other than the course under evaluation) to be approved.
	PrerequisiteKindLevel PrerequisiteKind = "LEVEL"
)

// PrerequisiteEdge is a tagged reference from a course to either another
// course or to a whole level.
type PrerequisiteEdge struct {
	Kind     PrerequisiteKind `db:"kind" json:"kind"`
	TargetID string           `db:"target_id" json:"target_id"`
}

// Course is a subject offered within a level, optionally elective and
// optionally gated by prerequisites.
type Course struct {
	ID            string             `db:"id" json:"id"`
	LevelID       *string            `db:"level_id" json:"level_id,omitempty"`
	Name          string             `db:"name" json:"name"`
	Elective      bool               `db:"elective" json:"elective"`
	Prerequisites []PrerequisiteEdge `db:"-" json:"prerequisites,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}
