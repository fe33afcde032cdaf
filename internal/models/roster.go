package models

import "time"

// MembershipStatus represents a learner's progress within a section.
type MembershipStatus string

// Possible roster membership statuses.
const (
	MembershipStatusApproved   MembershipStatus = "APPROVED"
	MembershipStatusFailed     MembershipStatus = "FAILED"
	MembershipStatusInProgress MembershipStatus = "IN_PROGRESS"
	MembershipStatusWithdrawn  MembershipStatus = "WITHDRAWN"
	MembershipStatusPending    MembershipStatus = "PENDING"
	MembershipStatusEnrolled   MembershipStatus = "ENROLLED"
)

// RosterMembership associates a learner with a section. The storage layer
// enforces uniqueness on (learner_id, section_id).
type RosterMembership struct {
	ID        string           `db:"id" json:"id"`
	LearnerID string           `db:"learner_id" json:"learner_id"`
	SectionID string           `db:"section_id" json:"section_id"`
	Status    MembershipStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// LearnerCourseStatus is a membership row with the owning course resolved,
// used to build a learner's progress snapshot across all cycles.
type LearnerCourseStatus struct {
	SectionID string           `db:"section_id" json:"section_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Status    MembershipStatus `db:"status" json:"status"`
}

// RosterEntryDetail is a roster row enriched with learner info, used by
// section roster exports.
type RosterEntryDetail struct {
	LearnerID   string           `db:"learner_id" json:"learner_id"`
	LearnerName string           `db:"learner_name" json:"learner_name"`
	Status      MembershipStatus `db:"status" json:"status"`
	JoinedAt    time.Time        `db:"joined_at" json:"joined_at"`
}
