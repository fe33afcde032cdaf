package models

import "time"

// RequestStatus represents the lifecycle of an enrollment request.
type RequestStatus string

// Possible enrollment request statuses. Pending is the initial state;
// Accepted and Rejected are terminal.
const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusAccepted RequestStatus = "ACCEPTED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// EnrollmentRequest captures a learner's ask to join a section.
type EnrollmentRequest struct {
	ID        string        `db:"id" json:"id"`
	LearnerID string        `db:"learner_id" json:"learner_id"`
	SectionID string        `db:"section_id" json:"section_id"`
	Status    RequestStatus `db:"status" json:"status"`
	Note      *string       `db:"note" json:"note,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	DecidedAt *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
}

// RequestFilter provides filters for listing enrollment requests.
type RequestFilter struct {
	LearnerID string
	SectionID string
	Status    RequestStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
