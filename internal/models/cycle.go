package models

import "time"

// Cycle models a time-bounded enrollment period. At most one cycle is
// treated as open for new requests per resolution; when several are flagged
// open, the one with the latest start date wins.
type Cycle struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	EnrollmentOpen bool      `db:"enrollment_open" json:"enrollment_open"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
