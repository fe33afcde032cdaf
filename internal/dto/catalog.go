package dto

import "github.com/institutoberea/enrollment-api/internal/models"

// CatalogSection annotates a section with its confirmed roster count.
// The count is informational; it is never compared against capacity.
type CatalogSection struct {
	Section        models.ClassroomSection `json:"section"`
	ConfirmedCount int                     `json:"confirmed_count"`
}

// CatalogCourse groups the admissible sections of one course.
type CatalogCourse struct {
	Course   models.Course    `json:"course"`
	Sections []CatalogSection `json:"sections"`
}

// CatalogLevel groups admissible courses under one level. Level is nil for
// orphan courses, which sort after every named level.
type CatalogLevel struct {
	Level   *models.Level   `json:"level"`
	Courses []CatalogCourse `json:"courses"`
}

// CatalogResponse is the navigable enrollment catalog for one learner (or
// for anonymous browsing). OpenCycle is nil when no cycle is open, which is
// a valid empty result rather than an error.
type CatalogResponse struct {
	OpenCycle *models.Cycle  `json:"open_cycle"`
	Levels    []CatalogLevel `json:"levels"`
}
