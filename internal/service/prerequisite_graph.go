package service

import (
	"github.com/institutoberea/enrollment-api/internal/models"
)

// ExclusionReason explains why a course was withheld from the catalog.
type ExclusionReason string

// Exclusion reasons surfaced for observability and testing.
const (
	ExclusionNone                ExclusionReason = ""
	ExclusionAlreadyTaken        ExclusionReason = "already_taken_or_requested"
	ExclusionMissingCoursePrereq ExclusionReason = "missing_course_prerequisite"
	ExclusionMissingLevelPrereq  ExclusionReason = "missing_level_prerequisite"
)

// PrerequisiteGraph is an in-memory view of the prerequisite edges of the
// whole course catalog, rebuilt from the flat course list on every
// resolution call so eligibility can be evaluated without a live store.
type PrerequisiteGraph struct {
	edges              map[string][]models.PrerequisiteEdge
	nonElectiveByLevel map[string]map[string]struct{}
}

// NewPrerequisiteGraph indexes the course list once: prerequisite edges per
// course and the set of non-elective courses per level.
func NewPrerequisiteGraph(courses []models.Course) *PrerequisiteGraph {
	g := &PrerequisiteGraph{
		edges:              make(map[string][]models.PrerequisiteEdge, len(courses)),
		nonElectiveByLevel: make(map[string]map[string]struct{}),
	}
	for _, course := range courses {
		if len(course.Prerequisites) > 0 {
			g.edges[course.ID] = course.Prerequisites
		}
		if course.LevelID == nil || course.Elective {
			continue
		}
		levelSet := g.nonElectiveByLevel[*course.LevelID]
		if levelSet == nil {
			levelSet = make(map[string]struct{})
			g.nonElectiveByLevel[*course.LevelID] = levelSet
		}
		levelSet[course.ID] = struct{}{}
	}
	return g
}

// PrerequisitesOf returns the prerequisite edges of a course.
func (g *PrerequisiteGraph) PrerequisitesOf(courseID string) []models.PrerequisiteEdge {
	return g.edges[courseID]
}

// NonElectiveCoursesOfLevel returns the ids of the non-elective courses
// belonging to a level.
func (g *PrerequisiteGraph) NonElectiveCoursesOfLevel(levelID string) map[string]struct{} {
	return g.nonElectiveByLevel[levelID]
}

// ProgressSnapshot captures a learner's standing at resolution time:
// approved courses, courses that must not be offered again, and courses
// already requested in the target cycle.
type ProgressSnapshot struct {
	approved        map[string]struct{}
	activeOrPending map[string]struct{}
	requested       map[string]struct{}
}

// NewProgressSnapshot derives the per-learner sets from roster history and
// open-cycle requests. courseBySection maps the open cycle's section ids to
// their course ids so requests can be attributed to courses.
func NewProgressSnapshot(history []models.LearnerCourseStatus, requests []models.EnrollmentRequest, courseBySection map[string]string) *ProgressSnapshot {
	s := &ProgressSnapshot{
		approved:        make(map[string]struct{}),
		activeOrPending: make(map[string]struct{}),
		requested:       make(map[string]struct{}),
	}
	for _, entry := range history {
		switch entry.Status {
		case models.MembershipStatusApproved:
			s.approved[entry.CourseID] = struct{}{}
			s.activeOrPending[entry.CourseID] = struct{}{}
		case models.MembershipStatusInProgress, models.MembershipStatusEnrolled, models.MembershipStatusPending:
			s.activeOrPending[entry.CourseID] = struct{}{}
		}
		// Failed and withdrawn memberships do not block re-enrollment.
	}
	for _, request := range requests {
		if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusAccepted {
			continue
		}
		if courseID, ok := courseBySection[request.SectionID]; ok {
			s.requested[courseID] = struct{}{}
		}
	}
	return s
}

// HasApproved reports whether the learner has an approved membership for the
// course.
func (s *ProgressSnapshot) HasApproved(courseID string) bool {
	_, ok := s.approved[courseID]
	return ok
}

// Evaluate decides whether the course is admissible for the snapshot's
// learner. A nil snapshot is the anonymous mode: every course is admissible.
func (g *PrerequisiteGraph) Evaluate(snapshot *ProgressSnapshot, course models.Course) (bool, ExclusionReason) {
	if snapshot == nil {
		return true, ExclusionNone
	}
	if _, taken := snapshot.activeOrPending[course.ID]; taken {
		return false, ExclusionAlreadyTaken
	}
	if _, requested := snapshot.requested[course.ID]; requested {
		return false, ExclusionAlreadyTaken
	}
	for _, edge := range g.PrerequisitesOf(course.ID) {
		switch edge.Kind {
		case models.PrerequisiteKindCourse:
			if !snapshot.HasApproved(edge.TargetID) {
				return false, ExclusionMissingCoursePrereq
			}
		case models.PrerequisiteKindLevel:
			for required := range g.NonElectiveCoursesOfLevel(edge.TargetID) {
				if required == course.ID {
					continue
				}
				if !snapshot.HasApproved(required) {
					return false, ExclusionMissingLevelPrereq
				}
			}
		}
	}
	return true, ExclusionNone
}
