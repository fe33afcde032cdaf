package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/institutoberea/enrollment-api/internal/models"
)

// CourseRepository handles read access to the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

type prerequisiteRow struct {
	CourseID string                  `db:"course_id"`
	Kind     models.PrerequisiteKind `db:"kind"`
	TargetID string                  `db:"target_id"`
}

// ListWithPrerequisites returns every course with its prerequisite edges
// attached. The full list is loaded in two queries so the eligibility graph
// can be built without per-course round trips.
func (r *CourseRepository) ListWithPrerequisites(ctx context.Context) ([]models.Course, error) {
	const courseQuery = `SELECT id, level_id, name, elective, created_at FROM courses ORDER BY name`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, courseQuery); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	const edgeQuery = `SELECT course_id, kind, target_id FROM course_prerequisites ORDER BY course_id, position`
	var edges []prerequisiteRow
	if err := r.db.SelectContext(ctx, &edges, edgeQuery); err != nil {
		return nil, fmt.Errorf("list course prerequisites: %w", err)
	}

	byCourse := make(map[string][]models.PrerequisiteEdge, len(courses))
	for _, edge := range edges {
		byCourse[edge.CourseID] = append(byCourse[edge.CourseID], models.PrerequisiteEdge{
			Kind:     edge.Kind,
			TargetID: edge.TargetID,
		})
	}
	for i := range courses {
		courses[i].Prerequisites = byCourse[courses[i].ID]
	}
	return courses, nil
}

// FindByID returns a course by its ID without prerequisite edges.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, level_id, name, elective, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}
