package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/institutoberea/enrollment-api/internal/models"
)

// SectionRepository handles read access to classroom sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListDetailsByCycle returns the sections of a cycle with course and level
// info resolved.
func (r *SectionRepository) ListDetailsByCycle(ctx context.Context, cycleID string) ([]models.SectionDetail, error) {
	const query = `SELECT sec.id, sec.course_id, sec.cycle_id, sec.name, sec.capacity, sec.created_at,
        c.name AS course_name, c.level_id AS course_level_id, l.name AS level_name
        FROM sections sec
        JOIN courses c ON c.id = sec.course_id
        LEFT JOIN levels l ON l.id = c.level_id
        WHERE sec.cycle_id = $1
        ORDER BY sec.name`
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, cycleID); err != nil {
		return nil, fmt.Errorf("list sections for cycle: %w", err)
	}
	return sections, nil
}

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.ClassroomSection, error) {
	const query = `SELECT id, course_id, cycle_id, name, capacity, created_at FROM sections WHERE id = $1`
	var section models.ClassroomSection
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

type sectionCount struct {
	SectionID string `db:"section_id"`
	Count     int    `db:"count"`
}

// CountConfirmedBySection returns confirmed (enrolled) membership counts for
// every section in the cycle, keyed by section id. Sections without members
// are absent from the map.
func (r *SectionRepository) CountConfirmedBySection(ctx context.Context, cycleID string) (map[string]int, error) {
	const query = `SELECT rm.section_id, COUNT(*) AS count
        FROM roster_memberships rm
        JOIN sections sec ON sec.id = rm.section_id
        WHERE sec.cycle_id = $1 AND rm.status = $2
        GROUP BY rm.section_id`
	var rows []sectionCount
	if err := r.db.SelectContext(ctx, &rows, query, cycleID, models.MembershipStatusEnrolled); err != nil {
		return nil, fmt.Errorf("count confirmed memberships: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.SectionID] = row.Count
	}
	return counts, nil
}
