package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/institutoberea/enrollment-api/internal/models"
)

// ErrDuplicateMembership signals that a roster membership already exists for
// the (learner, section) pair. Callers on the approval path treat it as a
// benign outcome rather than a failure.
var ErrDuplicateMembership = errors.New("roster membership already exists")

const pqUniqueViolation = "23505"

// RosterRepository handles persistence of roster memberships.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListCourseStatusesByLearner returns the learner's memberships across all
// cycles with the owning course resolved. Completion history is
// cycle-independent, so no cycle filter applies here.
func (r *RosterRepository) ListCourseStatusesByLearner(ctx context.Context, learnerID string) ([]models.LearnerCourseStatus, error) {
	const query = `SELECT rm.section_id, sec.course_id, rm.status
        FROM roster_memberships rm
        JOIN sections sec ON sec.id = rm.section_id
        WHERE rm.learner_id = $1`
	var statuses []models.LearnerCourseStatus
	if err := r.db.SelectContext(ctx, &statuses, query, learnerID); err != nil {
		return nil, fmt.Errorf("list learner course statuses: %w", err)
	}
	return statuses, nil
}

// Find returns the membership for a (learner, section) pair.
func (r *RosterRepository) Find(ctx context.Context, learnerID, sectionID string) (*models.RosterMembership, error) {
	const query = `SELECT id, learner_id, section_id, status, created_at, updated_at
        FROM roster_memberships WHERE learner_id = $1 AND section_id = $2`
	var membership models.RosterMembership
	if err := r.db.GetContext(ctx, &membership, query, learnerID, sectionID); err != nil {
		return nil, err
	}
	return &membership, nil
}

// Create persists a new membership. A unique index on (learner_id,
// section_id) backs the idempotent approval path: a violation is mapped to
// ErrDuplicateMembership.
func (r *RosterRepository) Create(ctx context.Context, membership *models.RosterMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = now
	}
	membership.UpdatedAt = now
	const query = `INSERT INTO roster_memberships (id, learner_id, section_id, status, created_at, updated_at)
        VALUES (:id, :learner_id, :section_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateMembership
		}
		return fmt.Errorf("create roster membership: %w", err)
	}
	return nil
}

// ListConfirmedDetail returns the confirmed roster of a section with learner
// names resolved, used by roster exports.
func (r *RosterRepository) ListConfirmedDetail(ctx context.Context, sectionID string) ([]models.RosterEntryDetail, error) {
	const query = `SELECT rm.learner_id, lr.full_name AS learner_name, rm.status, rm.created_at AS joined_at
        FROM roster_memberships rm
        JOIN learners lr ON lr.id = rm.learner_id
        WHERE rm.section_id = $1 AND rm.status = $2
        ORDER BY lr.full_name`
	var entries []models.RosterEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, sectionID, models.MembershipStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list confirmed roster: %w", err)
	}
	return entries, nil
}
