package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/institutoberea/enrollment-api/internal/models"
)

// RequestRepository handles persistence of enrollment requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindByID returns an enrollment request by its ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	const query = `SELECT id, learner_id, section_id, status, note, created_at, decided_at
        FROM enrollment_requests WHERE id = $1`
	var request models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create persists a new enrollment request.
func (r *RequestRepository) Create(ctx context.Context, request *models.EnrollmentRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	const query = `INSERT INTO enrollment_requests (id, learner_id, section_id, status, note, created_at, decided_at)
        VALUES (:id, :learner_id, :section_id, :status, :note, :created_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// UpdateStatus transitions a request and stamps the decision time. The note
// is only overwritten when provided.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, note *string) error {
	const query = `UPDATE enrollment_requests
        SET status = $2, note = COALESCE($3, note), decided_at = $4
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, note, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment request status: %w", err)
	}
	return nil
}

// ListByLearnerAndSections returns the learner's requests against any of the
// provided sections holding one of the provided statuses. Used to compute the
// already-requested set for the open cycle.
func (r *RequestRepository) ListByLearnerAndSections(ctx context.Context, learnerID string, sectionIDs []string, statuses []models.RequestStatus) ([]models.EnrollmentRequest, error) {
	if len(sectionIDs) == 0 || len(statuses) == 0 {
		return nil, nil
	}

	args := []interface{}{learnerID}
	sectionPlaceholders := make([]string, len(sectionIDs))
	for i, id := range sectionIDs {
		args = append(args, id)
		sectionPlaceholders[i] = fmt.Sprintf("$%d", len(args))
	}
	statusPlaceholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		statusPlaceholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf(`SELECT id, learner_id, section_id, status, note, created_at, decided_at
        FROM enrollment_requests
        WHERE learner_id = $1 AND section_id IN (%s) AND status IN (%s)`,
		strings.Join(sectionPlaceholders, ","), strings.Join(statusPlaceholders, ","))

	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment requests by sections: %w", err)
	}
	return requests, nil
}

// List returns enrollment requests filtered by the provided criteria.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.EnrollmentRequest, int, error) {
	base := `FROM enrollment_requests`
	var conditions []string
	var args []interface{}

	if filter.LearnerID != "" {
		conditions = append(conditions, fmt.Sprintf("learner_id = $%d", len(args)+1))
		args = append(args, filter.LearnerID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, learner_id, section_id, status, note, created_at, decided_at
        %s ORDER BY created_at %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment requests: %w", err)
	}
	return requests, total, nil
}
