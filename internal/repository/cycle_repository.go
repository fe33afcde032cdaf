package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/institutoberea/enrollment-api/internal/models"
)

// CycleRepository handles read access to enrollment cycles.
type CycleRepository struct {
	db *sqlx.DB
}

// NewCycleRepository constructs the repository.
func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// FindOpen returns every cycle currently flagged open for enrollment,
// newest start date first. The caller picks the winner.
func (r *CycleRepository) FindOpen(ctx context.Context) ([]models.Cycle, error) {
	const query = `SELECT id, name, enrollment_open, start_date, created_at
        FROM cycles WHERE enrollment_open = TRUE ORDER BY start_date DESC`
	var cycles []models.Cycle
	if err := r.db.SelectContext(ctx, &cycles, query); err != nil {
		return nil, fmt.Errorf("find open cycles: %w", err)
	}
	return cycles, nil
}

// FindByID returns a cycle by its ID.
func (r *CycleRepository) FindByID(ctx context.Context, id string) (*models.Cycle, error) {
	const query = `SELECT id, name, enrollment_open, start_date, created_at FROM cycles WHERE id = $1`
	var cycle models.Cycle
	if err := r.db.GetContext(ctx, &cycle, query, id); err != nil {
		return nil, err
	}
	return &cycle, nil
}
