package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/institutoberea/enrollment-api/internal/models"
)

// LevelRepository handles read access to program levels.
type LevelRepository struct {
	db *sqlx.DB
}

// NewLevelRepository constructs the repository.
func NewLevelRepository(db *sqlx.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

// List returns all levels.
func (r *LevelRepository) List(ctx context.Context) ([]models.Level, error) {
	const query = `SELECT id, name, created_at FROM levels ORDER BY name`
	var levels []models.Level
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return levels, nil
}

// FindByID returns a level by its ID.
func (r *LevelRepository) FindByID(ctx context.Context, id string) (*models.Level, error) {
	const query = `SELECT id, name, created_at FROM levels WHERE id = $1`
	var level models.Level
	if err := r.db.GetContext(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}
