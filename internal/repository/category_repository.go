package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

const categoryColumns = `id, name, description, severity_level, suggested_actions, is_active, created_at, updated_at`

// CategoryRepository reads disciplinary categories. Categories are maintained by
// the HR master-data service; this service never writes them.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID fetches a category by id.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.DisciplinaryCategory, error) {
	query := fmt.Sprintf(`SELECT %s FROM disciplinary_categories WHERE id = $1`, categoryColumns)
	var category models.DisciplinaryCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &category, nil
}

// List returns categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]models.DisciplinaryCategory, error) {
	query := fmt.Sprintf(`SELECT %s FROM disciplinary_categories`, categoryColumns)
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var categories []models.DisciplinaryCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
