package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// HistoryRepository reads report and action timelines.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListForCase returns every history row for a report and its actions, oldest first.
func (r *HistoryRepository) ListForCase(ctx context.Context, reportID string) ([]models.StatusHistory, error) {
	const query = `SELECT id, entity_type, entity_id, from_status, to_status, actor_id, note, created_at
FROM discipline_status_history
WHERE (entity_type = 'report' AND entity_id = $1)
   OR (entity_type = 'action' AND entity_id IN (SELECT id FROM disciplinary_actions WHERE report_id = $1))
ORDER BY created_at ASC, id ASC`
	var rows []models.StatusHistory
	if err := r.db.SelectContext(ctx, &rows, query, reportID); err != nil {
		return nil, fmt.Errorf("list case history: %w", err)
	}
	return rows, nil
}

func insertHistory(ctx context.Context, exec namedExecer, entries []models.StatusHistory) error {
	const query = `INSERT INTO discipline_status_history (id, entity_type, entity_id, from_status, to_status, actor_id, note, created_at)
VALUES (:id, :entity_type, :entity_id, :from_status, :to_status, :actor_id, :note, :created_at)`
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		if _, err := exec.NamedExecContext(ctx, query, entry); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
	}
	return nil
}
