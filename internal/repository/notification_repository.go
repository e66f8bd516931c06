package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

const notificationColumns = `id, event_type, recipient_id, recipient_role, report_id, action_id, payload, status, retry_count, next_retry_at, occurred_at`

// DefaultMaxDeliveryAttempts is the failure count after which a row is dead.
const DefaultMaxDeliveryAttempts = 10

// NotificationRepository persists the notification outbox.
type NotificationRepository struct {
	db          *sqlx.DB
	maxAttempts int
}

// NewNotificationRepository constructs the repository. Rows that fail
// maxAttempts times are marked dead; non-positive values use the default.
func NewNotificationRepository(db *sqlx.DB, maxAttempts int) *NotificationRepository {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxDeliveryAttempts
	}
	return &NotificationRepository{db: db, maxAttempts: maxAttempts}
}

// ListPending returns deliverable events, oldest first.
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM notification_outbox
WHERE status IN ($1, $2) AND (next_retry_at IS NULL OR next_retry_at <= $3)
ORDER BY occurred_at ASC
LIMIT %d`, notificationColumns, limit)
	var events []models.NotificationEvent
	if err := r.db.SelectContext(ctx, &events, query, models.OutboxStatusPending, models.OutboxStatusFailed, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return events, nil
}

// MarkSent flags an event as delivered.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	const query = `UPDATE notification_outbox SET status = $2, sent_at = $3, error_message = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.OutboxStatusSent, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one with linear
// backoff. The attempt that reaches the cap marks the row dead instead.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	const query = `UPDATE notification_outbox
SET status = CASE WHEN retry_count + 1 >= $5 THEN $4 ELSE $2 END,
	retry_count = retry_count + 1,
	error_message = LEFT($3, 500),
	next_retry_at = CASE WHEN retry_count + 1 >= $5 THEN NULL
		ELSE NOW() + (LEAST(retry_count + 1, 10) * INTERVAL '15 seconds') END
WHERE id = $1 AND status IN ('pending', 'failed')`
	if _, err := r.db.ExecContext(ctx, query, id, models.OutboxStatusFailed, reason, models.OutboxStatusDead, r.maxAttempts); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

func insertNotifications(ctx context.Context, exec namedExecer, events []models.NotificationEvent) error {
	query := fmt.Sprintf(`INSERT INTO notification_outbox (%s)
VALUES (:id, :event_type, :recipient_id, :recipient_role, :report_id, :action_id, :payload, :status, :retry_count, :next_retry_at, :occurred_at)`, notificationColumns)
	for i := range events {
		event := &events[i]
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Status == "" {
			event.Status = models.OutboxStatusPending
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = time.Now().UTC()
		}
		if _, err := exec.NamedExecContext(ctx, query, event); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}
