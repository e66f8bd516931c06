package models

import "time"

// HistoryEntity names the aggregate a status history row belongs to.
type HistoryEntity string

const (
	HistoryEntityReport HistoryEntity = "report"
	HistoryEntityAction HistoryEntity = "action"
)

// StatusHistory is one append-only step in a report or action timeline.
type StatusHistory struct {
	ID         string        `db:"id" json:"id"`
	EntityType HistoryEntity `db:"entity_type" json:"entity_type"`
	EntityID   string        `db:"entity_id" json:"entity_id"`
	FromStatus *string       `db:"from_status" json:"from_status,omitempty"`
	ToStatus   string        `db:"to_status" json:"to_status"`
	ActorID    string        `db:"actor_id" json:"actor_id"`
	Note       *string       `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}
