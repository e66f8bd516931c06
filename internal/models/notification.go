package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// NotificationEventType enumerates workflow events handed to the dispatcher.
type NotificationEventType string

const (
	EventActionIssued          NotificationEventType = "ActionIssued"
	EventInvestigationAssigned NotificationEventType = "InvestigationAssigned"
	EventVerdictIssued         NotificationEventType = "VerdictIssued"
)

// RecipientRole tells consumers why a recipient is notified.
type RecipientRole string

const (
	RecipientEmployee     RecipientRole = "employee"
	RecipientInvestigator RecipientRole = "investigator"
	RecipientReporter     RecipientRole = "reporter"
)

// OutboxStatus tracks delivery of a stored notification.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
	// OutboxStatusDead rows exhausted their delivery attempts and are no longer relayed.
	OutboxStatusDead OutboxStatus = "dead"
)

// NotificationEvent is a workflow event addressed to one recipient. ID is stable
// across redeliveries so consumers can dedupe.
type NotificationEvent struct {
	ID            string                `db:"id" json:"id"`
	EventType     NotificationEventType `db:"event_type" json:"event_type"`
	RecipientID   string                `db:"recipient_id" json:"recipient_id"`
	RecipientRole RecipientRole         `db:"recipient_role" json:"recipient_role"`
	ReportID      string                `db:"report_id" json:"report_id"`
	ActionID      string                `db:"action_id" json:"action_id"`
	Payload       JSONPayload           `db:"payload" json:"payload,omitempty"`
	Status        OutboxStatus          `db:"status" json:"status"`
	RetryCount    int                   `db:"retry_count" json:"retry_count"`
	NextRetryAt   *time.Time            `db:"next_retry_at" json:"next_retry_at,omitempty"`
	OccurredAt    time.Time             `db:"occurred_at" json:"occurred_at"`
}

// JSONPayload holds raw JSON stored in a jsonb column.
type JSONPayload []byte

// Value implements driver.Valuer. Text is sent so Postgres parses it as jsonb.
func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	return string(p), nil
}

// Scan implements sql.Scanner.
func (p *JSONPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = append(JSONPayload(nil), v...)
	case string:
		*p = JSONPayload(v)
	default:
		return fmt.Errorf("scan payload: unsupported type %T", src)
	}
	return nil
}

// MarshalJSON emits the payload verbatim.
func (p JSONPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of the raw payload.
func (p *JSONPayload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[0:0], data...)
	return nil
}
