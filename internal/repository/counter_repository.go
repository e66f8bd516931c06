package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const reportNumberCounter = "disciplinary_report"

// nextCounterValue atomically increments and returns the named sequence. It runs
// inside the transaction that inserts the numbered row; the row lock on the counter
// serialises concurrent submitters.
func nextCounterValue(ctx context.Context, tx *sqlx.Tx, counterType string) (int64, error) {
	const query = `INSERT INTO discipline_counters (counter_type, last_value, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (counter_type) DO UPDATE
SET last_value = discipline_counters.last_value + 1, updated_at = now()
RETURNING last_value`
	var next int64
	if err := tx.GetContext(ctx, &next, query, counterType); err != nil {
		return 0, fmt.Errorf("next %s counter: %w", counterType, err)
	}
	return next, nil
}

// FormatReportNumber renders a sequence value as a report number.
func FormatReportNumber(seq int64) string {
	return fmt.Sprintf("DR-%06d", seq)
}
