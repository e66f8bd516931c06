package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

const (
	reportColumns = `id, report_number, employee_id, reporter_id, category_id, incident_date, incident_description,
       evidence, witnesses, priority, status, hr_notes, reviewed_by, reviewed_at, created_at, updated_at`
	reportNumberConstraint = "disciplinary_reports_report_number_key"
	maxReportNumberRetries = 3
)

// ReportRepository persists disciplinary reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create assigns the next report number and inserts the report together with its
// first history row. A report number collision (legacy rows imported outside the
// counter) is retried with a fresh number.
func (r *ReportRepository) Create(ctx context.Context, report *models.DisciplinaryReport, history models.StatusHistory) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = report.CreatedAt
	if report.Witnesses == nil {
		report.Witnesses = models.Witnesses{}
	}

	var err error
	for attempt := 1; attempt <= maxReportNumberRetries; attempt++ {
		err = r.createOnce(ctx, report, history)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err, reportNumberConstraint) {
			break
		}
	}
	if pqCode(err) == pqForeignKeyViolation {
		return fmt.Errorf("create report: %w", ErrForeignKey)
	}
	return err
}

func (r *ReportRepository) createOnce(ctx context.Context, report *models.DisciplinaryReport, history models.StatusHistory) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	seq, err := nextCounterValue(ctx, tx, reportNumberCounter)
	if err != nil {
		return err
	}
	report.ReportNumber = FormatReportNumber(seq)

	query := fmt.Sprintf(`INSERT INTO disciplinary_reports (%s)
VALUES (:id, :report_number, :employee_id, :reporter_id, :category_id, :incident_date, :incident_description,
        :evidence, :witnesses, :priority, :status, :hr_notes, :reviewed_by, :reviewed_at, :created_at, :updated_at)`, reportColumns)
	if _, err = tx.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	history.EntityType = models.HistoryEntityReport
	history.EntityID = report.ID
	history.CreatedAt = report.CreatedAt
	if err = insertHistory(ctx, tx, []models.StatusHistory{history}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

// GetByID fetches a report by identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.DisciplinaryReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM disciplinary_reports WHERE id = $1`, reportColumns)
	var report models.DisciplinaryReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports matching the filter, newest first, with the total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.DisciplinaryReport, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.ReporterID != "" {
		args = append(args, filter.ReporterID)
		where = append(where, fmt.Sprintf("reporter_id = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM disciplinary_reports WHERE %s ORDER BY created_at DESC, report_number DESC LIMIT %d OFFSET %d`,
		reportColumns, whereClause, size, offset)
	var reports []models.DisciplinaryReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM disciplinary_reports WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// ListPriorViolations returns non-dismissed reports for the same employee and
// category, most recent incident first, capped at filter.Limit, plus the total.
// With ExcludeReportID set only reports ordered strictly before that report by
// (incident_date, created_at) are counted.
func (r *ReportRepository) ListPriorViolations(ctx context.Context, filter models.PriorViolationFilter) ([]models.PriorViolation, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	where := `employee_id = $1 AND category_id = $2 AND status <> $3`
	args := []interface{}{filter.EmployeeID, filter.CategoryID, models.ReportStatusDismissed}
	if filter.ExcludeReportID != "" {
		where += ` AND id <> $4 AND (incident_date, created_at) < (SELECT ref.incident_date, ref.created_at FROM disciplinary_reports ref WHERE ref.id = $4)`
		args = append(args, filter.ExcludeReportID)
	}

	query := fmt.Sprintf(`SELECT id, report_number, incident_date, status, priority
FROM disciplinary_reports WHERE %s
ORDER BY incident_date DESC, created_at DESC LIMIT %d`, where, limit)
	var items []models.PriorViolation
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list prior violations: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM disciplinary_reports WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count prior violations: %w", err)
	}
	return items, total, nil
}

// UpdateReportStatusParams groups the columns a report transition may change.
type UpdateReportStatusParams struct {
	ID         string
	From       models.ReportStatus
	To         models.ReportStatus
	NoteLine   string
	ReviewedBy *string
	ReviewedAt *time.Time
	UpdatedAt  time.Time
	History    models.StatusHistory
}

// UpdateStatus applies a compare-and-set transition on the report status. Notes
// are appended in SQL so concurrent reviews never overwrite each other.
func (r *ReportRepository) UpdateStatus(ctx context.Context, params UpdateReportStatusParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = updateReportStatus(ctx, tx, params); err != nil {
		return err
	}
	params.History.EntityType = models.HistoryEntityReport
	params.History.EntityID = params.ID
	if err = insertHistory(ctx, tx, []models.StatusHistory{params.History}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit report status: %w", err)
	}
	return nil
}

func updateReportStatus(ctx context.Context, exec namedExecer, params UpdateReportStatusParams) error {
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}
	setParts := []string{"status = :to_status", "updated_at = :updated_at"}
	if params.NoteLine != "" {
		setParts = append(setParts, "hr_notes = CASE WHEN COALESCE(hr_notes, '') = '' THEN :note_line ELSE hr_notes || E'\\n' || :note_line END")
	}
	if params.ReviewedBy != nil {
		setParts = append(setParts, "reviewed_by = :reviewed_by", "reviewed_at = :reviewed_at")
	}
	query := fmt.Sprintf("UPDATE disciplinary_reports SET %s WHERE id = :id AND status = :from_status", strings.Join(setParts, ", "))
	result, err := exec.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"from_status": params.From,
		"to_status":   params.To,
		"note_line":   params.NoteLine,
		"reviewed_by": params.ReviewedBy,
		"reviewed_at": params.ReviewedAt,
		"updated_at":  params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}
