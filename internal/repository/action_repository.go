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

const actionColumns = `id, report_id, employee_id, investigator_id, issued_by, action_type, action_details, effective_date, due_date,
       status, employee_explanation, explanation_submitted_at, investigation_notes, investigation_findings,
       investigation_recommendation, investigation_completed_at, verdict, verdict_details, verdict_issued_at,
       verdict_issued_by, version, created_at, updated_at`

// ActionRepository persists disciplinary actions and their transitions.
type ActionRepository struct {
	db *sqlx.DB
}

// NewActionRepository constructs the repository.
func NewActionRepository(db *sqlx.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// IssueActionParams groups everything written when an action is issued.
type IssueActionParams struct {
	Action        *models.DisciplinaryAction
	Report        UpdateReportStatusParams
	History       []models.StatusHistory
	Notifications []models.NotificationEvent
}

// Create inserts the action and moves its parent report to action_issued in one
// transaction. The report update is compare-and-set; losing it aborts the insert.
func (r *ActionRepository) Create(ctx context.Context, params IssueActionParams) (err error) {
	action := params.Action
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}
	action.UpdatedAt = action.CreatedAt
	if action.Version == 0 {
		action.Version = 1
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin action transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = updateReportStatus(ctx, tx, params.Report); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO disciplinary_actions (%s)
VALUES (:id, :report_id, :employee_id, :investigator_id, :issued_by, :action_type, :action_details, :effective_date, :due_date,
        :status, :employee_explanation, :explanation_submitted_at, :investigation_notes, :investigation_findings,
        :investigation_recommendation, :investigation_completed_at, :verdict, :verdict_details, :verdict_issued_at,
        :verdict_issued_by, :version, :created_at, :updated_at)`, actionColumns)
	if _, err = tx.NamedExecContext(ctx, query, action); err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return fmt.Errorf("insert action: %w", ErrForeignKey)
		}
		return fmt.Errorf("insert action: %w", err)
	}

	history := params.History
	for i := range history {
		if history[i].EntityID == "" {
			history[i].EntityID = action.ID
		}
	}
	if err = insertHistory(ctx, tx, history); err != nil {
		return err
	}
	for i := range params.Notifications {
		params.Notifications[i].ActionID = action.ID
	}
	if err = insertNotifications(ctx, tx, params.Notifications); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit action: %w", err)
	}
	return nil
}

// GetByID fetches an action by identifier.
func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.DisciplinaryAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM disciplinary_actions WHERE id = $1`, actionColumns)
	var action models.DisciplinaryAction
	if err := r.db.GetContext(ctx, &action, query, id); err != nil {
		return nil, err
	}
	return &action, nil
}

// ListByReport returns the actions of a report, oldest first.
func (r *ActionRepository) ListByReport(ctx context.Context, reportID string) ([]models.DisciplinaryAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM disciplinary_actions WHERE report_id = $1 ORDER BY created_at ASC, id ASC`, actionColumns)
	var actions []models.DisciplinaryAction
	if err := r.db.SelectContext(ctx, &actions, query, reportID); err != nil {
		return nil, fmt.Errorf("list report actions: %w", err)
	}
	return actions, nil
}

// List returns actions matching the filter, newest first, with the total count.
func (r *ActionRepository) List(ctx context.Context, filter models.ActionFilter) ([]models.DisciplinaryAction, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ReportID != "" {
		args = append(args, filter.ReportID)
		conditions = append(conditions, fmt.Sprintf("report_id = $%d", len(args)))
	}
	if filter.EmployeeID != "" && filter.InvestigatorID != "" {
		args = append(args, filter.EmployeeID, filter.InvestigatorID)
		conditions = append(conditions, fmt.Sprintf("(employee_id = $%d OR investigator_id = $%d)", len(args)-1, len(args)))
	} else if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	} else if filter.InvestigatorID != "" {
		args = append(args, filter.InvestigatorID)
		conditions = append(conditions, fmt.Sprintf("investigator_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	whereClause := strings.Join(conditions, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM disciplinary_actions WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		actionColumns, whereClause, size, (page-1)*size)
	var actions []models.DisciplinaryAction
	if err := r.db.SelectContext(ctx, &actions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list actions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM disciplinary_actions WHERE "+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count actions: %w", err)
	}
	return actions, total, nil
}

// ActionTransitionParams describes one guarded read-modify-write of an action.
// Nil pointers leave the column untouched.
type ActionTransitionParams struct {
	ID              string
	FromStatus      models.ActionStatus
	ToStatus        models.ActionStatus
	ExpectedVersion int
	UpdatedAt       time.Time

	EmployeeExplanation    *string
	ExplanationSubmittedAt *time.Time

	SetInvestigator bool
	InvestigatorID  *string

	InvestigationNotes       *string
	InvestigationFindings    *string
	InvestigationRecommended *string
	InvestigationCompletedAt *time.Time

	Verdict         *models.Verdict
	VerdictDetails  *string
	VerdictIssuedAt *time.Time
	VerdictIssuedBy *string

	History       []models.StatusHistory
	Notifications []models.NotificationEvent
}

// Transition applies a compare-and-set update keyed on status and version, and
// writes history and outbox rows in the same transaction. ErrVersionConflict is
// returned when another writer got there first; nothing is written in that case.
func (r *ActionRepository) Transition(ctx context.Context, params ActionTransitionParams) (err error) {
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}
	setParts := []string{"status = :to_status", "version = version + 1", "updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":               params.ID,
		"from_status":      params.FromStatus,
		"to_status":        params.ToStatus,
		"expected_version": params.ExpectedVersion,
		"updated_at":       params.UpdatedAt,
	}
	set := func(column string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = :%s", column, column))
		args[column] = value
	}
	if params.EmployeeExplanation != nil {
		set("employee_explanation", params.EmployeeExplanation)
		set("explanation_submitted_at", params.ExplanationSubmittedAt)
	}
	if params.SetInvestigator {
		set("investigator_id", params.InvestigatorID)
	}
	if params.InvestigationCompletedAt != nil {
		set("investigation_notes", params.InvestigationNotes)
		set("investigation_findings", params.InvestigationFindings)
		set("investigation_recommendation", params.InvestigationRecommended)
		set("investigation_completed_at", params.InvestigationCompletedAt)
	}
	if params.Verdict != nil {
		set("verdict", params.Verdict)
		set("verdict_details", params.VerdictDetails)
		set("verdict_issued_at", params.VerdictIssuedAt)
		set("verdict_issued_by", params.VerdictIssuedBy)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin action transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`UPDATE disciplinary_actions SET %s
WHERE id = :id AND status = :from_status AND version = :expected_version`, strings.Join(setParts, ", "))
	result, err := tx.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check action update rows: %w", err)
	}
	if rows == 0 {
		err = ErrVersionConflict
		return err
	}
	if err = insertHistory(ctx, tx, params.History); err != nil {
		return err
	}
	if err = insertNotifications(ctx, tx, params.Notifications); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit action transition: %w", err)
	}
	return nil
}
