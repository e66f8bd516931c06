package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

var actionRowColumns = []string{"id", "report_id", "employee_id", "investigator_id", "issued_by", "action_type", "action_details", "effective_date", "due_date",
	"status", "employee_explanation", "explanation_submitted_at", "investigation_notes", "investigation_findings",
	"investigation_recommendation", "investigation_completed_at", "verdict", "verdict_details", "verdict_issued_at",
	"verdict_issued_by", "version", "created_at", "updated_at"}

func TestActionRepositoryCreateMovesReport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disciplinary_reports SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disciplinary_actions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO discipline_status_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO discipline_status_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_outbox")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	action := &models.DisciplinaryAction{
		ReportID:      "rep-1",
		EmployeeID:    "emp-1",
		IssuedBy:      "hr-1",
		ActionType:    models.ActionTypeWrittenWarning,
		ActionDetails: "second tardiness",
		EffectiveDate: time.Now().UTC(),
		Status:        models.ActionStatusActionIssued,
	}
	params := IssueActionParams{
		Action: action,
		Report: UpdateReportStatusParams{ID: "rep-1", From: models.ReportStatusUnderReview, To: models.ReportStatusActionIssued},
		History: []models.StatusHistory{
			{EntityType: models.HistoryEntityReport, EntityID: "rep-1", ToStatus: "action_issued", ActorID: "hr-1"},
			{EntityType: models.HistoryEntityAction, ToStatus: "action_issued", ActorID: "hr-1"},
		},
		Notifications: []models.NotificationEvent{{ID: "evt-1", EventType: models.EventActionIssued, RecipientID: "emp-1", RecipientRole: models.RecipientEmployee, ReportID: "rep-1"}},
	}
	require.NoError(t, repo.Create(context.Background(), params))
	assert.Equal(t, 1, action.Version)
	assert.Equal(t, action.ID, params.History[1].EntityID)
	assert.Equal(t, "rep-1", params.History[0].EntityID)
	assert.Equal(t, action.ID, params.Notifications[0].ActionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepositoryCreateAbortsWhenReportMoved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disciplinary_reports SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), IssueActionParams{
		Action: &models.DisciplinaryAction{ReportID: "rep-1", Status: models.ActionStatusActionIssued},
		Report: UpdateReportStatusParams{ID: "rep-1", From: models.ReportStatusReported, To: models.ReportStatusActionIssued},
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepositoryCreateMapsForeignKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disciplinary_reports SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disciplinary_actions")).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), IssueActionParams{
		Action: &models.DisciplinaryAction{ReportID: "rep-1", Status: models.ActionStatusActionIssued},
		Report: UpdateReportStatusParams{ID: "rep-1", From: models.ReportStatusReported, To: models.ReportStatusActionIssued},
	})
	require.ErrorIs(t, err, ErrForeignKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(actionRowColumns).
		AddRow("act-1", "rep-1", "emp-1", "inv-1", "hr-1", "suspension", "3 days", now, nil,
			"under_investigation", "i was sick", now, nil, nil,
			nil, nil, nil, nil, nil,
			nil, 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, report_id, employee_id")).
		WithArgs("act-1").
		WillReturnRows(rows)

	action, err := repo.GetByID(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusUnderInvestigation, action.Status)
	assert.True(t, action.HasInvestigator())
	assert.True(t, action.HasExplanation())
	assert.False(t, action.HasInvestigation())
	assert.Nil(t, action.Verdict)
	assert.Equal(t, 2, action.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepositoryListForActor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND (employee_id = $1 OR investigator_id = $2) ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0")).
		WithArgs("user-1", "user-1").
		WillReturnRows(sqlmock.NewRows(actionRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM disciplinary_actions WHERE 1=1 AND (employee_id = $1 OR investigator_id = $2)")).
		WithArgs("user-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	actions, total, err := repo.List(context.Background(), models.ActionFilter{EmployeeID: "user-1", InvestigatorID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepositoryTransitionWritesHistoryAndOutbox(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	now := time.Now().UTC()
	verdict := models.VerdictDismiss
	details := "insufficient evidence"
	issuer := "hrm-1"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE disciplinary_actions SET status = \?, version = version \+ 1, updated_at = \?, verdict = \?, verdict_details = \?, verdict_issued_at = \?, verdict_issued_by = \?\s+WHERE id = \? AND status = \? AND version = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO discipline_status_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_outbox")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_outbox")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), ActionTransitionParams{
		ID:              "act-1",
		FromStatus:      models.ActionStatusAwaitingVerdict,
		ToStatus:        models.ActionStatusDismissed,
		ExpectedVersion: 3,
		Verdict:         &verdict,
		VerdictDetails:  &details,
		VerdictIssuedAt: &now,
		VerdictIssuedBy: &issuer,
		History:         []models.StatusHistory{{EntityType: models.HistoryEntityAction, EntityID: "act-1", ToStatus: "dismissed", ActorID: issuer}},
		Notifications: []models.NotificationEvent{
			{EventType: models.EventVerdictIssued, RecipientID: "emp-1", RecipientRole: models.RecipientEmployee},
			{EventType: models.EventVerdictIssued, RecipientID: "mgr-1", RecipientRole: models.RecipientReporter},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepositoryTransitionLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disciplinary_actions SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), ActionTransitionParams{
		ID:              "act-1",
		FromStatus:      models.ActionStatusAwaitingVerdict,
		ToStatus:        models.ActionStatusCompleted,
		ExpectedVersion: 3,
		History:         []models.StatusHistory{{EntityType: models.HistoryEntityAction, EntityID: "act-1", ToStatus: "completed", ActorID: "hrm-1"}},
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
