package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/repository"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

type actionStore interface {
	Create(ctx context.Context, params repository.IssueActionParams) error
	GetByID(ctx context.Context, id string) (*models.DisciplinaryAction, error)
	ListByReport(ctx context.Context, reportID string) ([]models.DisciplinaryAction, error)
	List(ctx context.Context, filter models.ActionFilter) ([]models.DisciplinaryAction, int, error)
	Transition(ctx context.Context, params repository.ActionTransitionParams) error
}

type reportReader interface {
	GetByID(ctx context.Context, id string) (*models.DisciplinaryReport, error)
}

// ActionService runs the action-level state machine. Every mutation is a guarded
// read followed by a single compare-and-set write; notifications are handed to
// the notifier only after that write committed.
type ActionService struct {
	repo      actionStore
	reports   reportReader
	roles     RoleLookup
	notifier  EventNotifier
	audit     auditWriter
	policy    WorkflowPolicy
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ActionServiceOption configures the service.
type ActionServiceOption func(*ActionService)

// WithActionMetrics attaches workflow metrics.
func WithActionMetrics(metrics *MetricsService) ActionServiceOption {
	return func(s *ActionService) { s.metrics = metrics }
}

// WithActionClock overrides the clock.
func WithActionClock(now func() time.Time) ActionServiceOption {
	return func(s *ActionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewActionService constructs the service.
func NewActionService(repo actionStore, reports reportReader, roles RoleLookup, notifier EventNotifier, audit auditWriter, policy WorkflowPolicy, validate *validator.Validate, logger *zap.Logger, opts ...ActionServiceOption) *ActionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(policy.VerdictRoles) == 0 {
		policy.VerdictRoles = NewRoleSet(DefaultVerdictRoles...)
	}
	svc := &ActionService{
		repo:      repo,
		reports:   reports,
		roles:     roles,
		notifier:  notifier,
		audit:     audit,
		policy:    policy,
		validator: newDisciplineValidator(validate),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Policy returns the active workflow policy.
func (s *ActionService) Policy() WorkflowPolicy {
	return s.policy
}

// Issue creates an action against a report still awaiting a decision and moves
// the report to action_issued in the same transaction.
func (s *ActionService) Issue(ctx context.Context, reportID, hrUserID string, req dto.IssueActionRequest) (*models.DisciplinaryAction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "action")
	}
	if strings.TrimSpace(req.ActionDetails) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action_details is required")
	}
	if req.DueDate != nil && req.DueDate.Before(req.EffectiveDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date cannot be before effective_date")
	}
	if _, err := authorize(ctx, s.roles, hrUserID, HRRoles, "issue disciplinary actions"); err != nil {
		return nil, err
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}
	if report.Status != models.ReportStatusReported && report.Status != models.ReportStatusUnderReview {
		s.metrics.RecordConflict(models.HistoryEntityReport, "state")
		return nil, appErrors.StateConflict("report", report.ID, string(report.Status),
			string(models.ReportStatusReported), string(models.ReportStatusUnderReview))
	}
	investigatorID, err := s.checkInvestigator(ctx, report.EmployeeID, req.InvestigatorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	action := &models.DisciplinaryAction{
		ID:             uuid.NewString(),
		ReportID:       report.ID,
		EmployeeID:     report.EmployeeID,
		InvestigatorID: investigatorID,
		IssuedBy:       hrUserID,
		ActionType:     models.ActionType(req.ActionType),
		ActionDetails:  strings.TrimSpace(req.ActionDetails),
		EffectiveDate:  req.EffectiveDate.UTC(),
		DueDate:        req.DueDate,
		Status:         models.ActionStatusActionIssued,
		Version:        1,
		CreatedAt:      now,
	}
	events := []models.NotificationEvent{
		s.event(models.EventActionIssued, action.EmployeeID, models.RecipientEmployee, report, action, now),
	}
	if action.HasInvestigator() {
		events = append(events, s.event(models.EventInvestigationAssigned, *action.InvestigatorID, models.RecipientInvestigator, report, action, now))
	}
	params := repository.IssueActionParams{
		Action: action,
		Report: repository.UpdateReportStatusParams{
			ID:        report.ID,
			From:      report.Status,
			To:        models.ReportStatusActionIssued,
			UpdatedAt: now,
		},
		History: []models.StatusHistory{
			historyStep(models.HistoryEntityReport, report.ID, string(report.Status), string(models.ReportStatusActionIssued), hrUserID, nil, now),
			historyStep(models.HistoryEntityAction, action.ID, "", string(models.ActionStatusActionIssued), hrUserID, nil, now),
		},
		Notifications: events,
	}
	if err := s.repo.Create(ctx, params); err != nil {
		return nil, s.writeError(err, models.HistoryEntityAction, "issue action")
	}

	s.metrics.RecordTransition(models.HistoryEntityReport, string(models.ReportStatusActionIssued))
	s.metrics.RecordTransition(models.HistoryEntityAction, string(action.Status))
	logTransition(ctx, s.logger, models.HistoryEntityReport, report.ID, string(report.Status), string(models.ReportStatusActionIssued), hrUserID)
	logTransition(ctx, s.logger, models.HistoryEntityAction, action.ID, "", string(action.Status), hrUserID)
	s.record(ctx, hrUserID, models.AuditActionActionIssue, action.ID, nil, action)
	s.notify(ctx, events)
	return action, nil
}

// SubmitExplanation records the employee's explanation. The action moves on to
// under_investigation when an investigator is assigned and to awaiting_verdict
// otherwise, passing through explanation_submitted in the same write.
func (s *ActionService) SubmitExplanation(ctx context.Context, actionID, employeeID, text string) (*models.DisciplinaryAction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "explanation is required")
	}
	action, err := s.load(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(employeeID) == "" || employeeID != action.EmployeeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the employee named in the action may explain it")
	}
	if action.Status != models.ActionStatusActionIssued {
		return nil, s.stateConflict(action, models.ActionStatusActionIssued)
	}

	next := models.ActionStatusAwaitingVerdict
	if action.HasInvestigator() {
		next = models.ActionStatusUnderInvestigation
	}
	now := s.now()
	params := repository.ActionTransitionParams{
		EmployeeExplanation:    &text,
		ExplanationSubmittedAt: &now,
	}
	path := []models.ActionStatus{models.ActionStatusExplanationSubmitted, next}
	if err := s.apply(ctx, action, path, employeeID, nil, now, &params); err != nil {
		return nil, err
	}
	action.EmployeeExplanation = &text
	action.ExplanationSubmittedAt = &now
	s.record(ctx, employeeID, models.AuditActionExplanationSubmit, action.ID, nil, map[string]string{"status": string(next)})
	return action, nil
}

// SubmitInvestigation records investigation results and moves the action to
// awaiting_verdict through investigation_completed. Only the assigned investigator
// may submit. When the policy does not require an explanation, results are also
// accepted straight from action_issued.
func (s *ActionService) SubmitInvestigation(ctx context.Context, actionID, investigatorID string, req dto.SubmitInvestigationRequest) (*models.DisciplinaryAction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "investigation")
	}
	notes := strings.TrimSpace(req.Notes)
	findings := strings.TrimSpace(req.Findings)
	recommendation := strings.TrimSpace(req.Recommendation)
	if notes == "" || findings == "" || recommendation == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "notes, findings and recommendation are required")
	}
	action, err := s.load(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !action.HasInvestigator() || strings.TrimSpace(investigatorID) == "" || *action.InvestigatorID != investigatorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned investigator may submit findings")
	}

	var path []models.ActionStatus
	switch {
	case action.Status == models.ActionStatusUnderInvestigation:
		path = []models.ActionStatus{models.ActionStatusInvestigationCompleted, models.ActionStatusAwaitingVerdict}
	case action.Status == models.ActionStatusActionIssued && !s.policy.RequireExplanationBeforeVerdict:
		path = []models.ActionStatus{models.ActionStatusUnderInvestigation, models.ActionStatusInvestigationCompleted, models.ActionStatusAwaitingVerdict}
	default:
		expected := []models.ActionStatus{models.ActionStatusUnderInvestigation}
		if !s.policy.RequireExplanationBeforeVerdict {
			expected = append(expected, models.ActionStatusActionIssued)
		}
		return nil, s.stateConflict(action, expected...)
	}

	now := s.now()
	params := repository.ActionTransitionParams{
		InvestigationNotes:       &notes,
		InvestigationFindings:    &findings,
		InvestigationRecommended: &recommendation,
		InvestigationCompletedAt: &now,
	}
	if err := s.apply(ctx, action, path, investigatorID, nil, now, &params); err != nil {
		return nil, err
	}
	action.InvestigationNotes = &notes
	action.InvestigationFindings = &findings
	action.InvestigationRecommended = &recommendation
	action.InvestigationCompletedAt = &now
	s.record(ctx, investigatorID, models.AuditActionInvestigationSubmit, action.ID, nil, map[string]string{"recommendation": recommendation})
	return action, nil
}

// IssueVerdict closes an action awaiting a verdict. uphold completes the action and
// dismiss dismisses it; both are terminal, so a second call always conflicts.
func (s *ActionService) IssueVerdict(ctx context.Context, actionID, hrUserID string, req dto.IssueVerdictRequest) (*models.DisciplinaryAction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "verdict")
	}
	verdict := models.Verdict(strings.ToLower(strings.TrimSpace(req.Verdict)))
	details := strings.TrimSpace(req.Details)
	if details == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "details is required")
	}
	if _, err := authorize(ctx, s.roles, hrUserID, s.policy.VerdictRoles, "issue verdicts"); err != nil {
		return nil, err
	}
	action, err := s.load(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.Status != models.ActionStatusAwaitingVerdict {
		return nil, s.stateConflict(action, models.ActionStatusAwaitingVerdict)
	}
	if s.policy.RequireExplanationBeforeVerdict && !action.HasExplanation() {
		s.metrics.RecordConflict(models.HistoryEntityAction, "state")
		appErr := appErrors.StateConflict("action", action.ID, string(action.Status), string(models.ActionStatusAwaitingVerdict))
		appErr.Message = fmt.Sprintf("action %s has no employee explanation on record", action.ID)
		return nil, appErr
	}
	report, err := s.reports.GetByID(ctx, action.ReportID)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}

	now := s.now()
	params := repository.ActionTransitionParams{
		Verdict:         &verdict,
		VerdictDetails:  &details,
		VerdictIssuedAt: &now,
		VerdictIssuedBy: &hrUserID,
	}
	closing := *action
	closing.Status = verdict.Outcome()
	closing.Verdict = &verdict
	events := []models.NotificationEvent{
		s.event(models.EventVerdictIssued, action.EmployeeID, models.RecipientEmployee, report, &closing, now),
	}
	if report.ReporterID != "" && report.ReporterID != action.EmployeeID {
		events = append(events, s.event(models.EventVerdictIssued, report.ReporterID, models.RecipientReporter, report, &closing, now))
	}
	if err := s.apply(ctx, action, []models.ActionStatus{verdict.Outcome()}, hrUserID, &details, now, &params, events...); err != nil {
		return nil, err
	}
	action.Verdict = &verdict
	action.VerdictDetails = &details
	action.VerdictIssuedAt = &now
	action.VerdictIssuedBy = &hrUserID
	s.record(ctx, hrUserID, models.AuditActionVerdictIssue, action.ID, nil, map[string]string{"verdict": string(verdict)})
	s.notify(ctx, events)
	return action, nil
}

// ReassignInvestigator sets or clears the investigator while the investigation
// has not started. A nil id clears the assignment.
func (s *ActionService) ReassignInvestigator(ctx context.Context, actionID, hrUserID string, investigatorID *string) (*models.DisciplinaryAction, error) {
	if _, err := authorize(ctx, s.roles, hrUserID, HRRoles, "assign investigators"); err != nil {
		return nil, err
	}
	action, err := s.load(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.Status != models.ActionStatusActionIssued {
		return nil, s.stateConflict(action, models.ActionStatusActionIssued)
	}
	assigned, err := s.checkInvestigator(ctx, action.EmployeeID, investigatorID)
	if err != nil {
		return nil, err
	}
	report, err := s.reports.GetByID(ctx, action.ReportID)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}

	now := s.now()
	note := "investigator cleared"
	var events []models.NotificationEvent
	if assigned != nil {
		note = "investigator assigned: " + *assigned
		events = append(events, s.event(models.EventInvestigationAssigned, *assigned, models.RecipientInvestigator, report, action, now))
	}
	params := repository.ActionTransitionParams{
		ID:              action.ID,
		FromStatus:      action.Status,
		ToStatus:        action.Status,
		ExpectedVersion: action.Version,
		UpdatedAt:       now,
		SetInvestigator: true,
		InvestigatorID:  assigned,
		History: []models.StatusHistory{
			historyStep(models.HistoryEntityAction, action.ID, string(action.Status), string(action.Status), hrUserID, &note, now),
		},
		Notifications: events,
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		return nil, s.writeError(err, models.HistoryEntityAction, "reassign investigator")
	}
	previous := action.InvestigatorID
	action.InvestigatorID = assigned
	action.Version++
	action.UpdatedAt = now
	s.logger.Info("discipline investigator reassigned", zap.String("action_id", action.ID), zap.String("actor", hrUserID))
	s.record(ctx, hrUserID, models.AuditActionInvestigatorAssign, action.ID,
		map[string]*string{"investigator_id": previous}, map[string]*string{"investigator_id": assigned})
	s.notify(ctx, events)
	return action, nil
}

// Get returns an action by id.
func (s *ActionService) Get(ctx context.Context, id string) (*models.DisciplinaryAction, error) {
	return s.load(ctx, id)
}

// GetForActor returns an action if the actor may see it: HR roles, the employee,
// and the assigned investigator.
func (s *ActionService) GetForActor(ctx context.Context, id string, actor *models.JWTClaims) (*models.DisciplinaryAction, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	action, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if HRRoles.Has(actor.Role) || action.EmployeeID == actor.UserID ||
		(action.HasInvestigator() && *action.InvestigatorID == actor.UserID) {
		return action, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "action is not visible to this user")
}

// ListForReport returns the actions of a report, oldest first.
func (s *ActionService) ListForReport(ctx context.Context, reportID string) ([]models.DisciplinaryAction, error) {
	actions, err := s.repo.ListByReport(ctx, reportID)
	if err != nil {
		return nil, storeError(err, "action", "list actions")
	}
	if actions == nil {
		actions = []models.DisciplinaryAction{}
	}
	return actions, nil
}

// ListForActor lists actions. HR roles may filter freely; everyone else only sees
// actions where they are the employee or the investigator.
func (s *ActionService) ListForActor(ctx context.Context, query dto.ActionQuery, actor *models.JWTClaims) ([]models.DisciplinaryAction, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ActionFilter{
		ReportID: query.ReportID,
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if !HRRoles.Has(actor.Role) {
		filter.EmployeeID = actor.UserID
		filter.InvestigatorID = actor.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	actions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "action", "list actions")
	}
	if actions == nil {
		actions = []models.DisciplinaryAction{}
	}
	return actions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// apply validates every hop of path against the edge set and commits the whole
// path as one compare-and-set write, recording one history row per hop.
func (s *ActionService) apply(ctx context.Context, action *models.DisciplinaryAction, path []models.ActionStatus, actorID string, note *string, now time.Time, params *repository.ActionTransitionParams, events ...models.NotificationEvent) error {
	from := action.Status
	current := from
	history := make([]models.StatusHistory, 0, len(path))
	for _, next := range path {
		if !current.CanTransitionTo(next) {
			return s.edgeConflict(action.ID, current)
		}
		history = append(history, historyStep(models.HistoryEntityAction, action.ID, string(current), string(next), actorID, note, now))
		current = next
	}
	params.ID = action.ID
	params.FromStatus = from
	params.ToStatus = current
	params.ExpectedVersion = action.Version
	params.UpdatedAt = now
	params.History = history
	params.Notifications = events
	if err := s.repo.Transition(ctx, *params); err != nil {
		return s.writeError(err, models.HistoryEntityAction, "update action")
	}
	action.Status = current
	action.Version++
	action.UpdatedAt = now
	for _, step := range path {
		s.metrics.RecordTransition(models.HistoryEntityAction, string(step))
	}
	logTransition(ctx, s.logger, models.HistoryEntityAction, action.ID, string(from), string(current), actorID)
	return nil
}

func (s *ActionService) load(ctx context.Context, id string) (*models.DisciplinaryAction, error) {
	action, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "action", "load action")
	}
	return action, nil
}

// checkInvestigator normalises an optional investigator id and verifies the
// investigator is not the employee and holds an investigating role.
func (s *ActionService) checkInvestigator(ctx context.Context, employeeID string, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*raw)
	if id == employeeID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the employee cannot investigate their own case")
	}
	if _, err := authorize(ctx, s.roles, id, InvestigatorRoles, "investigate"); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrForbidden.Code {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("investigator %s must hold one of: %s", id, InvestigatorRoles))
		}
		return nil, err
	}
	return &id, nil
}

func (s *ActionService) stateConflict(action *models.DisciplinaryAction, expected ...models.ActionStatus) error {
	s.metrics.RecordConflict(models.HistoryEntityAction, "state")
	names := make([]string, len(expected))
	for i, st := range expected {
		names[i] = string(st)
	}
	return appErrors.StateConflict("action", action.ID, string(action.Status), names...)
}

// edgeConflict reports a hop that leaves from with no permitted edge, listing
// from's successors as the expected states.
func (s *ActionService) edgeConflict(id string, from models.ActionStatus) error {
	s.metrics.RecordConflict(models.HistoryEntityAction, "state")
	successors := from.Successors()
	names := make([]string, len(successors))
	for i, st := range successors {
		names[i] = string(st)
	}
	return appErrors.StateConflict("action", id, string(from), names...)
}

func (s *ActionService) writeError(err error, entity models.HistoryEntity, op string) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		s.metrics.RecordConflict(entity, "race")
	}
	return storeError(err, string(entity), op)
}

type eventPayload struct {
	ReportNumber  string            `json:"report_number"`
	ActionType    models.ActionType `json:"action_type"`
	ActionStatus  string            `json:"action_status"`
	EffectiveDate string            `json:"effective_date"`
	DueDate       string            `json:"due_date,omitempty"`
	Verdict       string            `json:"verdict,omitempty"`
}

// event builds an outbox event. Its id is assigned here, before commit, so the
// same id travels through every redelivery.
func (s *ActionService) event(eventType models.NotificationEventType, recipientID string, role models.RecipientRole, report *models.DisciplinaryReport, action *models.DisciplinaryAction, now time.Time) models.NotificationEvent {
	payload := eventPayload{
		ReportNumber:  report.ReportNumber,
		ActionType:    action.ActionType,
		ActionStatus:  string(action.Status),
		EffectiveDate: action.EffectiveDate.Format("2006-01-02"),
	}
	if action.DueDate != nil {
		payload.DueDate = action.DueDate.Format("2006-01-02")
	}
	if action.Verdict != nil {
		payload.Verdict = string(*action.Verdict)
	}
	raw, _ := json.Marshal(payload)
	return models.NotificationEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		RecipientID:   recipientID,
		RecipientRole: role,
		ReportID:      report.ID,
		ActionID:      action.ID,
		Payload:       raw,
		Status:        models.OutboxStatusPending,
		OccurredAt:    now,
	}
}

func (s *ActionService) notify(ctx context.Context, events []models.NotificationEvent) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	s.notifier.Notify(context.WithoutCancel(ctx), events...)
}

func (s *ActionService) record(ctx context.Context, actorID, action, actionID string, oldValues, newValues interface{}) {
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "disciplinary_action",
		ResourceID: &actionID,
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	emitAudit(ctx, s.audit, s.logger, entry)
}
