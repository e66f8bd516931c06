package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/repository"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type roleDirectory map[string]models.UserRole

func (d roleDirectory) RoleOf(_ context.Context, actorID string) (models.UserRole, error) {
	role, ok := d[actorID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return role, nil
}

func defaultRoles() roleDirectory {
	return roleDirectory{
		"mgr-1":  models.RoleManager,
		"mgr-2":  models.RoleManager,
		"hr-1":   models.RoleHR,
		"hrm-1":  models.RoleHRManager,
		"hrm-2":  models.RoleHRManager,
		"root":   models.RoleSuperAdmin,
		"emp-1":  models.RoleEmployee,
		"emp-2":  models.RoleEmployee,
		"inv-hr": models.RoleHR,
	}
}

type auditRecorder struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

type notifierRecorder struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (n *notifierRecorder) Notify(_ context.Context, events ...models.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *notifierRecorder) recorded() []models.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.NotificationEvent(nil), n.events...)
}

type categoryStub map[string]*models.DisciplinaryCategory

func (c categoryStub) Get(_ context.Context, id string) (*models.DisciplinaryCategory, error) {
	category, ok := c[id]
	if !ok {
		return nil, storeError(sql.ErrNoRows, "category", "load category")
	}
	copy := *category
	return &copy, nil
}

func (c categoryStub) GetByID(ctx context.Context, id string) (*models.DisciplinaryCategory, error) {
	category, ok := c[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *category
	return &copy, nil
}

func (c categoryStub) List(_ context.Context, activeOnly bool) ([]models.DisciplinaryCategory, error) {
	out := []models.DisciplinaryCategory{}
	for _, category := range c {
		if activeOnly && !category.IsActive {
			continue
		}
		out = append(out, *category)
	}
	return out, nil
}

func defaultCategories() categoryStub {
	return categoryStub{
		"cat-late": {ID: "cat-late", Name: "Tardiness", SeverityLevel: models.SeverityMinor, IsActive: true},
		"cat-old":  {ID: "cat-old", Name: "Dress code", SeverityLevel: models.SeverityMinor, IsActive: false},
	}
}

// caseStore is an in-memory store for reports, actions and history. Writes are
// compare-and-set under one mutex, like the SQL repositories.
type caseStore struct {
	mu            sync.Mutex
	seq           int
	reports       map[string]*models.DisciplinaryReport
	actions       map[string]*models.DisciplinaryAction
	history       []models.StatusHistory
	notifications []models.NotificationEvent
	reportFilter  models.ReportFilter
	actionFilter  models.ActionFilter
	failNext      error
}

func newCaseStore() *caseStore {
	return &caseStore{
		reports: make(map[string]*models.DisciplinaryReport),
		actions: make(map[string]*models.DisciplinaryAction),
	}
}

func (s *caseStore) Create(_ context.Context, report *models.DisciplinaryReport, history models.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.seq++
	if report.ID == "" {
		report.ID = fmt.Sprintf("rep-%d", s.seq)
	}
	report.ReportNumber = repository.FormatReportNumber(int64(s.seq))
	report.UpdatedAt = report.CreatedAt
	copy := *report
	s.reports[report.ID] = &copy
	history.EntityID = report.ID
	s.history = append(s.history, history)
	return nil
}

func (s *caseStore) GetByID(_ context.Context, id string) (*models.DisciplinaryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *report
	return &copy, nil
}

func (s *caseStore) List(_ context.Context, filter models.ReportFilter) ([]models.DisciplinaryReport, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportFilter = filter
	out := []models.DisciplinaryReport{}
	for _, r := range s.reports {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (s *caseStore) UpdateStatus(_ context.Context, params repository.UpdateReportStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if err := s.casReport(params); err != nil {
		return err
	}
	params.History.EntityID = params.ID
	s.history = append(s.history, params.History)
	return nil
}

func (s *caseStore) casReport(params repository.UpdateReportStatusParams) error {
	report, ok := s.reports[params.ID]
	if !ok || report.Status != params.From {
		return repository.ErrVersionConflict
	}
	report.Status = params.To
	if params.NoteLine != "" {
		if report.HRNotes == "" {
			report.HRNotes = params.NoteLine
		} else {
			report.HRNotes += "\n" + params.NoteLine
		}
	}
	if params.ReviewedBy != nil {
		report.ReviewedBy = params.ReviewedBy
		report.ReviewedAt = params.ReviewedAt
	}
	return nil
}

func (s *caseStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// actionView exposes the action half of the store under the repository method names.
type actionView struct{ *caseStore }

func (v actionView) Create(_ context.Context, params repository.IssueActionParams) error {
	s := v.caseStore
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if err := s.casReport(params.Report); err != nil {
		return err
	}
	copy := *params.Action
	s.actions[copy.ID] = &copy
	s.history = append(s.history, params.History...)
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

func (v actionView) GetByID(_ context.Context, id string) (*models.DisciplinaryAction, error) {
	s := v.caseStore
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.actions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *action
	return &copy, nil
}

func (v actionView) ListByReport(_ context.Context, reportID string) ([]models.DisciplinaryAction, error) {
	s := v.caseStore
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.DisciplinaryAction{}
	for _, a := range s.actions {
		if a.ReportID == reportID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (v actionView) List(_ context.Context, filter models.ActionFilter) ([]models.DisciplinaryAction, int, error) {
	s := v.caseStore
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionFilter = filter
	out := []models.DisciplinaryAction{}
	for _, a := range s.actions {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (v actionView) Transition(_ context.Context, params repository.ActionTransitionParams) error {
	s := v.caseStore
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	action, ok := s.actions[params.ID]
	if !ok || action.Status != params.FromStatus || action.Version != params.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	action.Status = params.ToStatus
	action.Version++
	action.UpdatedAt = params.UpdatedAt
	if params.EmployeeExplanation != nil {
		action.EmployeeExplanation = params.EmployeeExplanation
		action.ExplanationSubmittedAt = params.ExplanationSubmittedAt
	}
	if params.SetInvestigator {
		action.InvestigatorID = params.InvestigatorID
	}
	if params.InvestigationCompletedAt != nil {
		action.InvestigationNotes = params.InvestigationNotes
		action.InvestigationFindings = params.InvestigationFindings
		action.InvestigationRecommended = params.InvestigationRecommended
		action.InvestigationCompletedAt = params.InvestigationCompletedAt
	}
	if params.Verdict != nil {
		action.Verdict = params.Verdict
		action.VerdictDetails = params.VerdictDetails
		action.VerdictIssuedAt = params.VerdictIssuedAt
		action.VerdictIssuedBy = params.VerdictIssuedBy
	}
	s.history = append(s.history, params.History...)
	s.notifications = append(s.notifications, params.Notifications...)
	return nil
}

func (s *caseStore) ListForCase(_ context.Context, reportID string) ([]models.StatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.StatusHistory{}
	for _, h := range s.history {
		if h.EntityType == models.HistoryEntityReport && h.EntityID == reportID {
			out = append(out, h)
			continue
		}
		if a, ok := s.actions[h.EntityID]; ok && h.EntityType == models.HistoryEntityAction && a.ReportID == reportID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *caseStore) historyFor(id string) []models.StatusHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StatusHistory
	for _, h := range s.history {
		if h.EntityID == id {
			out = append(out, h)
		}
	}
	return out
}

func (s *caseStore) putReport(report models.DisciplinaryReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = &report
}

func (s *caseStore) putAction(action models.DisciplinaryAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action.ID] = &action
}

type priorViolationStub struct {
	items  []models.PriorViolation
	total  int
	err    error
	filter models.PriorViolationFilter
}

func (p *priorViolationStub) ListPriorViolations(_ context.Context, filter models.PriorViolationFilter) ([]models.PriorViolation, int, error) {
	p.filter = filter
	if p.err != nil {
		return nil, 0, p.err
	}
	return p.items, p.total, nil
}

type staticHistory struct {
	result *dto.ViolationHistory
	err    error
}

func (h staticHistory) PriorViolations(context.Context, string, string, string) (*dto.ViolationHistory, error) {
	if h.err != nil {
		return nil, h.err
	}
	copy := *h.result
	return &copy, nil
}

func strPtr(s string) *string { return &s }
