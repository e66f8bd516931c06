package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/repository"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

type reportStore interface {
	Create(ctx context.Context, report *models.DisciplinaryReport, history models.StatusHistory) error
	GetByID(ctx context.Context, id string) (*models.DisciplinaryReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.DisciplinaryReport, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateReportStatusParams) error
}

type violationHistoryReader interface {
	PriorViolations(ctx context.Context, employeeID, categoryID, excludingReportID string) (*dto.ViolationHistory, error)
}

// ReportService owns disciplinary reports and their report-level state machine.
type ReportService struct {
	repo       reportStore
	categories categoryLookup
	history    violationHistoryReader
	roles      RoleLookup
	audit      auditWriter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// ReportServiceOption configures the service.
type ReportServiceOption func(*ReportService)

// WithReportMetrics attaches workflow metrics.
func WithReportMetrics(metrics *MetricsService) ReportServiceOption {
	return func(s *ReportService) { s.metrics = metrics }
}

// WithReportClock overrides the clock.
func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReportService constructs the service.
func NewReportService(repo reportStore, categories categoryLookup, history violationHistoryReader, roles RoleLookup, audit auditWriter, validate *validator.Validate, logger *zap.Logger, opts ...ReportServiceOption) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReportService{
		repo:       repo,
		categories: categories,
		history:    history,
		roles:      roles,
		audit:      audit,
		validator:  newDisciplineValidator(validate),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit files a new report and annotates it with the employee's violation history.
func (s *ReportService) Submit(ctx context.Context, req dto.CreateReportRequest, reporterID string) (*dto.ReportSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "report")
	}
	reporterID = strings.TrimSpace(reporterID)
	employeeID := strings.TrimSpace(req.EmployeeID)
	if reporterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reporter_id is required")
	}
	if strings.TrimSpace(req.IncidentDescription) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "incident_description is required")
	}
	now := s.now()
	if req.IncidentDate.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "incident_date cannot be in the future")
	}
	if employeeID == reporterID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reporter cannot file a report against themselves")
	}
	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.Priority(strings.ToLower(req.Priority))
	}
	witnesses := make(models.Witnesses, 0, len(req.Witnesses))
	for _, w := range req.Witnesses {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "every witness needs a name")
		}
		witnesses = append(witnesses, models.Witness{Name: name, Contact: strings.TrimSpace(w.Contact)})
	}

	if _, err := authorize(ctx, s.roles, reporterID, ReportingRoles, "file disciplinary reports"); err != nil {
		return nil, err
	}
	category, err := s.categories.Get(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("category %q is inactive", category.Name))
	}

	report := &models.DisciplinaryReport{
		EmployeeID:          employeeID,
		ReporterID:          reporterID,
		CategoryID:          category.ID,
		IncidentDate:        req.IncidentDate.UTC(),
		IncidentDescription: strings.TrimSpace(req.IncidentDescription),
		Evidence:            strings.TrimSpace(req.Evidence),
		Witnesses:           witnesses,
		Priority:            priority,
		Status:              models.ReportStatusReported,
		CreatedAt:           now,
	}
	first := historyStep(models.HistoryEntityReport, "", "", string(models.ReportStatusReported), reporterID, nil, now)
	if err := s.repo.Create(ctx, report, first); err != nil {
		return nil, storeError(err, "report", "create report")
	}
	s.metrics.RecordTransition(models.HistoryEntityReport, string(report.Status))
	logTransition(ctx, s.logger, models.HistoryEntityReport, report.ID, "", string(report.Status), reporterID)
	s.record(ctx, reporterID, models.AuditActionReportSubmit, report.ID, nil, report)

	submission := &dto.ReportSubmission{
		Report:           report,
		ViolationHistory: dto.ViolationHistory{PreviousViolations: []models.PriorViolation{}},
	}
	if s.history != nil {
		history, err := s.history.PriorViolations(ctx, report.EmployeeID, report.CategoryID, report.ID)
		if err != nil {
			s.logger.Warn("violation history unavailable", zap.String("report_id", report.ID), zap.Error(err))
		} else {
			submission.ViolationHistory = *history
		}
	}
	return submission, nil
}

// MarkReviewed moves a report to under_review and appends the reviewer's notes.
func (s *ReportService) MarkReviewed(ctx context.Context, reportID, hrUserID, notes string) (*models.DisciplinaryReport, error) {
	return s.transition(ctx, reportID, hrUserID, notes, models.ReportStatusUnderReview, models.AuditActionReportReview)
}

// Dismiss closes a report without action. A reason is required.
func (s *ReportService) Dismiss(ctx context.Context, reportID, hrUserID, notes string) (*models.DisciplinaryReport, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a dismissal reason is required")
	}
	return s.transition(ctx, reportID, hrUserID, notes, models.ReportStatusDismissed, models.AuditActionReportDismiss)
}

func (s *ReportService) transition(ctx context.Context, reportID, hrUserID, notes string, to models.ReportStatus, auditAction string) (*models.DisciplinaryReport, error) {
	if _, err := authorize(ctx, s.roles, hrUserID, HRRoles, "review disciplinary reports"); err != nil {
		return nil, err
	}
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}
	if !report.Status.CanTransitionTo(to) {
		s.metrics.RecordConflict(models.HistoryEntityReport, "state")
		return nil, appErrors.StateConflict("report", report.ID, string(report.Status),
			string(models.ReportStatusReported), string(models.ReportStatusUnderReview))
	}

	now := s.now()
	notes = strings.TrimSpace(notes)
	noteLine := ""
	if notes != "" {
		noteLine = fmt.Sprintf("[%s] %s: %s", now.Format(time.RFC3339), hrUserID, notes)
	}
	from := report.Status
	params := repository.UpdateReportStatusParams{
		ID:         report.ID,
		From:       from,
		To:         to,
		NoteLine:   noteLine,
		ReviewedBy: &hrUserID,
		ReviewedAt: &now,
		UpdatedAt:  now,
		History:    historyStep(models.HistoryEntityReport, report.ID, string(from), string(to), hrUserID, optionalString(notes), now),
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.metrics.RecordConflict(models.HistoryEntityReport, "race")
		}
		return nil, storeError(err, "report", "update report")
	}

	report.Status = to
	if noteLine != "" {
		if report.HRNotes == "" {
			report.HRNotes = noteLine
		} else {
			report.HRNotes += "\n" + noteLine
		}
	}
	report.ReviewedBy = &hrUserID
	report.ReviewedAt = &now
	report.UpdatedAt = now

	s.metrics.RecordTransition(models.HistoryEntityReport, string(to))
	logTransition(ctx, s.logger, models.HistoryEntityReport, report.ID, string(from), string(to), hrUserID)
	s.record(ctx, hrUserID, auditAction, report.ID, map[string]string{"status": string(from)}, map[string]string{"status": string(to), "notes": notes})
	return report, nil
}

// Get returns a report by id.
func (s *ReportService) Get(ctx context.Context, id string) (*models.DisciplinaryReport, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}
	return report, nil
}

// List returns reports visible to the actor. HR roles see everything; other
// reporters see what they filed; employees see reports about themselves.
func (s *ReportService) List(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) ([]models.DisciplinaryReport, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ReportFilter{
		EmployeeID: query.EmployeeID,
		CategoryID: query.CategoryID,
		Status:     query.Status,
		Priority:   query.Priority,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	switch {
	case HRRoles.Has(actor.Role):
	case actor.Role == models.RoleManager:
		filter.ReporterID = actor.UserID
	default:
		filter.EmployeeID = actor.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "report", "list reports")
	}
	if reports == nil {
		reports = []models.DisciplinaryReport{}
	}
	return reports, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *ReportService) record(ctx context.Context, actorID, action, reportID string, oldValues, newValues interface{}) {
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "disciplinary_report",
		ResourceID: &reportID,
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	emitAudit(ctx, s.audit, s.logger, entry)
}
