package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

type caseActionReader interface {
	ListByReport(ctx context.Context, reportID string) ([]models.DisciplinaryAction, error)
}

type timelineReader interface {
	ListForCase(ctx context.Context, reportID string) ([]models.StatusHistory, error)
}

// OverallStatus derives the display status of a case from the report status and
// its latest action. It is pure.
func OverallStatus(reportStatus models.ReportStatus, latest *models.DisciplinaryAction) models.CaseStatus {
	if latest == nil {
		switch reportStatus {
		case models.ReportStatusUnderReview:
			return models.CaseStatusUnderReview
		case models.ReportStatusActionIssued:
			return models.CaseStatusActionIssued
		case models.ReportStatusDismissed:
			return models.CaseStatusDismissed
		default:
			return models.CaseStatusReported
		}
	}
	switch latest.Status {
	case models.ActionStatusActionIssued:
		return models.CaseStatusExplanationRequested
	case models.ActionStatusExplanationSubmitted:
		return models.CaseStatusExplanationSubmitted
	case models.ActionStatusUnderInvestigation:
		return models.CaseStatusUnderInvestigation
	case models.ActionStatusInvestigationCompleted:
		return models.CaseStatusInvestigationDone
	case models.ActionStatusAwaitingVerdict:
		return models.CaseStatusAwaitingVerdict
	case models.ActionStatusCompleted:
		return models.CaseStatusUpheld
	case models.ActionStatusDismissed:
		return models.CaseStatusDismissed
	default:
		return models.CaseStatusActionIssued
	}
}

// LatestAction picks the action with the greatest created_at, ties broken by id.
func LatestAction(actions []models.DisciplinaryAction) *models.DisciplinaryAction {
	var latest *models.DisciplinaryAction
	for i := range actions {
		a := &actions[i]
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.ID > latest.ID) {
			latest = a
		}
	}
	return latest
}

// CaseService assembles the consolidated read model of a report.
type CaseService struct {
	reports    reportReader
	actions    caseActionReader
	categories categoryLookup
	history    violationHistoryReader
	timeline   timelineReader
	logger     *zap.Logger
}

// NewCaseService constructs the service.
func NewCaseService(reports reportReader, actions caseActionReader, categories categoryLookup, history violationHistoryReader, timeline timelineReader, logger *zap.Logger) *CaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		reports:    reports,
		actions:    actions,
		categories: categories,
		history:    history,
		timeline:   timeline,
		logger:     logger,
	}
}

// GetCase returns the report with its actions, derived status, repeat-violation
// annotation and timeline.
func (s *CaseService) GetCase(ctx context.Context, reportID string) (*dto.CaseResponse, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}
	return s.assemble(ctx, report)
}

// GetCaseForActor returns the case when the actor is HR, the employee, the
// reporter, or an investigator on one of its actions.
func (s *CaseService) GetCaseForActor(ctx context.Context, reportID string, actor *models.JWTClaims) (*dto.CaseResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, storeError(err, "report", "load report")
	}
	resp, err := s.assemble(ctx, report)
	if err != nil {
		return nil, err
	}
	if !caseVisibleTo(resp, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case is not visible to this user")
	}
	return resp, nil
}

func caseVisibleTo(c *dto.CaseResponse, actor *models.JWTClaims) bool {
	if HRRoles.Has(actor.Role) {
		return true
	}
	if c.Report.EmployeeID == actor.UserID || c.Report.ReporterID == actor.UserID {
		return true
	}
	for i := range c.Actions {
		if c.Actions[i].HasInvestigator() && *c.Actions[i].InvestigatorID == actor.UserID {
			return true
		}
	}
	return false
}

func (s *CaseService) assemble(ctx context.Context, report *models.DisciplinaryReport) (*dto.CaseResponse, error) {
	actions, err := s.actions.ListByReport(ctx, report.ID)
	if err != nil {
		return nil, storeError(err, "action", "list actions")
	}
	if actions == nil {
		actions = []models.DisciplinaryAction{}
	}
	resp := &dto.CaseResponse{
		Report:        report,
		Actions:       actions,
		OverallStatus: OverallStatus(report.Status, LatestAction(actions)),
		Timeline:      []models.StatusHistory{},
		ViolationHistory: dto.ViolationHistory{
			PreviousViolations: []models.PriorViolation{},
		},
	}
	if s.categories != nil {
		category, err := s.categories.Get(ctx, report.CategoryID)
		if err != nil {
			s.logger.Warn("case category lookup failed", zap.String("report_id", report.ID), zap.Error(err))
			return nil, storeError(err, "category", "load category")
		}
		resp.Category = category
	}
	if s.history != nil {
		history, err := s.history.PriorViolations(ctx, report.EmployeeID, report.CategoryID, report.ID)
		if err != nil {
			return nil, err
		}
		resp.ViolationHistory = *history
	}
	if s.timeline != nil {
		entries, err := s.timeline.ListForCase(ctx, report.ID)
		if err != nil {
			return nil, storeError(err, "timeline", "load timeline")
		}
		if entries != nil {
			resp.Timeline = entries
		}
	}
	return resp, nil
}
