package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
	"github.com/noah-isme/hris-discipline-api/pkg/export"
)

// ExportFormat selects the output of a report list export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered document ready to be served as an attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type caseReader interface {
	GetCaseForActor(ctx context.Context, reportID string, actor *models.JWTClaims) (*dto.CaseResponse, error)
}

type reportLister interface {
	List(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) ([]models.DisciplinaryReport, *models.Pagination, error)
}

// CaseExportService renders case summaries and report lists.
type CaseExportService struct {
	cases      caseReader
	reports    reportLister
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	audit      auditWriter
	maxReports int
	logger     *zap.Logger
	now        func() time.Time
}

// NewCaseExportService constructs the service. maxReports caps list exports.
func NewCaseExportService(cases caseReader, reports reportLister, audit auditWriter, maxReports int, logger *zap.Logger) *CaseExportService {
	if maxReports <= 0 {
		maxReports = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseExportService{
		cases:      cases,
		reports:    reports,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		audit:      audit,
		maxReports: maxReports,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ParseExportFormat normalises a format string, defaulting to csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// ExportCase renders the case summary of one report as PDF.
func (s *CaseExportService) ExportCase(ctx context.Context, reportID string, actor *models.JWTClaims) (*ExportResult, error) {
	c, err := s.cases.GetCaseForActor(ctx, reportID, actor)
	if err != nil {
		return nil, err
	}
	data, err := s.pdf.RenderDocument("Disciplinary Case "+c.Report.ReportNumber, caseSections(c))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render case")
	}
	s.recordExport(ctx, actor, &c.Report.ID, map[string]string{"format": string(ExportFormatPDF)})
	return &ExportResult{
		Filename:    fmt.Sprintf("case-%s.pdf", c.Report.ReportNumber),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// ExportReports renders the reports visible to actor matching query.
func (s *CaseExportService) ExportReports(ctx context.Context, query dto.ReportQuery, format ExportFormat, actor *models.JWTClaims) (*ExportResult, error) {
	reports, err := s.collect(ctx, query, actor)
	if err != nil {
		return nil, err
	}
	dataset := reportDataset(reports)
	stamp := s.now().Format("20060102-150405")
	result := &ExportResult{}
	switch format {
	case ExportFormatPDF:
		result.Data, err = s.pdf.Render(dataset, "Disciplinary Reports")
		result.ContentType = "application/pdf"
		result.Filename = "discipline-reports-" + stamp + ".pdf"
	default:
		result.Data, err = s.csv.Render(dataset)
		result.ContentType = "text/csv"
		result.Filename = "discipline-reports-" + stamp + ".csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.recordExport(ctx, actor, nil, map[string]interface{}{"format": format, "rows": len(reports)})
	return result, nil
}

func (s *CaseExportService) collect(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) ([]models.DisciplinaryReport, error) {
	const pageSize = 200
	query.Page = 1
	query.PageSize = pageSize
	var all []models.DisciplinaryReport
	for len(all) < s.maxReports {
		page, pagination, err := s.reports.List(ctx, query, actor)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize || pagination == nil || len(all) >= pagination.TotalCount {
			break
		}
		query.Page++
	}
	if len(all) > s.maxReports {
		all = all[:s.maxReports]
	}
	return all, nil
}

func (s *CaseExportService) recordExport(ctx context.Context, actor *models.JWTClaims, reportID *string, details interface{}) {
	if actor == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCaseExport,
		Resource:   "disciplinary_report",
		ResourceID: reportID,
	}
	entry.NewValues, _ = json.Marshal(details)
	emitAudit(ctx, s.audit, s.logger, entry)
}

var reportExportHeaders = []string{"Report Number", "Employee", "Reporter", "Category", "Incident Date", "Priority", "Status", "Created At"}

func reportDataset(reports []models.DisciplinaryReport) export.Dataset {
	rows := make([]map[string]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, map[string]string{
			"Report Number": r.ReportNumber,
			"Employee":      r.EmployeeID,
			"Reporter":      r.ReporterID,
			"Category":      r.CategoryID,
			"Incident Date": r.IncidentDate.Format("2006-01-02"),
			"Priority":      string(r.Priority),
			"Status":        string(r.Status),
			"Created At":    r.CreatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: reportExportHeaders, Rows: rows}
}

func caseSections(c *dto.CaseResponse) []export.Section {
	report := c.Report
	category := report.CategoryID
	if c.Category != nil {
		category = fmt.Sprintf("%s (%s)", c.Category.Name, c.Category.SeverityLevel)
	}
	sections := []export.Section{{
		Title: "Report",
		Fields: []export.Field{
			{Label: "Report number", Value: report.ReportNumber},
			{Label: "Overall status", Value: c.OverallStatus.Label},
			{Label: "Employee", Value: report.EmployeeID},
			{Label: "Reported by", Value: report.ReporterID},
			{Label: "Category", Value: category},
			{Label: "Incident date", Value: report.IncidentDate.Format("2006-01-02")},
			{Label: "Priority", Value: string(report.Priority)},
		},
		Body: report.IncidentDescription,
	}}
	if len(report.Witnesses) > 0 {
		witnesses := make([]string, len(report.Witnesses))
		for i, w := range report.Witnesses {
			witnesses[i] = w.Name
			if w.Contact != "" {
				witnesses[i] += " (" + w.Contact + ")"
			}
		}
		sections = append(sections, export.Section{Title: "Witnesses", Body: strings.Join(witnesses, "\n")})
	}
	if report.HRNotes != "" {
		sections = append(sections, export.Section{Title: "HR notes", Body: report.HRNotes})
	}
	if c.IsRepeatViolation {
		sections = append(sections, export.Section{
			Title:  "Violation history",
			Fields: []export.Field{{Label: "Prior reports", Value: strconv.Itoa(c.TotalCount)}},
			Body:   c.Warning,
		})
	}
	for i, a := range c.Actions {
		sections = append(sections, actionSection(i+1, a))
	}
	if len(c.Timeline) > 0 {
		rows := make([]map[string]string, 0, len(c.Timeline))
		for _, h := range c.Timeline {
			from := ""
			if h.FromStatus != nil {
				from = *h.FromStatus
			}
			rows = append(rows, map[string]string{
				"When":   h.CreatedAt.Format("2006-01-02 15:04"),
				"Entity": string(h.EntityType),
				"From":   from,
				"To":     h.ToStatus,
				"Actor":  h.ActorID,
			})
		}
		sections = append(sections, export.Section{
			Title: "Timeline",
			Table: &export.Dataset{Headers: []string{"When", "Entity", "From", "To", "Actor"}, Rows: rows},
		})
	}
	return sections
}

func actionSection(n int, a models.DisciplinaryAction) export.Section {
	fields := []export.Field{
		{Label: "Type", Value: string(a.ActionType)},
		{Label: "Status", Value: string(a.Status)},
		{Label: "Issued by", Value: a.IssuedBy},
		{Label: "Effective", Value: a.EffectiveDate.Format("2006-01-02")},
	}
	if a.DueDate != nil {
		fields = append(fields, export.Field{Label: "Due", Value: a.DueDate.Format("2006-01-02")})
	}
	if a.HasInvestigator() {
		fields = append(fields, export.Field{Label: "Investigator", Value: *a.InvestigatorID})
	}
	body := []string{a.ActionDetails}
	if a.EmployeeExplanation != nil {
		body = append(body, "Employee explanation: "+*a.EmployeeExplanation)
	}
	if a.InvestigationFindings != nil {
		body = append(body, "Findings: "+*a.InvestigationFindings)
	}
	if a.InvestigationRecommended != nil {
		body = append(body, "Recommendation: "+*a.InvestigationRecommended)
	}
	if a.Verdict != nil {
		details := ""
		if a.VerdictDetails != nil {
			details = *a.VerdictDetails
		}
		body = append(body, fmt.Sprintf("Verdict: %s. %s", *a.Verdict, details))
	}
	return export.Section{
		Title:  fmt.Sprintf("Action %d", n),
		Fields: fields,
		Body:   strings.Join(body, "\n\n"),
	}
}
