package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/service"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
	"github.com/noah-isme/hris-discipline-api/pkg/response"
)

type reportService interface {
	Submit(ctx context.Context, req dto.CreateReportRequest, reporterID string) (*dto.ReportSubmission, error)
	MarkReviewed(ctx context.Context, reportID, hrUserID, notes string) (*models.DisciplinaryReport, error)
	Dismiss(ctx context.Context, reportID, hrUserID, notes string) (*models.DisciplinaryReport, error)
	List(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) ([]models.DisciplinaryReport, *models.Pagination, error)
}

type caseService interface {
	GetCaseForActor(ctx context.Context, reportID string, actor *models.JWTClaims) (*dto.CaseResponse, error)
}

type exportService interface {
	ExportCase(ctx context.Context, reportID string, actor *models.JWTClaims) (*service.ExportResult, error)
	ExportReports(ctx context.Context, query dto.ReportQuery, format service.ExportFormat, actor *models.JWTClaims) (*service.ExportResult, error)
}

// ReportHandler exposes disciplinary report and case endpoints.
type ReportHandler struct {
	reports reportService
	cases   caseService
	exports exportService
}

// NewReportHandler constructs the handler. exports may be nil when exports are disabled.
func NewReportHandler(reports reportService, cases caseService, exports exportService) *ReportHandler {
	return &ReportHandler{reports: reports, cases: cases, exports: exports}
}

// Submit godoc
// @Summary File a disciplinary report
// @Tags Discipline
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /discipline/reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "report"))
		return
	}
	submission, err := h.reports.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"is_repeat_violation": submission.IsRepeatViolation}
	if submission.Warning != "" {
		meta["repeat_warning"] = submission.Warning
	}
	response.JSON(c, http.StatusCreated, submission, nil, meta)
}

// List godoc
// @Summary List disciplinary reports
// @Description Non-HR callers only see reports they filed or that concern them.
// @Tags Discipline
// @Produce json
// @Param employee_id query string false "Employee ID"
// @Param category_id query string false "Category ID"
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Priority"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /discipline/reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	query, err := reportQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	reports, pagination, err := h.reports.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// Get godoc
// @Summary Get the consolidated case for a report
// @Tags Discipline
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /discipline/reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	result, err := h.cases.GetCaseForActor(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Review godoc
// @Summary Mark a report under review
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReviewReportRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /discipline/reports/{id}/review [post]
func (h *ReportHandler) Review(c *gin.Context) {
	var req dto.ReviewReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "review"))
			return
		}
	}
	report, err := h.reports.MarkReviewed(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Dismiss godoc
// @Summary Dismiss a report
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.DismissReportRequest true "Dismissal reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /discipline/reports/{id}/dismiss [post]
func (h *ReportHandler) Dismiss(c *gin.Context) {
	var req dto.DismissReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "dismissal"))
		return
	}
	report, err := h.reports.Dismiss(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportCase godoc
// @Summary Download a case file as PDF
// @Tags Discipline
// @Produce application/pdf
// @Param id path string true "Report ID"
// @Success 200 {file} file
// @Router /discipline/reports/{id}/export [get]
func (h *ReportHandler) ExportCase(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceNotConfigured, "exports are disabled"))
		return
	}
	result, err := h.exports.ExportCase(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// ExportReports godoc
// @Summary Export the report register
// @Tags Discipline
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Router /discipline/reports/export [get]
func (h *ReportHandler) ExportReports(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceNotConfigured, "exports are disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	query, err := reportQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.ExportReports(c.Request.Context(), query, format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

func reportQuery(c *gin.Context) (dto.ReportQuery, error) {
	page, size, err := pageParams(c)
	if err != nil {
		return dto.ReportQuery{}, err
	}
	query := dto.ReportQuery{
		EmployeeID: strings.TrimSpace(c.Query("employee_id")),
		CategoryID: strings.TrimSpace(c.Query("category_id")),
		Priority:   models.Priority(strings.ToLower(strings.TrimSpace(c.Query("priority")))),
		Page:       page,
		PageSize:   size,
	}
	for _, raw := range listQuery(c, "status") {
		status := models.ReportStatus(raw)
		if !status.Valid() {
			return dto.ReportQuery{}, appErrors.Clone(appErrors.ErrValidation, "unknown report status "+raw)
		}
		query.Status = append(query.Status, status)
	}
	if query.Priority != "" && !query.Priority.Valid() {
		return dto.ReportQuery{}, appErrors.Clone(appErrors.ErrValidation, "unknown priority "+string(query.Priority))
	}
	return query, nil
}
