package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
	"github.com/noah-isme/hris-discipline-api/pkg/response"
)

type actionService interface {
	Issue(ctx context.Context, reportID, hrUserID string, req dto.IssueActionRequest) (*models.DisciplinaryAction, error)
	SubmitExplanation(ctx context.Context, actionID, employeeID, text string) (*models.DisciplinaryAction, error)
	SubmitInvestigation(ctx context.Context, actionID, investigatorID string, req dto.SubmitInvestigationRequest) (*models.DisciplinaryAction, error)
	IssueVerdict(ctx context.Context, actionID, hrUserID string, req dto.IssueVerdictRequest) (*models.DisciplinaryAction, error)
	ReassignInvestigator(ctx context.Context, actionID, hrUserID string, investigatorID *string) (*models.DisciplinaryAction, error)
	GetForActor(ctx context.Context, id string, actor *models.JWTClaims) (*models.DisciplinaryAction, error)
	ListForActor(ctx context.Context, query dto.ActionQuery, actor *models.JWTClaims) ([]models.DisciplinaryAction, *models.Pagination, error)
}

// ActionHandler exposes the disciplinary action lifecycle.
type ActionHandler struct {
	actions actionService
}

// NewActionHandler constructs the handler.
func NewActionHandler(actions actionService) *ActionHandler {
	return &ActionHandler{actions: actions}
}

// Issue godoc
// @Summary Issue a disciplinary action against a report
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.IssueActionRequest true "Action payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /discipline/reports/{id}/actions [post]
func (h *ActionHandler) Issue(c *gin.Context) {
	var req dto.IssueActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "action"))
		return
	}
	action, err := h.actions.Issue(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, action)
}

// List godoc
// @Summary List disciplinary actions visible to the caller
// @Tags Discipline
// @Produce json
// @Param report_id query string false "Report ID"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /discipline/actions [get]
func (h *ActionHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.ActionQuery{ReportID: strings.TrimSpace(c.Query("report_id")), Page: page, PageSize: size}
	for _, raw := range listQuery(c, "status") {
		status := models.ActionStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown action status "+raw))
			return
		}
		query.Status = append(query.Status, status)
	}
	actions, pagination, err := h.actions.ListForActor(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, pagination)
}

// Get godoc
// @Summary Get a disciplinary action
// @Tags Discipline
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /discipline/actions/{id} [get]
func (h *ActionHandler) Get(c *gin.Context) {
	action, err := h.actions.GetForActor(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// SubmitExplanation godoc
// @Summary Submit the employee explanation
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Param payload body dto.SubmitExplanationRequest true "Explanation"
// @Success 200 {object} response.Envelope
// @Router /discipline/actions/{id}/explanation [post]
func (h *ActionHandler) SubmitExplanation(c *gin.Context) {
	var req dto.SubmitExplanationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "explanation"))
		return
	}
	action, err := h.actions.SubmitExplanation(c.Request.Context(), c.Param("id"), actorID(c), req.Explanation)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// SubmitInvestigation godoc
// @Summary Record investigation results
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Param payload body dto.SubmitInvestigationRequest true "Investigation results"
// @Success 200 {object} response.Envelope
// @Router /discipline/actions/{id}/investigation [post]
func (h *ActionHandler) SubmitInvestigation(c *gin.Context) {
	var req dto.SubmitInvestigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "investigation"))
		return
	}
	action, err := h.actions.SubmitInvestigation(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// ReassignInvestigator godoc
// @Summary Assign, replace or clear the investigator
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Param payload body dto.ReassignInvestigatorRequest true "Investigator, null clears"
// @Success 200 {object} response.Envelope
// @Router /discipline/actions/{id}/investigator [post]
func (h *ActionHandler) ReassignInvestigator(c *gin.Context) {
	var req dto.ReassignInvestigatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "investigator"))
		return
	}
	action, err := h.actions.ReassignInvestigator(c.Request.Context(), c.Param("id"), actorID(c), req.InvestigatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// IssueVerdict godoc
// @Summary Close an action with a verdict
// @Tags Discipline
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Param payload body dto.IssueVerdictRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /discipline/actions/{id}/verdict [post]
func (h *ActionHandler) IssueVerdict(c *gin.Context) {
	var req dto.IssueVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "verdict"))
		return
	}
	action, err := h.actions.IssueVerdict(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}
