package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-discipline-api/internal/dto"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/service"
	appErrors "github.com/noah-isme/hris-discipline-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type reportServiceStub struct {
	submitted  dto.CreateReportRequest
	reporterID string
	query      dto.ReportQuery
	notes      string
	err        error
}

func (s *reportServiceStub) Submit(_ context.Context, req dto.CreateReportRequest, reporterID string) (*dto.ReportSubmission, error) {
	s.submitted, s.reporterID = req, reporterID
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ReportSubmission{
		Report:           &models.DisciplinaryReport{ID: "rep-1", ReportNumber: "DR-000001", Status: models.ReportStatusReported},
		ViolationHistory: dto.ViolationHistory{IsRepeatViolation: true, TotalCount: 1, Warning: "repeat Tardiness"},
	}, nil
}

func (s *reportServiceStub) MarkReviewed(_ context.Context, id, _ string, notes string) (*models.DisciplinaryReport, error) {
	s.notes = notes
	if s.err != nil {
		return nil, s.err
	}
	return &models.DisciplinaryReport{ID: id, Status: models.ReportStatusUnderReview}, nil
}

func (s *reportServiceStub) Dismiss(_ context.Context, id, _ string, notes string) (*models.DisciplinaryReport, error) {
	s.notes = notes
	if s.err != nil {
		return nil, s.err
	}
	return &models.DisciplinaryReport{ID: id, Status: models.ReportStatusDismissed}, nil
}

func (s *reportServiceStub) List(_ context.Context, query dto.ReportQuery, _ *models.JWTClaims) ([]models.DisciplinaryReport, *models.Pagination, error) {
	s.query = query
	return []models.DisciplinaryReport{{ID: "rep-1"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

type caseServiceStub struct{ err error }

func (s caseServiceStub) GetCaseForActor(_ context.Context, id string, _ *models.JWTClaims) (*dto.CaseResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CaseResponse{Report: &models.DisciplinaryReport{ID: id}, OverallStatus: models.CaseStatusReported}, nil
}

type exportServiceStub struct{ format service.ExportFormat }

func (s *exportServiceStub) ExportCase(_ context.Context, id string, _ *models.JWTClaims) (*service.ExportResult, error) {
	return &service.ExportResult{Filename: "case-" + id + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

func (s *exportServiceStub) ExportReports(_ context.Context, _ dto.ReportQuery, format service.ExportFormat, _ *models.JWTClaims) (*service.ExportResult, error) {
	s.format = format
	return &service.ExportResult{Filename: "reports.csv", ContentType: "text/csv", Data: []byte("a,b\n")}, nil
}

type actionServiceStub struct {
	calls        []string
	actor        string
	investigator *string
	query        dto.ActionQuery
	err          error
}

func (s *actionServiceStub) result(call, actor string) (*models.DisciplinaryAction, error) {
	s.calls = append(s.calls, call)
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &models.DisciplinaryAction{ID: "act-1", Status: models.ActionStatusActionIssued}, nil
}

func (s *actionServiceStub) Issue(_ context.Context, _ string, hr string, _ dto.IssueActionRequest) (*models.DisciplinaryAction, error) {
	return s.result("issue", hr)
}

func (s *actionServiceStub) SubmitExplanation(_ context.Context, _ string, emp, _ string) (*models.DisciplinaryAction, error) {
	return s.result("explanation", emp)
}

func (s *actionServiceStub) SubmitInvestigation(_ context.Context, _ string, inv string, _ dto.SubmitInvestigationRequest) (*models.DisciplinaryAction, error) {
	return s.result("investigation", inv)
}

func (s *actionServiceStub) IssueVerdict(_ context.Context, _ string, hr string, _ dto.IssueVerdictRequest) (*models.DisciplinaryAction, error) {
	return s.result("verdict", hr)
}

func (s *actionServiceStub) ReassignInvestigator(_ context.Context, _ string, hr string, investigatorID *string) (*models.DisciplinaryAction, error) {
	s.investigator = investigatorID
	return s.result("reassign", hr)
}

func (s *actionServiceStub) GetForActor(_ context.Context, _ string, actor *models.JWTClaims) (*models.DisciplinaryAction, error) {
	return s.result("get", actor.UserID)
}

func (s *actionServiceStub) ListForActor(_ context.Context, query dto.ActionQuery, _ *models.JWTClaims) ([]models.DisciplinaryAction, *models.Pagination, error) {
	s.query = query
	return []models.DisciplinaryAction{}, &models.Pagination{Page: 1, PageSize: 50}, nil
}

type categoryServiceStub struct {
	activeOnly  bool
	invalidated bool
}

func (s *categoryServiceStub) List(_ context.Context, activeOnly bool) ([]models.DisciplinaryCategory, error) {
	s.activeOnly = activeOnly
	return []models.DisciplinaryCategory{{ID: "cat-late", Name: "Tardiness"}}, nil
}

func (s *categoryServiceStub) Invalidate(context.Context) error {
	s.invalidated = true
	return nil
}

type auditStub struct{ actions []string }

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type fixture struct {
	router     *gin.Engine
	reports    *reportServiceStub
	actions    *actionServiceStub
	categories *categoryServiceStub
	exports    *exportServiceStub
	audit      *auditStub
}

func newFixture(checks map[string]Pinger) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		router:     gin.New(),
		reports:    &reportServiceStub{},
		actions:    &actionServiceStub{},
		categories: &categoryServiceStub{},
		exports:    &exportServiceStub{},
		audit:      &auditStub{},
	}
	RegisterRoutes(f.router, "/api/v1", Handlers{
		Reports:    NewReportHandler(f.reports, caseServiceStub{}, f.exports),
		Actions:    NewActionHandler(f.actions),
		Categories: NewCategoryHandler(f.categories),
		Metrics:    NewMetricsHandler(service.NewMetricsService(), checks),
	}, RouteDeps{
		Tokens: tokenStub{
			"hr":  {UserID: "hr-1", Role: models.RoleHR},
			"mgr": {UserID: "mgr-1", Role: models.RoleManager},
			"emp": {UserID: "emp-1", Role: models.RoleEmployee},
		},
		Audit: f.audit,
	})
	return f
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSubmitReport(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodPost, "/api/v1/discipline/reports", "mgr", map[string]interface{}{
		"employee_id":          "emp-1",
		"category_id":          "cat-late",
		"incident_date":        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"incident_description": "late again",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["is_repeat_violation"])
	assert.Equal(t, "repeat Tardiness", env.Meta["repeat_warning"])
	assert.Equal(t, "mgr-1", f.reports.reporterID)
	assert.Equal(t, "emp-1", f.reports.submitted.EmployeeID)
}

func TestSubmitReportRejections(t *testing.T) {
	f := newFixture(nil)

	w := f.do(http.MethodPost, "/api/v1/discipline/reports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/v1/discipline/reports", "emp", map[string]string{"employee_id": "emp-2"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discipline/reports", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer mgr")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, rec).Error.Code)
}

func TestServiceErrorsKeepTheirStatus(t *testing.T) {
	f := newFixture(nil)
	f.reports.err = appErrors.StateConflict("report", "rep-1", "dismissed", "reported", "under_review")

	w := f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/dismiss", "hr", map[string]string{"notes": "duplicate"})
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.Equal(t, appErrors.ErrStateConflict.Code, env.Error.Code)

	f.reports.err = errors.New("boom")
	w = f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/review", "hr", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReviewWithAndWithoutBody(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/review", "hr", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, f.reports.notes)

	w = f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/review", "hr", map[string]string{"notes": "called witnesses"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "called witnesses", f.reports.notes)

	w = f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/review", "mgr", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListReportsParsesFilters(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodGet, "/api/v1/discipline/reports?status=reported,UNDER_REVIEW&status=dismissed&priority=High&page=2&page_size=10", "hr", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []models.ReportStatus{models.ReportStatusReported, models.ReportStatusUnderReview, models.ReportStatusDismissed}, f.reports.query.Status)
	assert.Equal(t, models.Priority("high"), f.reports.query.Priority)
	assert.Equal(t, 2, f.reports.query.Page)
	assert.Equal(t, 10, f.reports.query.PageSize)
	assert.Equal(t, 1, decode(t, w).Pagination.TotalCount)

	for _, bad := range []string{"status=closed", "priority=critical", "page=abc", "page_size=-1"} {
		w = f.do(http.MethodGet, "/api/v1/discipline/reports?"+bad, "hr", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestGetCaseIsAudited(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodGet, "/api/v1/discipline/reports/rep-1", "emp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{models.AuditActionCaseView}, f.audit.actions)

	var body dto.CaseResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	assert.Equal(t, "rep-1", body.Report.ID)
}

func TestExports(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodGet, "/api/v1/discipline/reports/rep-1/export", "hr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "case-rep-1.pdf")

	w = f.do(http.MethodGet, "/api/v1/discipline/reports/export?format=pdf", "hr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatPDF, f.exports.format)

	w = f.do(http.MethodGet, "/api/v1/discipline/reports/export?format=xlsx", "hr", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceStub{}, caseServiceStub{}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/discipline/reports/rep-1/export", nil)
	h.ExportCase(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestActionRoutes(t *testing.T) {
	f := newFixture(nil)
	effective := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	w := f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/actions", "hr", dto.IssueActionRequest{
		ActionType: "written_warning", ActionDetails: "final notice", EffectiveDate: effective,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/explanation", "emp", dto.SubmitExplanationRequest{Explanation: "bus strike"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "emp-1", f.actions.actor)

	w = f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/investigation", "mgr", dto.SubmitInvestigationRequest{Notes: "n", Findings: "f", Recommendation: "r"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/verdict", "hr", dto.IssueVerdictRequest{Verdict: "uphold", Details: "d"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/discipline/actions/act-1", "emp", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"issue", "explanation", "investigation", "verdict", "get"}, f.actions.calls)

	// Employees never reach the service for HR-only routes.
	w = f.do(http.MethodPost, "/api/v1/discipline/reports/rep-1/actions", "emp", dto.IssueActionRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, f.actions.calls, 5)
}

func TestReassignInvestigatorNullClears(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/investigator", "hr", map[string]interface{}{"investigator_id": "mgr-2"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.actions.investigator)
	assert.Equal(t, "mgr-2", *f.actions.investigator)

	w = f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/investigator", "hr", map[string]interface{}{"investigator_id": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, f.actions.investigator)
}

func TestListActions(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodGet, "/api/v1/discipline/actions?report_id=rep-1&status=awaiting_verdict", "hr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rep-1", f.actions.query.ReportID)
	assert.Equal(t, []models.ActionStatus{models.ActionStatusAwaitingVerdict}, f.actions.query.Status)

	w = f.do(http.MethodGet, "/api/v1/discipline/actions?status=pending", "hr", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActionServiceErrorMapping(t *testing.T) {
	f := newFixture(nil)
	f.actions.err = appErrors.ErrConcurrentModification
	w := f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/verdict", "unknown-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/v1/discipline/actions/act-1/verdict", "hr", dto.IssueVerdictRequest{Verdict: "uphold", Details: "d"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrConcurrentModification.Code, decode(t, w).Error.Code)
}

func TestCategories(t *testing.T) {
	f := newFixture(nil)
	w := f.do(http.MethodGet, "/api/v1/discipline/categories", "emp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.categories.activeOnly)

	f.do(http.MethodGet, "/api/v1/discipline/categories?include_inactive=true", "emp", nil)
	assert.False(t, f.categories.activeOnly)

	w = f.do(http.MethodDelete, "/api/v1/discipline/categories/cache", "emp", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, f.categories.invalidated)

	w = f.do(http.MethodDelete, "/api/v1/discipline/categories/cache", "hr", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, f.categories.invalidated)
}

func TestOpsEndpoints(t *testing.T) {
	healthy := newFixture(map[string]Pinger{"postgres": PingFunc(func(context.Context) error { return nil })})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/ready", "", nil).Code)

	w := healthy.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	assert.Equal(t, http.StatusForbidden, healthy.do(http.MethodGet, "/api/v1/metrics/snapshot", "emp", nil).Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/api/v1/metrics/snapshot", "hr", nil).Code)

	broken := newFixture(map[string]Pinger{"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") })})
	w = broken.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
