package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/middleware"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/internal/service"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Reports    *ReportHandler
	Actions    *ActionHandler
	Categories *CategoryHandler
	Metrics    *MetricsHandler
}

// RouteDeps are the cross-cutting pieces routes need.
type RouteDeps struct {
	Tokens middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// RegisterRoutes mounts ops endpoints at the root and the discipline API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, deps RouteDeps) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.JWT(deps.Tokens))
	if h.Metrics != nil {
		api.GET("/metrics/snapshot", middleware.RequireRoles(service.HRRoles), h.Metrics.Snapshot)
	}

	hrOnly := middleware.RequireRoles(service.HRRoles)
	discipline := api.Group("/discipline")

	if h.Categories != nil {
		discipline.GET("/categories", h.Categories.List)
		discipline.DELETE("/categories/cache", hrOnly, h.Categories.Invalidate)
	}

	if h.Reports != nil {
		reports := discipline.Group("/reports")
		reports.POST("", middleware.RequireRoles(service.ReportingRoles), h.Reports.Submit)
		reports.GET("", h.Reports.List)
		reports.GET("/export", h.Reports.ExportReports)
		reports.GET("/:id", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionCaseView, "disciplinary_report"), h.Reports.Get)
		reports.GET("/:id/export", h.Reports.ExportCase)
		reports.POST("/:id/review", hrOnly, h.Reports.Review)
		reports.POST("/:id/dismiss", hrOnly, h.Reports.Dismiss)
		if h.Actions != nil {
			reports.POST("/:id/actions", hrOnly, h.Actions.Issue)
		}
	}

	if h.Actions != nil {
		actions := discipline.Group("/actions")
		actions.GET("", h.Actions.List)
		actions.GET("/:id", h.Actions.Get)
		actions.POST("/:id/explanation", h.Actions.SubmitExplanation)
		actions.POST("/:id/investigation", h.Actions.SubmitInvestigation)
		actions.POST("/:id/investigator", hrOnly, h.Actions.ReassignInvestigator)
		// Verdict roles are configurable, so the service makes the call.
		actions.POST("/:id/verdict", h.Actions.IssueVerdict)
	}
}
