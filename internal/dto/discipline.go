package dto

import (
	"time"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

// CreateReportRequest payload for reporting an alleged infraction.
type CreateReportRequest struct {
	EmployeeID          string           `json:"employee_id" validate:"required"`
	CategoryID          string           `json:"category_id" validate:"required"`
	IncidentDate        time.Time        `json:"incident_date" validate:"required"`
	IncidentDescription string           `json:"incident_description" validate:"required,max=5000"`
	Evidence            string           `json:"evidence" validate:"max=5000"`
	Witnesses           []models.Witness `json:"witnesses" validate:"omitempty,max=20,dive"`
	Priority            string           `json:"priority" validate:"omitempty,priority"`
}

// ReviewReportRequest carries HR review notes.
type ReviewReportRequest struct {
	Notes string `json:"notes" validate:"max=5000"`
}

// DismissReportRequest carries the dismissal reason.
type DismissReportRequest struct {
	Notes string `json:"notes" validate:"required,max=5000"`
}

// ReportQuery mirrors supported report listing filters.
type ReportQuery struct {
	EmployeeID string
	CategoryID string
	Status     []models.ReportStatus
	Priority   models.Priority
	Page       int
	PageSize   int
}

// IssueActionRequest payload for issuing a disciplinary action against a report.
type IssueActionRequest struct {
	ActionType     string     `json:"action_type" validate:"required,action_type"`
	ActionDetails  string     `json:"action_details" validate:"required,max=5000"`
	EffectiveDate  time.Time  `json:"effective_date" validate:"required"`
	DueDate        *time.Time `json:"due_date"`
	InvestigatorID *string    `json:"investigator_id"`
}

// SubmitExplanationRequest carries the employee's side of the story.
type SubmitExplanationRequest struct {
	Explanation string `json:"explanation" validate:"required,max=10000"`
}

// SubmitInvestigationRequest carries investigator results.
type SubmitInvestigationRequest struct {
	Notes          string `json:"notes" validate:"required,max=10000"`
	Findings       string `json:"findings" validate:"required,max=10000"`
	Recommendation string `json:"recommendation" validate:"required,max=5000"`
}

// IssueVerdictRequest carries the final HR decision.
type IssueVerdictRequest struct {
	Verdict string `json:"verdict" validate:"required,verdict"`
	Details string `json:"details" validate:"required,max=5000"`
}

// ReassignInvestigatorRequest sets or clears the investigator. A null id clears it.
type ReassignInvestigatorRequest struct {
	InvestigatorID *string `json:"investigator_id"`
}

// ActionQuery mirrors supported action listing filters.
type ActionQuery struct {
	ReportID string
	Status   []models.ActionStatus
	Page     int
	PageSize int
}

// ViolationHistory annotates a case with its repeat-violation signal.
type ViolationHistory struct {
	IsRepeatViolation  bool                    `json:"is_repeat_violation"`
	PreviousViolations []models.PriorViolation `json:"previous_violations"`
	TotalCount         int                     `json:"previous_violation_total"`
	Warning            string                  `json:"repeat_warning,omitempty"`
}

// ReportSubmission is returned after a report is persisted.
type ReportSubmission struct {
	Report *models.DisciplinaryReport `json:"report"`
	ViolationHistory
}

// CaseResponse is the consolidated read model for one report.
type CaseResponse struct {
	Report        *models.DisciplinaryReport   `json:"report"`
	Category      *models.DisciplinaryCategory `json:"category,omitempty"`
	Actions       []models.DisciplinaryAction  `json:"actions"`
	OverallStatus models.CaseStatus            `json:"overall_status"`
	Timeline      []models.StatusHistory       `json:"timeline"`
	ViolationHistory
}
