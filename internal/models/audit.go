package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionReportSubmit        = "DISCIPLINE_REPORT_SUBMIT"
	AuditActionReportReview        = "DISCIPLINE_REPORT_REVIEW"
	AuditActionReportDismiss       = "DISCIPLINE_REPORT_DISMISS"
	AuditActionActionIssue         = "DISCIPLINE_ACTION_ISSUE"
	AuditActionExplanationSubmit   = "DISCIPLINE_EXPLANATION_SUBMIT"
	AuditActionInvestigationSubmit = "DISCIPLINE_INVESTIGATION_SUBMIT"
	AuditActionInvestigatorAssign  = "DISCIPLINE_INVESTIGATOR_ASSIGN"
	AuditActionVerdictIssue        = "DISCIPLINE_VERDICT_ISSUE"
	AuditActionCaseExport          = "DISCIPLINE_CASE_EXPORT"
	AuditActionCaseView            = "DISCIPLINE_CASE_VIEW"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	Action     string      `db:"action" json:"action"`
	Resource   string      `db:"resource" json:"resource"`
	ResourceID *string     `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  JSONPayload `db:"old_values" json:"old_values,omitempty"`
	NewValues  JSONPayload `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string      `db:"ip_address" json:"ip_address"`
	UserAgent  string      `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
