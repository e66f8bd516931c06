package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// SeverityLevel grades how serious a disciplinary category is.
type SeverityLevel string

const (
	SeverityMinor  SeverityLevel = "minor"
	SeverityMajor  SeverityLevel = "major"
	SeveritySevere SeverityLevel = "severe"
)

// ActionType is the formal instrument issued against an employee.
type ActionType string

const (
	ActionTypeVerbalWarning  ActionType = "verbal_warning"
	ActionTypeWrittenWarning ActionType = "written_warning"
	ActionTypeFinalWarning   ActionType = "final_warning"
	ActionTypeSuspension     ActionType = "suspension"
	ActionTypeDemotion       ActionType = "demotion"
	ActionTypeTermination    ActionType = "termination"
	ActionTypeCounseling     ActionType = "counseling"
)

// ActionTypes lists every supported action type in escalation order.
var ActionTypes = []ActionType{
	ActionTypeCounseling,
	ActionTypeVerbalWarning,
	ActionTypeWrittenWarning,
	ActionTypeFinalWarning,
	ActionTypeSuspension,
	ActionTypeDemotion,
	ActionTypeTermination,
}

// Valid reports whether the action type belongs to the fixed set.
func (t ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ActionTypeSet is a de-duplicated set of action types stored as a text[] column.
type ActionTypeSet []ActionType

// NewActionTypeSet validates and de-duplicates raw tags.
func NewActionTypeSet(raw []string) (ActionTypeSet, error) {
	seen := make(map[ActionType]struct{}, len(raw))
	set := make(ActionTypeSet, 0, len(raw))
	for _, tag := range raw {
		t := ActionType(strings.ToLower(strings.TrimSpace(tag)))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown action type %q", tag)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		set = append(set, t)
	}
	return set, nil
}

// Contains reports membership.
func (s ActionTypeSet) Contains(t ActionType) bool {
	for _, v := range s {
		if v == t {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s ActionTypeSet) Value() (driver.Value, error) {
	values := make([]string, len(s))
	for i, t := range s {
		values[i] = string(t)
	}
	return pq.Array(values).Value()
}

// Scan implements sql.Scanner and rejects tags outside the fixed set.
func (s *ActionTypeSet) Scan(src interface{}) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan action type set: %w", err)
	}
	set, err := NewActionTypeSet(raw)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// Priority ranks how urgently HR should look at a report.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Witness is a person who observed the incident.
type Witness struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact,omitempty"`
}

// Witnesses is an ordered witness list stored as jsonb.
type Witnesses []Witness

// Value implements driver.Valuer. Text is sent so Postgres parses it as jsonb.
func (w Witnesses) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (w *Witnesses) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = Witnesses{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan witnesses: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*w = Witnesses{}
		return nil
	}
	var out Witnesses
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan witnesses: %w", err)
	}
	*w = out
	return nil
}

// DisciplinaryCategory classifies infractions. It is maintained outside this service.
type DisciplinaryCategory struct {
	ID               string        `db:"id" json:"id"`
	Name             string        `db:"name" json:"name"`
	Description      string        `db:"description" json:"description,omitempty"`
	SeverityLevel    SeverityLevel `db:"severity_level" json:"severity_level"`
	SuggestedActions ActionTypeSet `db:"suggested_actions" json:"suggested_actions"`
	IsActive         bool          `db:"is_active" json:"is_active"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// ReportStatus captures report-level workflow states.
type ReportStatus string

const (
	ReportStatusReported     ReportStatus = "reported"
	ReportStatusUnderReview  ReportStatus = "under_review"
	ReportStatusActionIssued ReportStatus = "action_issued"
	ReportStatusDismissed    ReportStatus = "dismissed"
)

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusReported:    {ReportStatusUnderReview, ReportStatusActionIssued, ReportStatusDismissed},
	ReportStatusUnderReview: {ReportStatusUnderReview, ReportStatusActionIssued, ReportStatusDismissed},
}

// CanTransitionTo reports whether next is a permitted successor. under_review may
// be re-entered so HR can append further notes.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	for _, allowed := range reportTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further report transitions exist.
func (s ReportStatus) Terminal() bool {
	return len(reportTransitions[s]) == 0
}

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusReported, ReportStatusUnderReview, ReportStatusActionIssued, ReportStatusDismissed:
		return true
	}
	return false
}

// DisciplinaryReport is the initial submission describing an alleged infraction.
type DisciplinaryReport struct {
	ID                  string       `db:"id" json:"id"`
	ReportNumber        string       `db:"report_number" json:"report_number"`
	EmployeeID          string       `db:"employee_id" json:"employee_id"`
	ReporterID          string       `db:"reporter_id" json:"reporter_id"`
	CategoryID          string       `db:"category_id" json:"category_id"`
	IncidentDate        time.Time    `db:"incident_date" json:"incident_date"`
	IncidentDescription string       `db:"incident_description" json:"incident_description"`
	Evidence            string       `db:"evidence" json:"evidence,omitempty"`
	Witnesses           Witnesses    `db:"witnesses" json:"witnesses"`
	Priority            Priority     `db:"priority" json:"priority"`
	Status              ReportStatus `db:"status" json:"status"`
	HRNotes             string       `db:"hr_notes" json:"hr_notes,omitempty"`
	ReviewedBy          *string      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// ReportFilter constrains report listing.
type ReportFilter struct {
	EmployeeID string
	ReporterID string
	CategoryID string
	Status     []ReportStatus
	Priority   Priority
	Page       int
	PageSize   int
}

// PriorViolationFilter selects the history used for repeat-violation detection.
type PriorViolationFilter struct {
	EmployeeID      string
	CategoryID      string
	ExcludeReportID string
	Limit           int
}

// ActionStatus captures action-level workflow states.
type ActionStatus string

const (
	ActionStatusActionIssued           ActionStatus = "action_issued"
	ActionStatusExplanationSubmitted   ActionStatus = "explanation_submitted"
	ActionStatusUnderInvestigation     ActionStatus = "under_investigation"
	ActionStatusInvestigationCompleted ActionStatus = "investigation_completed"
	ActionStatusAwaitingVerdict        ActionStatus = "awaiting_verdict"
	ActionStatusCompleted              ActionStatus = "completed"
	ActionStatusDismissed              ActionStatus = "dismissed"
)

var actionTransitions = map[ActionStatus][]ActionStatus{
	ActionStatusActionIssued:           {ActionStatusExplanationSubmitted, ActionStatusUnderInvestigation},
	ActionStatusExplanationSubmitted:   {ActionStatusUnderInvestigation, ActionStatusAwaitingVerdict},
	ActionStatusUnderInvestigation:     {ActionStatusInvestigationCompleted},
	ActionStatusInvestigationCompleted: {ActionStatusAwaitingVerdict},
	ActionStatusAwaitingVerdict:        {ActionStatusCompleted, ActionStatusDismissed},
}

// Successors returns the direct successors of s; terminal states have none.
func (s ActionStatus) Successors() []ActionStatus {
	return append([]ActionStatus(nil), actionTransitions[s]...)
}

// CanTransitionTo reports whether next is a direct successor of s.
// action_issued -> under_investigation only serves investigations that skip the
// employee explanation, which the workflow policy must allow explicitly.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	for _, allowed := range actionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the action is closed.
func (s ActionStatus) Terminal() bool {
	return s == ActionStatusCompleted || s == ActionStatusDismissed
}

// Valid reports whether s is a known action status.
func (s ActionStatus) Valid() bool {
	return s.Terminal() || len(actionTransitions[s]) > 0
}

// Verdict is the final HR decision closing an action.
type Verdict string

const (
	VerdictUphold  Verdict = "uphold"
	VerdictDismiss Verdict = "dismiss"
)

// Valid reports whether the verdict is known.
func (v Verdict) Valid() bool {
	return v == VerdictUphold || v == VerdictDismiss
}

// Outcome maps a verdict to the terminal action status.
func (v Verdict) Outcome() ActionStatus {
	if v == VerdictDismiss {
		return ActionStatusDismissed
	}
	return ActionStatusCompleted
}

// DisciplinaryAction is the formal instrument issued in response to a report.
type DisciplinaryAction struct {
	ID                       string       `db:"id" json:"id"`
	ReportID                 string       `db:"report_id" json:"report_id"`
	EmployeeID               string       `db:"employee_id" json:"employee_id"`
	InvestigatorID           *string      `db:"investigator_id" json:"investigator_id,omitempty"`
	IssuedBy                 string       `db:"issued_by" json:"issued_by"`
	ActionType               ActionType   `db:"action_type" json:"action_type"`
	ActionDetails            string       `db:"action_details" json:"action_details"`
	EffectiveDate            time.Time    `db:"effective_date" json:"effective_date"`
	DueDate                  *time.Time   `db:"due_date" json:"due_date,omitempty"`
	Status                   ActionStatus `db:"status" json:"status"`
	EmployeeExplanation      *string      `db:"employee_explanation" json:"employee_explanation,omitempty"`
	ExplanationSubmittedAt   *time.Time   `db:"explanation_submitted_at" json:"explanation_submitted_at,omitempty"`
	InvestigationNotes       *string      `db:"investigation_notes" json:"investigation_notes,omitempty"`
	InvestigationFindings    *string      `db:"investigation_findings" json:"investigation_findings,omitempty"`
	InvestigationRecommended *string      `db:"investigation_recommendation" json:"investigation_recommendation,omitempty"`
	InvestigationCompletedAt *time.Time   `db:"investigation_completed_at" json:"investigation_completed_at,omitempty"`
	Verdict                  *Verdict     `db:"verdict" json:"verdict,omitempty"`
	VerdictDetails           *string      `db:"verdict_details" json:"verdict_details,omitempty"`
	VerdictIssuedAt          *time.Time   `db:"verdict_issued_at" json:"verdict_issued_at,omitempty"`
	VerdictIssuedBy          *string      `db:"verdict_issued_by" json:"verdict_issued_by,omitempty"`
	Version                  int          `db:"version" json:"version"`
	CreatedAt                time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time    `db:"updated_at" json:"updated_at"`
}

// HasInvestigator reports whether an investigator is assigned.
func (a *DisciplinaryAction) HasInvestigator() bool {
	return a.InvestigatorID != nil && *a.InvestigatorID != ""
}

// HasExplanation reports whether the employee explanation was recorded.
func (a *DisciplinaryAction) HasExplanation() bool {
	return a.EmployeeExplanation != nil && a.ExplanationSubmittedAt != nil
}

// HasInvestigation reports whether investigation results were recorded.
func (a *DisciplinaryAction) HasInvestigation() bool {
	return a.InvestigationCompletedAt != nil
}

// ActionFilter constrains action listing.
type ActionFilter struct {
	ReportID       string
	EmployeeID     string
	InvestigatorID string
	Status         []ActionStatus
	Page           int
	PageSize       int
}
