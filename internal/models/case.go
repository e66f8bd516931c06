package models

import "time"

// CaseStatus is the derived, display-oriented status of a whole case.
type CaseStatus struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Derived case statuses.
var (
	CaseStatusReported             = CaseStatus{Key: "reported", Label: "Reported"}
	CaseStatusUnderReview          = CaseStatus{Key: "under_review", Label: "Under Review by HR"}
	CaseStatusActionIssued         = CaseStatus{Key: "action_issued", Label: "Disciplinary Action Issued"}
	CaseStatusExplanationRequested = CaseStatus{Key: "explanation_requested", Label: "Employee Explanation Requested"}
	CaseStatusExplanationSubmitted = CaseStatus{Key: "explanation_submitted", Label: "Employee Explanation Submitted"}
	CaseStatusUnderInvestigation   = CaseStatus{Key: "under_investigation", Label: "Under Investigation"}
	CaseStatusInvestigationDone    = CaseStatus{Key: "investigation_completed", Label: "Investigation Completed"}
	CaseStatusAwaitingVerdict      = CaseStatus{Key: "awaiting_verdict", Label: "Awaiting HR Final Verdict"}
	CaseStatusUpheld               = CaseStatus{Key: "completed", Label: "Case Completed — Action Upheld"}
	CaseStatusDismissed            = CaseStatus{Key: "dismissed", Label: "Case Dismissed"}
)

// PriorViolation is a compact view of an earlier report used in repeat-violation warnings.
type PriorViolation struct {
	ReportID     string       `db:"id" json:"report_id"`
	ReportNumber string       `db:"report_number" json:"report_number"`
	IncidentDate time.Time    `db:"incident_date" json:"incident_date"`
	Status       ReportStatus `db:"status" json:"status"`
	Priority     Priority     `db:"priority" json:"priority"`
}

// SystemMetrics is a lightweight snapshot of runtime counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	TransitionsTotal         uint64    `json:"transitions_total"`
	ConflictsTotal           uint64    `json:"conflicts_total"`
	NotificationsDispatched  uint64    `json:"notifications_dispatched"`
	OutboxBacklog            int       `json:"outbox_backlog"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
