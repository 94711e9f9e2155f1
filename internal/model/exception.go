package model

import "time"

// ExceptionType classifies why a prediction was escalated for review.
type ExceptionType string

const (
	ExceptionLowConfidence       ExceptionType = "low_confidence"
	ExceptionAnomalousMeasure    ExceptionType = "anomalous_measurement"
	ExceptionMissingData         ExceptionType = "missing_data"
	ExceptionValidationWarning   ExceptionType = "validation_warning"
	ExceptionCalibrationConflict ExceptionType = "calibration_conflict"
	ExceptionManualFlag          ExceptionType = "manual_flag"
)

// Severity ranks how urgently an exception needs review.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the severity's ordinal; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// MaxSeverity returns the more severe of the two.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ExceptionStatus is the review-queue state machine.
//
//	pending -> in_review -> approved | rejected | escalated
//	pending -> auto_resolved (sweep, eligible records only)
type ExceptionStatus string

const (
	StatusPending      ExceptionStatus = "pending"
	StatusInReview     ExceptionStatus = "in_review"
	StatusApproved     ExceptionStatus = "approved"
	StatusRejected     ExceptionStatus = "rejected"
	StatusEscalated    ExceptionStatus = "escalated"
	StatusAutoResolved ExceptionStatus = "auto_resolved"
)

// Terminal reports whether the status admits no further transitions.
func (s ExceptionStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusEscalated, StatusAutoResolved:
		return true
	}
	return false
}

// ExceptionRecord is one queued review item. Records are mutated only through
// defined status transitions and never deleted.
type ExceptionRecord struct {
	ID           string        `json:"id"`
	PredictionID string        `json:"prediction_id,omitempty"`
	Subject      string        `json:"subject"` // e.g. "valencia:central-fl"
	Category     Category      `json:"category"`
	Type         ExceptionType `json:"type"`
	Severity     Severity      `json:"severity"`
	TriggerSrc   string        `json:"trigger_source"`

	Expected  *float64 `json:"expected,omitempty"`
	Actual    *float64 `json:"actual,omitempty"`
	Deviation *float64 `json:"deviation,omitempty"`

	Context map[string]any `json:"context,omitempty"`

	Status          ExceptionStatus `json:"status"`
	Assignee        string          `json:"assignee,omitempty"`
	Reviewer        string          `json:"reviewer,omitempty"`
	ResolutionNotes string          `json:"resolution_notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SLADeadline time.Time  `json:"sla_deadline"`
	AutoResolve bool       `json:"auto_resolve_eligible"`
	AutoAfter   *time.Time `json:"auto_resolve_after,omitempty"`
}
