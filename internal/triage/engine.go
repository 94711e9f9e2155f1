// Package triage decides which predictions escalate into the human review
// queue, builds the queued exception records, and runs the periodic
// auto-resolve sweep.
package triage

import (
	"fmt"
	"math"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

// Signals summarizes one prediction's escalation-relevant outcomes.
type Signals struct {
	Confidence float64

	ValidationErrors   int
	ValidationWarnings int

	// Signed anomaly z-score; both directions trigger.
	AnomalyZ    float64
	HasAnomalyZ bool

	MissingCriticalData bool

	// Calibration sample count behind the identity's reference values.
	// Advisory only: a low count annotates the decision, never escalates.
	CalibrationSamples    int
	HasCalibrationSamples bool
}

// Decision is the triage verdict for one prediction.
type Decision struct {
	ShouldEscalate bool
	Type           model.ExceptionType
	Severity       model.Severity
	Reasons        []string
}

// Engine applies the fixed escalation trigger sequence.
// Stateless and safe for concurrent use.
type Engine struct {
	cfg config.TriageConfig
}

// NewEngine creates a triage engine with the given thresholds.
func NewEngine(cfg config.TriageConfig) *Engine {
	return &Engine{cfg: cfg}
}

// ShouldEscalate evaluates every trigger independently, in fixed order.
// The decision's type is the FIRST trigger that fired; its severity is the
// MAXIMUM across all fired triggers; reasons carry one entry per fired
// trigger with no duplicates.
func (e *Engine) ShouldEscalate(s Signals) Decision {
	d := Decision{Severity: model.SeverityMedium}

	fire := func(t model.ExceptionType, sev model.Severity, reason string) {
		if !d.ShouldEscalate {
			d.Type = t
			d.Severity = sev
			d.ShouldEscalate = true
		} else {
			d.Severity = model.MaxSeverity(d.Severity, sev)
		}
		d.Reasons = append(d.Reasons, reason)
	}

	// 1. Low confidence, with two sub-thresholds sharpening severity.
	if s.Confidence < e.cfg.ConfidenceEscalate {
		sev := model.SeverityMedium
		switch {
		case s.Confidence < e.cfg.ConfidenceCritical:
			sev = model.SeverityCritical
		case s.Confidence < e.cfg.ConfidenceHigh:
			sev = model.SeverityHigh
		}
		fire(model.ExceptionLowConfidence, sev,
			fmt.Sprintf("confidence %.2f below escalation threshold %.2f", s.Confidence, e.cfg.ConfidenceEscalate))
	}

	// 2. Validation errors outrank warnings-only.
	if s.ValidationErrors > 0 {
		fire(model.ExceptionValidationWarning, model.SeverityHigh,
			fmt.Sprintf("%d validation error(s) present", s.ValidationErrors))
	} else if s.ValidationWarnings > 0 {
		// 3. Warnings never raise severity beyond what other triggers set.
		fire(model.ExceptionValidationWarning, model.SeverityLow,
			fmt.Sprintf("%d validation warning(s) present", s.ValidationWarnings))
	}

	// 4. Statistical anomaly, absolute value so both directions trigger.
	if s.HasAnomalyZ {
		abs := math.Abs(s.AnomalyZ)
		switch {
		case abs >= e.cfg.AnomalyCriticalZ:
			fire(model.ExceptionAnomalousMeasure, model.SeverityCritical,
				fmt.Sprintf("anomaly z-score %.2f beyond critical threshold %.2f", abs, e.cfg.AnomalyCriticalZ))
		case abs >= e.cfg.AnomalyEscalateZ:
			fire(model.ExceptionAnomalousMeasure, model.SeverityHigh,
				fmt.Sprintf("anomaly z-score %.2f beyond escalation threshold %.2f", abs, e.cfg.AnomalyEscalateZ))
		}
	}

	// 5. Missing critical data.
	if s.MissingCriticalData {
		fire(model.ExceptionMissingData, model.SeverityHigh, "critical input data missing")
	}

	// Advisory calibration note. Never escalates on its own.
	if d.ShouldEscalate && s.HasCalibrationSamples && s.CalibrationSamples < e.cfg.MinCalibrationSamples {
		d.Reasons = append(d.Reasons,
			fmt.Sprintf("advisory: only %d calibration sample(s) behind reference values (minimum %d)",
				s.CalibrationSamples, e.cfg.MinCalibrationSamples))
	}

	return d
}
