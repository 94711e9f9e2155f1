package triage

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

// RecordInput carries the prediction context needed to build a queue entry.
type RecordInput struct {
	PredictionID string
	Subject      string
	Category     model.Category
	TriggerSrc   string

	Expected  *float64
	Actual    *float64
	Deviation *float64

	Context map[string]any
}

// NewRecord builds a pending ExceptionRecord from a triage decision.
// SLA deadlines are strictly monotonic by severity (critical shortest);
// auto-resolve eligibility is false for critical and high by construction.
func NewRecord(cfg config.TriageConfig, d Decision, in RecordInput, now time.Time) model.ExceptionRecord {
	now = now.UTC()

	rec := model.ExceptionRecord{
		ID:           uuid.NewString(),
		PredictionID: in.PredictionID,
		Subject:      in.Subject,
		Category:     in.Category,
		Type:         d.Type,
		Severity:     d.Severity,
		TriggerSrc:   in.TriggerSrc,
		Expected:     in.Expected,
		Actual:       in.Actual,
		Deviation:    in.Deviation,
		Context:      in.Context,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		SLADeadline:  now.Add(slaWindow(cfg, d.Severity)),
	}

	if rec.Context == nil {
		rec.Context = map[string]any{}
	}
	if len(d.Reasons) > 0 {
		rec.Context["reasons"] = strings.Join(d.Reasons, "; ")
	}

	if w, ok := autoResolveWindow(cfg, d.Severity); ok {
		rec.AutoResolve = true
		after := now.Add(w)
		rec.AutoAfter = &after
	}

	return rec
}

func slaWindow(cfg config.TriageConfig, sev model.Severity) time.Duration {
	switch sev {
	case model.SeverityCritical:
		return time.Duration(cfg.SLACriticalHours) * time.Hour
	case model.SeverityHigh:
		return time.Duration(cfg.SLAHighHours) * time.Hour
	case model.SeverityMedium:
		return time.Duration(cfg.SLAMediumHours) * time.Hour
	default:
		return time.Duration(cfg.SLALowHours) * time.Hour
	}
}

func autoResolveWindow(cfg config.TriageConfig, sev model.Severity) (time.Duration, bool) {
	switch sev {
	case model.SeverityMedium:
		return time.Duration(cfg.AutoResolveMediumHours) * time.Hour, true
	case model.SeverityLow:
		return time.Duration(cfg.AutoResolveLowHours) * time.Hour, true
	default:
		return 0, false
	}
}
