package triage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/store"
)

// Queue is the review-queue service: it applies the status state machine on
// top of the store's guarded updates.
type Queue struct {
	store store.Store
	cfg   config.TriageConfig
}

// NewQueue creates the review-queue service.
func NewQueue(st store.Store, cfg config.TriageConfig) *Queue {
	return &Queue{store: st, cfg: cfg}
}

// Add inserts a new pending exception record.
func (q *Queue) Add(ctx context.Context, rec model.ExceptionRecord) error {
	if err := q.store.InsertException(ctx, rec); err != nil {
		return err
	}
	zap.L().Info("exception queued",
		zap.String("id", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.String("severity", string(rec.Severity)),
		zap.String("subject", rec.Subject))
	return nil
}

// Assign moves a pending record to in_review under the named reviewer.
func (q *Queue) Assign(ctx context.Context, id, assignee string) error {
	return q.store.AssignException(ctx, id, assignee)
}

// Resolve moves an in_review record to one of its terminal reviewer states
// and records the reviewer identity and notes.
func (q *Queue) Resolve(ctx context.Context, id string, status model.ExceptionStatus, reviewer, notes string) error {
	return q.store.ResolveException(ctx, id, status, reviewer, notes)
}

// List returns queued exceptions matching the filter.
func (q *Queue) List(ctx context.Context, filter store.ExceptionFilter) ([]model.ExceptionRecord, error) {
	return q.store.ListExceptions(ctx, filter)
}

// Get returns a single exception by id.
func (q *Queue) Get(ctx context.Context, id string) (*model.ExceptionRecord, error) {
	return q.store.GetException(ctx, id)
}

// ManualFlag queues a reviewer-initiated exception for a subject, outside
// the automatic trigger path. Manual flags follow medium-severity SLA and
// auto-resolve rules unless a severity is given.
func (q *Queue) ManualFlag(ctx context.Context, subject string, category model.Category, severity model.Severity, reason string) (*model.ExceptionRecord, error) {
	if severity == "" {
		severity = model.SeverityMedium
	}
	if !severity.Valid() {
		return nil, eris.Errorf("triage: unknown severity %q", severity)
	}
	now := time.Now().UTC()

	rec := model.ExceptionRecord{
		ID:          uuid.NewString(),
		Subject:     subject,
		Category:    category,
		Type:        model.ExceptionManualFlag,
		Severity:    severity,
		TriggerSrc:  "manual",
		Context:     map[string]any{"reasons": reason},
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		SLADeadline: now.Add(slaWindow(q.cfg, severity)),
	}
	if w, ok := autoResolveWindow(q.cfg, severity); ok {
		rec.AutoResolve = true
		after := now.Add(w)
		rec.AutoAfter = &after
	}

	if err := q.Add(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
