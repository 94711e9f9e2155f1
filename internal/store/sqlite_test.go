package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripefield/quality-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testException(severity model.Severity, autoAfter *time.Time) model.ExceptionRecord {
	now := time.Now().UTC().Truncate(time.Second)
	rec := model.ExceptionRecord{
		ID:          uuid.NewString(),
		Subject:     "valencia:central-valley",
		Category:    model.CategoryProduce,
		Type:        model.ExceptionLowConfidence,
		Severity:    severity,
		TriggerSrc:  "confidence",
		Context:     map[string]any{"reasons": "confidence 0.42 below escalation threshold 0.50"},
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		SLADeadline: now.Add(72 * time.Hour),
	}
	if autoAfter != nil {
		rec.AutoResolve = true
		rec.AutoAfter = autoAfter
	}
	return rec
}

func TestSQLite_InsertAndGetException(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	expected := 12.5
	actual := 6.1
	rec := testException(model.SeverityHigh, nil)
	rec.Expected = &expected
	rec.Actual = &actual

	require.NoError(t, st.InsertException(ctx, rec))

	got, err := st.GetException(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, model.CategoryProduce, got.Category)
	assert.Equal(t, model.ExceptionLowConfidence, got.Type)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.Equal(t, model.StatusPending, got.Status)
	require.NotNil(t, got.Expected)
	assert.Equal(t, 12.5, *got.Expected)
	assert.Contains(t, got.Context["reasons"], "confidence")
	assert.False(t, got.AutoResolve)
}

func TestSQLite_GetException_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetException(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListExceptions_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	high := testException(model.SeverityHigh, nil)
	low := testException(model.SeverityLow, nil)
	low.Subject = "gesha:huila"
	low.Type = model.ExceptionAnomalousMeasure
	require.NoError(t, st.InsertException(ctx, high))
	require.NoError(t, st.InsertException(ctx, low))

	all, err := st.ListExceptions(ctx, ExceptionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bySeverity, err := st.ListExceptions(ctx, ExceptionFilter{Severity: model.SeverityHigh})
	require.NoError(t, err)
	require.Len(t, bySeverity, 1)
	assert.Equal(t, high.ID, bySeverity[0].ID)

	bySubject, err := st.ListExceptions(ctx, ExceptionFilter{Subject: "gesha:huila"})
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, low.ID, bySubject[0].ID)

	byType, err := st.ListExceptions(ctx, ExceptionFilter{Type: model.ExceptionAnomalousMeasure})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	none, err := st.ListExceptions(ctx, ExceptionFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_AssignAndResolveLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testException(model.SeverityMedium, nil)
	require.NoError(t, st.InsertException(ctx, rec))

	require.NoError(t, st.AssignException(ctx, rec.ID, "reviewer-a"))
	got, err := st.GetException(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, got.Status)
	assert.Equal(t, "reviewer-a", got.Assignee)

	// A second assignment of the same record fails: no longer pending.
	err = st.AssignException(ctx, rec.ID, "reviewer-b")
	require.Error(t, err)

	require.NoError(t, st.ResolveException(ctx, rec.ID, model.StatusApproved, "reviewer-a", "checked against lab panel"))
	got, err = st.GetException(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, "reviewer-a", got.Reviewer)
	assert.Equal(t, "checked against lab panel", got.ResolutionNotes)

	// Terminal records admit no further resolution.
	err = st.ResolveException(ctx, rec.ID, model.StatusRejected, "reviewer-b", "")
	require.Error(t, err)
}

func TestSQLite_ResolveException_InvalidStatus(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.ResolveException(context.Background(), "any", model.StatusPending, "r", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid resolution status")

	err = st.ResolveException(context.Background(), "any", model.StatusAutoResolved, "r", "")
	require.Error(t, err)
}

func TestSQLite_AutoResolveDue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-1 * time.Hour)
	future := now.Add(24 * time.Hour)

	due := testException(model.SeverityLow, &past)
	notYet := testException(model.SeverityMedium, &future)
	// Critical records are never eligible regardless of elapsed time.
	critical := testException(model.SeverityCritical, nil)
	critical.CreatedAt = now.Add(-30 * 24 * time.Hour)
	assigned := testException(model.SeverityLow, &past)

	for _, rec := range []model.ExceptionRecord{due, notYet, critical, assigned} {
		require.NoError(t, st.InsertException(ctx, rec))
	}
	// A record already moved out of pending must not be touched.
	require.NoError(t, st.AssignException(ctx, assigned.ID, "reviewer-a"))

	n, err := st.AutoResolveDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetException(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAutoResolved, got.Status)

	for _, id := range []string{notYet.ID, critical.ID} {
		got, err := st.GetException(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status, "record %s", id)
	}
	got, err = st.GetException(ctx, assigned.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInReview, got.Status)

	// Sweeping again finds nothing due.
	n, err = st.AutoResolveDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_SnapshotAppendAndLatest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// No prior snapshot yet.
	prior, err := st.LatestSnapshot(ctx, model.CategoryProduce)
	require.NoError(t, err)
	assert.Nil(t, prior)

	older := model.AccuracySnapshot{
		ID:         uuid.NewString(),
		Period:     "2026-07",
		Category:   model.CategoryProduce,
		Metrics:    model.AccuracyMetrics{SampleCount: 40, MAE: 1.9, CoveragePct: []float64{30, 55, 70, 85}},
		Trend:      model.TrendResult{Trend: model.TrendStable},
		ComputedAt: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	newer := model.AccuracySnapshot{
		ID:         uuid.NewString(),
		Period:     "2026-08",
		Category:   model.CategoryProduce,
		Metrics:    model.AccuracyMetrics{SampleCount: 52, MAE: 1.4, CoveragePct: []float64{42, 66, 80, 92}},
		Trend:      model.TrendResult{Trend: model.TrendImproving, ChangePct: -26.3},
		Alerts:     model.AlertResult{Alert: false},
		ComputedAt: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.InsertSnapshot(ctx, older))
	require.NoError(t, st.InsertSnapshot(ctx, newer))

	got, err := st.LatestSnapshot(ctx, model.CategoryProduce)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2026-08", got.Period)
	assert.InDelta(t, 1.4, got.Metrics.MAE, 1e-9)
	assert.Equal(t, model.TrendImproving, got.Trend.Trend)

	// Other categories are untouched.
	other, err := st.LatestSnapshot(ctx, model.CategoryEggs)
	require.NoError(t, err)
	assert.Nil(t, other)
}
