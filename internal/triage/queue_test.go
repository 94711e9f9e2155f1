package triage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/store"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "queue_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return NewQueue(st, testTriageConfig())
}

func TestManualFlagDefaultsToMedium(t *testing.T) {
	q := newTestQueue(t)

	rec, err := q.ManualFlag(context.Background(), "valencia:central-fl", model.CategoryProduce, "", "spot check")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityMedium, rec.Severity)
	assert.Equal(t, model.ExceptionManualFlag, rec.Type)
	assert.Equal(t, "manual", rec.TriggerSrc)
	assert.True(t, rec.AutoResolve)

	stored, err := q.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestManualFlagRejectsUnknownSeverity(t *testing.T) {
	q := newTestQueue(t)

	rec, err := q.ManualFlag(context.Background(), "valencia:central-fl", model.CategoryProduce, model.Severity("bogus"), "typo")
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Contains(t, err.Error(), "unknown severity")

	recs, err := q.List(context.Background(), store.ExceptionFilter{Subject: "valencia:central-fl"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestManualFlagExplicitHighNotAutoResolvable(t *testing.T) {
	q := newTestQueue(t)

	rec, err := q.ManualFlag(context.Background(), "hatch-7", model.CategoryEggs, model.SeverityHigh, "repeat offender")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, rec.Severity)
	assert.False(t, rec.AutoResolve)
	assert.Nil(t, rec.AutoAfter)
}
