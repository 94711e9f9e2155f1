package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripefield/quality-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_InsertException(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rec := testException(model.SeverityHigh, nil)

	mock.ExpectExec(`INSERT INTO exceptions`).
		WithArgs(rec.ID, rec.PredictionID, rec.Subject, string(rec.Category), string(rec.Type),
			string(rec.Severity), rec.TriggerSrc, rec.Expected, rec.Actual, rec.Deviation,
			pgxmock.AnyArg(), string(rec.Status), rec.Assignee, rec.Reviewer,
			rec.ResolutionNotes, rec.CreatedAt, rec.UpdatedAt, rec.SLADeadline,
			rec.AutoResolve, rec.AutoAfter).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.InsertException(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetException_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM exceptions WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetException(context.Background(), "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get exception")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AssignException_Guarded(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE exceptions SET status = \$1, assignee = \$2`).
		WithArgs(string(model.StatusInReview), "reviewer-a", pgxmock.AnyArg(),
			"exc-1", string(model.StatusPending)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.AssignException(context.Background(), "exc-1", "reviewer-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AssignException_NotPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE exceptions SET status = \$1, assignee = \$2`).
		WithArgs(string(model.StatusInReview), "reviewer-a", pgxmock.AnyArg(),
			"exc-1", string(model.StatusPending)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.AssignException(context.Background(), "exc-1", "reviewer-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending exception not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ResolveException(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE exceptions SET status = \$1, reviewer = \$2`).
		WithArgs(string(model.StatusRejected), "reviewer-b", "sensor fault confirmed", pgxmock.AnyArg(),
			"exc-2", string(model.StatusInReview)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.ResolveException(context.Background(), "exc-2", model.StatusRejected, "reviewer-b", "sensor fault confirmed")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ResolveException_InvalidStatus(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.ResolveException(context.Background(), "exc-2", model.StatusInReview, "r", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid resolution status")
}

func TestPostgres_AutoResolveDue(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE exceptions SET status = \$1, updated_at = \$2`).
		WithArgs(string(model.StatusAutoResolved), pgxmock.AnyArg(),
			string(model.StatusPending), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.AutoResolveDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestSnapshot_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, period, category, metrics, trend, alerts, computed_at`).
		WithArgs(string(model.CategoryCoffee)).
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.LatestSnapshot(context.Background(), model.CategoryCoffee)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	computedAt := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "period", "category", "metrics", "trend", "alerts", "computed_at"}).
		AddRow("snap-1", "2026-08", "produce",
			`{"sample_count":52,"matched_count":52,"mae":1.4,"rmse":1.8,"mape":9.5,"mean_error":-0.2,"median_error":-0.1,"error_std_dev":1.1,"coverage_pct":[42,66,80,92],"avg_confidence":0.82,"confidence_correlation":-0.3}`,
			`{"trend":"improving","change_pct":-26.3,"current_mae":1.4,"prior_mae":1.9}`,
			`{"alert":false,"needs_retrain":false}`,
			computedAt)

	mock.ExpectQuery(`SELECT id, period, category, metrics, trend, alerts, computed_at`).
		WithArgs(string(model.CategoryProduce)).
		WillReturnRows(rows)

	snap, err := s.LatestSnapshot(context.Background(), model.CategoryProduce)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "2026-08", snap.Period)
	assert.InDelta(t, 1.4, snap.Metrics.MAE, 1e-9)
	assert.Equal(t, model.TrendImproving, snap.Trend.Trend)
	assert.False(t, snap.Alerts.Alert)
	assert.NoError(t, mock.ExpectationsWereMet())
}
