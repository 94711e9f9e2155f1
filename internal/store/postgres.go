package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ripefield/quality-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS exceptions (
	id               TEXT PRIMARY KEY,
	prediction_id    TEXT,
	subject          TEXT NOT NULL,
	category         TEXT NOT NULL,
	type             TEXT NOT NULL,
	severity         TEXT NOT NULL,
	trigger_source   TEXT,
	expected         DOUBLE PRECISION,
	actual           DOUBLE PRECISION,
	deviation        DOUBLE PRECISION,
	context          JSONB,
	status           TEXT NOT NULL DEFAULT 'pending',
	assignee         TEXT,
	reviewer         TEXT,
	resolution_notes TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	sla_deadline     TIMESTAMPTZ NOT NULL,
	auto_resolve     BOOLEAN NOT NULL DEFAULT FALSE,
	auto_after       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS accuracy_snapshots (
	id          TEXT PRIMARY KEY,
	period      TEXT NOT NULL,
	category    TEXT NOT NULL,
	metrics     JSONB NOT NULL,
	trend       JSONB NOT NULL,
	alerts      JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exceptions_status ON exceptions(status);
CREATE INDEX IF NOT EXISTS idx_exceptions_severity ON exceptions(severity);
CREATE INDEX IF NOT EXISTS idx_exceptions_subject ON exceptions(subject);
CREATE INDEX IF NOT EXISTS idx_exceptions_auto_after ON exceptions(auto_after);
CREATE INDEX IF NOT EXISTS idx_snapshots_category_period ON accuracy_snapshots(category, computed_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertException(ctx context.Context, rec model.ExceptionRecord) error {
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal exception context")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO exceptions
		(id, prediction_id, subject, category, type, severity, trigger_source,
		 expected, actual, deviation, context, status, assignee, reviewer,
		 resolution_notes, created_at, updated_at, sla_deadline, auto_resolve, auto_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		rec.ID, rec.PredictionID, rec.Subject, string(rec.Category), string(rec.Type),
		string(rec.Severity), rec.TriggerSrc, rec.Expected, rec.Actual, rec.Deviation,
		string(ctxJSON), string(rec.Status), rec.Assignee, rec.Reviewer,
		rec.ResolutionNotes, rec.CreatedAt, rec.UpdatedAt, rec.SLADeadline,
		rec.AutoResolve, rec.AutoAfter,
	)
	return eris.Wrapf(err, "postgres: insert exception %s", rec.ID)
}

func (s *PostgresStore) GetException(ctx context.Context, id string) (*model.ExceptionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE id = $1`, id)
	rec, err := scanPgException(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get exception %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListExceptions(ctx context.Context, filter ExceptionFilter) ([]model.ExceptionRecord, error) {
	query := `SELECT ` + exceptionColumns + ` FROM exceptions`
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = "+arg(string(filter.Severity)))
	}
	if filter.Type != "" {
		conds = append(conds, "type = "+arg(string(filter.Type)))
	}
	if filter.Subject != "" {
		conds = append(conds, "subject = "+arg(filter.Subject))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET " + arg(filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exceptions")
	}
	defer rows.Close()

	var out []model.ExceptionRecord
	for rows.Next() {
		rec, err := scanPgException(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list exceptions")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list exceptions rows")
}

func (s *PostgresStore) AssignException(ctx context.Context, id, assignee string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE exceptions SET status = $1, assignee = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		string(model.StatusInReview), assignee, time.Now().UTC(),
		id, string(model.StatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: assign exception %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pending exception not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ResolveException(ctx context.Context, id string, status model.ExceptionStatus, reviewer, notes string) error {
	if !status.Terminal() || status == model.StatusAutoResolved {
		return eris.Errorf("store: invalid resolution status %q", status)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE exceptions SET status = $1, reviewer = $2, resolution_notes = $3, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		string(status), reviewer, notes, time.Now().UTC(),
		id, string(model.StatusInReview),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve exception %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("in-review exception not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) AutoResolveDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE exceptions SET status = $1, updated_at = $2
		 WHERE status = $3 AND auto_resolve AND auto_after IS NOT NULL AND auto_after <= $4`,
		string(model.StatusAutoResolved), now.UTC(),
		string(model.StatusPending), now.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: auto-resolve sweep")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap model.AccuracySnapshot) error {
	metricsJSON, err := json.Marshal(snap.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}
	trendJSON, err := json.Marshal(snap.Trend)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trend")
	}
	alertsJSON, err := json.Marshal(snap.Alerts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal alerts")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO accuracy_snapshots (id, period, category, metrics, trend, alerts, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.Period, string(snap.Category),
		string(metricsJSON), string(trendJSON), string(alertsJSON), snap.ComputedAt,
	)
	return eris.Wrapf(err, "postgres: insert snapshot %s", snap.ID)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, category model.Category) (*model.AccuracySnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, period, category, metrics, trend, alerts, computed_at
		 FROM accuracy_snapshots WHERE category = $1
		 ORDER BY computed_at DESC LIMIT 1`,
		string(category),
	)

	var snap model.AccuracySnapshot
	var metricsJSON, trendJSON, alertsJSON string
	err := row.Scan(&snap.ID, &snap.Period, &snap.Category,
		&metricsJSON, &trendJSON, &alertsJSON, &snap.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}

	if err := json.Unmarshal([]byte(metricsJSON), &snap.Metrics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	if err := json.Unmarshal([]byte(trendJSON), &snap.Trend); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal trend")
	}
	if err := json.Unmarshal([]byte(alertsJSON), &snap.Alerts); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal alerts")
	}
	return &snap, nil
}

func scanPgException(row pgx.Row) (*model.ExceptionRecord, error) {
	var rec model.ExceptionRecord
	var predictionID, triggerSrc, assignee, reviewer, notes *string
	var ctxJSON []byte

	err := row.Scan(&rec.ID, &predictionID, &rec.Subject, &rec.Category, &rec.Type,
		&rec.Severity, &triggerSrc, &rec.Expected, &rec.Actual, &rec.Deviation, &ctxJSON,
		&rec.Status, &assignee, &reviewer, &notes, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.SLADeadline, &rec.AutoResolve, &rec.AutoAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("exception not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan exception")
	}

	if predictionID != nil {
		rec.PredictionID = *predictionID
	}
	if triggerSrc != nil {
		rec.TriggerSrc = *triggerSrc
	}
	if assignee != nil {
		rec.Assignee = *assignee
	}
	if reviewer != nil {
		rec.Reviewer = *reviewer
	}
	if notes != nil {
		rec.ResolutionNotes = *notes
	}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &rec.Context); err != nil {
			return nil, eris.Wrap(err, "unmarshal exception context")
		}
	}
	return &rec, nil
}
