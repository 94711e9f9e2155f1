package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ripefield/quality-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS exceptions (
	id               TEXT PRIMARY KEY,
	prediction_id    TEXT,
	subject          TEXT NOT NULL,
	category         TEXT NOT NULL,
	type             TEXT NOT NULL,
	severity         TEXT NOT NULL,
	trigger_source   TEXT,
	expected         REAL,
	actual           REAL,
	deviation        REAL,
	context          TEXT,
	status           TEXT NOT NULL DEFAULT 'pending',
	assignee         TEXT,
	reviewer         TEXT,
	resolution_notes TEXT,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	sla_deadline     DATETIME NOT NULL,
	auto_resolve     INTEGER NOT NULL DEFAULT 0,
	auto_after       DATETIME
);

CREATE TABLE IF NOT EXISTS accuracy_snapshots (
	id          TEXT PRIMARY KEY,
	period      TEXT NOT NULL,
	category    TEXT NOT NULL,
	metrics     TEXT NOT NULL,
	trend       TEXT NOT NULL,
	alerts      TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exceptions_status ON exceptions(status);
CREATE INDEX IF NOT EXISTS idx_exceptions_severity ON exceptions(severity);
CREATE INDEX IF NOT EXISTS idx_exceptions_subject ON exceptions(subject);
CREATE INDEX IF NOT EXISTS idx_exceptions_auto_after ON exceptions(auto_after);
CREATE INDEX IF NOT EXISTS idx_snapshots_category_period ON accuracy_snapshots(category, computed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertException(ctx context.Context, rec model.ExceptionRecord) error {
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal exception context")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exceptions
		(id, prediction_id, subject, category, type, severity, trigger_source,
		 expected, actual, deviation, context, status, assignee, reviewer,
		 resolution_notes, created_at, updated_at, sla_deadline, auto_resolve, auto_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PredictionID, rec.Subject, string(rec.Category), string(rec.Type),
		string(rec.Severity), rec.TriggerSrc, rec.Expected, rec.Actual, rec.Deviation,
		string(ctxJSON), string(rec.Status), rec.Assignee, rec.Reviewer,
		rec.ResolutionNotes, rec.CreatedAt, rec.UpdatedAt, rec.SLADeadline,
		boolToInt(rec.AutoResolve), rec.AutoAfter,
	)
	return eris.Wrapf(err, "sqlite: insert exception %s", rec.ID)
}

const exceptionColumns = `id, prediction_id, subject, category, type, severity, trigger_source,
	expected, actual, deviation, context, status, assignee, reviewer,
	resolution_notes, created_at, updated_at, sla_deadline, auto_resolve, auto_after`

func (s *SQLiteStore) GetException(ctx context.Context, id string) (*model.ExceptionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE id = ?`, id)
	return scanException(row)
}

func (s *SQLiteStore) ListExceptions(ctx context.Context, filter ExceptionFilter) ([]model.ExceptionRecord, error) {
	query := `SELECT ` + exceptionColumns + ` FROM exceptions`
	var conds []string
	var args []any

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, filter.Subject)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exceptions")
	}
	defer rows.Close()

	var out []model.ExceptionRecord
	for rows.Next() {
		rec, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list exceptions rows")
}

func (s *SQLiteStore) AssignException(ctx context.Context, id, assignee string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exceptions SET status = ?, assignee = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(model.StatusInReview), assignee, time.Now().UTC(),
		id, string(model.StatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: assign exception %s", id)
	}
	return checkRowsAffected(res, "pending exception", id)
}

func (s *SQLiteStore) ResolveException(ctx context.Context, id string, status model.ExceptionStatus, reviewer, notes string) error {
	if !status.Terminal() || status == model.StatusAutoResolved {
		return eris.Errorf("store: invalid resolution status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE exceptions SET status = ?, reviewer = ?, resolution_notes = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), reviewer, notes, time.Now().UTC(),
		id, string(model.StatusInReview),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve exception %s", id)
	}
	return checkRowsAffected(res, "in-review exception", id)
}

func (s *SQLiteStore) AutoResolveDue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exceptions SET status = ?, updated_at = ?
		 WHERE status = ? AND auto_resolve = 1 AND auto_after IS NOT NULL AND auto_after <= ?`,
		string(model.StatusAutoResolved), now.UTC(),
		string(model.StatusPending), now.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: auto-resolve sweep")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, snap model.AccuracySnapshot) error {
	metricsJSON, err := json.Marshal(snap.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}
	trendJSON, err := json.Marshal(snap.Trend)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trend")
	}
	alertsJSON, err := json.Marshal(snap.Alerts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal alerts")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accuracy_snapshots (id, period, category, metrics, trend, alerts, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Period, string(snap.Category),
		string(metricsJSON), string(trendJSON), string(alertsJSON), snap.ComputedAt,
	)
	return eris.Wrapf(err, "sqlite: insert snapshot %s", snap.ID)
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, category model.Category) (*model.AccuracySnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, period, category, metrics, trend, alerts, computed_at
		 FROM accuracy_snapshots WHERE category = ?
		 ORDER BY computed_at DESC LIMIT 1`,
		string(category),
	)
	return scanSnapshot(row)
}

// helpers

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanException(row scannable) (*model.ExceptionRecord, error) {
	var rec model.ExceptionRecord
	var ctxJSON, predictionID, triggerSrc, assignee, reviewer, notes sql.NullString
	var expected, actual, deviation sql.NullFloat64
	var autoResolve int
	var autoAfter sql.NullTime

	err := row.Scan(&rec.ID, &predictionID, &rec.Subject, &rec.Category, &rec.Type,
		&rec.Severity, &triggerSrc, &expected, &actual, &deviation, &ctxJSON,
		&rec.Status, &assignee, &reviewer, &notes, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.SLADeadline, &autoResolve, &autoAfter)
	if err == sql.ErrNoRows {
		return nil, eris.New("exception not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan exception")
	}

	rec.PredictionID = predictionID.String
	rec.TriggerSrc = triggerSrc.String
	rec.Assignee = assignee.String
	rec.Reviewer = reviewer.String
	rec.ResolutionNotes = notes.String
	rec.AutoResolve = autoResolve != 0
	if expected.Valid {
		rec.Expected = &expected.Float64
	}
	if actual.Valid {
		rec.Actual = &actual.Float64
	}
	if deviation.Valid {
		rec.Deviation = &deviation.Float64
	}
	if autoAfter.Valid {
		t := autoAfter.Time
		rec.AutoAfter = &t
	}
	if ctxJSON.Valid && ctxJSON.String != "" {
		if err := json.Unmarshal([]byte(ctxJSON.String), &rec.Context); err != nil {
			return nil, eris.Wrap(err, "unmarshal exception context")
		}
	}
	return &rec, nil
}

func scanSnapshot(row scannable) (*model.AccuracySnapshot, error) {
	var snap model.AccuracySnapshot
	var metricsJSON, trendJSON, alertsJSON string

	err := row.Scan(&snap.ID, &snap.Period, &snap.Category,
		&metricsJSON, &trendJSON, &alertsJSON, &snap.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan snapshot")
	}

	if err := json.Unmarshal([]byte(metricsJSON), &snap.Metrics); err != nil {
		return nil, eris.Wrap(err, "unmarshal metrics")
	}
	if err := json.Unmarshal([]byte(trendJSON), &snap.Trend); err != nil {
		return nil, eris.Wrap(err, "unmarshal trend")
	}
	if err := json.Unmarshal([]byte(alertsJSON), &snap.Alerts); err != nil {
		return nil, eris.Wrap(err, "unmarshal alerts")
	}
	return &snap, nil
}
