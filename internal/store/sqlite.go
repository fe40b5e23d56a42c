package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reconcile-cli/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	sources            TEXT NOT NULL,
	summary            TEXT NOT NULL,
	report             TEXT,
	conflicts_detected INTEGER NOT NULL DEFAULT 0,
	review_count       INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resolutions (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	conflict_id     TEXT NOT NULL,
	field           TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	resolved_value  TEXT,
	confidence      REAL NOT NULL,
	requires_review INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reconciled_fields (
	field      TEXT PRIMARY KEY,
	value      TEXT,
	confidence REAL NOT NULL,
	strategy   TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_run_id ON resolutions(run_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_field ON resolutions(field);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run == nil {
		return eris.New("sqlite: save run: nil run")
	}
	prepareRun(run, uuid.NewString)

	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: save run")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, sources, summary, report, conflicts_detected, review_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(enc.sources), string(enc.summary), nullableText(enc.report),
		run.Summary.ConflictsDetected, run.Summary.ManualReviewRequired, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	for _, r := range resolutionRows(run) {
		val, err := json.Marshal(r.ResolvedValue)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal resolved value for %s", r.Field)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO resolutions (run_id, conflict_id, field, strategy, resolved_value, confidence, requires_review, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.ConflictID, r.Field, string(r.Strategy), string(val), r.Confidence, r.RequiresReview, r.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert resolution for %s", r.Field)
		}
	}

	for _, f := range fieldRows(run) {
		val, err := json.Marshal(f.Value)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal field value for %s", f.Field)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reconciled_fields (field, value, confidence, strategy, run_id, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(field) DO UPDATE SET value = excluded.value, confidence = excluded.confidence,
			 strategy = excluded.strategy, run_id = excluded.run_id, updated_at = excluded.updated_at`,
			f.Field, string(val), f.Confidence, string(f.Strategy), f.RunID, f.UpdatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert field %s", f.Field)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sources, summary, report, created_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var sources, summary string
	var report sql.NullString
	err := row.Scan(&r.ID, &sources, &summary, &report, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var reportJSON []byte
	if report.Valid {
		reportJSON = []byte(report.String)
	}
	if err := decodeRun(&r, []byte(sources), []byte(summary), reportJSON); err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, sources, summary, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Field != "" {
		query += ` AND EXISTS (SELECT 1 FROM resolutions r WHERE r.run_id = runs.id AND r.field = ?)`
		args = append(args, filter.Field)
	}
	if filter.ReviewOnly {
		query += ` AND review_count > 0`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var sources, summary string
		if err := rows.Scan(&r.ID, &sources, &summary, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := decodeRun(&r, []byte(sources), []byte(summary), nil); err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListResolutions(ctx context.Context, filter ResolutionFilter) ([]ResolutionRecord, error) {
	query := `SELECT run_id, conflict_id, field, strategy, resolved_value, confidence, requires_review, created_at FROM resolutions WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Field != "" {
		query += ` AND field = ?`
		args = append(args, filter.Field)
	}
	if filter.ReviewOnly {
		query += ` AND requires_review = 1`
	}
	query += ` ORDER BY created_at DESC, field`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resolutions")
	}
	defer rows.Close() //nolint:errcheck

	var out []ResolutionRecord
	for rows.Next() {
		var rec ResolutionRecord
		var strategy string
		var value sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.ConflictID, &rec.Field, &strategy, &value, &rec.Confidence, &rec.RequiresReview, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resolution")
		}
		rec.Strategy = model.Strategy(strategy)
		if value.Valid {
			if rec.ResolvedValue, err = decodeValue([]byte(value.String)); err != nil {
				return nil, eris.Wrapf(err, "sqlite: decode resolution value for %s", rec.Field)
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list resolutions iterate")
}

func (s *SQLiteStore) ListFields(ctx context.Context) ([]FieldRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value, confidence, strategy, run_id, updated_at FROM reconciled_fields ORDER BY field`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fields")
	}
	defer rows.Close() //nolint:errcheck

	var out []FieldRecord
	for rows.Next() {
		var f FieldRecord
		var strategy string
		var value sql.NullString
		if err := rows.Scan(&f.Field, &value, &f.Confidence, &strategy, &f.RunID, &f.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		f.Strategy = model.Strategy(strategy)
		if value.Valid {
			if f.Value, err = decodeValue([]byte(value.String)); err != nil {
				return nil, eris.Wrapf(err, "sqlite: decode field value for %s", f.Field)
			}
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list fields iterate")
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
