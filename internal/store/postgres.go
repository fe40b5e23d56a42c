package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/db"
	"github.com/sells-group/reconcile-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	resolutionColumns = []string{"run_id", "conflict_id", "field", "strategy", "resolved_value", "confidence", "requires_review", "created_at"}
	fieldColumns      = []string{"field", "value", "confidence", "strategy", "run_id", "updated_at"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	sources            JSONB NOT NULL,
	summary            JSONB NOT NULL,
	report             JSONB,
	conflicts_detected INTEGER NOT NULL DEFAULT 0,
	review_count       INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resolutions (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	conflict_id     TEXT NOT NULL,
	field           TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	resolved_value  JSONB,
	confidence      DOUBLE PRECISION NOT NULL,
	requires_review BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reconciled_fields (
	field      TEXT PRIMARY KEY,
	value      JSONB,
	confidence DOUBLE PRECISION NOT NULL,
	strategy   TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_review_count ON runs(review_count) WHERE review_count > 0;
CREATE INDEX IF NOT EXISTS idx_resolutions_run_id ON resolutions(run_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_field ON resolutions(field);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun writes the run row and its resolutions in one transaction, then
// upserts the run's reconciled values into reconciled_fields.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run == nil {
		return eris.New("postgres: save run: nil run")
	}
	prepareRun(run, uuid.NewString)

	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: save run")
	}

	var resRows [][]any
	for _, r := range resolutionRows(run) {
		val, err := json.Marshal(r.ResolvedValue)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal resolved value for %s", r.Field)
		}
		resRows = append(resRows, []any{r.RunID, r.ConflictID, r.Field, string(r.Strategy), val, r.Confidence, r.RequiresReview, r.CreatedAt})
	}

	var fRows [][]any
	for _, f := range fieldRows(run) {
		val, err := json.Marshal(f.Value)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal field value for %s", f.Field)
		}
		fRows = append(fRows, []any{f.Field, val, f.Confidence, string(f.Strategy), f.RunID, f.UpdatedAt})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, sources, summary, report, conflicts_detected, review_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, enc.sources, enc.summary, enc.report,
		run.Summary.ConflictsDetected, run.Summary.ManualReviewRequired, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}

	if _, err := db.CopyFrom(ctx, tx, "resolutions", resolutionColumns, resRows); err != nil {
		return eris.Wrapf(err, "postgres: copy resolutions for run %s", run.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit run")
	}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "reconciled_fields",
		Columns:      fieldColumns,
		ConflictKeys: []string{"field"},
	}, fRows); err != nil {
		return eris.Wrapf(err, "postgres: upsert fields for run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var sources, summary, report []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, sources, summary, report, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &sources, &summary, &report, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run: run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := decodeRun(&r, sources, summary, report); err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, sources, summary, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Field != "" {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM resolutions r WHERE r.run_id = runs.id AND r.field = $%d)`, argIdx)
		args = append(args, filter.Field)
		argIdx++
	}
	if filter.ReviewOnly {
		query += ` AND review_count > 0`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var sources, summary []byte
		if err := rows.Scan(&r.ID, &sources, &summary, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := decodeRun(&r, sources, summary, nil); err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListResolutions(ctx context.Context, filter ResolutionFilter) ([]ResolutionRecord, error) {
	query := `SELECT run_id, conflict_id, field, strategy, resolved_value, confidence, requires_review, created_at FROM resolutions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if filter.Field != "" {
		query += fmt.Sprintf(` AND field = $%d`, argIdx)
		args = append(args, filter.Field)
		argIdx++
	}
	if filter.ReviewOnly {
		query += ` AND requires_review`
	}
	query += ` ORDER BY created_at DESC, field`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resolutions")
	}
	defer rows.Close()

	var out []ResolutionRecord
	for rows.Next() {
		var rec ResolutionRecord
		var strategy string
		var value []byte
		if err := rows.Scan(&rec.RunID, &rec.ConflictID, &rec.Field, &strategy, &value, &rec.Confidence, &rec.RequiresReview, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resolution")
		}
		rec.Strategy = model.Strategy(strategy)
		if len(value) > 0 {
			if rec.ResolvedValue, err = decodeValue(value); err != nil {
				return nil, eris.Wrapf(err, "postgres: decode resolution value for %s", rec.Field)
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list resolutions iterate")
}

func (s *PostgresStore) ListFields(ctx context.Context) ([]FieldRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field, value, confidence, strategy, run_id, updated_at FROM reconciled_fields ORDER BY field`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fields")
	}
	defer rows.Close()

	var out []FieldRecord
	for rows.Next() {
		var f FieldRecord
		var strategy string
		var value []byte
		if err := rows.Scan(&f.Field, &value, &f.Confidence, &strategy, &f.RunID, &f.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		f.Strategy = model.Strategy(strategy)
		if len(value) > 0 {
			if f.Value, err = decodeValue(value); err != nil {
				return nil, eris.Wrapf(err, "postgres: decode field value for %s", f.Field)
			}
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list fields iterate")
}
