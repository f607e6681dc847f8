// Package postgres persists run history in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/recruiting-sheets/internal/pipeline"
	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

const defaultTable = "sync_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool used for run rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore reads and writes sync runs.
type RunStore struct {
	pool  pool
	table string
}

// NewRunStore connects to Postgres using cfg.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRunStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(p pool, table string) (*RunStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunStore{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the run table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	trigger      TEXT NOT NULL,
	status       TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ,
	records      INTEGER NOT NULL DEFAULT 0,
	rows_written INTEGER NOT NULL DEFAULT 0,
	snapshot_uri TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create run table: %w", err)
	}
	return nil
}

// CreateRun inserts a new run row.
func (s *RunStore) CreateRun(ctx context.Context, run pipeline.Run) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, kind, trigger, status, submitted_at, started_at, finished_at,
	records, rows_written, snapshot_uri, error
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, s.table)
	if _, err := s.pool.Exec(ctx, query, rowArgs(run)...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun overwrites the mutable columns of a run.
func (s *RunStore) UpdateRun(ctx context.Context, run pipeline.Run) error {
	query := fmt.Sprintf(`
UPDATE %s SET
	kind = $2, trigger = $3, status = $4, submitted_at = $5, started_at = $6,
	finished_at = $7, records = $8, rows_written = $9, snapshot_uri = $10, error = $11
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, rowArgs(run)...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *RunStore) GetRun(ctx context.Context, runID string) (pipeline.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.table)
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Run{}, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, runID)
	}
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. An empty kind matches every kind; a
// non-positive limit returns all.
func (s *RunStore) ListRuns(ctx context.Context, kind scrape.Kind, limit int) ([]pipeline.Run, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ($1 = '' OR kind = $1) ORDER BY submitted_at DESC LIMIT $2`,
		selectColumns, s.table)
	rows, err := s.pool.Query(ctx, query, string(kind), lim)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

const selectColumns = `id, kind, trigger, status, submitted_at, started_at, finished_at,
	records, rows_written, snapshot_uri, error`

func rowArgs(run pipeline.Run) []any {
	return []any{
		run.ID,
		string(run.Kind),
		string(run.Trigger),
		string(run.Status),
		run.Submitted,
		timestamp(run.Started),
		timestamp(run.Finished),
		run.Records,
		run.RowsWritten,
		run.SnapshotURI,
		run.Error,
	}
}

func timestamp(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func scanRun(row pgx.Row) (pipeline.Run, error) {
	var (
		run                   pipeline.Run
		kind, trigger, status string
		started, finished     pgtype.Timestamptz
	)
	err := row.Scan(
		&run.ID,
		&kind,
		&trigger,
		&status,
		&run.Submitted,
		&started,
		&finished,
		&run.Records,
		&run.RowsWritten,
		&run.SnapshotURI,
		&run.Error,
	)
	if err != nil {
		return pipeline.Run{}, err
	}
	run.Kind = scrape.Kind(kind)
	run.Trigger = pipeline.Trigger(trigger)
	run.Status = pipeline.RunStatus(status)
	if started.Valid {
		t := started.Time
		run.Started = &t
	}
	if finished.Valid {
		t := finished.Time
		run.Finished = &t
	}
	return run, nil
}
