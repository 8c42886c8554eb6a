package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/jhquant/internal/runner"
)

// ErrRunNotFound is returned by GetRun for an unknown run id
var ErrRunNotFound = errors.New("run not found")

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS screening_runs (
		run_id      UUID        PRIMARY KEY,
		run_date    DATE        NOT NULL,
		test        BOOLEAN     NOT NULL DEFAULT FALSE,
		outcome     VARCHAR(16) NOT NULL,
		row_count   BIGINT      NOT NULL DEFAULT 0,
		sent        INT         NOT NULL DEFAULT 0,
		skipped     JSONB       NOT NULL DEFAULT '[]',
		config_hash VARCHAR(64),
		hits        JSONB       NOT NULL DEFAULT '[]',
		messages    JSONB       NOT NULL DEFAULT '[]',
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_screening_runs_started_at ON screening_runs (started_at DESC);
`

const selectRunSQL = `
	SELECT run_id::text, run_date, test, outcome, row_count, sent, skipped,
	       COALESCE(config_hash, ''), hits, messages, started_at, finished_at
	FROM screening_runs
`

// Repository journals screening runs in PostgreSQL
// ⭐ SSOT: screening_runs 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new run journal
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates screening_runs
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure run journal schema: %w", err)
	}
	return nil
}

// SaveRun upserts the record of a finished run
func (r *Repository) SaveRun(ctx context.Context, res *runner.RunResult) error {
	rec := FromResult(res)

	skipped, err := json.Marshal(rec.Skipped)
	if err != nil {
		return fmt.Errorf("failed to marshal skipped: %w", err)
	}
	hits, err := json.Marshal(rec.Hits)
	if err != nil {
		return fmt.Errorf("failed to marshal hits: %w", err)
	}
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	query := `
		INSERT INTO screening_runs (
			run_id, run_date, test, outcome, row_count, sent, skipped,
			config_hash, hits, messages, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)
		ON CONFLICT (run_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			row_count = EXCLUDED.row_count,
			sent = EXCLUDED.sent,
			skipped = EXCLUDED.skipped,
			hits = EXCLUDED.hits,
			messages = EXCLUDED.messages,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.pool.Exec(ctx, query,
		rec.RunID, rec.Date, rec.Test, rec.Outcome, rec.Rows, rec.Sent, skipped,
		rec.ConfigHash, hits, messages, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}
	return nil
}

// GetRun retrieves one run by id
func (r *Repository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	rec, err := scanRun(r.pool.QueryRow(ctx, selectRunSQL+` WHERE run_id::text = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.pool.Query(ctx, selectRunSQL+` ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// DefaultListLimit applies when ListRuns gets no positive limit
const DefaultListLimit = 20

func scanRun(row pgx.Row) (*RunRecord, error) {
	var rec RunRecord
	var skipped, hits, messages []byte

	err := row.Scan(
		&rec.RunID, &rec.Date, &rec.Test, &rec.Outcome, &rec.Rows, &rec.Sent, &skipped,
		&rec.ConfigHash, &hits, &messages, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(skipped, &rec.Skipped); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skipped: %w", err)
	}
	if err := json.Unmarshal(hits, &rec.Hits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hits: %w", err)
	}
	if err := json.Unmarshal(messages, &rec.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return &rec, nil
}
