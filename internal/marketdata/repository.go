package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/pkg/database"
)

// saveChunk bounds the statements queued in one batch
const saveChunk = 2000

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS stock_daily (
		ts_code    VARCHAR(20) NOT NULL,
		trade_date DATE        NOT NULL,
		open       DOUBLE PRECISION,
		high       DOUBLE PRECISION,
		low        DOUBLE PRECISION,
		close      DOUBLE PRECISION,
		vol        DOUBLE PRECISION,
		PRIMARY KEY (ts_code, trade_date)
	);
	CREATE INDEX IF NOT EXISTS idx_stock_daily_trade_date ON stock_daily (trade_date);
`

const insertBarSQL = `
	INSERT INTO stock_daily (ts_code, trade_date, open, high, low, close, vol)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (ts_code, trade_date) DO NOTHING
`

// Repository implements Store on PostgreSQL
// ⭐ SSOT: stock_daily 저장/조회는 여기서만
type Repository struct {
	db *database.DB
}

// NewRepository creates a new bar repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates stock_daily and its date index
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveBars inserts bars in batches inside one transaction
func (r *Repository) SaveBars(ctx context.Context, bars []contracts.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	var inserted int64
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		for start := 0; start < len(bars); start += saveChunk {
			end := min(start+saveChunk, len(bars))

			batch := &pgx.Batch{}
			for _, b := range bars[start:end] {
				batch.Queue(insertBarSQL,
					b.Symbol, contracts.TradeDay(b.TradeDate), b.Open, b.High, b.Low, b.Close, b.Volume,
				)
			}

			n, err := execBatch(ctx, tx, batch)
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save bars: %w", err)
	}
	return inserted, nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) (int64, error) {
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("failed to insert bar: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// LoadHistory returns the last `days` calendar days of bars
func (r *Repository) LoadHistory(ctx context.Context, days int) ([]contracts.Bar, error) {
	query := `
		SELECT ts_code, trade_date, open, high, low, close, vol
		FROM stock_daily
		WHERE trade_date >= current_date - make_interval(days => $1)
		ORDER BY ts_code, trade_date
	`

	rows, err := r.db.Pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var (
			b             contracts.Bar
			o, h, l, c, v *float64
		)
		if err := rows.Scan(&b.Symbol, &b.TradeDate, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		// NULL 컬럼은 0으로 두고 전략 단계의 Validate에서 걸러짐
		b.Open, b.High, b.Low, b.Close, b.Volume = deref(o), deref(h), deref(l), deref(c), deref(v)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// CountBars returns count(*) of stock_daily
func (r *Repository) CountBars(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM stock_daily`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return n, nil
}

// TradeDates returns the distinct stored trade dates on or after from, ascending
func (r *Repository) TradeDates(ctx context.Context, from time.Time) ([]time.Time, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT DISTINCT trade_date FROM stock_daily WHERE trade_date >= $1 ORDER BY trade_date`,
		contracts.TradeDay(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade dates: %w", err)
	}

	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to collect trade dates: %w", err)
	}
	return dates, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
