package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/hedgefund/internal/contracts"
)

// PostgresSource reads and writes the prices table
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new price repository
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// History retrieves bars for a ticker within [from, to]
func (r *PostgresSource) History(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT trade_date, open, high, low, close, volume
		FROM prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", ticker, err)
	}
	defer rows.Close()

	bars := make([]contracts.Bar, 0)
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", ticker, err)
		}
		b.Date = truncateDay(b.Date)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SaveBars upserts bars for one ticker in a single batch
func (r *PostgresSource) SaveBars(ctx context.Context, ticker string, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO prices (ticker, trade_date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save prices %s: %w", ticker, err)
		}
	}
	return nil
}
