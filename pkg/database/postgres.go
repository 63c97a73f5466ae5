package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/hedgefund/pkg/config"
)

// DB wraps the pgxpool.Pool shared by the run store and the price source
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool and verifies it with a ping
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	if !cfg.Database.Enabled() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// schema is applied idempotently on startup.
// backtest_snapshots is append-only; a run row changes only while it is queued.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id       TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		parameters   JSONB NOT NULL,
		metrics      JSONB,
		error        TEXT,
		note         TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at   TIMESTAMPTZ,
		finished_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_snapshots (
		run_id   TEXT NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
		step     INTEGER NOT NULL,
		snapshot JSONB NOT NULL,
		PRIMARY KEY (run_id, step)
	)`,
	`CREATE TABLE IF NOT EXISTS prices (
		ticker      TEXT NOT NULL,
		trade_date  DATE NOT NULL,
		open        DOUBLE PRECISION NOT NULL,
		high        DOUBLE PRECISION NOT NULL,
		low         DOUBLE PRECISION NOT NULL,
		close       DOUBLE PRECISION NOT NULL,
		volume      BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (ticker, trade_date)
	)`,
}

// Migrate creates the tables used by the service if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

// HealthCheck returns detailed health information about the database
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Healthy:   false,
		Timestamp: time.Now(),
	}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)
	status.Stats = db.Stats()
	status.Healthy = true

	return status, nil
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
}

// Stats returns the current pool statistics
func (db *DB) Stats() PoolStats {
	stats := db.Pool.Stat()
	return PoolStats{
		AcquiredConns: stats.AcquiredConns(),
		IdleConns:     stats.IdleConns(),
		MaxConns:      stats.MaxConns(),
		TotalConns:    stats.TotalConns(),
	}
}
