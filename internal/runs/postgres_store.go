package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/hedgefund/internal/contracts"
)

// PostgresStore persists runs in backtest_runs and backtest_snapshots
// ⭐ SSOT: 백테스트 실행 결과 저장/조회는 여기서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new run repository
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create implements contracts.RunStore
func (r *PostgresStore) Create(ctx context.Context, run *contracts.BacktestResult) error {
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	query := `
		INSERT INTO backtest_runs (run_id, status, parameters, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, run.RunID, run.Status, params, nullable(run.Note), run.CreatedAt); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

// MarkRunning implements contracts.RunStore
func (r *PostgresStore) MarkRunning(ctx context.Context, runID string, at time.Time) error {
	return r.inOpenRun(ctx, runID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE backtest_runs SET status = $2, started_at = $3 WHERE run_id = $1`,
			runID, contracts.StatusRunning, at)
		return err
	})
}

// AppendSnapshot implements contracts.RunStore
func (r *PostgresStore) AppendSnapshot(ctx context.Context, runID string, snap contracts.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return r.inOpenRun(ctx, runID, func(tx pgx.Tx) error {
		// PK (run_id, step) 충돌 시 실패: 기록된 스냅샷은 변경 불가
		_, err := tx.Exec(ctx,
			`INSERT INTO backtest_snapshots (run_id, step, snapshot) VALUES ($1, $2, $3)`,
			runID, snap.Step, data)
		return err
	})
}

// Finalize implements contracts.RunStore.
// Snapshots not yet appended are inserted; recorded ones are never rewritten.
func (r *PostgresStore) Finalize(ctx context.Context, final *contracts.BacktestResult) error {
	var metrics []byte
	if final.Metrics != nil {
		m := *final.Metrics
		m.Normalize() // JSONB에는 NaN/Inf 저장 불가
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		metrics = data
	}

	finished := time.Now().UTC()
	if final.FinishedAt != nil {
		finished = *final.FinishedAt
	}

	return r.inOpenRun(ctx, final.RunID, func(tx pgx.Tx) error {
		for _, snap := range final.Timeline {
			data, err := json.Marshal(snap)
			if err != nil {
				return fmt.Errorf("marshal snapshot: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO backtest_snapshots (run_id, step, snapshot) VALUES ($1, $2, $3)
				ON CONFLICT (run_id, step) DO NOTHING`,
				final.RunID, snap.Step, data); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			UPDATE backtest_runs
			SET status = $2, metrics = $3, error = $4, note = $5,
				started_at = COALESCE(started_at, $6), finished_at = $7
			WHERE run_id = $1`,
			final.RunID, final.Status, metrics, nullable(final.Error), nullable(final.Note), final.StartedAt, finished)
		return err
	})
}

// Get implements contracts.RunStore
func (r *PostgresStore) Get(ctx context.Context, runID string) (*contracts.BacktestResult, error) {
	row := r.pool.QueryRow(ctx, runColumns+` WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT snapshot FROM backtest_snapshots WHERE run_id = $1 ORDER BY step ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap contracts.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		run.Timeline = append(run.Timeline, snap)
	}
	return run, rows.Err()
}

// List returns up to limit runs, newest first, without their timelines
func (r *PostgresStore) List(ctx context.Context, limit int) ([]*contracts.BacktestResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, runColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]*contracts.BacktestResult, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// DeleteFinishedBefore implements contracts.RunStore; snapshots cascade
func (r *PostgresStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM backtest_runs
		WHERE status IN ($1, $2) AND finished_at < $3`,
		contracts.StatusProcessed, contracts.StatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// inOpenRun locks a non-terminal run row and runs fn in the same transaction
func (r *PostgresStore) inOpenRun(ctx context.Context, runID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status contracts.RunStatus
	err = tx.QueryRow(ctx, `SELECT status FROM backtest_runs WHERE run_id = $1 FOR UPDATE`, runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("lock run %s: %w", runID, err)
	}
	if status.Terminal() {
		return contracts.ErrRunFinalized
	}

	if err := fn(tx); err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const runColumns = `
	SELECT run_id, status, parameters, metrics, COALESCE(error, ''), COALESCE(note, ''),
		created_at, started_at, finished_at
	FROM backtest_runs`

func scanRun(row pgx.Row) (*contracts.BacktestResult, error) {
	var (
		run     contracts.BacktestResult
		params  []byte
		metrics []byte
	)
	if err := row.Scan(&run.RunID, &run.Status, &params, &metrics, &run.Error, &run.Note,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &run.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if len(metrics) > 0 {
		run.Metrics = &contracts.Metrics{}
		if err := json.Unmarshal(metrics, run.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
	}
	if run.Status == contracts.StatusQueued {
		run.Message = queuedMessage
	}
	run.Timeline = make([]contracts.Snapshot, 0)
	return &run, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
