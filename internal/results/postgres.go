package results

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps results in the run_results table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and checks the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Save(ctx context.Context, r RunResult) (RunResult, error) {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO run_results (seed, won, reason, final_wave, waves_cleared, total_kills, elapsed_seconds, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		int64(r.Seed), r.Won, r.Reason, r.FinalWave, r.WavesCleared, r.TotalKills, r.Elapsed, r.FinishedAt,
	).Scan(&r.ID)
	if err != nil {
		return RunResult{}, fmt.Errorf("saving run result: %w", err)
	}
	return r, nil
}

func (p *PostgresStore) Top(ctx context.Context, n int) ([]RunResult, error) {
	if n <= 0 {
		return []RunResult{}, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, seed, won, reason, final_wave, waves_cleared, total_kills, elapsed_seconds, finished_at
		 FROM run_results
		 ORDER BY waves_cleared DESC, total_kills DESC, elapsed_seconds ASC, finished_at ASC
		 LIMIT $1`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top results: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunResult, error) {
		var r RunResult
		var seed int64
		err := row.Scan(&r.ID, &seed, &r.Won, &r.Reason, &r.FinalWave, &r.WavesCleared, &r.TotalKills, &r.Elapsed, &r.FinishedAt)
		r.Seed = uint64(seed)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning top results: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}
