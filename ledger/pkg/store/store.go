// Package store persists the ledger to PostgreSQL. The whole ledger state
// is written as a single snapshot document after each committed mutation,
// and the append-only transaction log is replicated into its own table for
// SQL-side audit reporting.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for goose
	"github.com/pressly/goose/v3"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
	"github.com/descilabs/desci-ledger/utils/pkg/retry"
)

type Config struct {
	Logger      *slog.Logger
	DatabaseURL string
	// RunMigrations applies pending goose migrations at startup.
	RunMigrations bool
	Retry         retry.Config
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database url is required")
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

type Store struct {
	log  *slog.Logger
	cfg  Config
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if cfg.RunMigrations {
		if err := runMigrations(cfg.Logger, cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &Store{log: cfg.Logger, cfg: cfg, pool: pool}, nil
}

func runMigrations(log *slog.Logger, databaseURL string) error {
	log.Info("store: running migrations")

	goose.SetBaseFS(embedMigrations)

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("store: migrations complete")
	return nil
}

// SaveSnapshot replaces the persisted ledger snapshot and replicates any
// transaction-log entries not yet stored, in one database transaction.
// Transient failures are retried.
func (s *Store) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return retry.Do(ctx, s.cfg.Retry, func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_snapshot (id, state, taken_at)
			VALUES (1, $1, now())
			ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, taken_at = EXCLUDED.taken_at
		`, state)
		if err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}

		batch := &pgx.Batch{}
		for _, t := range snap.Transactions {
			batch.Queue(`
				INSERT INTO financial_transactions (id, tx_type, amount, related_id, recorded_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING
			`, t.ID, t.Type, t.Amount, t.RelatedID, t.Timestamp)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to replicate transaction log: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit snapshot: %w", err)
		}

		s.log.Debug("store: snapshot saved", "experiments", len(snap.Experiments), "transactions", len(snap.Transactions))
		return nil
	})
}

// LoadSnapshot returns the persisted snapshot, or ok=false when none has
// been saved yet.
func (s *Store) LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM ledger_snapshot WHERE id = 1`).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// TransactionTotals aggregates the replicated transaction log by type, the
// query behind periodic financial policy reports.
func (s *Store) TransactionTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tx_type, COALESCE(SUM(amount), 0)
		FROM financial_transactions
		GROUP BY tx_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var txType string
		var total int64
		if err := rows.Scan(&txType, &total); err != nil {
			return nil, fmt.Errorf("failed to scan transaction total: %w", err)
		}
		totals[txType] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction totals: %w", err)
	}
	return totals, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
