// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
)

const migrationLockID = 101

const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id          UUID PRIMARY KEY,
		mint        VARCHAR(44) NOT NULL,
		side        VARCHAR(8)  NOT NULL,
		tranche     VARCHAR(16) NOT NULL DEFAULT '',
		reason      VARCHAR(32) NOT NULL DEFAULT '',
		signature   VARCHAR(88) NOT NULL DEFAULT '',
		amount_in   BIGINT NOT NULL,
		quoted_out  BIGINT NOT NULL DEFAULT 0,
		confirmed   BOOLEAN NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS trades_created_at_idx ON trades (created_at DESC);
	CREATE INDEX IF NOT EXISTS trades_mint_idx ON trades (mint);`

// Journal реализует storage.Journal поверх пула соединений pgx.
type Journal struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ storage.Journal = (*Journal)(nil)

// Connect открывает пул соединений и проверяет его доступность.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Journal, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	// Настройка пула соединений
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Journal{pool: pool, logger: logger.Named("postgres")}, nil
}

// Migrate создаёт таблицу журнала под advisory lock, чтобы параллельно
// запущенные боты не мигрировали схему одновременно.
func (j *Journal) Migrate(ctx context.Context) error {
	conn, err := j.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire connection: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockID).Scan(&locked); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another migration is in progress")
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			j.logger.Warn("Failed to release migration lock", zap.Error(err))
		}
	}()

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Record сохраняет запись; повторная запись того же события игнорируется.
func (j *Journal) Record(ctx context.Context, t storage.Trade) error {
	const query = `
		INSERT INTO trades (
			id, mint, side, tranche, reason, signature,
			amount_in, quoted_out, confirmed, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := j.pool.Exec(ctx, query,
		t.ID, t.Mint, t.Side, t.Tranche, t.Reason, t.Signature,
		int64(t.AmountIn), int64(t.QuotedOut), t.Confirmed, t.Error, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]storage.Trade, error) {
	const query = `
		SELECT id, mint, side, tranche, reason, signature,
			amount_in, quoted_out, confirmed, error, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := j.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]storage.Trade, error) {
	var trades []storage.Trade
	for rows.Next() {
		var (
			t             storage.Trade
			amountIn, out int64
		)
		if err := rows.Scan(
			&t.ID, &t.Mint, &t.Side, &t.Tranche, &t.Reason, &t.Signature,
			&amountIn, &out, &t.Confirmed, &t.Error, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.AmountIn, t.QuotedOut = uint64(amountIn), uint64(out)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close закрывает пул соединений.
func (j *Journal) Close() {
	j.pool.Close()
}
