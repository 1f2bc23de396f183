package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPostgresUnavailable is an exported constant or variable used by the token engine.
var ErrPostgresUnavailable = errors.New("postgres unavailable")

// PostgresLedger is a durable revocation ledger on PostgreSQL for deployments
// that need revocations to survive a cache flush. Same observable contract as
// the Redis-backed [Ledger]; expiry is enforced by predicate instead of TTL,
// so periodic Cleanup keeps the table bounded.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a Postgres-backed revocation ledger. The caller
// owns the pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// EnsureSchema creates the ledger table and its expiry index if missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gotoken_revocations (
			token_id   text PRIMARY KEY,
			expires_at timestamptz NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}

	_, err = l.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS gotoken_revocations_expires_at_idx
			ON gotoken_revocations (expires_at)
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return nil
}

// Revoke marks a token ID revoked until expiresAt. Idempotent; expired tokens
// are a no-op.
func (l *PostgresLedger) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if time.Until(expiresAt) <= 0 {
		return nil
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO gotoken_revocations (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING
	`, tokenID, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return nil
}

// RevokeNX marks a token ID revoked and reports whether this call created the
// entry. The conflict-free insert is the single-winner election used by
// rotation; expired tokens report a vacuous win.
func (l *PostgresLedger) RevokeNX(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if time.Until(expiresAt) <= 0 {
		return true, nil
	}

	tag, err := l.pool.Exec(ctx, `
		INSERT INTO gotoken_revocations (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING
	`, tokenID, expiresAt)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

// IsRevoked reports whether a token ID currently has a live revocation row.
func (l *PostgresLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM gotoken_revocations
			WHERE token_id = $1 AND expires_at > now()
		)
	`, tokenID).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return revoked, nil
}

// Cleanup deletes rows whose expiry is at or before now and returns the
// number removed.
func (l *PostgresLedger) Cleanup(ctx context.Context, now time.Time) (int, error) {
	tag, err := l.pool.Exec(ctx, `
		DELETE FROM gotoken_revocations
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping returns a point-in-time Postgres availability check and latency.
func (l *PostgresLedger) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := l.pool.Ping(ctx); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrPostgresUnavailable, err)
	}
	return time.Since(start), nil
}
