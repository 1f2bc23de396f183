package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the token engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Ledger is a Redis-backed revocation ledger keyed by token ID. Entries carry
// the revoked token's own expiry as TTL, so an entry never outlives its token
// and the ledger stays bounded by the number of live revocations.
type Ledger struct {
	redis  redis.UniversalClient
	prefix string
}

// NewLedger creates a revocation [Ledger] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewLedger(redis redis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = "rv"
	}
	return &Ledger{
		redis:  redis,
		prefix: prefix,
	}
}

func (l *Ledger) key(tokenID string) string {
	return l.prefix + ":" + tokenID
}

// Revoke marks a token ID revoked until expiresAt. Revoking an already revoked
// token is a harmless no-op, as is revoking a token that has already expired
// (nothing left to deny).
//
//	Performance: 1 Redis SET (or none for expired tokens).
func (l *Ledger) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return nil
	}

	value := strconv.FormatInt(expiresAt.Unix(), 10)
	if err := l.redis.Set(ctx, l.key(tokenID), value, remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeNX marks a token ID revoked and reports whether THIS call created the
// entry. Exactly one of any number of concurrent callers observes true, which
// is what rotation uses to elect a single winner per predecessor. A token that
// is already past expiresAt needs no entry; the call reports a vacuous win.
//
//	Performance: 1 Redis SETNX.
//	Security: CAS prevents two rotations from both claiming the same token.
func (l *Ledger) RevokeNX(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return true, nil
	}

	value := strconv.FormatInt(expiresAt.Unix(), 10)
	created, err := l.redis.SetNX(ctx, l.key(tokenID), value, remaining).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return created, nil
}

// IsRevoked reports whether a token ID currently has a live revocation entry.
//
//	Performance: 1 Redis EXISTS.
func (l *Ledger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.redis.Exists(ctx, l.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Cleanup sweeps ledger entries whose recorded expiry is at or before now and
// returns how many it removed. Redis TTLs already reap entries on time; the
// sweep only matters for entries restored without TTLs (for example from a
// dump) and as the explicit maintenance hook.
//
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (l *Ledger) Cleanup(ctx context.Context, now time.Time) (int, error) {
	pattern := l.prefix + ":*"
	nowUnix := now.Unix()
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := l.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, key := range keys {
			value, err := l.redis.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			expiresAt, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				// Unparseable entries are foreign; leave them alone.
				continue
			}
			if expiresAt > nowUnix {
				continue
			}
			n, err := l.redis.Del(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (l *Ledger) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
