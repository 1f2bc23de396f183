package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the token engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionCorrupt is returned when a stored session blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session blob corrupt")

var errMutateTargetGone = errors.New("mutate target gone")

const minSlidingTTL = time.Second

const (
	invalidateStatusNotFound    int64 = 0
	invalidateStatusExpired     int64 = 1
	invalidateStatusInactive    int64 = 2
	invalidateStatusDone        int64 = 3
	invalidateStatusInvalidBlob int64 = 4
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  local count = tonumber(redis.call("GET", KEYS[3]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[3])
  elseif count == 1 then
    redis.call("DEL", KEYS[3])
  end
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const invalidateSessionScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function decrement_count(count_key)
  local count = tonumber(redis.call("GET", count_key) or "0")
  if count > 1 then
    redis.call("DECR", count_key)
  elseif count == 1 then
    redis.call("DEL", count_key)
  end
end

local session_key = KEYS[1]
local count_key = KEYS[2]
local session_id = ARGV[1]
local subject_prefix = ARGV[2]
local now_unix = tonumber(ARGV[3])

local data = redis.call("GET", session_key)
if not data then
  return 0
end

local version = string.byte(data, 1)
if not version or version < 1 or version > 2 then
  return 4
end

local subj_len = string.byte(data, 2)
if not subj_len then
  return 4
end
local subject_id = string.sub(data, 3, 2 + subj_len)
local subject_key = subject_prefix .. subject_id

local idx = 2
for i = 1, 3 do
  local len = string.byte(data, idx)
  if not len then
    return 4
  end
  idx = idx + 1 + len
end

local active = string.byte(data, idx)
if not active then
  return 4
end

if #data < idx + 16 then
  return 4
end

local expires_at = read_be64(data, #data - 7)
if not expires_at or expires_at <= now_unix then
  local deleted = redis.call("DEL", session_key)
  redis.call("SREM", subject_key, session_id)
  if deleted == 1 then
    decrement_count(count_key)
  end
  return 1
end

if active == 0 then
  return 2
end

local ttl = redis.call("PTTL", session_key)
if ttl <= 0 then
  local deleted = redis.call("DEL", session_key)
  redis.call("SREM", subject_key, session_id)
  if deleted == 1 then
    decrement_count(count_key)
  end
  return 1
end

local updated = string.sub(data, 1, idx - 1) .. string.char(0) .. string.sub(data, idx + 1)
redis.call("SET", session_key, updated, "PX", ttl)
return 3
`

var invalidateSessionLua = redis.NewScript(invalidateSessionScript)

// Store is a Redis-backed session store that handles persistence, expiration,
// sliding window renewal, invalidation, and refresh family versioning.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	sliding       bool
	jitterEnabled bool
	jitterRange   time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; sliding, jitterEnabled, and
// jitterRange control expiration behavior.
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	sliding bool,
	jitterEnabled bool,
	jitterRange time.Duration,
) *Store {
	if prefix == "" {
		prefix = "ts"
	}
	return &Store{
		redis:         redis,
		prefix:        prefix,
		sliding:       sliding,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) subjectKey(subjectID string) string {
	return "tsu:" + subjectID
}

func (s *Store) subjectKeyPrefix() string {
	return "tsu:"
}

func (s *Store) countKey() string {
	return "tsc:count"
}

func (s *Store) bindingAnomalyKey(sessionID, kind string) string {
	return "tba:" + sessionID + ":" + kind
}

// Save persists a [Session] to Redis with the given TTL and tracks it in the
// per-subject index.
//
//	Performance: 3 Redis commands in one transaction (SET + SADD + INCR).
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.SessionID)
	subjectKey := s.subjectKey(sess.SubjectID)
	countKey := s.countKey()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, subjectKey, sess.SessionID)
		pipe.Incr(ctx, countKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by ID. A missing or logically expired record yields
// (nil, nil); expired records are removed on read. Inactive sessions are still
// returned so callers can distinguish "invalidated" from "gone".
//
//	Performance: 1 Redis GET (+1 EXPIRE when sliding renewal is on).
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.SessionID = sessionID

	now := time.Now()
	remaining := time.Unix(sess.ExpiresAt, 0).Sub(now)
	if remaining <= 0 {
		if err := s.deleteSessionAndIndex(ctx, sess.SubjectID, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := s.maybeMigrateSessionSchema(ctx, key, sess); err != nil {
		return nil, err
	}

	if s.sliding {
		nextTTL, err := s.nextSlidingTTL(remaining)
		if err != nil {
			return nil, err
		}

		if err := s.redis.Expire(ctx, key, nextTTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// GetReadOnly fetches a session without mutating TTL, index, schema, or any
// other Redis state. Missing and expired records both yield (nil, nil).
func (s *Store) GetReadOnly(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.SessionID = sessionID
	if time.Now().Unix() > sess.ExpiresAt {
		return nil, nil
	}

	return sess, nil
}

// Invalidate flips the session's active flag to false in place, preserving the
// record and its TTL for later inspection. Invalidating a missing, expired, or
// already inactive session is a no-op.
//
//	Performance: 1 Lua EVALSHA (atomic in-place flag flip).
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	_, err := s.invalidateOne(ctx, sessionID)
	return err
}

func (s *Store) invalidateOne(ctx context.Context, sessionID string) (int64, error) {
	result, err := invalidateSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.countKey()},
		sessionID,
		s.subjectKeyPrefix(),
		time.Now().Unix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if result == invalidateStatusInvalidBlob {
		return result, fmt.Errorf("%w: invalidate target undecodable", ErrSessionCorrupt)
	}
	return result, nil
}

// Extend renews the session's absolute expiry to now+ttl using an optimistic
// transaction. Missing, expired, and inactive sessions yield (nil, nil).
func (s *Store) Extend(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error) {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		var out *Session
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
			}
			sess.SessionID = sessionID

			now := time.Now()
			if now.Unix() > sess.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errMutateTargetGone
			}
			if !sess.Active {
				return errMutateTargetGone
			}

			sess.SchemaVersion = CurrentSchemaVersion
			sess.ExpiresAt = now.Add(ttl).Unix()
			encoded, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			})
			if err == nil {
				out = sess
			}
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, errMutateTargetGone) {
				return nil, nil
			}
			if errors.Is(err, ErrSessionCorrupt) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: extend retries exhausted", ErrRedisUnavailable)
}

// BumpMinRefreshVersion increments the session's minimum acceptable refresh
// family version using an optimistic transaction and returns the new floor.
// Refresh tokens carrying a lower family version fail verification afterwards.
// A missing or expired session yields (0, nil).
//
//	Security: CAS prevents lost updates under concurrent bumps.
func (s *Store) BumpMinRefreshVersion(ctx context.Context, sessionID string) (uint32, error) {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		var next uint32
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
			}
			sess.SessionID = sessionID

			if time.Now().Unix() > sess.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errMutateTargetGone
			}

			sess.SchemaVersion = CurrentSchemaVersion
			sess.MinRefreshVersion++
			encoded, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, redis.KeepTTL)
				return nil
			})
			if err == nil {
				next = sess.MinRefreshVersion
			}
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, errMutateTargetGone) {
				return 0, nil
			}
			if errors.Is(err, ErrSessionCorrupt) {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return next, nil
	}

	return 0, fmt.Errorf("%w: version bump retries exhausted", ErrRedisUnavailable)
}

// Delete removes a session from Redis, the subject index, and the counter.
//
//	Performance: 1 GET + 1 Lua EVALSHA.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	return s.deleteSessionAndIndex(ctx, sess.SubjectID, sessionID)
}

// InvalidateAllForSubject flips every tracked session of a subject to inactive
// and reports how many were flipped. Records stay in Redis until their natural
// expiry so introspection can still observe them.
//
// ATOMICITY NOTE: This operation is NOT fully atomic. It reads the subject's
// session set (SMembers), then invalidates each session with the per-session
// script. A session created between the read and the invalidation phase will
// not be captured by this call. In practice this race is extremely narrow and
// only affects logout-all semantics. The stray session will expire naturally
// or be caught by the next InvalidateAllForSubject call.
//
// InvalidateAllForSubject may return an error when input validation, dependency calls, or security checks fail.
// InvalidateAllForSubject does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) InvalidateAllForSubject(ctx context.Context, subjectID string) (int, error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var flipped int
	for _, sessionID := range sessionIDs {
		status, err := s.invalidateOne(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionCorrupt) {
				continue
			}
			return flipped, err
		}
		if status == invalidateStatusDone {
			flipped++
		}
	}

	return flipped, nil
}

// SessionCount returns the tracked store-wide live session counter.
func (s *Store) SessionCount(ctx context.Context) (int, error) {
	count, err := s.redis.Get(ctx, s.countKey()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// SetSessionCount sets (or clears) the tracked session counter. Intended for
// reconciliation against EstimateActiveSessions, not for request paths.
func (s *Store) SetSessionCount(ctx context.Context, count int) error {
	key := s.countKey()
	if count <= 0 {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	if err := s.redis.Set(ctx, key, count, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionCount returns the number of tracked session IDs for a subject.
func (s *Store) ActiveSessionCount(ctx context.Context, subjectID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// ActiveSessionIDs returns tracked session IDs for a subject.
func (s *Store) ActiveSessionIDs(ctx context.Context, subjectID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// EstimateActiveSessions scans session keys and counts matches.
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) EstimateActiveSessions(ctx context.Context) (int, error) {
	pattern := s.prefix + ":*"
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// ShouldEmitBindingAnomaly returns true only for the first anomaly in the
// window per session/kind, deduplicating detect-mode audit noise.
func (s *Store) ShouldEmitBindingAnomaly(ctx context.Context, sessionID, kind string, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	key := s.bindingAnomalyKey(sessionID, kind)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return true, nil
	}

	return false, nil
}

func (s *Store) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := remainingAbsolute

	if s.jitterEnabled && s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

func (s *Store) maybeMigrateSessionSchema(ctx context.Context, key string, sess *Session) error {
	if sess == nil || sess.SchemaVersion == CurrentSchemaVersion {
		return nil
	}

	pttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if pttl <= 0 {
		return nil
	}

	sess.SchemaVersion = CurrentSchemaVersion
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, key, encoded, pttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, subjectID, sessionID string) error {
	key := s.key(sessionID)
	subjectKey := s.subjectKey(subjectID)
	countKey := s.countKey()

	_, err := deleteSessionLua.Run(ctx, s.redis, []string{key, subjectKey, countKey}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
