package goToken

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/Averix07/goToken/internal/audit"
	"github.com/Averix07/goToken/internal/flows"
	"github.com/Averix07/goToken/jwt"
	"github.com/Averix07/goToken/session"
)

// TokenKind distinguishes access from refresh artifacts. It is embedded in
// every signed token and checked again on verify, so a refresh token can
// never pass where an access token is expected.
type TokenKind = jwt.TokenKind

const (
	// KindAccess is an exported constant or variable used by the token engine.
	KindAccess = jwt.KindAccess
	// KindRefresh is an exported constant or variable used by the token engine.
	KindRefresh = jwt.KindRefresh
)

// TokenClaims is the decoded claim set of a verified token, returned by
// [Engine.Verify] and [Engine.Rotate].
type TokenClaims = jwt.TokenClaims

// Session is the server-side session record that tokens bind to. Tokens are
// only valid while their session exists and is active.
type Session = session.Session

// VerifyOptions tunes a single [Engine.Verify] call. The zero value performs
// signature, claim, and revocation checks only.
type VerifyOptions struct {
	// RequireSession additionally loads the session record and rejects the
	// token when the session is missing or inactive.
	RequireSession bool

	// ExpectedDeviceFingerprint is compared, in constant time, against the
	// fingerprint claim minted into the token. Empty skips the check.
	ExpectedDeviceFingerprint string

	// ExpectKind pins the token kind. A refresh token presented where
	// ExpectKind is [KindAccess] fails with [ErrTokenKindMismatch].
	ExpectKind TokenKind
}

// TokenInfo is the non-authorizing introspection report returned by
// [Engine.Introspect]. Callers must never grant access based on it; use
// [Engine.Verify] for authorization decisions.
type TokenInfo = flows.TokenInfo

// HealthStatus reports backend reachability and round-trip latency, returned
// by [Engine.Health].
type HealthStatus = flows.HealthStatus

// SessionStore is the storage port for session records. [session.Store]
// (Redis) and [session.MemoryStore] both satisfy it.
type SessionStore interface {
	Save(ctx context.Context, sess *Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	GetReadOnly(ctx context.Context, sessionID string) (*Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	Extend(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error)
	BumpMinRefreshVersion(ctx context.Context, sessionID string) (uint32, error)
	InvalidateAllForSubject(ctx context.Context, subjectID string) (int, error)
	ActiveSessionCount(ctx context.Context, subjectID string) (int, error)
	ActiveSessionIDs(ctx context.Context, subjectID string) ([]string, error)
	EstimateActiveSessions(ctx context.Context) (int, error)
	ShouldEmitBindingAnomaly(ctx context.Context, sessionID, kind string, window time.Duration) (bool, error)
	Ping(ctx context.Context) (time.Duration, error)
}

// RevocationLedger is the storage port for revoked token IDs. Entries only
// need to outlive the token they revoke. [revocation.Ledger] (Redis),
// [revocation.MemoryLedger], and [revocation.PostgresLedger] satisfy it.
type RevocationLedger interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	RevokeNX(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Cleanup(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) (time.Duration, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that logs events through a [zap.Logger].
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] that logs to logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
