package flows

import (
	"context"
	"time"

	"github.com/Averix07/goToken/jwt"
	"github.com/Averix07/goToken/session"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureLedgerUnavailable
	RotateFailureRevoked
	RotateFailureStoreUnavailable
	RotateFailureSessionInvalid
	RotateFailureFamilySuperseded
	RotateFailureIssue
	RotateFailureRevocationWrite
	RotateFailureConflict
)

// RotateResult carries the successor artifact or failure metadata.
type RotateResult struct {
	Failure     RotateFailureKind
	Err         error
	Predecessor *jwt.TokenClaims
	Successor   *jwt.TokenClaims
	Session     *session.Session
	Artifact    string
}

type RotateLedger interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	RevokeNX(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type RotateSessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

// RotateDeps captures rotation flow dependencies.
type RotateDeps struct {
	DecodeGrace     func(string) (*jwt.TokenClaims, error)
	IssueSuccessor  func(ctx context.Context, predecessor *jwt.TokenClaims, ttl time.Duration) (string, *jwt.TokenClaims, error)
	Now             func() time.Time
	RevocationGrace time.Duration
	Ledger          RotateLedger
	SessionStore    RotateSessionStore
	Warn            func(string, ...any)
}

// RunRotate replaces one artifact with a successor carrying the same subject,
// session, fingerprint, and kind. Ordering is issue-then-confirm-revoke: the
// successor exists before the predecessor's ledger entry is written, but it is
// never returned until that write succeeds. The predecessor write is a
// compare-and-swap insert, so concurrent rotations of the same artifact elect
// exactly one winner; losers revoke their own orphaned successor and fail.
func RunRotate(ctx context.Context, artifact string, ttl time.Duration, deps RotateDeps) RotateResult {
	predecessor, err := deps.DecodeGrace(artifact)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}

	revoked, err := deps.Ledger.IsRevoked(ctx, predecessor.TokenID())
	if err != nil {
		return RotateResult{Failure: RotateFailureLedgerUnavailable, Err: err, Predecessor: predecessor}
	}
	if revoked {
		return RotateResult{Failure: RotateFailureRevoked, Predecessor: predecessor}
	}

	// Rotation always consults the session, whatever the token kind.
	sess, err := deps.SessionStore.Get(ctx, predecessor.SessionID)
	if err != nil {
		return RotateResult{Failure: RotateFailureStoreUnavailable, Err: err, Predecessor: predecessor}
	}
	if sess == nil || !sess.Active {
		return RotateResult{Failure: RotateFailureSessionInvalid, Predecessor: predecessor, Session: sess}
	}
	if predecessor.Kind == jwt.KindRefresh && predecessor.FamilyVersion < sess.MinRefreshVersion {
		return RotateResult{Failure: RotateFailureFamilySuperseded, Predecessor: predecessor, Session: sess}
	}

	successorArtifact, successor, err := deps.IssueSuccessor(ctx, predecessor, ttl)
	if err != nil {
		return RotateResult{Failure: RotateFailureIssue, Err: err, Predecessor: predecessor, Session: sess}
	}

	// A predecessor inside the decode grace may already be past its expiry,
	// which would make a TTL-keyed ledger write a no-op and let two rotations
	// both win. Hold every rotation entry for at least the grace window.
	horizon := deps.Now().Add(deps.RevocationGrace)
	if predecessor.ExpiresAt != nil && predecessor.ExpiresAt.Time.After(horizon) {
		horizon = predecessor.ExpiresAt.Time
	}

	won, err := deps.Ledger.RevokeNX(ctx, predecessor.TokenID(), horizon)
	if err != nil {
		revokeOrphanedSuccessor(ctx, deps, successor)
		return RotateResult{Failure: RotateFailureRevocationWrite, Err: err, Predecessor: predecessor, Session: sess}
	}
	if !won {
		revokeOrphanedSuccessor(ctx, deps, successor)
		return RotateResult{Failure: RotateFailureConflict, Predecessor: predecessor, Session: sess}
	}

	return RotateResult{
		Predecessor: predecessor,
		Successor:   successor,
		Session:     sess,
		Artifact:    successorArtifact,
	}
}

// revokeOrphanedSuccessor kills a successor that will never be returned. The
// successor was never handed to anyone, so a failed write here leaves no
// usable credential behind; it is logged and otherwise ignored.
func revokeOrphanedSuccessor(ctx context.Context, deps RotateDeps, successor *jwt.TokenClaims) {
	if successor == nil || successor.ExpiresAt == nil {
		return
	}
	if err := deps.Ledger.Revoke(ctx, successor.TokenID(), successor.ExpiresAt.Time); err != nil && deps.Warn != nil {
		deps.Warn("goToken: orphaned rotation successor revoke failed")
	}
}
