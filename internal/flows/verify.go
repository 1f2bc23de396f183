package flows

import (
	"context"

	"github.com/Averix07/goToken/jwt"
	"github.com/Averix07/goToken/session"
)

// VerifyFailureKind classifies verification failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureDecode
	VerifyFailureLedgerUnavailable
	VerifyFailureRevoked
	VerifyFailureKindMismatch
	VerifyFailureDevice
	VerifyFailureStoreUnavailable
	VerifyFailureSessionInvalid
	VerifyFailureFamilySuperseded
	VerifyFailureNetworkBinding
)

// VerifyRequest mirrors the public verification options.
type VerifyRequest struct {
	Artifact                  string
	RequireSession            bool
	ExpectedDeviceFingerprint string
	ExpectKind                jwt.TokenKind
}

// VerifyResult carries the validated claims or classified failure. Claims and
// Session are populated on some failure paths for audit metadata; only a
// result with VerifyFailureNone is a trust decision.
type VerifyResult struct {
	Failure VerifyFailureKind
	Err     error
	Claims  *jwt.TokenClaims
	Session *session.Session
}

type VerifyLedger interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type VerifySessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

// VerifyDeps captures verification flow dependencies.
type VerifyDeps struct {
	DecodeToken         func(string) (*jwt.TokenClaims, error)
	FingerprintsEqual   func(a, b string) bool
	CheckNetworkBinding func(ctx context.Context, sess *session.Session) error
	Ledger              VerifyLedger
	SessionStore        VerifySessionStore
}

// RunVerify executes the verification pipeline in its fixed short-circuit
// order: codec decode, revocation lookup, kind pin, device binding, then the
// optional session liveness pass. Backend failures are classified apart from
// semantic rejections so the root can fail closed with the right sentinel.
func RunVerify(ctx context.Context, req VerifyRequest, deps VerifyDeps) VerifyResult {
	claims, err := deps.DecodeToken(req.Artifact)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureDecode, Err: err}
	}

	revoked, err := deps.Ledger.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return VerifyResult{Failure: VerifyFailureLedgerUnavailable, Err: err, Claims: claims}
	}
	if revoked {
		return VerifyResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	if req.ExpectKind != "" && claims.Kind != req.ExpectKind {
		return VerifyResult{Failure: VerifyFailureKindMismatch, Claims: claims}
	}

	// Binding is opt-in per issuance; tokens without an embedded fingerprint
	// are never subject to the check.
	if req.ExpectedDeviceFingerprint != "" && claims.DeviceFingerprint != "" {
		if !deps.FingerprintsEqual(req.ExpectedDeviceFingerprint, claims.DeviceFingerprint) {
			return VerifyResult{Failure: VerifyFailureDevice, Claims: claims}
		}
	}

	if !req.RequireSession {
		return VerifyResult{Claims: claims}
	}

	if claims.SessionID == "" {
		return VerifyResult{Failure: VerifyFailureSessionInvalid, Claims: claims}
	}
	sess, err := deps.SessionStore.Get(ctx, claims.SessionID)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureStoreUnavailable, Err: err, Claims: claims}
	}
	if sess == nil || !sess.Active {
		return VerifyResult{Failure: VerifyFailureSessionInvalid, Claims: claims, Session: sess}
	}

	if claims.Kind == jwt.KindRefresh && claims.FamilyVersion < sess.MinRefreshVersion {
		return VerifyResult{Failure: VerifyFailureFamilySuperseded, Claims: claims, Session: sess}
	}

	if deps.CheckNetworkBinding != nil {
		if err := deps.CheckNetworkBinding(ctx, sess); err != nil {
			return VerifyResult{Failure: VerifyFailureNetworkBinding, Err: err, Claims: claims, Session: sess}
		}
	}

	return VerifyResult{Claims: claims, Session: sess}
}
