package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Averix07/goToken/jwt"
	"github.com/Averix07/goToken/session"
)

// Session states reported by Introspect.
const (
	SessionStateActive   = "active"
	SessionStateInactive = "inactive"
	SessionStateMissing  = "missing"
	SessionStateUnknown  = "unknown"
)

// Reason codes reported by Introspect for inactive tokens.
const (
	ReasonMalformed         = "malformed"
	ReasonSignature         = "signature"
	ReasonExpired           = "expired"
	ReasonNotYetValid       = "not_yet_valid"
	ReasonIssuerMismatch    = "issuer_mismatch"
	ReasonAudienceMismatch  = "audience_mismatch"
	ReasonRevoked           = "revoked"
	ReasonFamilySuperseded  = "family_superseded"
	ReasonSessionInactive   = "session_inactive"
	ReasonLedgerUnavailable = "ledger_unavailable"
	ReasonStoreUnavailable  = "store_unavailable"
)

// TokenInfo is a diagnostic report of a token's standing. It never grants
// access by itself; callers authorize through Verify.
type TokenInfo struct {
	Active        bool          `json:"active"`
	Kind          jwt.TokenKind `json:"kind,omitempty"`
	TokenID       string        `json:"token_id,omitempty"`
	SubjectID     string        `json:"subject_id,omitempty"`
	SessionID     string        `json:"session_id,omitempty"`
	Role          string        `json:"role,omitempty"`
	DeviceBound   bool          `json:"device_bound,omitempty"`
	FamilyVersion uint32        `json:"family_version,omitempty"`
	IssuedAt      time.Time     `json:"issued_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	Revoked       bool          `json:"revoked,omitempty"`
	SessionState  string        `json:"session_state,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}

// HealthStatus reports backend reachability with observed round-trip latency.
type HealthStatus struct {
	SessionStoreOK      bool          `json:"session_store_ok"`
	SessionStoreLatency time.Duration `json:"session_store_latency"`
	LedgerOK            bool          `json:"ledger_ok"`
	LedgerLatency       time.Duration `json:"ledger_latency"`
}

type IntrospectionSessionStore interface {
	GetReadOnly(ctx context.Context, sessionID string) (*session.Session, error)
	ActiveSessionCount(ctx context.Context, subjectID string) (int, error)
	ActiveSessionIDs(ctx context.Context, subjectID string) ([]string, error)
	EstimateActiveSessions(ctx context.Context) (int, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type IntrospectionLedger interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type IntrospectionDeps struct {
	DecodeToken       func(string) (*jwt.TokenClaims, error)
	DecodeExpired     func(string) (*jwt.TokenClaims, error)
	Ledger            IntrospectionLedger
	SessionStore      IntrospectionSessionStore
	EngineNotReadyErr error
	InvalidInputErr   error
}

// RunIntrospect inspects an artifact and reports its standing without
// authorizing it. It never returns an error; failures degrade the report.
func RunIntrospect(ctx context.Context, artifact string, deps IntrospectionDeps) TokenInfo {
	claims, err := deps.DecodeToken(artifact)
	if err != nil {
		return introspectDecodeFailure(ctx, artifact, err, deps)
	}

	info := tokenInfoFromClaims(claims)
	info.Active = true

	revoked, err := deps.Ledger.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		info.Active = false
		info.Reason = ReasonLedgerUnavailable
		info.SessionState = SessionStateUnknown
		return info
	}
	if revoked {
		info.Active = false
		info.Revoked = true
		info.Reason = ReasonRevoked
	}

	sess, state := introspectSession(ctx, claims.SessionID, deps)
	info.SessionState = state
	if info.Active {
		switch {
		case state == SessionStateUnknown:
			info.Active = false
			info.Reason = ReasonStoreUnavailable
		case state == SessionStateInactive || state == SessionStateMissing:
			info.Active = false
			info.Reason = ReasonSessionInactive
		case claims.Kind == jwt.KindRefresh && sess != nil && claims.FamilyVersion < sess.MinRefreshVersion:
			info.Active = false
			info.Reason = ReasonFamilySuperseded
		}
	}
	return info
}

// introspectDecodeFailure classifies a failed decode. Expired and not-yet-valid
// artifacts are authentic, so their claims are recovered and the ledger is
// still consulted; a revocation outranks the expiry reason while its entry
// lives.
func introspectDecodeFailure(ctx context.Context, artifact string, decodeErr error, deps IntrospectionDeps) TokenInfo {
	info := TokenInfo{SessionState: SessionStateUnknown}

	if errors.Is(decodeErr, jwt.ErrTokenExpired) || errors.Is(decodeErr, jwt.ErrTokenNotYetValid) {
		reason := ReasonExpired
		if errors.Is(decodeErr, jwt.ErrTokenNotYetValid) {
			reason = ReasonNotYetValid
		}
		claims, err := deps.DecodeExpired(artifact)
		if err != nil {
			info.Reason = reason
			return info
		}
		info = tokenInfoFromClaims(claims)
		info.Reason = reason
		if revoked, err := deps.Ledger.IsRevoked(ctx, claims.TokenID()); err == nil && revoked {
			info.Revoked = true
			info.Reason = ReasonRevoked
		}
		_, info.SessionState = introspectSession(ctx, claims.SessionID, deps)
		return info
	}

	switch {
	case errors.Is(decodeErr, jwt.ErrTokenSignature):
		info.Reason = ReasonSignature
	case errors.Is(decodeErr, jwt.ErrIssuerMismatch):
		info.Reason = ReasonIssuerMismatch
	case errors.Is(decodeErr, jwt.ErrAudienceMismatch):
		info.Reason = ReasonAudienceMismatch
	default:
		info.Reason = ReasonMalformed
	}
	return info
}

func tokenInfoFromClaims(claims *jwt.TokenClaims) TokenInfo {
	info := TokenInfo{
		Kind:          claims.Kind,
		TokenID:       claims.TokenID(),
		SubjectID:     claims.SubjectID(),
		SessionID:     claims.SessionID,
		Role:          claims.Role,
		DeviceBound:   claims.DeviceFingerprint != "",
		FamilyVersion: claims.FamilyVersion,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

func introspectSession(ctx context.Context, sessionID string, deps IntrospectionDeps) (*session.Session, string) {
	if sessionID == "" {
		return nil, SessionStateMissing
	}
	sess, err := deps.SessionStore.GetReadOnly(ctx, sessionID)
	if err != nil {
		return nil, SessionStateUnknown
	}
	if sess == nil {
		return nil, SessionStateMissing
	}
	if !sess.Active {
		return sess, SessionStateInactive
	}
	return sess, SessionStateActive
}

// RunHealth pings both backends. A nil backend reports not OK.
func RunHealth(ctx context.Context, deps IntrospectionDeps) HealthStatus {
	var status HealthStatus
	if deps.SessionStore != nil {
		latency, err := deps.SessionStore.Ping(ctx)
		status.SessionStoreOK = err == nil
		status.SessionStoreLatency = latency
	}
	if deps.Ledger != nil {
		latency, err := deps.Ledger.Ping(ctx)
		status.LedgerOK = err == nil
		status.LedgerLatency = latency
	}
	return status
}

func RunActiveSessionCount(ctx context.Context, subjectID string, deps IntrospectionDeps) (int, error) {
	if deps.SessionStore == nil {
		return 0, deps.EngineNotReadyErr
	}
	if subjectID == "" {
		return 0, fmt.Errorf("%w: empty subject id", deps.InvalidInputErr)
	}
	return deps.SessionStore.ActiveSessionCount(ctx, subjectID)
}

func RunListSubjectSessions(ctx context.Context, subjectID string, deps IntrospectionDeps) ([]*session.Session, error) {
	if deps.SessionStore == nil {
		return nil, deps.EngineNotReadyErr
	}
	if subjectID == "" {
		return nil, fmt.Errorf("%w: empty subject id", deps.InvalidInputErr)
	}

	sessionIDs, err := deps.SessionStore.ActiveSessionIDs(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	out := make([]*session.Session, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		sess, err := deps.SessionStore.GetReadOnly(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			// expired between the index read and the fetch
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func RunEstimateActiveSessions(ctx context.Context, deps IntrospectionDeps) (int, error) {
	if deps.SessionStore == nil {
		return 0, deps.EngineNotReadyErr
	}
	return deps.SessionStore.EstimateActiveSessions(ctx)
}
