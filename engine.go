package goToken

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Averix07/goToken/internal"
	internalaudit "github.com/Averix07/goToken/internal/audit"
	"github.com/Averix07/goToken/internal/flows"
	"github.com/Averix07/goToken/jwt"
	"github.com/Averix07/goToken/session"
)

// Engine defines a public type used by goToken APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	sessionStore SessionStore
	ledger       RevocationLedger
	jwtManager   *jwt.Manager
	flows        flows.Service
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// IssueAccessToken describes the issueaccesstoken operation and its observable behavior.
//
// IssueAccessToken may return an error when input validation, dependency calls, or security checks fail.
// IssueAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueAccessToken(ctx context.Context, subjectID, role, sessionID, deviceFingerprint string, ttl time.Duration) (string, *TokenClaims, error) {
	if e == nil || e.jwtManager == nil {
		return "", nil, ErrEngineNotReady
	}
	if ttl <= 0 {
		ttl = e.config.JWT.AccessTTL
	}

	artifact, claims, err := e.jwtManager.Mint(
		subjectID,
		role,
		sessionID,
		deviceFingerprint,
		jwt.KindAccess,
		0,
		internal.NewTokenID(),
		time.Now(),
		ttl,
	)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventTokenIssued, false, subjectID, sessionID, "", string(KindAccess), err, nil)
		return "", nil, err
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, auditEventTokenIssued, true, subjectID, sessionID, claims.TokenID(), string(KindAccess), nil, nil)

	return artifact, claims, nil
}

// IssueRefreshToken describes the issuerefreshtoken operation and its observable behavior.
//
// IssueRefreshToken may return an error when input validation, dependency calls, or security checks fail.
// IssueRefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueRefreshToken(ctx context.Context, subjectID, sessionID string) (string, *TokenClaims, error) {
	if e == nil || e.jwtManager == nil || e.sessionStore == nil {
		return "", nil, ErrEngineNotReady
	}

	// A refresh token is minted at the session's current family floor so a
	// freshly issued token is never born superseded.
	sess, err := e.sessionStore.Get(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.metricInc(MetricStoreUnavailable)
		wrapped := errors.Join(ErrSessionStoreUnavailable, err)
		e.emitAudit(ctx, auditEventTokenIssued, false, subjectID, sessionID, "", string(KindRefresh), wrapped, nil)
		return "", nil, wrapped
	}
	if sess == nil || !sess.Active {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventTokenIssued, false, subjectID, sessionID, "", string(KindRefresh), ErrSessionInvalid, nil)
		return "", nil, ErrSessionInvalid
	}
	if sess.SubjectID != subjectID {
		e.metricInc(MetricIssueFailure)
		err := fmt.Errorf("%w: session belongs to another subject", ErrInvalidInput)
		e.emitAudit(ctx, auditEventTokenIssued, false, subjectID, sessionID, "", string(KindRefresh), err, nil)
		return "", nil, err
	}

	family := sess.MinRefreshVersion
	if family == 0 {
		family = 1
	}

	artifact, claims, err := e.jwtManager.Mint(
		subjectID,
		"",
		sessionID,
		"",
		jwt.KindRefresh,
		family,
		internal.NewTokenID(),
		time.Now(),
		e.config.JWT.RefreshTTL,
	)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventTokenIssued, false, subjectID, sessionID, "", string(KindRefresh), err, nil)
		return "", nil, err
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, auditEventTokenIssued, true, subjectID, sessionID, claims.TokenID(), string(KindRefresh), nil, nil)

	return artifact, claims, nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Verify(ctx context.Context, artifact string, opts VerifyOptions) (*TokenClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	res := e.flows.Verify(ctx, flows.VerifyRequest{
		Artifact:                  artifact,
		RequireSession:            opts.RequireSession,
		ExpectedDeviceFingerprint: opts.ExpectedDeviceFingerprint,
		ExpectKind:                opts.ExpectKind,
	})
	if res.Failure == flows.VerifyFailureNone {
		e.metricInc(MetricVerifySuccess)
		return res.Claims, nil
	}

	e.metricInc(MetricVerifyFailure)
	return nil, e.verifyFailureError(ctx, res)
}

// verifyFailureError maps a classified verification failure onto the sentinel
// taxonomy, incrementing the failure-specific counters and auditing the
// security-relevant denials. Decode failures stay unaudited; they carry no
// authenticated identity and would let an attacker fill the audit stream.
func (e *Engine) verifyFailureError(ctx context.Context, res flows.VerifyResult) error {
	subjectID, sessionID, tokenID, kind := claimsAuditFields(res.Claims)

	switch res.Failure {
	case flows.VerifyFailureDecode:
		return res.Err
	case flows.VerifyFailureLedgerUnavailable:
		e.metricInc(MetricLedgerUnavailable)
		err := errors.Join(ErrLedgerUnavailable, res.Err)
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.VerifyFailureRevoked:
		e.metricInc(MetricVerifyRevoked)
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, ErrTokenRevoked, nil)
		return ErrTokenRevoked
	case flows.VerifyFailureKindMismatch:
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, ErrTokenKindMismatch, nil)
		return ErrTokenKindMismatch
	case flows.VerifyFailureDevice:
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, ErrDeviceMismatch, nil)
		return ErrDeviceMismatch
	case flows.VerifyFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		err := errors.Join(ErrSessionStoreUnavailable, res.Err)
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.VerifyFailureSessionInvalid:
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, ErrSessionInvalid, nil)
		return ErrSessionInvalid
	case flows.VerifyFailureFamilySuperseded:
		e.metricInc(MetricFamilySuperseded)
		err := errors.Join(ErrFamilySuperseded, ErrTokenRevoked)
		e.emitAudit(ctx, auditEventTokenVerifyDenied, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.VerifyFailureNetworkBinding:
		// The binding flow already audited and counted the rejection.
		return res.Err
	default:
		return res.Err
	}
}

// Rotate describes the rotate operation and its observable behavior.
//
// Rotate may return an error when input validation, dependency calls, or security checks fail.
// Rotate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Rotate(ctx context.Context, artifact string, ttl time.Duration) (string, *TokenClaims, error) {
	if e == nil || e.jwtManager == nil {
		return "", nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricRotateLatency, time.Since(start))
	}

	res := e.flows.Rotate(ctx, artifact, ttl)
	if res.Failure == flows.RotateFailureNone {
		e.metricInc(MetricRotateSuccess)
		subjectID, sessionID, tokenID, kind := claimsAuditFields(res.Successor)
		predecessorID := ""
		if res.Predecessor != nil {
			predecessorID = res.Predecessor.TokenID()
		}
		e.emitAudit(ctx, auditEventTokenRotated, true, subjectID, sessionID, tokenID, kind, nil, func() map[string]string {
			return map[string]string{
				"predecessor_token_id": predecessorID,
			}
		})
		return res.Artifact, res.Successor, nil
	}

	e.metricInc(MetricRotateFailure)
	return "", nil, e.rotateFailureError(ctx, res)
}

func (e *Engine) rotateFailureError(ctx context.Context, res flows.RotateResult) error {
	subjectID, sessionID, tokenID, kind := claimsAuditFields(res.Predecessor)

	switch res.Failure {
	case flows.RotateFailureDecode:
		return res.Err
	case flows.RotateFailureLedgerUnavailable:
		e.metricInc(MetricLedgerUnavailable)
		err := errors.Join(ErrLedgerUnavailable, res.Err)
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.RotateFailureRevoked:
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, ErrTokenRevoked, nil)
		return ErrTokenRevoked
	case flows.RotateFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		err := errors.Join(ErrSessionStoreUnavailable, res.Err)
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.RotateFailureSessionInvalid:
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, ErrSessionInvalid, nil)
		return ErrSessionInvalid
	case flows.RotateFailureFamilySuperseded:
		e.metricInc(MetricFamilySuperseded)
		err := errors.Join(ErrFamilySuperseded, ErrTokenRevoked)
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.RotateFailureIssue:
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, res.Err, nil)
		return res.Err
	case flows.RotateFailureRevocationWrite:
		err := fmt.Errorf("%w: %v", ErrRevocationWrite, res.Err)
		e.emitAudit(ctx, auditEventTokenRotated, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	case flows.RotateFailureConflict:
		e.metricInc(MetricRotateConflict)
		e.emitAudit(ctx, auditEventRotationConflict, false, subjectID, sessionID, tokenID, kind, ErrRotationConflict, nil)
		return ErrRotationConflict
	default:
		return res.Err
	}
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Revoke(ctx context.Context, artifact string) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}

	res := e.flows.Revoke(ctx, artifact)
	if res.Failure == flows.RevokeFailureNone {
		subjectID, sessionID, tokenID, kind := claimsAuditFields(res.Claims)
		e.metricInc(MetricRevokeSuccess)
		e.emitAudit(ctx, auditEventTokenRevoked, true, subjectID, sessionID, tokenID, kind, nil, nil)
		return nil
	}

	e.metricInc(MetricRevokeFailure)
	switch res.Failure {
	case flows.RevokeFailureWrite:
		subjectID, sessionID, tokenID, kind := claimsAuditFields(res.Claims)
		err := fmt.Errorf("%w: %v", ErrRevocationWrite, res.Err)
		e.emitAudit(ctx, auditEventTokenRevoked, false, subjectID, sessionID, tokenID, kind, err, nil)
		return err
	default:
		return res.Err
	}
}

// CleanupExpired describes the cleanupexpired operation and its observable behavior.
//
// CleanupExpired may return an error when input validation, dependency calls, or security checks fail.
// CleanupExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.ledger.Cleanup(ctx, now)
	if err != nil {
		wrapped := errors.Join(ErrLedgerUnavailable, err)
		e.emitAudit(ctx, auditEventCleanupRun, false, "", "", "", "", wrapped, nil)
		return 0, wrapped
	}

	e.metricInc(MetricCleanupRuns)
	e.emitAudit(ctx, auditEventCleanupRun, true, "", "", "", "", nil, func() map[string]string {
		return map[string]string{
			"removed": strconv.Itoa(removed),
		}
	})
	return removed, nil
}

func claimsAuditFields(claims *jwt.TokenClaims) (subjectID, sessionID, tokenID, kind string) {
	if claims == nil {
		return "", "", "", ""
	}
	return claims.SubjectID(), claims.SessionID, claims.TokenID(), string(claims.Kind)
}

func (e *Engine) defaultTTLForKind(kind jwt.TokenKind) time.Duration {
	if kind == jwt.KindRefresh {
		return e.config.JWT.RefreshTTL
	}
	return e.config.JWT.AccessTTL
}

func (e *Engine) verifyFlowDeps() flows.VerifyDeps {
	return flows.VerifyDeps{
		DecodeToken:       e.jwtManager.Decode,
		FingerprintsEqual: internal.EqualBinding,
		CheckNetworkBinding: func(ctx context.Context, sess *session.Session) error {
			return e.flows.CheckNetworkBinding(ctx, flows.NetworkBindingSession{
				SessionID:      sess.SessionID,
				SubjectID:      sess.SubjectID,
				NetworkAddress: sess.NetworkAddress,
				ClientContext:  sess.ClientContext,
			})
		},
		Ledger:       e.ledger,
		SessionStore: e.sessionStore,
	}
}

func (e *Engine) rotateFlowDeps() flows.RotateDeps {
	return flows.RotateDeps{
		DecodeGrace: e.jwtManager.DecodeWithGrace,
		IssueSuccessor: func(ctx context.Context, predecessor *jwt.TokenClaims, ttl time.Duration) (string, *jwt.TokenClaims, error) {
			if ttl <= 0 {
				ttl = e.defaultTTLForKind(predecessor.Kind)
			}
			return e.jwtManager.Mint(
				predecessor.SubjectID(),
				predecessor.Role,
				predecessor.SessionID,
				predecessor.DeviceFingerprint,
				predecessor.Kind,
				predecessor.FamilyVersion,
				internal.NewTokenID(),
				time.Now(),
				ttl,
			)
		},
		Now:             time.Now,
		RevocationGrace: e.config.JWT.RotationGrace,
		Ledger:          e.ledger,
		SessionStore:    e.sessionStore,
		Warn:            log.Printf,
	}
}

func (e *Engine) revokeFlowDeps() flows.RevokeDeps {
	return flows.RevokeDeps{
		DecodeExpired: e.jwtManager.DecodeExpired,
		Ledger:        e.ledger,
		MalformedErr:  ErrTokenMalformed,
	}
}
