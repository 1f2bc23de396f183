package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/Averix07/goToken/session"
)

const (
	auditEventTokenIssued                = "token_issued"
	auditEventTokenVerifyDenied          = "token_verify_denied"
	auditEventTokenRevoked               = "token_revoked"
	auditEventTokenRotated               = "token_rotated"
	auditEventRotationConflict           = "rotation_conflict"
	auditEventSessionStarted             = "session_started"
	auditEventSessionInvalidated         = "session_invalidated"
	auditEventSessionExtended            = "session_extended"
	auditEventSubjectSessionsInvalidated = "subject_sessions_invalidated"
	auditEventRefreshFamilyInvalidated   = "refresh_family_invalidated"
	auditEventNetworkAnomalyDetected     = "network_anomaly_detected"
	auditEventNetworkBindingRejected     = "network_binding_rejected"
	auditEventCleanupRun                 = "cleanup_run"
)

// AuditErrorCode defines a public type used by goToken APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrTokenRevoked            AuditErrorCode = "token_revoked"
	auditErrTokenExpired            AuditErrorCode = "token_expired"
	auditErrTokenNotYetValid        AuditErrorCode = "token_not_yet_valid"
	auditErrBadSignature            AuditErrorCode = "bad_signature"
	auditErrMalformedToken          AuditErrorCode = "malformed_token"
	auditErrClaimsMismatch          AuditErrorCode = "claims_mismatch"
	auditErrKindMismatch            AuditErrorCode = "kind_mismatch"
	auditErrDeviceMismatch          AuditErrorCode = "device_mismatch"
	auditErrSessionInvalid          AuditErrorCode = "session_invalid"
	auditErrSessionNotFound         AuditErrorCode = "session_not_found"
	auditErrFamilySuperseded        AuditErrorCode = "family_superseded"
	auditErrRotationConflict        AuditErrorCode = "rotation_conflict"
	auditErrNetworkBindingRejected  AuditErrorCode = "network_binding_rejected"
	auditErrRevocationWriteFailed   AuditErrorCode = "revocation_write_failed"
	auditErrBackendUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInvalidInput            AuditErrorCode = "invalid_input"
	auditErrEngineNotReady          AuditErrorCode = "engine_not_ready"
	auditErrInternal                AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	sessionID string,
	tokenID string,
	tokenKind string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		SubjectID:      subjectID,
		SessionID:      sessionID,
		TokenID:        tokenID,
		TokenKind:      tokenKind,
		NetworkAddress: networkAddressFromContext(ctx),
		Success:        success,
		Metadata:       metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode collapses the sentinel taxonomy into stable audit codes.
// Raw error strings never reach the sink; they may carry key or claim
// fragments from the underlying libraries.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrFamilySuperseded):
		return auditErrFamilySuperseded
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenNotYetValid):
		return auditErrTokenNotYetValid
	case errors.Is(err, ErrTokenSignature):
		return auditErrBadSignature
	case errors.Is(err, ErrTokenMalformed):
		return auditErrMalformedToken
	case errors.Is(err, ErrIssuerMismatch),
		errors.Is(err, ErrAudienceMismatch):
		return auditErrClaimsMismatch
	case errors.Is(err, ErrTokenKindMismatch):
		return auditErrKindMismatch
	case errors.Is(err, ErrDeviceMismatch):
		return auditErrDeviceMismatch
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrRotationConflict):
		return auditErrRotationConflict
	case errors.Is(err, ErrNetworkBindingRejected):
		return auditErrNetworkBindingRejected
	case errors.Is(err, ErrRevocationWrite):
		return auditErrRevocationWriteFailed
	case errors.Is(err, ErrSessionStoreUnavailable),
		errors.Is(err, ErrLedgerUnavailable),
		errors.Is(err, session.ErrRedisUnavailable):
		return auditErrBackendUnavailable
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrEngineNotReady):
		return auditErrEngineNotReady
	default:
		return auditErrInternal
	}
}
