package goToken

import (
	"errors"

	"github.com/Averix07/goToken/jwt"
)

// Codec-level failures are the jwt package's sentinels so errors.Is holds
// whether the caller checks against this package or against jwt directly.
var (
	// ErrWeakSigningKey is an exported constant or variable used by the token engine.
	ErrWeakSigningKey = jwt.ErrWeakKey
	// ErrTokenMalformed is an exported constant or variable used by the token engine.
	ErrTokenMalformed = jwt.ErrTokenMalformed
	// ErrTokenSignature is an exported constant or variable used by the token engine.
	ErrTokenSignature = jwt.ErrTokenSignature
	// ErrTokenExpired is an exported constant or variable used by the token engine.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenNotYetValid is an exported constant or variable used by the token engine.
	ErrTokenNotYetValid = jwt.ErrTokenNotYetValid
	// ErrIssuerMismatch is an exported constant or variable used by the token engine.
	ErrIssuerMismatch = jwt.ErrIssuerMismatch
	// ErrAudienceMismatch is an exported constant or variable used by the token engine.
	ErrAudienceMismatch = jwt.ErrAudienceMismatch
)

var (
	// ErrTokenRevoked is an exported constant or variable used by the token engine.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenKindMismatch is an exported constant or variable used by the token engine.
	ErrTokenKindMismatch = errors.New("token kind mismatch")
	// ErrDeviceMismatch is an exported constant or variable used by the token engine.
	ErrDeviceMismatch = errors.New("device fingerprint mismatch")
	// ErrSessionInvalid is an exported constant or variable used by the token engine.
	ErrSessionInvalid = errors.New("session missing, expired, or inactive")
	// ErrSessionStoreUnavailable is an exported constant or variable used by the token engine.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	// ErrRevocationWrite is an exported constant or variable used by the token engine.
	ErrRevocationWrite = errors.New("revocation write failed")
	// ErrLedgerUnavailable is an exported constant or variable used by the token engine.
	ErrLedgerUnavailable = errors.New("revocation ledger unavailable")
	// ErrRotationConflict is an exported constant or variable used by the token engine.
	ErrRotationConflict = errors.New("rotation lost to a concurrent rotation of the same token")
	// ErrFamilySuperseded is an exported constant or variable used by the token engine.
	ErrFamilySuperseded = errors.New("refresh token family superseded")
	// ErrNetworkBindingRejected is an exported constant or variable used by the token engine.
	ErrNetworkBindingRejected = errors.New("session network binding rejected")
	// ErrSessionNotFound is an exported constant or variable used by the token engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidInput is an exported constant or variable used by the token engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is an exported constant or variable used by the token engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
