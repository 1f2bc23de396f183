package jwt

import "errors"

var (
	// ErrWeakKey is an exported constant or variable used by the token engine.
	ErrWeakKey = errors.New("signing key below minimum entropy or matching a disallowed placeholder")
	// ErrTokenMalformed is an exported constant or variable used by the token engine.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignature is an exported constant or variable used by the token engine.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenExpired is an exported constant or variable used by the token engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid is an exported constant or variable used by the token engine.
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrIssuerMismatch is an exported constant or variable used by the token engine.
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrAudienceMismatch is an exported constant or variable used by the token engine.
	ErrAudienceMismatch = errors.New("token audience mismatch")
)
