package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/Averix07/goToken/jwt"
)

// RevokeFailureKind classifies revocation failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureDecode
	RevokeFailureWrite
)

// RevokeResult carries the revoked token's claims or failure metadata.
type RevokeResult struct {
	Failure RevokeFailureKind
	Err     error
	Claims  *jwt.TokenClaims
}

type RevokeLedger interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// RevokeDeps captures revocation flow dependencies.
type RevokeDeps struct {
	DecodeExpired func(string) (*jwt.TokenClaims, error)
	Ledger        RevokeLedger
	MalformedErr  error
}

// RunRevoke decodes with signature-only checking, so an already-expired
// artifact can still be revoked, then writes the ledger entry keyed by token
// id with the token's own expiry as the entry horizon.
func RunRevoke(ctx context.Context, artifact string, deps RevokeDeps) RevokeResult {
	claims, err := deps.DecodeExpired(artifact)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}
	if claims.TokenID() == "" {
		return RevokeResult{
			Failure: RevokeFailureDecode,
			Err:     fmt.Errorf("%w: artifact carries no token id", deps.MalformedErr),
		}
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := deps.Ledger.Revoke(ctx, claims.TokenID(), expiresAt); err != nil {
		return RevokeResult{Failure: RevokeFailureWrite, Err: err, Claims: claims}
	}

	return RevokeResult{Claims: claims}
}
