package goToken

import (
	"context"

	"github.com/Averix07/goToken/internal/flows"
)

// Introspect describes the introspect operation and its observable behavior.
//
// Introspect may return an error when input validation, dependency calls, or security checks fail.
// Introspect does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Introspect(ctx context.Context, artifact string) TokenInfo {
	if e == nil || e.jwtManager == nil {
		return TokenInfo{SessionState: flows.SessionStateUnknown}
	}
	return e.flows.Introspect(ctx, artifact)
}

// Health describes the health operation and its observable behavior.
//
// Health may return an error when input validation, dependency calls, or security checks fail.
// Health does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}
	return e.flows.Health(ctx)
}

// ActiveSessionCount describes the activesessioncount operation and its observable behavior.
//
// ActiveSessionCount may return an error when input validation, dependency calls, or security checks fail.
// ActiveSessionCount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ActiveSessionCount(ctx context.Context, subjectID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.flows.ActiveSessionCount(ctx, subjectID)
	if err != nil {
		return 0, e.sessionStoreError(err)
	}
	return n, nil
}

// ListSubjectSessions describes the listsubjectsessions operation and its observable behavior.
//
// ListSubjectSessions may return an error when input validation, dependency calls, or security checks fail.
// ListSubjectSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListSubjectSessions(ctx context.Context, subjectID string) ([]*Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	sessions, err := e.flows.ListSubjectSessions(ctx, subjectID)
	if err != nil {
		return nil, e.sessionStoreError(err)
	}
	return sessions, nil
}

// EstimateActiveSessions describes the estimateactivesessions operation and its observable behavior.
//
// EstimateActiveSessions may return an error when input validation, dependency calls, or security checks fail.
// EstimateActiveSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EstimateActiveSessions(ctx context.Context) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.flows.EstimateActiveSessions(ctx)
	if err != nil {
		return 0, e.sessionStoreError(err)
	}
	return n, nil
}

func (e *Engine) introspectionFlowDeps() flows.IntrospectionDeps {
	return flows.IntrospectionDeps{
		DecodeToken:       e.jwtManager.Decode,
		DecodeExpired:     e.jwtManager.DecodeExpired,
		Ledger:            e.ledger,
		SessionStore:      e.sessionStore,
		EngineNotReadyErr: ErrEngineNotReady,
		InvalidInputErr:   ErrInvalidInput,
	}
}
