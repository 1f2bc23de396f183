package flows

import (
	"context"
	"time"

	"github.com/Averix07/goToken/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Verify.DecodeToken != nil
}

func (s Service) Verify(ctx context.Context, req VerifyRequest) VerifyResult {
	return RunVerify(ctx, req, s.deps.Verify)
}

func (s Service) Rotate(ctx context.Context, artifact string, ttl time.Duration) RotateResult {
	return RunRotate(ctx, artifact, ttl, s.deps.Rotate)
}

func (s Service) Revoke(ctx context.Context, artifact string) RevokeResult {
	return RunRevoke(ctx, artifact, s.deps.Revoke)
}

func (s Service) StartSession(ctx context.Context, subjectID string, ttl time.Duration) StartSessionResult {
	return RunStartSession(ctx, subjectID, ttl, s.deps.Lifecycle)
}

func (s Service) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return RunGetSession(ctx, sessionID, s.deps.Lifecycle)
}

func (s Service) InvalidateSession(ctx context.Context, sessionID string) error {
	return RunInvalidateSession(ctx, sessionID, s.deps.Lifecycle)
}

func (s Service) ExtendSession(ctx context.Context, sessionID string, ttl time.Duration) (*session.Session, error) {
	return RunExtendSession(ctx, sessionID, ttl, s.deps.Lifecycle)
}

func (s Service) InvalidateSubjectSessions(ctx context.Context, subjectID string) (int, error) {
	return RunInvalidateSubjectSessions(ctx, subjectID, s.deps.Lifecycle)
}

func (s Service) InvalidateRefreshFamily(ctx context.Context, sessionID string) (uint32, error) {
	return RunInvalidateRefreshFamily(ctx, sessionID, s.deps.Lifecycle)
}

func (s Service) CheckNetworkBinding(ctx context.Context, sess NetworkBindingSession) error {
	return RunCheckNetworkBinding(ctx, sess, s.deps.NetworkBinding)
}

func (s Service) Introspect(ctx context.Context, artifact string) TokenInfo {
	return RunIntrospect(ctx, artifact, s.deps.Introspection)
}

func (s Service) Health(ctx context.Context) HealthStatus {
	return RunHealth(ctx, s.deps.Introspection)
}

func (s Service) ActiveSessionCount(ctx context.Context, subjectID string) (int, error) {
	return RunActiveSessionCount(ctx, subjectID, s.deps.Introspection)
}

func (s Service) ListSubjectSessions(ctx context.Context, subjectID string) ([]*session.Session, error) {
	return RunListSubjectSessions(ctx, subjectID, s.deps.Introspection)
}

func (s Service) EstimateActiveSessions(ctx context.Context) (int, error) {
	return RunEstimateActiveSessions(ctx, s.deps.Introspection)
}
