package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/Averix07/goToken/session"
)

// LifecycleSessionStore is the session store surface the lifecycle flows consume.
type LifecycleSessionStore interface {
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	Extend(ctx context.Context, sessionID string, ttl time.Duration) (*session.Session, error)
	InvalidateAllForSubject(ctx context.Context, subjectID string) (int, error)
	BumpMinRefreshVersion(ctx context.Context, sessionID string) (uint32, error)
}

// LifecycleDeps captures session lifecycle dependencies.
type LifecycleDeps struct {
	NewSessionID              func() (string, error)
	Now                       func() time.Time
	NetworkAddressFromContext func(context.Context) string
	ClientContextFromContext  func(context.Context) string
	SessionStore              LifecycleSessionStore
	InvalidInputErr           error
}

type StartSessionResult struct {
	Session *session.Session
	Err     error
}

// RunStartSession creates and persists a fresh session record. The caller's
// network address and client context are captured from ctx at creation time
// and pinned on the record for later binding checks.
func RunStartSession(ctx context.Context, subjectID string, ttl time.Duration, deps LifecycleDeps) StartSessionResult {
	if subjectID == "" {
		return StartSessionResult{Err: fmt.Errorf("%w: empty subject id", deps.InvalidInputErr)}
	}
	if ttl <= 0 {
		return StartSessionResult{Err: fmt.Errorf("%w: non-positive session ttl", deps.InvalidInputErr)}
	}

	sid, err := deps.NewSessionID()
	if err != nil {
		return StartSessionResult{Err: err}
	}

	now := deps.Now()
	sess := &session.Session{
		SessionID:         sid,
		SubjectID:         subjectID,
		NetworkAddress:    deps.NetworkAddressFromContext(ctx),
		ClientContext:     deps.ClientContextFromContext(ctx),
		Active:            true,
		MinRefreshVersion: 1,
		CreatedAt:         now.Unix(),
		ExpiresAt:         now.Add(ttl).Unix(),
	}
	if err := deps.SessionStore.Save(ctx, sess, ttl); err != nil {
		return StartSessionResult{Err: err}
	}
	return StartSessionResult{Session: sess}
}

func RunGetSession(ctx context.Context, sessionID string, deps LifecycleDeps) (*session.Session, error) {
	return deps.SessionStore.Get(ctx, sessionID)
}

func RunInvalidateSession(ctx context.Context, sessionID string, deps LifecycleDeps) error {
	return deps.SessionStore.Invalidate(ctx, sessionID)
}

func RunExtendSession(ctx context.Context, sessionID string, ttl time.Duration, deps LifecycleDeps) (*session.Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: non-positive session ttl", deps.InvalidInputErr)
	}
	return deps.SessionStore.Extend(ctx, sessionID, ttl)
}

func RunInvalidateSubjectSessions(ctx context.Context, subjectID string, deps LifecycleDeps) (int, error) {
	if subjectID == "" {
		return 0, fmt.Errorf("%w: empty subject id", deps.InvalidInputErr)
	}
	return deps.SessionStore.InvalidateAllForSubject(ctx, subjectID)
}

// RunInvalidateRefreshFamily raises the session's refresh floor so every
// previously issued refresh token in the family verifies as superseded.
func RunInvalidateRefreshFamily(ctx context.Context, sessionID string, deps LifecycleDeps) (uint32, error) {
	return deps.SessionStore.BumpMinRefreshVersion(ctx, sessionID)
}
