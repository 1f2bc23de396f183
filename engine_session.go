package goToken

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Averix07/goToken/internal"
	"github.com/Averix07/goToken/internal/flows"
	"github.com/Averix07/goToken/session"
)

// StartSession describes the startsession operation and its observable behavior.
//
// StartSession may return an error when input validation, dependency calls, or security checks fail.
// StartSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) StartSession(ctx context.Context, subjectID string, ttl time.Duration) (*Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if ttl <= 0 {
		ttl = e.config.Session.DefaultSessionTTL
	}

	res := e.flows.StartSession(ctx, subjectID, ttl)
	if res.Err != nil {
		err := e.sessionStoreError(res.Err)
		e.emitAudit(ctx, auditEventSessionStarted, false, subjectID, "", "", "", err, nil)
		return nil, err
	}

	e.metricInc(MetricSessionStarted)
	e.emitAudit(ctx, auditEventSessionStarted, true, subjectID, res.Session.SessionID, "", "", nil, nil)

	return res.Session, nil
}

// GetSession describes the getsession operation and its observable behavior.
//
// GetSession may return an error when input validation, dependency calls, or security checks fail.
// GetSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.flows.GetSession(ctx, sessionID)
	if err != nil {
		return nil, e.sessionStoreError(err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// InvalidateSession describes the invalidatesession operation and its observable behavior.
//
// InvalidateSession may return an error when input validation, dependency calls, or security checks fail.
// InvalidateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) InvalidateSession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.flows.InvalidateSession(ctx, sessionID)
	if err != nil {
		err = e.sessionStoreError(err)
	} else {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventSessionInvalidated, err == nil, "", sessionID, "", "", err, nil)
	return err
}

// ExtendSession describes the extendsession operation and its observable behavior.
//
// ExtendSession may return an error when input validation, dependency calls, or security checks fail.
// ExtendSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ExtendSession(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.flows.ExtendSession(ctx, sessionID, ttl)
	if err != nil {
		err = e.sessionStoreError(err)
		e.emitAudit(ctx, auditEventSessionExtended, false, "", sessionID, "", "", err, nil)
		return nil, err
	}
	if sess == nil {
		e.emitAudit(ctx, auditEventSessionExtended, false, "", sessionID, "", "", ErrSessionNotFound, nil)
		return nil, ErrSessionNotFound
	}

	e.metricInc(MetricSessionExtended)
	e.emitAudit(ctx, auditEventSessionExtended, true, sess.SubjectID, sessionID, "", "", nil, nil)

	return sess, nil
}

// InvalidateSubjectSessions describes the invalidatesubjectsessions operation and its observable behavior.
//
// InvalidateSubjectSessions may return an error when input validation, dependency calls, or security checks fail.
// InvalidateSubjectSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) InvalidateSubjectSessions(ctx context.Context, subjectID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	count, err := e.flows.InvalidateSubjectSessions(ctx, subjectID)
	if err != nil {
		err = e.sessionStoreError(err)
		e.emitAudit(ctx, auditEventSubjectSessionsInvalidated, false, subjectID, "", "", "", err, nil)
		return 0, err
	}

	e.metricInc(MetricSessionInvalidatedAll)
	e.emitAudit(ctx, auditEventSubjectSessionsInvalidated, true, subjectID, "", "", "", nil, func() map[string]string {
		return map[string]string{
			"invalidated": strconv.Itoa(count),
		}
	})
	return count, nil
}

// InvalidateRefreshFamily describes the invalidaterefreshfamily operation and its observable behavior.
//
// InvalidateRefreshFamily may return an error when input validation, dependency calls, or security checks fail.
// InvalidateRefreshFamily does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) InvalidateRefreshFamily(ctx context.Context, sessionID string) (uint32, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	floor, err := e.flows.InvalidateRefreshFamily(ctx, sessionID)
	if err != nil {
		err = e.sessionStoreError(err)
		e.emitAudit(ctx, auditEventRefreshFamilyInvalidated, false, "", sessionID, "", "", err, nil)
		return 0, err
	}
	if floor == 0 {
		e.emitAudit(ctx, auditEventRefreshFamilyInvalidated, false, "", sessionID, "", "", ErrSessionNotFound, nil)
		return 0, ErrSessionNotFound
	}

	e.emitAudit(ctx, auditEventRefreshFamilyInvalidated, true, "", sessionID, "", "", nil, func() map[string]string {
		return map[string]string{
			"min_refresh_version": strconv.FormatUint(uint64(floor), 10),
		}
	})
	return floor, nil
}

// sessionStoreError keeps the session package's sentinel inspectable while
// surfacing the engine-level taxonomy.
func (e *Engine) sessionStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrRedisUnavailable) {
		e.metricInc(MetricStoreUnavailable)
		return errors.Join(ErrSessionStoreUnavailable, err)
	}
	return err
}

func (e *Engine) lifecycleFlowDeps() flows.LifecycleDeps {
	return flows.LifecycleDeps{
		NewSessionID: func() (string, error) {
			sid, err := internal.NewSessionID()
			if err != nil {
				return "", err
			}
			return sid.String(), nil
		},
		Now: time.Now,
		NetworkAddressFromContext: func(ctx context.Context) string {
			return internal.NormalizeNetworkAddress(networkAddressFromContext(ctx))
		},
		ClientContextFromContext: clientContextFromContext,
		SessionStore:             e.sessionStore,
		InvalidInputErr:          ErrInvalidInput,
	}
}
