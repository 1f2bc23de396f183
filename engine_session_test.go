package goToken

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartSessionPopulatesRecord(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx := WithNetworkAddress(context.Background(), "203.0.113.10:4431")
	ctx = WithClientContext(ctx, "cli/1.0")

	sess, err := engine.StartSession(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatal("expected non-empty session id")
	}
	if sess.SubjectID != "u1" || !sess.Active {
		t.Fatalf("unexpected session record: %+v", sess)
	}
	if sess.MinRefreshVersion != 1 {
		t.Fatalf("expected initial refresh floor 1, got %d", sess.MinRefreshVersion)
	}
	if sess.NetworkAddress != "203.0.113.10" {
		t.Fatalf("expected normalized network address, got %q", sess.NetworkAddress)
	}
	if sess.ClientContext != "cli/1.0" {
		t.Fatalf("expected client context pinned, got %q", sess.ClientContext)
	}
	if sess.CreatedAt <= 0 || sess.ExpiresAt <= sess.CreatedAt {
		t.Fatalf("unexpected timestamps: created=%d expires=%d", sess.CreatedAt, sess.ExpiresAt)
	}
}

func TestStartSessionRejectsEmptySubject(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	if _, err := engine.StartSession(context.Background(), "", time.Hour); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetSessionRoundTripAndMissing(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")

	got, err := engine.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.SessionID != sess.SessionID || got.SubjectID != "u1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := engine.GetSession(context.Background(), "does-not-exist"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionExpiresWithStoreTTL(t *testing.T) {
	engine, mr, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess, err := engine.StartSession(context.Background(), "u1", time.Second)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := engine.GetSession(context.Background(), sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestInvalidateSessionIsIdempotent(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")

	if err := engine.InvalidateSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	// The record survives with Active=false so operators can still inspect it.
	got, err := engine.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession after invalidate failed: %v", err)
	}
	if got.Active {
		t.Fatal("expected session inactive after invalidate")
	}

	if err := engine.InvalidateSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("second invalidate must be a no-op, got %v", err)
	}
}

func TestExtendSessionPushesExpiry(t *testing.T) {
	engine, mr, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess, err := engine.StartSession(context.Background(), "u1", 2*time.Second)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if _, err := engine.ExtendSession(context.Background(), sess.SessionID, time.Hour); err != nil {
		t.Fatalf("ExtendSession failed: %v", err)
	}

	mr.FastForward(3 * time.Second)

	got, err := engine.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("expected extended session to survive, got %v", err)
	}
	if got.ExpiresAt <= sess.ExpiresAt {
		t.Fatalf("expected expiry pushed forward: before=%d after=%d", sess.ExpiresAt, got.ExpiresAt)
	}
}

func TestExtendSessionMissingReturnsNotFound(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	if _, err := engine.ExtendSession(context.Background(), "does-not-exist", time.Hour); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInvalidateSubjectSessionsLeavesOtherSubjectsAlone(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	s1 := startTestSession(t, engine, "u1")
	s2 := startTestSession(t, engine, "u1")
	s3 := startTestSession(t, engine, "u1")
	other := startTestSession(t, engine, "u2")

	count, err := engine.InvalidateSubjectSessions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("InvalidateSubjectSessions failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 invalidated sessions, got %d", count)
	}

	for _, sid := range []string{s1.SessionID, s2.SessionID, s3.SessionID} {
		got, err := engine.GetSession(context.Background(), sid)
		if err != nil {
			t.Fatalf("GetSession %s failed: %v", sid, err)
		}
		if got.Active {
			t.Fatalf("expected session %s inactive", sid)
		}
	}

	got, err := engine.GetSession(context.Background(), other.SessionID)
	if err != nil {
		t.Fatalf("expected other subject's session untouched, got %v", err)
	}
	if !got.Active {
		t.Fatal("expected other subject's session still active")
	}
}

func TestInvalidateSubjectSessionsKillsOutstandingTokens(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	access, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", 0)
	if err != nil {
		t.Fatalf("issue access failed: %v", err)
	}
	refresh, _, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	if _, err := engine.InvalidateSubjectSessions(context.Background(), "u1"); err != nil {
		t.Fatalf("InvalidateSubjectSessions failed: %v", err)
	}

	if _, err := engine.Verify(context.Background(), access, VerifyOptions{RequireSession: true}); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected access token dead with session check, got %v", err)
	}
	if _, _, err := engine.Rotate(context.Background(), refresh, 0); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected refresh rotation dead, got %v", err)
	}
}

func TestInvalidateRefreshFamilySupersedesOutstandingRefreshTokens(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	oldRefresh, oldClaims, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}
	if oldClaims.FamilyVersion != 1 {
		t.Fatalf("expected first family version 1, got %d", oldClaims.FamilyVersion)
	}

	floor, err := engine.InvalidateRefreshFamily(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("InvalidateRefreshFamily failed: %v", err)
	}
	if floor != 2 {
		t.Fatalf("expected floor bumped to 2, got %d", floor)
	}

	if _, err := engine.Verify(context.Background(), oldRefresh, VerifyOptions{ExpectKind: KindRefresh}); !errors.Is(err, ErrFamilySuperseded) {
		t.Fatalf("expected superseded verify failure, got %v", err)
	}
	if _, _, err := engine.Rotate(context.Background(), oldRefresh, 0); !errors.Is(err, ErrFamilySuperseded) {
		t.Fatalf("expected superseded rotate failure, got %v", err)
	}

	// The session itself stays alive; a newly issued refresh token picks up
	// the raised floor and works.
	newRefresh, newClaims, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID)
	if err != nil {
		t.Fatalf("issue after family bump failed: %v", err)
	}
	if newClaims.FamilyVersion != 2 {
		t.Fatalf("expected new family version 2, got %d", newClaims.FamilyVersion)
	}
	if _, err := engine.Verify(context.Background(), newRefresh, VerifyOptions{ExpectKind: KindRefresh}); err != nil {
		t.Fatalf("verify of new-family token failed: %v", err)
	}
}

func TestInvalidateRefreshFamilyMissingSession(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	if _, err := engine.InvalidateRefreshFamily(context.Background(), "does-not-exist"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestActiveSessionAccounting(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	startTestSession(t, engine, "u1")
	startTestSession(t, engine, "u1")
	startTestSession(t, engine, "u2")

	count, err := engine.ActiveSessionCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ActiveSessionCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 sessions for u1, got %d", count)
	}

	listed, err := engine.ListSubjectSessions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListSubjectSessions failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 listed sessions, got %d", len(listed))
	}
	for _, sess := range listed {
		if sess.SubjectID != "u1" {
			t.Fatalf("listed session belongs to %q", sess.SubjectID)
		}
	}

	estimate, err := engine.EstimateActiveSessions(context.Background())
	if err != nil {
		t.Fatalf("EstimateActiveSessions failed: %v", err)
	}
	if estimate != 3 {
		t.Fatalf("expected estimate 3, got %d", estimate)
	}
}

func TestIssueRefreshTokenRejectsForeignSubject(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")

	if _, _, err := engine.IssueRefreshToken(context.Background(), "u2", sess.SessionID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign subject, got %v", err)
	}
}

func TestIssueRefreshTokenRequiresLiveSession(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	if err := engine.InvalidateSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	if _, _, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}
