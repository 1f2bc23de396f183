package goToken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Averix07/goToken/internal"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func tokenTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.SigningKey = []byte("goToken-test-signing-key-0123456789abcdef")
	cfg.JWT.Issuer = "goToken-test"
	cfg.JWT.Audience = "test-suite"
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 50 * time.Minute
	cfg.JWT.Leeway = 0
	cfg.Session.JitterEnabled = false
	cfg.Session.JitterRange = 0
	return cfg
}

func newTokenEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, mr, rdb, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func startTestSession(t *testing.T, engine *Engine, subjectID string) *Session {
	t.Helper()

	sess, err := engine.StartSession(context.Background(), subjectID, 0)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return sess
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")

	artifact, claims, err := engine.IssueAccessToken(context.Background(), "u1", "admin", sess.SessionID, "", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if artifact == "" || claims == nil {
		t.Fatal("expected non-empty artifact and claims")
	}
	if claims.SubjectID() != "u1" || claims.Role != "admin" || claims.SessionID != sess.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("expected access kind, got %q", claims.Kind)
	}
	if claims.TokenID() == "" {
		t.Fatal("expected non-empty token id")
	}

	got, err := engine.Verify(context.Background(), artifact, VerifyOptions{})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got.TokenID() != claims.TokenID() || got.SubjectID() != "u1" {
		t.Fatalf("verified claims mismatch: %+v", got)
	}

	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{RequireSession: true}); err != nil {
		t.Fatalf("verify with session check failed: %v", err)
	}
}

func TestVerifyRejectsMalformedArtifact(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	for _, artifact := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("artifact %q: expected ErrTokenMalformed, got %v", artifact, err)
		}
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	engineA, _, _, doneA := newTokenEngine(t, tokenTestConfig())
	defer doneA()

	cfgB := tokenTestConfig()
	cfgB.JWT.SigningKey = []byte("goToken-test-foreign-key-fedcba9876543210")
	engineB, _, _, doneB := newTokenEngine(t, cfgB)
	defer doneB()

	sess := startTestSession(t, engineA, "u1")
	artifact, _, err := engineA.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := engineB.Verify(context.Background(), artifact, VerifyOptions{}); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	artifact, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", time.Second)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); err != nil {
		t.Fatalf("verify before expiry failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRevokeDeniesRegardlessOfRemainingTTL(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	artifact, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := engine.Revoke(context.Background(), artifact); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	artifact, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := engine.Revoke(context.Background(), artifact); err != nil {
			t.Fatalf("revoke attempt %d failed: %v", i, err)
		}
	}
}

func TestRevokeAcceptsExpiredToken(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	artifact, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", time.Second)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	if err := engine.Revoke(context.Background(), artifact); err != nil {
		t.Fatalf("revoke of expired token failed: %v", err)
	}
}

func TestRotateIssuesDistinctValidSuccessor(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	refresh, refreshClaims, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	successor, successorClaims, err := engine.Rotate(context.Background(), refresh, 0)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if successor == refresh {
		t.Fatal("expected successor artifact to differ from predecessor")
	}
	if successorClaims.TokenID() == refreshClaims.TokenID() {
		t.Fatal("expected successor token id to differ from predecessor")
	}
	if successorClaims.FamilyVersion != refreshClaims.FamilyVersion {
		t.Fatalf("expected family version preserved, got %d want %d",
			successorClaims.FamilyVersion, refreshClaims.FamilyVersion)
	}
	if successorClaims.SessionID != sess.SessionID || successorClaims.SubjectID() != "u1" {
		t.Fatalf("unexpected successor claims: %+v", successorClaims)
	}

	if _, err := engine.Verify(context.Background(), successor, VerifyOptions{ExpectKind: KindRefresh}); err != nil {
		t.Fatalf("verify successor failed: %v", err)
	}
	if _, err := engine.Verify(context.Background(), refresh, VerifyOptions{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected predecessor revoked, got %v", err)
	}
}

func TestRotateReplayOfRotatedTokenRejected(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	refresh, _, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	if _, _, err := engine.Rotate(context.Background(), refresh, 0); err != nil {
		t.Fatalf("first rotate failed: %v", err)
	}
	if _, _, err := engine.Rotate(context.Background(), refresh, 0); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}
}

func TestVerifyKindPinning(t *testing.T) {
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

	if _, err := engine.Verify(context.Background(), refresh, VerifyOptions{ExpectKind: KindAccess}); !errors.Is(err, ErrTokenKindMismatch) {
		t.Fatalf("expected kind mismatch for refresh-as-access, got %v", err)
	}
	if _, err := engine.Verify(context.Background(), access, VerifyOptions{ExpectKind: KindRefresh}); !errors.Is(err, ErrTokenKindMismatch) {
		t.Fatalf("expected kind mismatch for access-as-refresh, got %v", err)
	}
	if _, err := engine.Verify(context.Background(), access, VerifyOptions{ExpectKind: KindAccess}); err != nil {
		t.Fatalf("expected access to pass pinned verify, got %v", err)
	}
}

func TestRefreshTokenCarriesNoRole(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	refresh, claims, err := engine.IssueRefreshToken(context.Background(), "u1", sess.SessionID)
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}
	if claims.Role != "" {
		t.Fatalf("expected empty role on refresh token, got %q", claims.Role)
	}

	verified, err := engine.Verify(context.Background(), refresh, VerifyOptions{ExpectKind: KindRefresh})
	if err != nil {
		t.Fatalf("verify refresh failed: %v", err)
	}
	if verified.Role != "" {
		t.Fatalf("expected empty role after verify, got %q", verified.Role)
	}
}

func TestDeviceFingerprintPinning(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	artifact, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "device-a", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{ExpectedDeviceFingerprint: "device-a"}); err != nil {
		t.Fatalf("matching fingerprint rejected: %v", err)
	}
	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{ExpectedDeviceFingerprint: "device-b"}); !errors.Is(err, ErrDeviceMismatch) {
		t.Fatalf("expected ErrDeviceMismatch, got %v", err)
	}
	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); err != nil {
		t.Fatalf("empty expected fingerprint should skip the check, got %v", err)
	}
}

func TestVerifyWithoutRequireSessionSkipsSessionRead(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")
	artifact, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := engine.InvalidateSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("invalidate session failed: %v", err)
	}

	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); err != nil {
		t.Fatalf("stateless verify should not consult the session, got %v", err)
	}
	if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{RequireSession: true}); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid with session check, got %v", err)
	}
}

func TestCleanupRemovesOnlyExpiredLedgerEntries(t *testing.T) {
	engine, _, rdb, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")

	shortLived, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", time.Second)
	if err != nil {
		t.Fatalf("issue short-lived failed: %v", err)
	}
	longLived, _, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", time.Hour)
	if err != nil {
		t.Fatalf("issue long-lived failed: %v", err)
	}

	if err := engine.Revoke(context.Background(), shortLived); err != nil {
		t.Fatalf("revoke short-lived failed: %v", err)
	}
	if err := engine.Revoke(context.Background(), longLived); err != nil {
		t.Fatalf("revoke long-lived failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	removed, err := engine.CleanupExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly one expired entry removed, got %d", removed)
	}

	keys, err := rdb.Keys(context.Background(), "rv:*").Result()
	if err != nil {
		t.Fatalf("keys scan failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected one surviving ledger entry, got %d", len(keys))
	}

	if _, err := engine.Verify(context.Background(), longLived, VerifyOptions{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("long-lived token must stay revoked after cleanup, got %v", err)
	}
}

func TestTokenIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := internal.NewTokenID()
		if id == "" {
			t.Fatal("empty token id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate token id after %d draws: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestConcurrentIssuanceProducesUniqueVerifiableTokens(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	sess := startTestSession(t, engine, "u1")

	const n = 1000
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		artifacts = make([]string, 0, n)
		ids       = make(map[string]struct{}, n)
	)
	errs := make(chan error, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			artifact, claims, err := engine.IssueAccessToken(context.Background(), "u1", "member", sess.SessionID, "", 0)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			artifacts = append(artifacts, artifact)
			ids[claims.TokenID()] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent issue failed: %v", err)
	}
	if len(ids) != n {
		t.Fatalf("expected %d unique token ids, got %d", n, len(ids))
	}
	for _, artifact := range artifacts {
		if _, err := engine.Verify(context.Background(), artifact, VerifyOptions{}); err != nil {
			t.Fatalf("verify of concurrently issued token failed: %v", err)
		}
	}
}
