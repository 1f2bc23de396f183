package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSaveGetRoundTrip(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.SessionID != sess.SessionID || got.SubjectID != sess.SubjectID {
		t.Fatalf("identity mismatch: %q/%q", got.SessionID, got.SubjectID)
	}
	if got.NetworkAddress != sess.NetworkAddress || got.ClientContext != sess.ClientContext {
		t.Fatalf("context mismatch: %q/%q", got.NetworkAddress, got.ClientContext)
	}
	if !got.Active {
		t.Fatal("expected active session")
	}
}

func TestGetMissingSessionYieldsNilNil(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	got, err := store.Get(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("expected nil error for missing session, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil session, got %+v", got)
	}
}

func TestGetExpiredSessionRemovesRecord(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession()
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get expired session: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for expired session, got %+v", got)
	}

	if exists, _ := rdb.Exists(ctx, store.key(sess.SessionID)).Result(); exists != 0 {
		t.Fatal("expected expired record to be removed on read")
	}
	members, _ := rdb.SMembers(ctx, store.subjectKey(sess.SubjectID)).Result()
	if len(members) != 0 {
		t.Fatalf("expected subject index cleanup, got %v", members)
	}
	count, err := store.SessionCount(ctx)
	if err != nil {
		t.Fatalf("session count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0 after expiry cleanup, got %d", count)
	}
}

func TestInvalidateFlipsActiveAndPreservesRecord(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Invalidate(ctx, sess.SessionID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if got == nil {
		t.Fatal("expected invalidated session to remain readable")
	}
	if got.Active {
		t.Fatal("expected inactive session after invalidate")
	}

	pttl, err := rdb.PTTL(ctx, store.key(sess.SessionID)).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if pttl <= 0 || pttl > time.Hour {
		t.Fatalf("expected preserved TTL within the hour, got %v", pttl)
	}

	// Idempotent.
	if err := store.Invalidate(ctx, sess.SessionID); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
	if err := store.Invalidate(ctx, "no-such-session"); err != nil {
		t.Fatalf("invalidate missing session: %v", err)
	}
}

func TestExtendRenewsExpiry(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession()
	sess.ExpiresAt = time.Now().Add(time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Minute); err != nil {
		t.Fatalf("save session: %v", err)
	}

	extended, err := store.Extend(ctx, sess.SessionID, 2*time.Hour)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if extended == nil {
		t.Fatal("expected extended session")
	}

	wantMin := time.Now().Add(2*time.Hour - time.Minute).Unix()
	if extended.ExpiresAt < wantMin {
		t.Fatalf("expected expiry pushed out, got %d < %d", extended.ExpiresAt, wantMin)
	}

	pttl, err := rdb.PTTL(ctx, store.key(sess.SessionID)).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if pttl <= time.Hour {
		t.Fatalf("expected renewed TTL beyond an hour, got %v", pttl)
	}
}

func TestExtendUnusableSessionsYieldNilNil(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if got, err := store.Extend(ctx, "no-such-session", time.Hour); err != nil || got != nil {
		t.Fatalf("expected nil/nil for missing session, got %+v/%v", got, err)
	}

	sess := testSession()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Invalidate(ctx, sess.SessionID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if got, err := store.Extend(ctx, sess.SessionID, time.Hour); err != nil || got != nil {
		t.Fatalf("expected nil/nil for inactive session, got %+v/%v", got, err)
	}
}

func TestInvalidateAllForSubject(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"sid-a", "sid-b", "sid-c"} {
		sess := testSession()
		sess.SessionID = sid
		if err := store.Save(ctx, sess, time.Hour); err != nil {
			t.Fatalf("save %s: %v", sid, err)
		}
	}
	other := testSession()
	other.SessionID = "sid-other"
	other.SubjectID = "subject-2"
	if err := store.Save(ctx, other, time.Hour); err != nil {
		t.Fatalf("save other: %v", err)
	}

	flipped, err := store.InvalidateAllForSubject(ctx, "subject-1")
	if err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if flipped != 3 {
		t.Fatalf("expected 3 flipped sessions, got %d", flipped)
	}

	for _, sid := range []string{"sid-a", "sid-b", "sid-c"} {
		got, err := store.Get(ctx, sid)
		if err != nil || got == nil {
			t.Fatalf("get %s after flip: %+v/%v", sid, got, err)
		}
		if got.Active {
			t.Fatalf("expected %s inactive", sid)
		}
	}

	untouched, err := store.Get(ctx, "sid-other")
	if err != nil || untouched == nil || !untouched.Active {
		t.Fatalf("expected other subject untouched, got %+v/%v", untouched, err)
	}

	// Second sweep finds nothing left to flip.
	flipped, err = store.InvalidateAllForSubject(ctx, "subject-1")
	if err != nil {
		t.Fatalf("second invalidate all: %v", err)
	}
	if flipped != 0 {
		t.Fatalf("expected 0 flipped on repeat, got %d", flipped)
	}
}

func TestGetSlidingRenewalExtendsKeyTTL(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession()
	if err := store.Save(ctx, sess, 2*time.Second); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := store.Get(ctx, sess.SessionID); err != nil {
		t.Fatalf("get: %v", err)
	}

	pttl, err := rdb.PTTL(ctx, store.key(sess.SessionID)).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if pttl <= 2*time.Second {
		t.Fatalf("expected sliding renewal past the initial TTL, got %v", pttl)
	}
}

func TestGetReadOnlyLeavesStateUntouched(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession()
	if err := store.Save(ctx, sess, 2*time.Second); err != nil {
		t.Fatalf("save session: %v", err)
	}

	got, err := store.GetReadOnly(ctx, sess.SessionID)
	if err != nil || got == nil {
		t.Fatalf("get readonly: %+v/%v", got, err)
	}

	pttl, err := rdb.PTTL(ctx, store.key(sess.SessionID)).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if pttl > 2*time.Second {
		t.Fatalf("expected untouched TTL, got %v", pttl)
	}

	// Expired records are reported gone but not deleted.
	stale := testSession()
	stale.SessionID = "sid-stale"
	stale.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	blob, err := Encode(stale)
	if err != nil {
		t.Fatalf("encode stale: %v", err)
	}
	if err := rdb.Set(ctx, store.key(stale.SessionID), blob, time.Hour).Err(); err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	if got, err := store.GetReadOnly(ctx, stale.SessionID); err != nil || got != nil {
		t.Fatalf("expected nil/nil for stale readonly, got %+v/%v", got, err)
	}
	if exists, _ := rdb.Exists(ctx, store.key(stale.SessionID)).Result(); exists != 1 {
		t.Fatal("expected readonly path to leave the stale record in place")
	}
}

func TestCorruptBlobSurfacesSentinel(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := rdb.Set(ctx, store.key("sid-corrupt"), []byte("bad"), time.Hour).Err(); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	if _, err := store.Get(ctx, "sid-corrupt"); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected corrupt sentinel from Get, got %v", err)
	}
	if err := store.Invalidate(ctx, "sid-corrupt"); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected corrupt sentinel from Invalidate, got %v", err)
	}
}
