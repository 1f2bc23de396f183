//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Averix07/goToken/revocation"
	"github.com/Averix07/goToken/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestRotationClaimSingleWinner races concurrent RevokeNX calls on the same
// token ID. The SET NX claim is what makes rotation single-use: exactly one
// rotation may consume a given refresh token.
func TestRotationClaimSingleWinner(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ledger := revocation.NewLedger(rdb, "rv")
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	type outcome struct {
		won bool
		err error
	}
	results := make(chan outcome, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			won, err := ledger.RevokeNX(ctx, "tok-race", expiresAt)
			results <- outcome{won: won, err: err}
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for res := range results {
		if res.err != nil {
			t.Fatalf("unexpected claim error: %v", res.err)
		}
		if res.won {
			winners++
		}
	}

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	// The claim entry must be visible to verification immediately.
	revoked, err := ledger.IsRevoked(ctx, "tok-race")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("claimed token should read as revoked")
	}
}

// TestFamilyBumpConcurrentFloors races concurrent family floor bumps on one
// session. A bump either lands through the optimistic transaction or gives up
// after its retry budget; the floor must reflect exactly the bumps that landed.
func TestFamilyBumpConcurrentFloors(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	if err := store.Save(ctx, makeSession("u1", "sid-floors"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := store.BumpMinRefreshVersion(ctx, "sid-floors")
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	landed := 0
	for err := range results {
		switch {
		case err == nil:
			landed++
		case errors.Is(err, session.ErrRedisUnavailable):
			// Retry budget exhausted under contention; no bump applied.
		default:
			t.Fatalf("unexpected bump error: %v", err)
		}
	}
	if landed == 0 {
		t.Fatal("expected at least one bump to land")
	}

	got, err := store.GetReadOnly(ctx, "sid-floors")
	if err != nil {
		t.Fatalf("GetReadOnly: %v", err)
	}
	if got == nil {
		t.Fatal("session should still exist")
	}
	if int(got.MinRefreshVersion) != 1+landed {
		t.Fatalf("expected floor %d after %d landed bumps, got %d", 1+landed, landed, got.MinRefreshVersion)
	}
}
