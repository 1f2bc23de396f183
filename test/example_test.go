package test

import (
	"context"

	goToken "github.com/Averix07/goToken"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	cfg := goToken.DefaultConfig()

	engine, _ := goToken.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMetricsEnabled(true).
		Build()
	_ = engine
}

// ExampleEngine_Verify shows a typical verification call and structured error handling.
func ExampleEngine_Verify() {
	var engine *goToken.Engine
	_, err := engine.Verify(context.Background(), "artifact", goToken.VerifyOptions{
		RequireSession: true,
		ExpectKind:     goToken.KindAccess,
	})
	if err != nil {
		_ = err
	}
}

// ExampleEngine_Introspect shows non-erroring token inspection for diagnostics.
func ExampleEngine_Introspect() {
	var engine *goToken.Engine
	info := engine.Introspect(context.Background(), "artifact")
	_ = info.Active
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *goToken.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
