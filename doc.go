// Package goToken provides a low-latency token lifecycle engine with signed bearer
// tokens, single-use rotating refresh tokens, Redis-backed session records, and a
// revocation ledger that fails closed.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (MetricsSnapshot, TokenInfo, etc.). All internal coordination, meaning flow
// orchestration, binding fingerprint hashing, and audit dispatch, lives under internal/
// and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports goToken (no import cycles).
//
// # Performance contract
//
// Verify is the hot path. It is allowed one revocation check plus at most one session
// read per call, and skips the session read entirely for unbound access tokens unless
// [VerifyOptions].RequireSession demands it. Rotate, Revoke, and session operations are
// allowed a constant number of Redis round-trips per call.
package goToken
