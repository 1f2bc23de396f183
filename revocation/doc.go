// Package revocation provides denial-by-identifier ledgers for issued tokens.
//
// A ledger entry exists for at most the revoked token's own lifetime: once the
// token has expired on its own, the entry is dead weight and is reaped by TTL
// (Redis), by predicate (Postgres), or by Cleanup. Lookups are existence
// checks on the token ID, nothing more.
//
// Three implementations share one observable contract: the Redis-backed
// [Ledger] for the common deployment, the durable [PostgresLedger] for
// deployments that must survive a cache flush, and the in-process
// [MemoryLedger] for tests and single-node use.
//
// This package does not parse or validate token artifacts and must not import
// goToken or jwt (no upward imports).
package revocation
