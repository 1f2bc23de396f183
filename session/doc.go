// Package session provides Redis-backed session persistence and compact binary
// session encoding for token verification hot paths.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary format (schema versions
// v1–v2) with forward migration on read. The encoder is append-only: new
// versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations), the in-process
// [MemoryStore], and the [Session] model. It does NOT interpret token
// artifacts, consult the revocation ledger, or enforce verification policy.
// Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goToken, jwt, or revocation (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
