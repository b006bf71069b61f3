// Package stores provides Redis-backed record stores for the identity core:
// opaque account tokens, one-time passwords and the JTI revocation ledger.
//
// # Design
//
// Each store persists a versioned JSON record in Redis with a TTL supplied by
// the caller. The TTL outlives the record's logical expiry by a retention grace
// so that reads shortly after expiry still find the record and callers can
// report "expired" rather than "unknown". Opaque tokens are keyed by the
// SHA-256 of the token string; the raw token is never persisted.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT generate tokens, compare
// codes, or decide whether a record is expired; those decisions belong to the
// root verifiers, which hold the clock.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Log or expose plaintext tokens or codes.
package stores
