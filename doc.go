// Package goIdentity is the credential-verification and token-issuance core of
// an identity provider.
//
// A caller presents a credential (a Basic header, a one-time code, a TOTP code,
// an opaque authorization artifact or a bearer token) together with a
// (from, to) exchange pair. The [Engine] looks up the registered [Exchange],
// which runs exactly one [Verifier] against the presented credential and then
// one [Provider] to mint the requested token.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Configuration and the exchange table are immutable after
// Build.
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces (account, application and TOTP-key lookup,
// token stores, revocation ledger, event publisher) and value types. Redis
// persistence, event buffering and metric storage live under internal/.
//
// # What this package must NOT do
//
//   - Log or publish plaintext passwords, and log codes or tokens at any level.
//   - Retry failed store calls. Callers decide on retry.
//   - Reinterpret verifier or provider errors inside the dispatcher.
//   - Impose its own deadlines. Callers bound work through ctx.
package goIdentity
