// Package middleware exposes HTTP middleware that authenticates bearer tokens
// through a goIdentity [goIdentity.Verifier] and enforces scope requirements.
//
// # Guards
//
//   - [Guard] authenticates with any Verifier, typically Engine.AccessTokenVerifier.
//   - [RequireAccessToken] is Guard over the engine's access token verifier.
//   - [RequireScopes] rejects principals lacking the listed scopes.
//
// Guards read the Authorization header, call Verify, and inject the resulting
// [goIdentity.Principal] into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Verifier calls. It does not parse
// tokens or touch storage itself.
package middleware
