// Package events implements async delivery of generation events (OTP, TOTP
// linker, passwordless) to out-of-band delivery collaborators.
//
// # Components
//
//   - [Publisher]: fire-and-forget publish contract (Redis pub/sub, channel, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured generation record with type, account, domain and payload.
//
// # Architecture boundaries
//
// This package owns buffering and publisher delivery. It does NOT decide which
// events to emit; that belongs to the root providers. Publish failures are
// reported through the dispatcher's error callback and never reach the
// issuance that produced the event.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Retry failed publishes.
package events
