// Package internal contains helper utilities that are private to goIdentity,
// chiefly secure random generation of one-time codes and opaque tokens.
//
// # Sub-packages
//
//   - events: async event dispatch to publishers (Redis pub/sub, Kafka)
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis fixed-window counters throttling failed secret checks
//   - stores: Redis-backed opaque token, OTP and JTI ledger stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the goIdentity module.
package internal
