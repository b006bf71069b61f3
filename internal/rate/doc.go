// Package rate provides the Redis-backed failed-attempt counter used to
// throttle password and code guessing.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first failure. Keys are
// <prefix><scope>:<subject>, where scope names the credential kind and subject
// is the account or application id.
//
// # What this package must NOT do
//
//   - Decide what a throttled attempt means to the caller.
//   - Be imported outside the goIdentity module.
package rate
