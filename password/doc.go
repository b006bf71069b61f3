// Package password implements salted password hashing and verification with
// pluggable algorithms: argon2id, scrypt, bcrypt and PBKDF2 (SHA-256/SHA-512).
//
// # Output format
//
// Every [Hasher] returns a [Digest] holding the salt and the derived hash, both
// standard base64. Cost parameters are not embedded in the digest; they are
// pinned by the version number stored next to the credential and resolved
// through [Versions].
//
// # Version migration
//
// [Versions] holds the live hasher used for all new hashes and a map of retired
// versions kept for verification only. Re-hashing under the current version
// after a successful login is a caller responsibility.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other goIdentity package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
