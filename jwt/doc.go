// Package jwt signs and verifies bearer tokens for every supported algorithm
// (HMAC, RSA, ECDSA, EdDSA) with strict parser validation, and provides the
// optional encryption envelope applied to signed token strings.
package jwt
