// Package auth verifies identity tokens presented at login. Two verifiers
// exist: an HS256 JWT verifier for self-issued tokens and a remote verifier
// that asks the identity provider's admin API to resolve the token.
package auth

import "context"

// Identity is the verified result of an identity token. IssuedAt is the
// token's iat claim in unix seconds; the member service uses it for the
// replay guard.
type Identity struct {
	Issuer   string
	Email    string
	IssuedAt int64
}

// Verifier validates a raw identity token and extracts the identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
