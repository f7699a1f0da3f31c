// Package token mints the opaque secrets behind invite and share links.
// Tokens carry 256 bits of entropy; only their SHA-256 digest is meant to
// reach storage for grant kinds that hash at rest.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const rawBytes = 32

// New returns a fresh raw token and its digest. The raw form is shown to the
// grantee exactly once (inside a redeemable URL) and never persisted.
func New() (raw string, digest string) {
	buf := make([]byte, rawBytes)
	_, _ = rand.Read(buf)
	raw = hex.EncodeToString(buf)
	return raw, Digest(raw)
}

// Digest maps a raw token to its stored form. Deterministic, so redemption
// can look a grant up by re-hashing the presented token.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
