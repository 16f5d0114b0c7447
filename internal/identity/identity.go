// Package identity derives stable, privacy-preserving fingerprints from
// client identities. Fingerprints are used for vote dedup and for the
// identicon hash exposed to display queries; the raw remote address never
// leaves the server.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

type Hasher struct {
	Salt       []byte
	Iterations int
	KeyLen     int
}

func New(salt string) *Hasher {
	return &Hasher{Salt: []byte(salt), Iterations: 1000, KeyLen: 6}
}

// Fingerprint maps (remote address, optional email) to a short stable
// hash. A non-empty email wins over the address, so a commenter keeps one
// identicon across connections.
func (h *Hasher) Fingerprint(remoteAddr string, email *string) string {
	val := remoteAddr
	if email != nil && strings.TrimSpace(*email) != "" {
		val = strings.TrimSpace(*email)
	}
	key := pbkdf2.Key([]byte(val), h.Salt, h.Iterations, h.KeyLen, sha256.New)
	return hex.EncodeToString(key)
}
