package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// minCredentialLen filters out junk like "Bearer null" sent by broken
// clients; anything shorter partitions by IP only.
const minCredentialLen = 20

// ResolveIdentity derives the admission-control key for a request from its
// Authorization header and source address. Bearer credentials are hashed,
// never parsed: the admission layer must not trust unverified claims for
// anything beyond partitioning.
func ResolveIdentity(authHeader, ip string) string {
	const prefix = "Bearer "

	if strings.HasPrefix(authHeader, prefix) {
		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		if len(raw) > minCredentialLen {
			sum := sha256.Sum256([]byte(raw))
			return "auth:" + ip + ":" + hex.EncodeToString(sum[:])[:8]
		}
	}

	return "ip:" + ip
}
