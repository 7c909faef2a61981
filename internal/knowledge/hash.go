package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Canonicalize normalizes content for storage: leading/trailing
// whitespace is trimmed and internal whitespace runs collapse to a
// single space. Casing is preserved; only the dedup hash lowercases.
func Canonicalize(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// HashContent fingerprints content for dedup within a domain. The
// digest is computed over the canonicalized, case-folded form, so two
// inputs differing only in whitespace or casing collide on purpose.
// Returned as 64 hex characters (SHA-256).
func HashContent(content string) string {
	canonical := strings.ToLower(Canonicalize(content))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
