// Package checksum computes and verifies SHA-256 content digests.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Suffix is appended to an asset name to form its checksum companion.
const Suffix = ".sha256"

// Digest returns the lower-case hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// Verify reports whether data hashes to expected, ignoring case and
// surrounding whitespace.
func Verify(data []byte, expected string) bool {
	return strings.EqualFold(Digest(data), strings.TrimSpace(expected))
}

// ParseCompanion extracts the digest from the body of a companion asset.
// Both a bare digest and the "<digest>  <file>" form are accepted; an empty
// body yields an empty string.
func ParseCompanion(body string) string {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}
