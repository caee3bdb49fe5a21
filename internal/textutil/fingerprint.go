package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Clean normalizes raw comment or caption text for analysis.
// Parameters:
//   - text: raw text as returned by a platform.
// Returns:
//   - string: normalized text with surrounding whitespace removed and
//     internal whitespace collapsed to single spaces.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Fingerprint returns the deterministic content hash of cleaned text.
// The hash is a dedup heuristic; record identity stays with the platform id.
// Parameters:
//   - text: text to fingerprint (cleaned with Clean first).
// Returns:
//   - string: hex-encoded SHA-256 of the cleaned text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Clean(text)))
	return hex.EncodeToString(sum[:])
}

// Truncate shortens s to at most n bytes without splitting a multi-byte
// rune. Used to bound stored error messages and progress labels.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
