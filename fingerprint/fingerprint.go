// Package fingerprint derives the stable content identity used as the
// index primary key. Identical normalized content always maps to the same
// fingerprint, so cosmetic re-scrapes (different whitespace or HTML
// wrapping) collapse into one record while substantive edits do not.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// New computes the fingerprint for an article's title and body.
// Pure and deterministic: sha256 over the normalized text, hex encoded.
func New(title, body string) string {
	combined := Normalize(title) + "\n" + Normalize(body)
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:])
}

// Normalize strips markup artifacts, collapses whitespace and case-folds,
// so that only substantive content differences survive.
func Normalize(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
