package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery folds width variants, trims, collapses whitespace and lowercases.
func NormalizeQuery(q string) string {
	q = norm.NFKC.String(q)
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Fingerprint is the stable cache address of a query.
func Fingerprint(q string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(q)))
	return hex.EncodeToString(sum[:])
}
