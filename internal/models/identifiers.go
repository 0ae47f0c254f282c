package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// pairKeyLen is the number of hex characters of the pair fingerprint
// carried in a comparison id.
const pairKeyLen = 40

// PairFingerprint derives the stable key for a URL pair: SHA-256 of
// the two URLs joined by "|" after sorting, so argument order does
// not matter.
func PairFingerprint(leftURL, rightURL string) string {
	pair := []string{leftURL, rightURL}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(strings.Join(pair, "|")))
	return hex.EncodeToString(sum[:])
}

// NewComparisonID mints a comparison id: the first 40 hex characters
// of the pair fingerprint, a dash, and a UUIDv4. Total length ≤ 77.
func NewComparisonID(pairKey string) string {
	return fmt.Sprintf("%s-%s", pairKey[:pairKeyLen], uuid.NewString())
}

// PairKeyFromComparisonID extracts the pair-key prefix used to route
// a poll to the right store instance. Returns false when the id is
// malformed.
func PairKeyFromComparisonID(comparisonID string) (string, bool) {
	if len(comparisonID) <= pairKeyLen || comparisonID[pairKeyLen] != '-' {
		return "", false
	}
	key := comparisonID[:pairKeyLen]
	for _, c := range key {
		if !isHexDigit(c) {
			return "", false
		}
	}
	return key, true
}

// ProbeID derives the deterministic probe id for a side.
func ProbeID(comparisonID string, side Side) string {
	return fmt.Sprintf("%s:%s", comparisonID, side)
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
