package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FormatPrice renders a price with magnitude-appropriate precision (fixed
// two decimals from 1000 up, trailing zeroes trimmed below that), for
// human-facing Description text only. Never use this
// for a numeric wire field.
func FormatPrice(price float64) string {
	switch {
	case price >= 1000:
		return strconv.FormatFloat(price, 'f', 2, 64)
	case price >= 1:
		return trimTrailingZeroes(strconv.FormatFloat(price, 'f', 5, 64))
	case price >= 0.01:
		return trimTrailingZeroes(strconv.FormatFloat(price, 'f', 6, 64))
	default:
		return trimTrailingZeroes(strconv.FormatFloat(price, 'f', 8, 64))
	}
}

func trimTrailingZeroes(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// DeterministicID derives an opportunity's stable identity as a pure hash of
// its economically meaningful content, so that running the engine twice on
// an identical snapshot yields identical Opportunity IDs.
func DeterministicID(kind OpportunityKind, symbol string, venues []string, spreadBps float64) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s|%.4f", kind, symbol, joinSorted(venues), spreadBps)))
	return hex.EncodeToString(sum[:])
}
