// Package normalize implements the authoritative symbol-canonicalization
// rules from spec.md §4.1: delimiter stripping, perp-suffix stripping, and
// KRW-prefixed market splitting. Every connector runs venue-native symbols
// through this package before publishing into the snapshot so detectors
// never see venue-specific formats.
package normalize

import "strings"

var delimiters = []string{"-", "_", "/", ":"}

var perpSuffixes = []string{"-SWAP", "-PERP", "_SWAP", "_PERP", "PERP", "SWAP"}

// Symbol strips known delimiters and perp-contract suffixes and upper-cases
// the result, e.g. "BTC-USDT-SWAP" -> "BTCUSDT", "btc_usdt" -> "BTCUSDT".
func Symbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, suf := range perpSuffixes {
		s = strings.TrimSuffix(s, suf)
	}
	for _, d := range delimiters {
		s = strings.ReplaceAll(s, d, "")
	}
	return s
}

// SplitQuote splits a canonical symbol into base/quote given a known quote
// currency suffix (e.g. "USDT", "KRW", "USD"). Returns ok=false if symbol
// does not end with quote or is too short to leave a base.
func SplitQuote(symbol, quote string) (base string, ok bool) {
	if !strings.HasSuffix(symbol, quote) || len(symbol) <= len(quote) {
		return "", false
	}
	return strings.TrimSuffix(symbol, quote), true
}

// SplitKRWMarket handles Korean-venue market codes shaped "KRW-BTC", where
// the quote currency is the delimiter-separated prefix rather than a
// suffix. Returns base="BTC", quote="KRW".
func SplitKRWMarket(raw string) (base, quote string, ok bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	parts := strings.SplitN(upper, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	if parts[0] != "KRW" {
		return "", "", false
	}
	return parts[1], parts[0], true
}
