// Package models holds the normalized market-data and opportunity types
// shared by every connector, resolver and detector in arbwatch.
package models

import "strings"

// VenueKind distinguishes the trading surface a quote or leg belongs to.
type VenueKind string

const (
	Spot VenueKind = "spot"
	Perp VenueKind = "perp"
	FX   VenueKind = "fx"
)

// Side is the direction of an opportunity leg.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Instrument is the canonical trading-pair identifier. Base/Quote are always
// upper-case with venue-specific delimiters stripped before an Instrument is
// constructed; see exchanges/normalize.
type Instrument struct {
	Base      string
	Quote     string
	VenueKind VenueKind
}

// Symbol renders the instrument as BASEQUOTE, the canonical key used to
// group quotes across venues.
func (i Instrument) Symbol() string {
	return i.Base + i.Quote
}

// Display renders the instrument as BASE/QUOTE for human-facing text.
func (i Instrument) Display() string {
	return i.Base + "/" + i.Quote
}

// NewInstrument upper-cases base and quote; callers are expected to have
// already run the symbol through exchanges/normalize.
func NewInstrument(base, quote string, kind VenueKind) Instrument {
	return Instrument{
		Base:      strings.ToUpper(strings.TrimSpace(base)),
		Quote:     strings.ToUpper(strings.TrimSpace(quote)),
		VenueKind: kind,
	}
}
