package models

import "time"

// FundingRate is the periodic perp funding payment for (venue, instrument).
// RatePerInterval is a fraction (not a percent) expressed per native
// interval; the detector, not the connector, normalizes it to an 8h basis.
type FundingRate struct {
	Venue           string
	Instrument      Instrument
	RatePerInterval float64
	IntervalHours   float64
	NextFundingTime time.Time
}

// Rate8h returns the 8h-normalized funding rate, per spec: rate_per_interval
// times (8 / interval_hours).
func (f FundingRate) Rate8h() float64 {
	if f.IntervalHours <= 0 {
		return 0
	}
	return f.RatePerInterval * (8 / f.IntervalHours)
}

// OpenInterest is a liquidity gate value for a perp instrument.
type OpenInterest struct {
	Venue      string
	Instrument Instrument
	OIUSD      float64
}
