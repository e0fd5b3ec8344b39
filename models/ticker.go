package models

import "time"

// Ticker is the top-of-book quote for a (venue, instrument) pair.
type Ticker struct {
	Venue      string
	Instrument Instrument
	Last       float64
	Bid        *float64
	Ask        *float64
	Timestamp  time.Time
}

// Fresh reports whether the ticker is within maxAge of now.
func (t Ticker) Fresh(now time.Time, maxAge time.Duration) bool {
	if t.Last <= 0 {
		return false
	}
	return now.Sub(t.Timestamp) <= maxAge
}

// BidOrLast returns Bid if present, otherwise Last.
func (t Ticker) BidOrLast() float64 {
	if t.Bid != nil {
		return *t.Bid
	}
	return t.Last
}

// AskOrLast returns Ask if present, otherwise Last.
func (t Ticker) AskOrLast() float64 {
	if t.Ask != nil {
		return *t.Ask
	}
	return t.Last
}

// MidPrice averages bid/ask when both are present, else falls back to Last.
func (t Ticker) MidPrice() float64 {
	if t.Bid != nil && t.Ask != nil {
		return (*t.Bid + *t.Ask) / 2
	}
	return t.Last
}

// Key identifies a ticker slot inside the snapshot.
type Key struct {
	Venue  string
	Symbol string
}
