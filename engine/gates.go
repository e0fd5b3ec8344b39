package engine

import (
	"math"

	"arbwatch/models"
	"arbwatch/snapshot"
)

// oiUSD looks up the open-interest gate value for (venue, instrument),
// returning ok=false when no OI has ever been published for that key.
func oiUSD(view snapshot.View, venue string, inst models.Instrument) (float64, bool) {
	oi, ok := view.OpenInterest[models.Key{Venue: venue, Symbol: inst.Symbol()}]
	if !ok {
		return 0, false
	}
	return oi.OIUSD, true
}

// oiGateOK reports whether a perp leg clears the minimum open-interest
// floor. Missing OI data fails the gate rather than passing it silently.
func oiGateOK(view snapshot.View, venue string, inst models.Instrument, minOIUSD float64) bool {
	v, ok := oiUSD(view, venue, inst)
	return ok && v >= minOIUSD
}

// roundTripOK is the shared cost gate: spread must clear both venues' fees
// plus slippage with room to spare.
func roundTripOK(spreadBps, feeBpsA, feeBpsB, slippageBps float64) bool {
	return spreadBps-feeBpsA-feeBpsB-slippageBps > 0
}

func abs(x float64) float64 {
	return math.Abs(x)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

func round(x float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(x*scale) / scale
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
