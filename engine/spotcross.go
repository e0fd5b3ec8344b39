package engine

import (
	"time"

	"arbwatch/allocator"
	"arbwatch/config"
	"arbwatch/models"
	"arbwatch/snapshot"
)

// detectSpotCross implements the SPOT_CROSS detector: group fresh spot
// tickers by (base, quote) across venues, and for every ordered pair within
// a group, buy the cheaper ask and sell the richer bid. curve is unused
// here; it is part of the shared detector signature for kimchi premium's
// allocator lookup.
func detectSpotCross(view snapshot.View, cfg *config.Config, _ allocator.Curve, now time.Time) []models.Opportunity {
	type quote struct {
		venue string
		t     models.Ticker
	}
	groups := make(map[string][]quote)
	for k, t := range view.Tickers {
		if t.Instrument.VenueKind != models.Spot {
			continue
		}
		if !t.Fresh(now, cfg.MaxAge) {
			continue
		}
		groups[t.Instrument.Symbol()] = append(groups[t.Instrument.Symbol()], quote{venue: k.Venue, t: t})
	}

	var out []models.Opportunity
	for symbol, qs := range groups {
		if len(qs) < 2 {
			continue
		}
		for i := range qs {
			for j := range qs {
				if i == j {
					continue
				}
				buy, sell := qs[i], qs[j]
				buyPrice := buy.t.AskOrLast()
				sellPrice := sell.t.BidOrLast()
				if buyPrice <= 0 || sellPrice <= 0 {
					continue
				}
				spreadBps := (sellPrice - buyPrice) / buyPrice * 10000
				if spreadBps <= 0 || spreadBps < cfg.MinSpreadBps || spreadBps > cfg.MaxSpreadBps {
					continue
				}
				if !roundTripOK(spreadBps, cfg.FeeBpsDefault, cfg.FeeBpsDefault, cfg.SlippageBps) {
					continue
				}

				expectedPnLPct := (spreadBps - cfg.FeeBpsDefault*2 - cfg.SlippageBps) / 100
				notional := cfg.SimulatedNotionalUSD
				quantity := notional / buyPrice
				venues := []string{buy.venue, sell.venue}

				legs := []models.Leg{
					{Venue: buy.venue, VenueKind: models.Spot, Side: models.Buy, Symbol: symbol, Price: buyPrice, Quantity: round(quantity, 6)},
					{Venue: sell.venue, VenueKind: models.Spot, Side: models.Sell, Symbol: symbol, Price: sellPrice, Quantity: round(quantity, 6)},
				}
				out = append(out, models.Opportunity{
					ID:             models.DeterministicID(models.SpotCross, symbol, venues, spreadBps),
					Kind:           models.SpotCross,
					Symbol:         symbol,
					SpreadBps:      round3(spreadBps),
					ExpectedPnLPct: round3(expectedPnLPct),
					NotionalUSD:    round2(notional),
					DetectedAt:     now,
					Description: "Buy " + buy.venue + " @" + models.FormatPrice(buyPrice) +
						", sell " + sell.venue + " @" + models.FormatPrice(sellPrice),
					Legs: legs,
				})
			}
		}
	}
	return out
}
