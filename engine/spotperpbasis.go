package engine

import (
	"time"

	"arbwatch/allocator"
	"arbwatch/config"
	"arbwatch/models"
	"arbwatch/snapshot"
)

// detectSpotPerpBasis implements the SPOT_PERP_BASIS detector: for each
// base asset with both a fresh spot ticker and a liquid perp ticker,
// buy the cheaper side and sell the richer, netting out the expected
// funding cost over the holding horizon.
func detectSpotPerpBasis(view snapshot.View, cfg *config.Config, _ allocator.Curve, now time.Time) []models.Opportunity {
	type quote struct {
		venue string
		t     models.Ticker
	}
	spots := make(map[string][]quote)
	perps := make(map[string][]quote)
	for k, t := range view.Tickers {
		if !t.Fresh(now, cfg.MaxAge) {
			continue
		}
		if t.Instrument.Quote != "USDT" && t.Instrument.Quote != "USD" {
			continue
		}
		switch t.Instrument.VenueKind {
		case models.Spot:
			spots[t.Instrument.Base] = append(spots[t.Instrument.Base], quote{venue: k.Venue, t: t})
		case models.Perp:
			if oiGateOK(view, k.Venue, t.Instrument, cfg.MinOIUSD) {
				perps[t.Instrument.Base] = append(perps[t.Instrument.Base], quote{venue: k.Venue, t: t})
			}
		}
	}

	var out []models.Opportunity
	for asset, spotList := range spots {
		perpList, ok := perps[asset]
		if !ok {
			continue
		}
		for _, sp := range spotList {
			spotMid := sp.t.MidPrice()
			if spotMid <= 0 {
				continue
			}
			for _, pp := range perpList {
				fr, hasFunding := view.Funding[models.Key{Venue: pp.venue, Symbol: pp.t.Instrument.Symbol()}]

				basisBps := (pp.t.MidPrice() - spotMid) / spotMid * 10000
				if abs(basisBps) < cfg.MinBasisBps {
					continue
				}

				var buyVenue, sellVenue quote
				var buyPrice, sellPrice float64
				var buyKind, sellKind models.VenueKind
				if basisBps > 0 {
					buyVenue, sellVenue = sp, pp
					buyPrice, sellPrice = sp.t.AskOrLast(), pp.t.BidOrLast()
					buyKind, sellKind = models.Spot, models.Perp
				} else {
					buyVenue, sellVenue = pp, sp
					buyPrice, sellPrice = pp.t.AskOrLast(), sp.t.BidOrLast()
					buyKind, sellKind = models.Perp, models.Spot
					basisBps = -basisBps
				}

				spreadBps := (sellPrice - buyPrice) / buyPrice * 10000
				if spreadBps <= 0 {
					continue
				}
				if !roundTripOK(spreadBps, cfg.FeeBpsDefault, cfg.FeeBpsDefault, cfg.SlippageBps) {
					continue
				}

				expectedFundingCostBps := 0.0
				if hasFunding {
					expectedFundingCostBps = abs(fr.Rate8h()) * 10000
				}
				expectedPnLPct := (abs(basisBps) - expectedFundingCostBps) / 100
				if expectedPnLPct <= 0 {
					continue
				}

				quantity := cfg.SimulatedNotionalUSD / spotMid
				symbol := asset + "/" + sp.t.Instrument.Quote
				venues := []string{buyVenue.venue, sellVenue.venue}

				legs := []models.Leg{
					{Venue: buyVenue.venue, VenueKind: buyKind, Side: models.Buy, Symbol: symbol, Price: buyPrice, Quantity: round(quantity, 6)},
					{Venue: sellVenue.venue, VenueKind: sellKind, Side: models.Sell, Symbol: symbol, Price: sellPrice, Quantity: round(quantity, 6)},
				}
				out = append(out, models.Opportunity{
					ID:             models.DeterministicID(models.SpotPerpBasis, symbol, venues, spreadBps),
					Kind:           models.SpotPerpBasis,
					Symbol:         symbol,
					SpreadBps:      round3(spreadBps),
					ExpectedPnLPct: round3(expectedPnLPct),
					NotionalUSD:    round2(cfg.SimulatedNotionalUSD),
					DetectedAt:     now,
					Description: "Basis arb: " + asset + " spot@" + models.FormatPrice(spotMid) +
						" vs perp@" + models.FormatPrice(pp.t.MidPrice()) + " (" + models.FormatPrice(basisBps) + " bps)",
					Legs: legs,
					Metadata: map[string]any{
						"basis_bps":                 round2(basisBps),
						"expected_funding_cost_bps": round2(expectedFundingCostBps),
						"spot_exchange":             sp.venue,
						"perp_exchange":             pp.venue,
					},
				})
			}
		}
	}
	return out
}
