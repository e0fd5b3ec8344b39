package engine

import (
	"time"

	"arbwatch/allocator"
	"arbwatch/config"
	"arbwatch/models"
	"arbwatch/snapshot"
)

// detectPerpPerpSpread implements the PERP_PERP_SPREAD detector: like
// spot-cross but across perp legs on both sides, with the OI floor applied
// to both venues and no funding adjustment (execution horizon assumed
// flat).
func detectPerpPerpSpread(view snapshot.View, cfg *config.Config, _ allocator.Curve, now time.Time) []models.Opportunity {
	type quote struct {
		venue string
		t     models.Ticker
		oi    float64
	}
	grouped := make(map[string][]quote)
	for k, t := range view.Tickers {
		if t.Instrument.VenueKind != models.Perp {
			continue
		}
		if !t.Fresh(now, cfg.MaxAge) {
			continue
		}
		oi, ok := oiUSD(view, k.Venue, t.Instrument)
		if !ok || oi < cfg.MinOIUSD {
			continue
		}
		grouped[t.Instrument.Symbol()] = append(grouped[t.Instrument.Symbol()], quote{venue: k.Venue, t: t, oi: oi})
	}

	var out []models.Opportunity
	for symbol, qs := range grouped {
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
				if spreadBps <= 0 || spreadBps > cfg.MaxSpreadBps {
					continue
				}
				if !roundTripOK(spreadBps, cfg.FeeBpsDefault, cfg.FeeBpsDefault, cfg.SlippageBps) {
					continue
				}

				expectedPnLPct := (spreadBps - cfg.FeeBpsDefault*2 - cfg.SlippageBps) / 100
				quantity := cfg.SimulatedNotionalUSD / buyPrice
				venues := []string{buy.venue, sell.venue}

				var fundingDiff float64
				if fb, ok := view.Funding[models.Key{Venue: buy.venue, Symbol: symbol}]; ok {
					if fs, ok2 := view.Funding[models.Key{Venue: sell.venue, Symbol: symbol}]; ok2 {
						fundingDiff = abs(fb.Rate8h() - fs.Rate8h())
					}
				}

				legs := []models.Leg{
					{Venue: buy.venue, VenueKind: models.Perp, Side: models.Buy, Symbol: symbol, Price: buyPrice, Quantity: round(quantity, 6)},
					{Venue: sell.venue, VenueKind: models.Perp, Side: models.Sell, Symbol: symbol, Price: sellPrice, Quantity: round(quantity, 6)},
				}
				out = append(out, models.Opportunity{
					ID:             models.DeterministicID(models.PerpPerpSpread, symbol, venues, spreadBps),
					Kind:           models.PerpPerpSpread,
					Symbol:         symbol,
					SpreadBps:      round3(spreadBps),
					ExpectedPnLPct: round3(expectedPnLPct),
					NotionalUSD:    round2(cfg.SimulatedNotionalUSD),
					DetectedAt:     now,
					Description: "Perp spread: buy " + buy.venue + " @" + models.FormatPrice(buyPrice) +
						", sell " + sell.venue + " @" + models.FormatPrice(sellPrice),
					Legs: legs,
					Metadata: map[string]any{
						"funding_diff_8h_pct": round4(fundingDiff * 100),
						"buy_oi_usd":          round2(buy.oi),
						"sell_oi_usd":         round2(sell.oi),
					},
				})
			}
		}
	}
	return out
}
