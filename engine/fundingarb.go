package engine

import (
	"time"

	"arbwatch/allocator"
	"arbwatch/config"
	"arbwatch/models"
	"arbwatch/snapshot"
)

// detectFundingArb implements the FUNDING_ARB detector: for each perp
// instrument present on at least two venues, take every pair of venues that
// pass the OI floor and, for each pair, go long on the venue with the lower
// 8h funding (receiver) and short on the venue with the higher 8h funding
// (payer), yielding one candidate per pair. spread_bps is fixed to the price
// cross-spread between the two perp legs, per the resolved open question in
// DESIGN.md; the funding differential itself is carried in metadata.
func detectFundingArb(view snapshot.View, cfg *config.Config, _ allocator.Curve, now time.Time) []models.Opportunity {
	type perpQuote struct {
		venue    string
		t        models.Ticker
		funding8 float64
		oiUSD    float64
		hasOI    bool
	}
	grouped := make(map[string][]perpQuote)
	for k, t := range view.Tickers {
		if t.Instrument.VenueKind != models.Perp {
			continue
		}
		if !t.Fresh(now, cfg.MaxAge) {
			continue
		}
		fr, ok := view.Funding[k]
		if !ok {
			continue
		}
		oi, hasOI := oiUSD(view, k.Venue, t.Instrument)
		grouped[t.Instrument.Base] = append(grouped[t.Instrument.Base], perpQuote{
			venue: k.Venue, t: t, funding8: fr.Rate8h(), oiUSD: oi, hasOI: hasOI,
		})
	}

	var out []models.Opportunity
	for asset, perps := range grouped {
		valid := make([]perpQuote, 0, len(perps))
		for _, p := range perps {
			if p.hasOI && p.oiUSD >= cfg.MinOIUSD {
				valid = append(valid, p)
			}
		}
		if len(valid) < 2 {
			continue
		}

		for i := range valid {
			for j := i + 1; j < len(valid); j++ {
				p1, p2 := valid[i], valid[j]
				fundingDiff8h := p1.funding8 - p2.funding8
				best := abs(p1.funding8)
				if abs(p2.funding8) > best {
					best = abs(p2.funding8)
				}
				if best < cfg.MinFunding8hPct/100 {
					continue
				}

				var long, short perpQuote
				if fundingDiff8h > 0 {
					long, short = p2, p1
				} else {
					long, short = p1, p2
					fundingDiff8h = -fundingDiff8h
				}

				buyPrice := long.t.AskOrLast()
				sellPrice := short.t.BidOrLast()
				if buyPrice <= 0 || sellPrice <= 0 {
					continue
				}
				spreadBps := (sellPrice - buyPrice) / buyPrice * 10000
				combinedSpreadBps := abs(spreadBps)
				if combinedSpreadBps > cfg.MaxCombinedSpreadBps {
					continue
				}

				fundingPnLPct := fundingDiff8h * 100
				expectedPnLPct := fundingPnLPct - combinedSpreadBps/100
				if expectedPnLPct <= 0 {
					continue
				}

				quantity := cfg.SimulatedNotionalUSD / buyPrice
				symbol := asset + "/USDT:USDT"
				venues := []string{long.venue, short.venue}

				legs := []models.Leg{
					{Venue: long.venue, VenueKind: models.Perp, Side: models.Buy, Symbol: symbol, Price: buyPrice, Quantity: round(quantity, 6)},
					{Venue: short.venue, VenueKind: models.Perp, Side: models.Sell, Symbol: symbol, Price: sellPrice, Quantity: round(quantity, 6)},
				}
				out = append(out, models.Opportunity{
					ID:             models.DeterministicID(models.FundingArb, symbol, venues, spreadBps),
					Kind:           models.FundingArb,
					Symbol:         symbol,
					SpreadBps:      round3(spreadBps),
					ExpectedPnLPct: round3(expectedPnLPct),
					NotionalUSD:    round2(cfg.SimulatedNotionalUSD),
					DetectedAt:     now,
					Description: "Funding arb: long " + long.venue + " @" + models.FormatPrice(long.funding8*100) +
						"%/8h, short " + short.venue + " @" + models.FormatPrice(short.funding8*100) + "%/8h",
					Legs: legs,
					Metadata: map[string]any{
						"funding_diff_8h_pct": round4(fundingDiff8h * 100),
						"long_exchange":       long.venue,
						"long_funding_8h_pct": round4(long.funding8 * 100),
						"long_oi_usd":         round2(long.oiUSD),
						"short_exchange":      short.venue,
						"short_funding_8h_pct": round4(short.funding8 * 100),
						"short_oi_usd":        round2(short.oiUSD),
						"combined_spread_bps": round2(combinedSpreadBps),
					},
				})
			}
		}
	}
	return out
}
