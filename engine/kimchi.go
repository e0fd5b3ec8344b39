package engine

import (
	"time"

	"arbwatch/allocator"
	"arbwatch/applog"
	"arbwatch/config"
	"arbwatch/errs"
	"arbwatch/models"
	"arbwatch/snapshot"
	"arbwatch/wallet"
)

// detectKimchiPremium implements the KIMCHI_PREMIUM detector: for each base
// asset quoted in KRW on a Korean spot venue and in USDT/USD on a foreign
// venue (spot or perp, to also catch new listings), compute the premium and
// consult the capital allocator and wallet-state oracle. Grounded on
// original_source's _generate_kimchi_premium, including its
// deviation-from-average and minimum-allocation suppressions.
func detectKimchiPremium(view snapshot.View, cfg *config.Config, curve allocator.Curve, now time.Time) []models.Opportunity {
	if view.FX.KRWPerUSD <= 0 {
		return nil
	}

	type foreignQuote struct {
		venue string
		t     models.Ticker
	}
	type krwQuote struct {
		venue string
		t     models.Ticker
	}

	foreign := make(map[string][]foreignQuote)
	korean := make(map[string][]krwQuote)
	for k, t := range view.Tickers {
		if !t.Fresh(now, cfg.MaxAge) {
			continue
		}
		switch {
		case t.Instrument.Quote == "USDT" || t.Instrument.Quote == "USD":
			if t.Instrument.VenueKind == models.Spot || t.Instrument.VenueKind == models.Perp {
				foreign[t.Instrument.Base] = append(foreign[t.Instrument.Base], foreignQuote{venue: k.Venue, t: t})
			}
		case t.Instrument.Quote == "KRW":
			if t.Instrument.VenueKind == models.Spot {
				korean[t.Instrument.Base] = append(korean[t.Instrument.Base], krwQuote{venue: k.Venue, t: t})
			}
		}
	}

	type candidate struct {
		asset       string
		krw         krwQuote
		global      foreignQuote
		premiumFrac float64
	}
	var candidates []candidate
	for asset, krwList := range korean {
		globals, ok := foreign[asset]
		if !ok {
			continue
		}
		best := krwList[0]
		for _, k := range krwList[1:] {
			if k.t.AskOrLast() < best.t.AskOrLast() {
				best = k
			}
		}
		for _, g := range globals {
			globalMid := g.t.MidPrice()
			if globalMid <= 0 {
				continue
			}
			krwMidUSD := best.t.MidPrice() / view.FX.KRWPerUSD
			premiumFrac := (krwMidUSD - globalMid) / globalMid
			candidates = append(candidates, candidate{asset: asset, krw: best, global: g, premiumFrac: premiumFrac})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sum := 0.0
	for _, c := range candidates {
		sum += c.premiumFrac * 100
	}
	avgPremiumPct := sum / float64(len(candidates))

	var out []models.Opportunity
	for _, c := range candidates {
		premiumPct := c.premiumFrac * 100
		if abs(premiumPct) > 50 {
			sanityErr := errs.Wrap(errs.Sanity, c.global.venue+"/"+c.krw.venue, "kimchi premium exceeds 50%, likely a halted or stale quote", nil)
			detectorLog.WithError(sanityErr).WithFields(applog.Fields{"asset": c.asset, "premium_pct": premiumPct}).Warn("dropping candidate")
			continue
		}
		if abs(premiumPct) < cfg.MinKimchiPct {
			continue
		}
		deviation := abs(premiumPct - avgPremiumPct)
		if deviation < cfg.KimchiDeviationPct {
			continue
		}

		alloc := curve.Evaluate(premiumPct, cfg.TetherTotalEquityUSD)
		if alloc.TargetAllocationPct < cfg.MinKimchiAllocationPct {
			continue
		}

		spreadBps := c.premiumFrac * 10000
		quantity := cfg.SimulatedNotionalUSD / c.global.t.MidPrice()

		var legs []models.Leg
		var foreignVenueState, koreanVenueState models.WalletState
		foreignVenueState = view.Wallet(c.global.venue, c.asset)
		koreanVenueState = view.Wallet(c.krw.venue, c.asset)

		if premiumPct >= 0 {
			legs = []models.Leg{
				{Venue: c.global.venue, VenueKind: c.global.t.Instrument.VenueKind, Side: models.Buy, Symbol: c.global.t.Instrument.Symbol(), Price: c.global.t.AskOrLast(), Quantity: round(quantity, 6)},
				{Venue: c.krw.venue, VenueKind: models.Spot, Side: models.Sell, Symbol: c.krw.t.Instrument.Symbol(), Price: c.krw.t.BidOrLast(), Quantity: round(quantity, 6)},
			}
		} else {
			legs = []models.Leg{
				{Venue: c.global.venue, VenueKind: c.global.t.Instrument.VenueKind, Side: models.Sell, Symbol: c.global.t.Instrument.Symbol(), Price: c.global.t.BidOrLast(), Quantity: round(quantity, 6)},
				{Venue: c.krw.venue, VenueKind: models.Spot, Side: models.Buy, Symbol: c.krw.t.Instrument.Symbol(), Price: c.krw.t.AskOrLast(), Quantity: round(quantity, 6)},
			}
		}

		status := wallet.Tradeable(foreignVenueState, koreanVenueState, premiumPct < 0)
		tradeable := wallet.Overall(status)

		metadata := map[string]any{
			"premium_pct":            round3(premiumPct),
			"avg_premium_pct":        round3(avgPremiumPct),
			"deviation_from_avg":     round3(deviation),
			"fx_rate":                round4(view.FX.KRWPerUSD),
			"target_allocation_pct":  round2(alloc.TargetAllocationPct),
			"recommended_notional":   round2(alloc.RecommendedNotionalUSD),
			"recommended_action":     string(alloc.RecommendedAction),
		}

		symbol := c.asset + "/KRW vs " + c.asset + "/" + c.global.t.Instrument.Quote
		venues := []string{c.global.venue, c.krw.venue}
		out = append(out, models.Opportunity{
			ID:             models.DeterministicID(models.KimchiPremium, symbol, venues, spreadBps),
			Kind:           models.KimchiPremium,
			Symbol:         symbol,
			SpreadBps:      round3(spreadBps),
			ExpectedPnLPct: round3(premiumPct),
			NotionalUSD:    round2(cfg.SimulatedNotionalUSD),
			DetectedAt:     now,
			Description: "Kimchi premium " + models.FormatPrice(premiumPct) + "% (avg " + models.FormatPrice(avgPremiumPct) +
				"%) - " + c.krw.venue + " vs " + c.global.venue,
			Legs:          legs,
			Metadata:      metadata,
			Tradeable:     tradeable,
			DepositStatus: status,
		})
	}
	return out
}
