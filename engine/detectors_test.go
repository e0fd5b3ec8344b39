package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/allocator"
	"arbwatch/config"
	"arbwatch/models"
	"arbwatch/snapshot"
)

func baseConfig() *config.Config {
	return &config.Config{
		MaxAge:                 time.Minute,
		MinOIUSD:               100_000,
		MinFunding8hPct:        0.01,
		MinBasisBps:            10,
		MinSpreadBps:           5,
		MaxSpreadBps:           500,
		MaxCombinedSpreadBps:   20,
		MinKimchiPct:           0.5,
		KimchiDeviationPct:     0,
		MinKimchiAllocationPct: 0,
		FeeBpsDefault:          10,
		SlippageBps:            2,
		SimulatedNotionalUSD:   10_000,
		TetherTotalEquityUSD:   100_000,
	}
}

func kimchiCurve() allocator.Curve {
	return allocator.NewCurve([]allocator.Breakpoint{
		{PremiumPct: -5.0, AllocationPct: 100, Action: allocator.BuyKRW},
		{PremiumPct: -2.0, AllocationPct: 70, Action: allocator.BuyKRW},
		{PremiumPct: 0.0, AllocationPct: 20, Action: allocator.Flat},
		{PremiumPct: 2.0, AllocationPct: 25, Action: allocator.SellKRW},
		{PremiumPct: 5.0, AllocationPct: 75, Action: allocator.SellKRW},
	})
}

func ptr(f float64) *float64 { return &f }

func TestDetectSpotCross(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "binance", Symbol: "BTCUSDT"}: {
				Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: 100, Bid: ptr(99.9), Ask: ptr(100), Timestamp: now,
			},
			{Venue: "okx", Symbol: "BTCUSDT"}: {
				Venue: "okx", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: 100.5, Bid: ptr(100.5), Ask: ptr(100.6), Timestamp: now,
			},
		},
	}

	out := detectSpotCross(view, cfg, allocator.Curve{}, now)
	require.Len(t, out, 1)
	opp := out[0]
	assert.Equal(t, models.SpotCross, opp.Kind)
	assert.Equal(t, "BTCUSDT", opp.Symbol)
	assert.InDelta(t, 50.0, opp.SpreadBps, 0.5)
	require.Len(t, opp.Legs, 2)
	assert.Equal(t, models.Buy, opp.Legs[0].Side)
	assert.Equal(t, "binance", opp.Legs[0].Venue)
	assert.Equal(t, models.Sell, opp.Legs[1].Side)
	assert.Equal(t, "okx", opp.Legs[1].Venue)
}

func TestDetectSpotCrossRejectsBelowCostFloor(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "binance", Symbol: "BTCUSDT"}: {
				Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: 100, Ask: ptr(100), Timestamp: now,
			},
			{Venue: "okx", Symbol: "BTCUSDT"}: {
				Venue: "okx", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: 100.1, Bid: ptr(100.1), Timestamp: now,
			},
		},
	}

	out := detectSpotCross(view, cfg, allocator.Curve{}, now)
	assert.Empty(t, out, "10bps spread should not clear a 22bps round-trip cost floor")
}

func TestDetectKimchiPremium(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	curve := kimchiCurve()

	globalMid := 50005.0
	krwMid := globalMid * 1.03 * 1400 // ~3% premium at 1400 KRW/USD

	view := snapshot.View{
		FX: models.FxRate{KRWPerUSD: 1400},
		Tickers: map[models.Key]models.Ticker{
			{Venue: "binance", Symbol: "BTCUSDT"}: {
				Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: globalMid, Bid: ptr(globalMid), Ask: ptr(globalMid), Timestamp: now,
			},
			{Venue: "upbit", Symbol: "BTCKRW"}: {
				Venue: "upbit", Instrument: models.NewInstrument("BTC", "KRW", models.Spot),
				Last: krwMid, Bid: ptr(krwMid), Ask: ptr(krwMid), Timestamp: now,
			},
		},
	}

	out := detectKimchiPremium(view, cfg, curve, now)
	require.Len(t, out, 1)
	opp := out[0]
	assert.Equal(t, models.KimchiPremium, opp.Kind)
	assert.InDelta(t, 3.0, opp.ExpectedPnLPct, 0.05)
	assert.Nil(t, opp.Tradeable, "unpublished wallet state must render as unknown, not false")
}

func TestDetectKimchiPremiumRequiresFXRate(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "binance", Symbol: "BTCUSDT"}: {
				Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: 50000, Timestamp: now,
			},
			{Venue: "upbit", Symbol: "BTCKRW"}: {
				Venue: "upbit", Instrument: models.NewInstrument("BTC", "KRW", models.Spot),
				Last: 72_000_000, Timestamp: now,
			},
		},
	}
	out := detectKimchiPremium(view, cfg, kimchiCurve(), now)
	assert.Empty(t, out, "without a resolved FX rate the detector must not guess")
}

func TestDetectFundingArb(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {
				Venue: "alpha", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 50000, Bid: ptr(50000), Ask: ptr(50000), Timestamp: now,
			},
			{Venue: "beta", Symbol: "BTCUSDT"}: {
				Venue: "beta", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 50000, Bid: ptr(50000), Ask: ptr(50000), Timestamp: now,
			},
		},
		Funding: map[models.Key]models.FundingRate{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", RatePerInterval: 0.001, IntervalHours: 8},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", RatePerInterval: -0.001, IntervalHours: 8},
		},
		OpenInterest: map[models.Key]models.OpenInterest{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", OIUSD: 200_000},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", OIUSD: 200_000},
		},
	}

	out := detectFundingArb(view, cfg, allocator.Curve{}, now)
	require.Len(t, out, 1)
	opp := out[0]
	assert.Equal(t, models.FundingArb, opp.Kind)
	assert.Equal(t, "beta", opp.Metadata["long_exchange"], "the venue paying negative funding should be the long leg")
	assert.Equal(t, "alpha", opp.Metadata["short_exchange"])
	assert.InDelta(t, 0.2, opp.Metadata["funding_diff_8h_pct"].(float64), 0.01)
}

func TestDetectFundingArbGatesOnLargestAbsoluteRateNotDifferential(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	cfg.MinFunding8hPct = 0.5
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {
				Venue: "alpha", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 50000, Bid: ptr(50000), Ask: ptr(50000), Timestamp: now,
			},
			{Venue: "beta", Symbol: "BTCUSDT"}: {
				Venue: "beta", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 50000, Bid: ptr(50000), Ask: ptr(50000), Timestamp: now,
			},
		},
		// Both venues fund in the same direction: the differential between
		// them is tiny (0.01%), but the largest single leg (1%) clears the
		// gate on its own, so the opportunity must still be emitted.
		Funding: map[models.Key]models.FundingRate{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", RatePerInterval: 0.01, IntervalHours: 8},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", RatePerInterval: 0.0099, IntervalHours: 8},
		},
		OpenInterest: map[models.Key]models.OpenInterest{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", OIUSD: 200_000},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", OIUSD: 200_000},
		},
	}

	out := detectFundingArb(view, cfg, allocator.Curve{}, now)
	require.Len(t, out, 1, "the largest absolute leg rate alone must clear the gate even when the differential is small")
}

func TestDetectFundingArbRequiresOIFloor(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", Instrument: models.NewInstrument("BTC", "USDT", models.Perp), Last: 50000, Timestamp: now},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", Instrument: models.NewInstrument("BTC", "USDT", models.Perp), Last: 50000, Timestamp: now},
		},
		Funding: map[models.Key]models.FundingRate{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", RatePerInterval: 0.001, IntervalHours: 8},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", RatePerInterval: -0.001, IntervalHours: 8},
		},
		OpenInterest: map[models.Key]models.OpenInterest{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", OIUSD: 1_000},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", OIUSD: 1_000},
		},
	}
	out := detectFundingArb(view, cfg, allocator.Curve{}, now)
	assert.Empty(t, out, "both legs below the OI floor must suppress the opportunity")
}

func TestDetectSpotPerpBasis(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "binance", Symbol: "BTCUSDT"}: {
				Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot),
				Last: 50000, Bid: ptr(49995), Ask: ptr(50005), Timestamp: now,
			},
			{Venue: "bybit", Symbol: "BTCUSDT"}: {
				Venue: "bybit", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 50200, Bid: ptr(50195), Ask: ptr(50205), Timestamp: now,
			},
		},
		OpenInterest: map[models.Key]models.OpenInterest{
			{Venue: "bybit", Symbol: "BTCUSDT"}: {Venue: "bybit", OIUSD: 200_000},
		},
	}

	out := detectSpotPerpBasis(view, cfg, allocator.Curve{}, now)
	require.Len(t, out, 1)
	opp := out[0]
	assert.Equal(t, models.SpotPerpBasis, opp.Kind)
	assert.Equal(t, "spot", string(opp.Legs[0].VenueKind))
	assert.Equal(t, "perp", string(opp.Legs[1].VenueKind))
}

func TestDetectPerpPerpSpread(t *testing.T) {
	now := time.Now()
	cfg := baseConfig()
	view := snapshot.View{
		Tickers: map[models.Key]models.Ticker{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {
				Venue: "alpha", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 100, Bid: ptr(99.9), Ask: ptr(100), Timestamp: now,
			},
			{Venue: "beta", Symbol: "BTCUSDT"}: {
				Venue: "beta", Instrument: models.NewInstrument("BTC", "USDT", models.Perp),
				Last: 100.6, Bid: ptr(100.6), Ask: ptr(100.7), Timestamp: now,
			},
		},
		OpenInterest: map[models.Key]models.OpenInterest{
			{Venue: "alpha", Symbol: "BTCUSDT"}: {Venue: "alpha", OIUSD: 200_000},
			{Venue: "beta", Symbol: "BTCUSDT"}:  {Venue: "beta", OIUSD: 200_000},
		},
	}

	out := detectPerpPerpSpread(view, cfg, allocator.Curve{}, now)
	require.Len(t, out, 1)
	opp := out[0]
	assert.Equal(t, models.PerpPerpSpread, opp.Kind)
	assert.Equal(t, "alpha", opp.Legs[0].Venue)
	assert.Equal(t, "beta", opp.Legs[1].Venue)
}
