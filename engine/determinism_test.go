package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/config"
	"arbwatch/models"
	"arbwatch/snapshot"
)

func fullEngineConfig() *config.Config {
	cfg := baseConfig()
	cfg.MaxOpportunities = 200
	cfg.DetectInterval = 3 * time.Second
	cfg.AllocationCurve = nil
	return cfg
}

// TestEngineTickIsDeterministic verifies that running two ticks over an
// unchanged snapshot produces identical, identically-ordered opportunities,
// since Opportunity.ID is a pure hash of economically meaningful content.
func TestEngineTickIsDeterministic(t *testing.T) {
	now := time.Now()
	snap := snapshot.New()
	snap.PublishTickers([]models.Ticker{
		{Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot), Last: 100, Ask: ptr(100), Timestamp: now},
		{Venue: "okx", Instrument: models.NewInstrument("BTC", "USDT", models.Spot), Last: 100.5, Bid: ptr(100.5), Timestamp: now},
	})

	cfg := fullEngineConfig()
	eng := New(cfg, snap)

	first := eng.Tick(context.Background())
	second := eng.Tick(context.Background())

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].SpreadBps, second[0].SpreadBps)
}

// TestDedupCollapsesIdenticalOpportunities verifies that two economically
// identical opportunities of the same kind collapse to one entry via DedupKey.
func TestDedupCollapsesIdenticalOpportunities(t *testing.T) {
	opps := []models.Opportunity{
		{Kind: models.SpotCross, Symbol: "BTCUSDT", Legs: []models.Leg{{Venue: "binance"}, {Venue: "okx"}}},
		{Kind: models.SpotCross, Symbol: "BTCUSDT", Legs: []models.Leg{{Venue: "binance"}, {Venue: "okx"}}},
	}
	deduped := dedup(opps)
	assert.Len(t, deduped, 1)
}

// TestEngineTickTruncatesToMaxOpportunities verifies the ranked-truncation
// gate keeps only the top N opportunities by absolute spread.
func TestEngineTickTruncatesToMaxOpportunities(t *testing.T) {
	now := time.Now()
	snap := snapshot.New()
	snap.PublishTickers([]models.Ticker{
		{Venue: "binance", Instrument: models.NewInstrument("BTC", "USDT", models.Spot), Last: 100, Ask: ptr(100), Timestamp: now},
		{Venue: "okx", Instrument: models.NewInstrument("BTC", "USDT", models.Spot), Last: 100.5, Bid: ptr(100.5), Timestamp: now},
		{Venue: "bybit", Instrument: models.NewInstrument("ETH", "USDT", models.Spot), Last: 50, Ask: ptr(50), Timestamp: now},
		{Venue: "gate", Instrument: models.NewInstrument("ETH", "USDT", models.Spot), Last: 50.5, Bid: ptr(50.5), Timestamp: now},
	})

	cfg := fullEngineConfig()
	cfg.MaxOpportunities = 1
	eng := New(cfg, snap)

	out := eng.Tick(context.Background())
	require.Len(t, out, 1)
}
