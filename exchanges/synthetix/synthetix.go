// Package synthetix implements a connector for Synthetix Perps v3 on Base,
// a DEX-style perpetual venue with no order book (oracle-priced markets).
// Grounded on original_source/backend/app/connectors/base_perp.py: a
// per-symbol /markets/{symbol} GET returns markPrice/fundingRate/
// openInterest, a synthetic bid/ask is simulated around markPrice at a
// fixed spread, and the daily fundingRate is carried at IntervalHours=24
// so models.FundingRate.Rate8h() applies the daily-to-8h ÷3 conversion.
package synthetix

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"arbwatch/applog"
	"arbwatch/exchanges"
	"arbwatch/exchanges/normalize"
	"arbwatch/models"
	"arbwatch/snapshot"
)

const (
	baseURL              = "https://perps.synthetix.io/api/base"
	simulatedSpreadBps   = 5
	fundingIntervalHours = 24
)

// Connector implements exchanges.Connector, PerpFetcher, FundingFetcher,
// and OpenInterestFetcher for a fixed universe of base-asset symbols
// (Synthetix has no market-listing endpoint suited to discovery).
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	symbols []string
	log     *applog.Entry
}

// New builds a Synthetix connector over the given base-asset symbols (e.g.
// "BTC", "ETH").
func New(symbols []string) *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: exchanges.NewLimiter(3, 5),
		symbols: symbols,
		log:     applog.Default().WithComponent("synthetix"),
	}
}

func (c *Connector) Name() string { return "synthetix" }

// Refresh fetches per-symbol market data and publishes tickers, funding,
// and open interest.
func (c *Connector) Refresh(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var tickers []models.Ticker
	var funding []models.FundingRate
	var oi []models.OpenInterest
	var fetchErrs []error
	for _, sym := range c.symbols {
		m, err := c.fetchMarket(ctx, sym)
		if err != nil {
			c.log.WithError(err).WithFields(applog.Fields{"symbol": sym}).Warn("market fetch failed")
			fetchErrs = append(fetchErrs, err)
			continue
		}
		if m.markPrice <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym), "USD", models.Perp)
		half := m.markPrice * (simulatedSpreadBps / 10000.0) / 2
		bid, ask := m.markPrice-half, m.markPrice+half
		tickers = append(tickers, models.Ticker{
			Venue: "synthetix", Instrument: inst, Last: m.markPrice, Bid: &bid, Ask: &ask, Timestamp: time.Now(),
		})
		funding = append(funding, models.FundingRate{
			Venue: "synthetix", Instrument: inst, RatePerInterval: m.fundingRate, IntervalHours: fundingIntervalHours,
		})
		oi = append(oi, models.OpenInterest{Venue: "synthetix", Instrument: inst, OIUSD: abs(m.openInterest) * m.markPrice})
	}

	snap.PublishTickers(tickers)
	snap.PublishFunding(funding)
	snap.PublishOpenInterest(oi)
	return exchanges.WorstError(fetchErrs...)
}

type marketData struct {
	markPrice    float64
	fundingRate  float64
	openInterest float64
}

func (c *Connector) fetchMarket(ctx context.Context, symbol string) (marketData, error) {
	url := fmt.Sprintf("%s/markets/%s", baseURL, symbol)
	var raw struct {
		MarkPrice    string `json:"markPrice"`
		FundingRate  string `json:"fundingRate"`
		OpenInterest string `json:"openInterest"`
	}
	if err := exchanges.FetchJSON(ctx, c.client, url, &raw); err != nil {
		return marketData{}, err
	}
	return marketData{
		markPrice:    exchanges.ParseFloat(raw.MarkPrice),
		fundingRate:  exchanges.ParseFloat(raw.FundingRate),
		openInterest: exchanges.ParseFloat(raw.OpenInterest),
	}, nil
}

// FetchPerpTickers implements exchanges.PerpFetcher.
func (c *Connector) FetchPerpTickers(ctx context.Context) ([]models.Ticker, error) {
	var out []models.Ticker
	for _, sym := range c.symbols {
		m, err := c.fetchMarket(ctx, sym)
		if err != nil || m.markPrice <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym), "USD", models.Perp)
		half := m.markPrice * (simulatedSpreadBps / 10000.0) / 2
		bid, ask := m.markPrice-half, m.markPrice+half
		out = append(out, models.Ticker{Venue: "synthetix", Instrument: inst, Last: m.markPrice, Bid: &bid, Ask: &ask, Timestamp: time.Now()})
	}
	return out, nil
}

// FetchFundingRates implements exchanges.FundingFetcher.
func (c *Connector) FetchFundingRates(ctx context.Context) ([]models.FundingRate, error) {
	var out []models.FundingRate
	for _, sym := range c.symbols {
		m, err := c.fetchMarket(ctx, sym)
		if err != nil {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym), "USD", models.Perp)
		out = append(out, models.FundingRate{Venue: "synthetix", Instrument: inst, RatePerInterval: m.fundingRate, IntervalHours: fundingIntervalHours})
	}
	return out, nil
}

// FetchOpenInterest implements exchanges.OpenInterestFetcher.
func (c *Connector) FetchOpenInterest(ctx context.Context) ([]models.OpenInterest, error) {
	var out []models.OpenInterest
	for _, sym := range c.symbols {
		m, err := c.fetchMarket(ctx, sym)
		if err != nil {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym), "USD", models.Perp)
		out = append(out, models.OpenInterest{Venue: "synthetix", Instrument: inst, OIUSD: abs(m.openInterest) * m.markPrice})
	}
	return out, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
