// Package bybit implements the Bybit spot and linear-perpetual connector.
// Grounded on the teacher's exchanges/bybit/bybit.go (instruments-info /
// tickers endpoint shapes for spot and linear categories), rewritten to
// publish into snapshot.Snapshot instead of a Postgres table.
package bybit

import (
	"context"
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
	symbolsURL        = "https://api.bybit.com/v5/market/instruments-info?category=spot"
	symbolsFuturesURL = "https://api.bybit.com/v5/market/instruments-info?category=linear"
	tickerURL         = "https://api.bybit.com/v5/market/tickers?category=spot"
	tickerFuturesURL  = "https://api.bybit.com/v5/market/tickers?category=linear"
)

// Connector implements exchanges.Connector, SpotFetcher, PerpFetcher,
// FundingFetcher, and OpenInterestFetcher. Bybit's linear ticker payload
// carries funding rate and open interest value alongside price, so a single
// fetch backs all three perp-side interfaces.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds a Bybit connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(5, 10),
		log:     applog.Default().WithComponent("bybit"),
	}
}

func (c *Connector) Name() string { return "bybit" }

// Refresh fetches spot and perp market data (perp fetch also yields funding
// and open interest) and publishes all of it.
func (c *Connector) Refresh(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var fetchErrs []error

	spot, err := c.FetchSpotTickers(ctx)
	if err != nil {
		c.log.WithError(err).Warn("spot fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishTickers(spot)
	}

	linear, err := c.fetchLinear(ctx)
	if err != nil {
		c.log.WithError(err).Warn("linear fetch failed")
		return exchanges.WorstError(append(fetchErrs, err)...)
	}
	snap.PublishTickers(linear.tickers)
	snap.PublishFunding(linear.funding)
	snap.PublishOpenInterest(linear.openInterest)
	return exchanges.WorstError(fetchErrs...)
}

type symbolsResponse struct {
	Result struct {
		List []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseCoin"`
			QuoteAsset string `json:"quoteCoin"`
		} `json:"list"`
	} `json:"result"`
}

type tickerResponse struct {
	Result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	} `json:"result"`
}

// FetchSpotTickers implements exchanges.SpotFetcher.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var symbols symbolsResponse
	if err := exchanges.FetchJSON(ctx, c.client, symbolsURL, &symbols); err != nil {
		return nil, err
	}
	var tickers tickerResponse
	if err := exchanges.FetchJSON(ctx, c.client, tickerURL, &tickers); err != nil {
		return nil, err
	}

	symbolMap := make(map[string]struct{ base, quote string }, len(symbols.Result.List))
	for _, s := range symbols.Result.List {
		symbolMap[s.Symbol] = struct{ base, quote string }{s.BaseAsset, s.QuoteAsset}
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(tickers.Result.List))
	for _, t := range tickers.Result.List {
		si, ok := symbolMap[t.Symbol]
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(si.base), normalize.Symbol(si.quote), models.Spot)
		tk := models.Ticker{Venue: "bybit", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(t.Bid1Price); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(t.Ask1Price); ask > 0 {
			tk.Ask = &ask
		}
		out = append(out, tk)
	}
	return out, nil
}

type linearTickerResponse struct {
	Result struct {
		List []struct {
			Symbol             string `json:"symbol"`
			LastPrice          string `json:"lastPrice"`
			Bid1Price          string `json:"bid1Price"`
			Ask1Price          string `json:"ask1Price"`
			FundingRate        string `json:"fundingRate"`
			NextFundingTime    string `json:"nextFundingTime"`
			OpenInterestValue  string `json:"openInterestValue"`
		} `json:"list"`
	} `json:"result"`
}

type linearData struct {
	tickers      []models.Ticker
	funding      []models.FundingRate
	openInterest []models.OpenInterest
}

func (c *Connector) fetchLinear(ctx context.Context) (linearData, error) {
	var symbols symbolsResponse
	if err := exchanges.FetchJSON(ctx, c.client, symbolsFuturesURL, &symbols); err != nil {
		return linearData{}, err
	}
	var tickers linearTickerResponse
	if err := exchanges.FetchJSON(ctx, c.client, tickerFuturesURL, &tickers); err != nil {
		return linearData{}, err
	}

	symbolMap := make(map[string]struct{ base, quote string }, len(symbols.Result.List))
	for _, s := range symbols.Result.List {
		symbolMap[s.Symbol] = struct{ base, quote string }{s.BaseAsset, s.QuoteAsset}
	}

	now := time.Now()
	var out linearData
	for _, t := range tickers.Result.List {
		si, ok := symbolMap[t.Symbol]
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(si.base), normalize.Symbol(si.quote), models.Perp)

		tk := models.Ticker{Venue: "bybit", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(t.Bid1Price); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(t.Ask1Price); ask > 0 {
			tk.Ask = &ask
		}
		out.tickers = append(out.tickers, tk)

		if t.FundingRate != "" {
			nextMs := int64(exchanges.ParseFloat(t.NextFundingTime))
			out.funding = append(out.funding, models.FundingRate{
				Venue: "bybit", Instrument: inst, RatePerInterval: exchanges.ParseFloat(t.FundingRate),
				IntervalHours: 8, NextFundingTime: time.UnixMilli(nextMs),
			})
		}
		if t.OpenInterestValue != "" {
			out.openInterest = append(out.openInterest, models.OpenInterest{
				Venue: "bybit", Instrument: inst, OIUSD: exchanges.ParseFloat(t.OpenInterestValue),
			})
		}
	}
	return out, nil
}

// FetchPerpTickers implements exchanges.PerpFetcher.
func (c *Connector) FetchPerpTickers(ctx context.Context) ([]models.Ticker, error) {
	d, err := c.fetchLinear(ctx)
	if err != nil {
		return nil, err
	}
	return d.tickers, nil
}

// FetchFundingRates implements exchanges.FundingFetcher.
func (c *Connector) FetchFundingRates(ctx context.Context) ([]models.FundingRate, error) {
	d, err := c.fetchLinear(ctx)
	if err != nil {
		return nil, err
	}
	return d.funding, nil
}

// FetchOpenInterest implements exchanges.OpenInterestFetcher.
func (c *Connector) FetchOpenInterest(ctx context.Context) ([]models.OpenInterest, error) {
	d, err := c.fetchLinear(ctx)
	if err != nil {
		return nil, err
	}
	return d.openInterest, nil
}
