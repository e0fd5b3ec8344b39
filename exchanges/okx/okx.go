// Package okx implements the OKX spot and perpetual-swap connector.
// Grounded on the teacher's exchanges/okx/okx.go (tickers endpoint shape,
// dash-delimited instId), extended to the SWAP instType plus the public
// funding-rate and open-interest endpoints, and rewritten to publish into
// snapshot.Snapshot instead of a Postgres table.
package okx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"arbwatch/applog"
	"arbwatch/exchanges"
	"arbwatch/exchanges/normalize"
	"arbwatch/models"
	"arbwatch/snapshot"
)

const (
	spotTickersURL = "https://www.okx.com/api/v5/market/tickers?instType=SPOT"
	swapTickersURL = "https://www.okx.com/api/v5/market/tickers?instType=SWAP"
	swapInstrumentsURL = "https://www.okx.com/api/v5/public/instruments?instType=SWAP"
	fundingRateURL     = "https://www.okx.com/api/v5/public/funding-rate?instId="
	openInterestURL    = "https://www.okx.com/api/v5/public/open-interest?instType=SWAP"
)

// Connector implements exchanges.Connector, SpotFetcher, PerpFetcher,
// FundingFetcher, and OpenInterestFetcher.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds an OKX connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(5, 10),
		log:     applog.Default().WithComponent("okx"),
	}
}

func (c *Connector) Name() string { return "okx" }

// Refresh fetches spot, perp, open-interest and funding data and publishes
// all of it. Funding rates require one request per instrument on OKX, and
// Refresh fetches them for every swap in the instruments catalog on every
// tick (see FetchFundingRates).
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

	perp, err := c.FetchPerpTickers(ctx)
	if err != nil {
		c.log.WithError(err).Warn("perp fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishTickers(perp)
	}

	oi, err := c.FetchOpenInterest(ctx)
	if err != nil {
		c.log.WithError(err).Warn("open interest fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishOpenInterest(oi)
	}

	funding, err := c.FetchFundingRates(ctx)
	if err != nil {
		c.log.WithError(err).Warn("funding fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishFunding(funding)
	}

	return exchanges.WorstError(fetchErrs...)
}

type tickerResponse struct {
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
		BidPx  string `json:"bidPx"`
		AskPx  string `json:"askPx"`
	} `json:"data"`
}

func splitInstID(instID string) (base, quote string, ok bool) {
	parts := strings.Split(instID, "-")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// FetchSpotTickers implements exchanges.SpotFetcher.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var resp tickerResponse
	if err := exchanges.FetchJSON(ctx, c.client, spotTickersURL, &resp); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.Ticker, 0, len(resp.Data))
	for _, d := range resp.Data {
		base, quote, ok := splitInstID(d.InstID)
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(d.Last)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(base), normalize.Symbol(quote), models.Spot)
		tk := models.Ticker{Venue: "okx", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(d.BidPx); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(d.AskPx); ask > 0 {
			tk.Ask = &ask
		}
		out = append(out, tk)
	}
	return out, nil
}

// FetchPerpTickers implements exchanges.PerpFetcher. OKX swap instIds are
// shaped "BTC-USDT-SWAP"; normalize.Symbol strips the -SWAP suffix.
func (c *Connector) FetchPerpTickers(ctx context.Context) ([]models.Ticker, error) {
	var resp tickerResponse
	if err := exchanges.FetchJSON(ctx, c.client, swapTickersURL, &resp); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.Ticker, 0, len(resp.Data))
	for _, d := range resp.Data {
		base, quote, ok := splitInstID(strings.TrimSuffix(d.InstID, "-SWAP"))
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(d.Last)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(base), normalize.Symbol(quote), models.Perp)
		tk := models.Ticker{Venue: "okx", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(d.BidPx); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(d.AskPx); ask > 0 {
			tk.Ask = &ask
		}
		out = append(out, tk)
	}
	return out, nil
}

type openInterestResponse struct {
	Data []struct {
		InstID  string `json:"instId"`
		OiCcy   string `json:"oiCcy"`
		OiUsd   string `json:"oiUsd"`
	} `json:"data"`
}

// FetchOpenInterest implements exchanges.OpenInterestFetcher.
func (c *Connector) FetchOpenInterest(ctx context.Context) ([]models.OpenInterest, error) {
	var resp openInterestResponse
	if err := exchanges.FetchJSON(ctx, c.client, openInterestURL, &resp); err != nil {
		return nil, err
	}
	out := make([]models.OpenInterest, 0, len(resp.Data))
	for _, d := range resp.Data {
		base, quote, ok := splitInstID(strings.TrimSuffix(d.InstID, "-SWAP"))
		if !ok {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(base), normalize.Symbol(quote), models.Perp)
		out = append(out, models.OpenInterest{Venue: "okx", Instrument: inst, OIUSD: exchanges.ParseFloat(d.OiUsd)})
	}
	return out, nil
}

type fundingRateResponse struct {
	Data []struct {
		InstID      string `json:"instId"`
		FundingRate string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	} `json:"data"`
}

// FetchFundingRates implements exchanges.FundingFetcher. OKX's funding-rate
// endpoint is per-instrument, so this fetches it for every swap listed in
// the public instruments catalog.
func (c *Connector) FetchFundingRates(ctx context.Context) ([]models.FundingRate, error) {
	var instruments struct {
		Data []struct {
			InstID string `json:"instId"`
		} `json:"data"`
	}
	if err := exchanges.FetchJSON(ctx, c.client, swapInstrumentsURL, &instruments); err != nil {
		return nil, err
	}

	out := make([]models.FundingRate, 0, len(instruments.Data))
	for _, ins := range instruments.Data {
		base, quote, ok := splitInstID(strings.TrimSuffix(ins.InstID, "-SWAP"))
		if !ok {
			continue
		}
		var fr fundingRateResponse
		if err := exchanges.FetchJSON(ctx, c.client, fundingRateURL+ins.InstID, &fr); err != nil || len(fr.Data) == 0 {
			continue
		}
		nextMs := int64(exchanges.ParseFloat(fr.Data[0].NextFundingTime))
		inst := models.NewInstrument(normalize.Symbol(base), normalize.Symbol(quote), models.Perp)
		out = append(out, models.FundingRate{
			Venue: "okx", Instrument: inst, RatePerInterval: exchanges.ParseFloat(fr.Data[0].FundingRate),
			IntervalHours: 8, NextFundingTime: time.UnixMilli(nextMs),
		})
	}
	return out, nil
}
