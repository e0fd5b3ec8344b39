// Package hyperliquid implements a connector for Hyperliquid's DEX
// perpetual futures. Grounded on
// original_source/backend/app/connectors/hyperliquid_perp.py: a single
// metaAndAssetCtxs POST yields funding/mark-price/open-interest for every
// listed coin, and per-coin l2Book POSTs yield top-of-book bid/ask. Ported
// to the teacher's fetchJSON/parseFloat idiom against snapshot.Snapshot.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"arbwatch/applog"
	"arbwatch/errs"
	"arbwatch/exchanges"
	"arbwatch/exchanges/normalize"
	"arbwatch/models"
	"arbwatch/snapshot"
)

const infoURL = "https://api.hyperliquid.xyz/info"

// fundingIntervalHours is Hyperliquid's native funding cadence; the engine
// normalizes to 8h via models.FundingRate.Rate8h.
const fundingIntervalHours = 1

// Connector implements exchanges.Connector, PerpFetcher, FundingFetcher,
// and OpenInterestFetcher. There is no spot market on Hyperliquid in scope
// here, so SpotFetcher is not implemented.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds a Hyperliquid connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(3, 5),
		log:     applog.Default().WithComponent("hyperliquid"),
	}
}

func (c *Connector) Name() string { return "hyperliquid" }

// Refresh fetches perp tickers, funding, and open interest and publishes
// all of it.
func (c *Connector) Refresh(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctxs, err := c.fetchAssetContexts(ctx)
	if err != nil {
		c.log.WithError(err).Warn("metaAndAssetCtxs fetch failed")
		return err
	}

	var funding []models.FundingRate
	var oi []models.OpenInterest
	var tickers []models.Ticker
	for _, a := range ctxs {
		if a.markPrice <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(a.coin), "USD", models.Perp)
		funding = append(funding, models.FundingRate{
			Venue: "hyperliquid", Instrument: inst, RatePerInterval: a.funding,
			IntervalHours: fundingIntervalHours,
		})
		oi = append(oi, models.OpenInterest{Venue: "hyperliquid", Instrument: inst, OIUSD: a.openInterest * a.markPrice})

		bid, ask, ok := c.fetchTopOfBook(ctx, a.coin)
		tk := models.Ticker{Venue: "hyperliquid", Instrument: inst, Last: a.markPrice, Timestamp: time.Now()}
		if ok {
			tk.Bid, tk.Ask = &bid, &ask
		}
		tickers = append(tickers, tk)
	}

	snap.PublishTickers(tickers)
	snap.PublishFunding(funding)
	snap.PublishOpenInterest(oi)
	return nil
}

// FetchPerpTickers implements exchanges.PerpFetcher.
func (c *Connector) FetchPerpTickers(ctx context.Context) ([]models.Ticker, error) {
	ctxs, err := c.fetchAssetContexts(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.Ticker, 0, len(ctxs))
	for _, a := range ctxs {
		if a.markPrice <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(a.coin), "USD", models.Perp)
		tk := models.Ticker{Venue: "hyperliquid", Instrument: inst, Last: a.markPrice, Timestamp: now}
		if bid, ask, ok := c.fetchTopOfBook(ctx, a.coin); ok {
			tk.Bid, tk.Ask = &bid, &ask
		}
		out = append(out, tk)
	}
	return out, nil
}

// FetchFundingRates implements exchanges.FundingFetcher.
func (c *Connector) FetchFundingRates(ctx context.Context) ([]models.FundingRate, error) {
	ctxs, err := c.fetchAssetContexts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.FundingRate, 0, len(ctxs))
	for _, a := range ctxs {
		inst := models.NewInstrument(normalize.Symbol(a.coin), "USD", models.Perp)
		out = append(out, models.FundingRate{
			Venue: "hyperliquid", Instrument: inst, RatePerInterval: a.funding, IntervalHours: fundingIntervalHours,
		})
	}
	return out, nil
}

// FetchOpenInterest implements exchanges.OpenInterestFetcher.
func (c *Connector) FetchOpenInterest(ctx context.Context) ([]models.OpenInterest, error) {
	ctxs, err := c.fetchAssetContexts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.OpenInterest, 0, len(ctxs))
	for _, a := range ctxs {
		inst := models.NewInstrument(normalize.Symbol(a.coin), "USD", models.Perp)
		out = append(out, models.OpenInterest{Venue: "hyperliquid", Instrument: inst, OIUSD: a.openInterest * a.markPrice})
	}
	return out, nil
}

type assetContext struct {
	coin         string
	funding      float64
	markPrice    float64
	openInterest float64
}

func (c *Connector) fetchAssetContexts(ctx context.Context) ([]assetContext, error) {
	body, err := c.post(ctx, map[string]string{"type": "metaAndAssetCtxs"})
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) < 2 {
		return nil, errs.Wrap(errs.Decode, "hyperliquid", "metaAndAssetCtxs: unexpected shape", nil)
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, errs.Wrap(errs.Decode, "hyperliquid", "metaAndAssetCtxs: bad meta", err)
	}

	var assetCtxs []struct {
		Funding      string `json:"funding"`
		MarkPx       string `json:"markPx"`
		OpenInterest string `json:"openInterest"`
	}
	if err := json.Unmarshal(raw[1], &assetCtxs); err != nil {
		return nil, errs.Wrap(errs.Decode, "hyperliquid", "metaAndAssetCtxs: bad asset contexts", err)
	}

	n := len(meta.Universe)
	if len(assetCtxs) < n {
		n = len(assetCtxs)
	}
	out := make([]assetContext, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, assetContext{
			coin:         meta.Universe[i].Name,
			funding:      exchanges.ParseFloat(assetCtxs[i].Funding),
			markPrice:    exchanges.ParseFloat(assetCtxs[i].MarkPx),
			openInterest: exchanges.ParseFloat(assetCtxs[i].OpenInterest),
		})
	}
	return out, nil
}

func (c *Connector) fetchTopOfBook(ctx context.Context, coin string) (bid, ask float64, ok bool) {
	body, err := c.post(ctx, map[string]string{"type": "l2Book", "coin": coin})
	if err != nil {
		return 0, 0, false
	}
	var book struct {
		Levels [][]struct {
			Px string `json:"px"`
		} `json:"levels"`
	}
	if err := json.Unmarshal(body, &book); err != nil || len(book.Levels) < 2 {
		return 0, 0, false
	}
	if len(book.Levels[0]) == 0 || len(book.Levels[1]) == 0 {
		return 0, 0, false
	}
	bid = exchanges.ParseFloat(book.Levels[0][0].Px)
	ask = exchanges.ParseFloat(book.Levels[1][0].Px)
	return bid, ask, bid > 0 && ask > 0
}

func (c *Connector) post(ctx context.Context, payload interface{}) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, infoURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "hyperliquid", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.Wrap(errs.RateLimited, "hyperliquid", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Wrap(errs.Transient, "hyperliquid", fmt.Sprintf("non-OK status %d", resp.StatusCode), nil)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return body.Bytes(), nil
}
