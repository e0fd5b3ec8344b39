// Package fx implements the FX Resolver: a fixed-priority source chain
// producing KRW_per_USD, refreshed by its own scheduler job at
// fx_refresh_interval, separate from the detection-interval jobs. Grounded on
// original_source/backend/app/connectors/fx_rates.py's Dunamu -> open
// exchange-rate -> Upbit-implied fallback chain.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"arbwatch/applog"
	"arbwatch/errs"
	"arbwatch/models"
)

const (
	dunamuURL       = "https://quotation-api-cdn.dunamu.com/v1/forex/recent?codes=FRX.KRWUSD"
	openERURL       = "https://open.er-api.com/v6/latest/USD"
	upbitBTCURL     = "https://api.upbit.com/v1/ticker?markets=KRW-BTC"
	binanceBTCURL   = "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT"
	sourceFallback  = "fallback"
	sourceLastGood  = "last_good"
	sourceDunamu    = "dunamu"
	sourceOpenER    = "exchangerate_api"
	sourceImpliedBT = "implied_btc"
)

// Resolver holds the last-known-good rate and the configured hard fallback.
type Resolver struct {
	client       *http.Client
	fallbackRate float64
	log          *applog.Entry

	lastGood models.FxRate
	hasGood  bool
}

// NewResolver builds a Resolver with the given hard fallback rate (used only
// when every source in the chain, and any last-known-good value, is
// unavailable).
func NewResolver(fallbackRate float64) *Resolver {
	return &Resolver{
		client:       &http.Client{Timeout: 5 * time.Second},
		fallbackRate: fallbackRate,
		log:          applog.Default().WithComponent("fx"),
	}
}

// Resolve tries each source in priority order, accepting the first value
// that passes the [1000, 2000] sanity band.
func (r *Resolver) Resolve(ctx context.Context) models.FxRate {
	fetchers := []struct {
		name string
		fn   func(context.Context) (float64, error)
	}{
		{sourceDunamu, r.fetchDunamu},
		{sourceOpenER, r.fetchOpenER},
		{sourceImpliedBT, r.fetchImpliedFromBTC},
	}

	for _, f := range fetchers {
		rate, err := f.fn(ctx)
		if err != nil {
			r.log.WithError(err).WithFields(applog.Fields{"source": f.name}).Warn("fx source failed")
			continue
		}
		if !models.InBand(rate) {
			sanityErr := errs.Wrap(errs.Sanity, f.name, fmt.Sprintf("rate %.2f outside [1000,2000] band", rate), nil)
			r.log.WithError(sanityErr).WithFields(applog.Fields{"source": f.name, "rate": rate}).Warn("fx source out of sanity band")
			continue
		}
		resolved := models.FxRate{KRWPerUSD: rate, Source: f.name, Stale: false, Timestamp: time.Now()}
		r.lastGood = resolved
		r.hasGood = true
		return resolved
	}

	if r.hasGood {
		stale := r.lastGood
		stale.Source = sourceLastGood
		stale.Stale = true
		r.log.Warn("all fx sources failed, using last known good value")
		return stale
	}

	r.log.WithFields(applog.Fields{"rate": r.fallbackRate}).Warn("all fx sources failed, no last-good value; using configured fallback")
	return models.FxRate{KRWPerUSD: r.fallbackRate, Source: sourceFallback, Stale: true, Timestamp: time.Now()}
}

func (r *Resolver) fetchDunamu(ctx context.Context) (float64, error) {
	var payload []struct {
		BasePrice float64 `json:"basePrice"`
	}
	if err := r.getJSON(ctx, dunamuURL, &payload); err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		return 0, errs.Wrap(errs.Decode, sourceDunamu, "empty response", nil)
	}
	return payload[0].BasePrice, nil
}

func (r *Resolver) fetchOpenER(ctx context.Context) (float64, error) {
	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := r.getJSON(ctx, openERURL, &payload); err != nil {
		return 0, err
	}
	rate, ok := payload.Rates["KRW"]
	if !ok || rate <= 0 {
		return 0, errs.Wrap(errs.Decode, sourceOpenER, "no KRW rate", nil)
	}
	return rate, nil
}

func (r *Resolver) fetchImpliedFromBTC(ctx context.Context) (float64, error) {
	var upbit []struct {
		TradePrice float64 `json:"trade_price"`
	}
	if err := r.getJSON(ctx, upbitBTCURL, &upbit); err != nil {
		return 0, err
	}
	if len(upbit) == 0 || upbit[0].TradePrice <= 0 {
		return 0, errs.Wrap(errs.Decode, sourceImpliedBT, "upbit: no BTC price", nil)
	}

	var binance struct {
		Price string `json:"price"`
	}
	if err := r.getJSON(ctx, binanceBTCURL, &binance); err != nil {
		return 0, err
	}
	var binancePrice float64
	if _, err := fmt.Sscanf(binance.Price, "%f", &binancePrice); err != nil || binancePrice <= 0 {
		return 0, errs.Wrap(errs.Decode, sourceImpliedBT, "binance: no BTC price", nil)
	}

	return upbit[0].TradePrice / binancePrice, nil
}

func (r *Resolver) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.Invariant, url, "build request", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.Transient, url, "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.Wrap(errs.RateLimited, url, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return errs.Wrap(errs.Transient, url, fmt.Sprintf("non-OK status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errs.Wrap(errs.Decode, url, "decode body", err)
	}
	return nil
}
