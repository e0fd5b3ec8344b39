// Package binance implements the Binance spot and USDT-margined perpetual
// connector. Grounded on the teacher's exchanges/binance/binance.go
// (fetchJSON/parseFloat idiom, exchangeInfo/ticker/premiumIndex endpoints,
// HMAC-signed asset-detail request for network status), rewritten to
// publish into snapshot.Snapshot instead of a Postgres table.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

const (
	exchangeInfoURL        = "https://api.binance.com/api/v3/exchangeInfo?permissions=SPOT&symbolStatus=TRADING"
	bookTickerURL          = "https://api.binance.com/api/v3/ticker/bookTicker"
	assetDetailURL         = "https://api.binance.com/sapi/v1/capital/config/getall"
	serverTimeURL          = "https://api.binance.com/api/v3/time"
	futuresExchangeInfoURL = "https://fapi.binance.com/fapi/v1/exchangeInfo"
	futuresBookTickerURL   = "https://fapi.binance.com/fapi/v1/ticker/bookTicker"
	premiumIndexURL        = "https://fapi.binance.com/fapi/v1/premiumIndex"
	openInterestURL        = "https://fapi.binance.com/futures/data/openInterestHist"
)

// Connector implements exchanges.Connector plus every fetcher Binance
// supports: spot, perp, funding, open interest, and (when credentialed)
// wallet state.
type Connector struct {
	client    *http.Client
	limiter   *rate.Limiter
	apiKey    string
	apiSecret string
	log       *applog.Entry
}

// New builds a Binance connector. apiKey/apiSecret may be empty; wallet
// state is then simply never published for this venue.
func New(apiKey, apiSecret string) *Connector {
	return &Connector{
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   exchanges.NewLimiter(5, 10),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		log:       applog.Default().WithComponent("binance"),
	}
}

func (c *Connector) Name() string { return "binance" }

// Refresh fetches spot, perp, funding, and OI data (and wallet state if
// credentialed) and publishes them all into snap.
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

	funding, err := c.FetchFundingRates(ctx)
	if err != nil {
		c.log.WithError(err).Warn("funding fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishFunding(funding)
	}

	oi, err := c.FetchOpenInterest(ctx)
	if err != nil {
		c.log.WithError(err).Warn("open interest fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishOpenInterest(oi)
	}

	if c.apiKey != "" && c.apiSecret != "" {
		wallets, err := c.FetchWalletState(ctx)
		if err != nil {
			c.log.WithError(err).Warn("wallet state fetch failed")
			fetchErrs = append(fetchErrs, err)
		} else {
			snap.PublishWallets(wallets)
		}
	}

	return exchanges.WorstError(fetchErrs...)
}

// ExchangeInfoResponse mirrors Binance's spot exchangeInfo shape.
type ExchangeInfoResponse struct {
	Symbols []struct {
		Symbol               string `json:"symbol"`
		BaseAsset            string `json:"baseAsset"`
		QuoteAsset           string `json:"quoteAsset"`
		IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
	} `json:"symbols"`
}

type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

// FetchSpotTickers implements exchanges.SpotFetcher.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var info ExchangeInfoResponse
	if err := exchanges.FetchJSON(ctx, c.client, exchangeInfoURL, &info); err != nil {
		return nil, fmt.Errorf("binance exchangeInfo: %w", err)
	}
	var tickers []bookTicker
	if err := exchanges.FetchJSON(ctx, c.client, bookTickerURL, &tickers); err != nil {
		return nil, fmt.Errorf("binance bookTicker: %w", err)
	}

	tickerMap := make(map[string]bookTicker, len(tickers))
	for _, t := range tickers {
		tickerMap[t.Symbol] = t
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if !sym.IsSpotTradingAllowed {
			continue
		}
		bt, ok := tickerMap[sym.Symbol]
		if !ok {
			continue
		}
		bid := exchanges.ParseFloat(bt.BidPrice)
		ask := exchanges.ParseFloat(bt.AskPrice)
		if bid <= 0 || ask <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym.BaseAsset), normalize.Symbol(sym.QuoteAsset), models.Spot)
		out = append(out, models.Ticker{
			Venue: "binance", Instrument: inst, Last: (bid + ask) / 2,
			Bid: &bid, Ask: &ask, Timestamp: now,
		})
	}
	return out, nil
}

// FuturesExchangeInfoResponse mirrors Binance's USDT-margined exchangeInfo shape.
type FuturesExchangeInfoResponse struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// FetchPerpTickers implements exchanges.PerpFetcher.
func (c *Connector) FetchPerpTickers(ctx context.Context) ([]models.Ticker, error) {
	var info FuturesExchangeInfoResponse
	if err := exchanges.FetchJSON(ctx, c.client, futuresExchangeInfoURL, &info); err != nil {
		return nil, fmt.Errorf("binance futures exchangeInfo: %w", err)
	}
	var tickers []bookTicker
	if err := exchanges.FetchJSON(ctx, c.client, futuresBookTickerURL, &tickers); err != nil {
		return nil, fmt.Errorf("binance futures bookTicker: %w", err)
	}

	symbolInfo := make(map[string]struct{ base, quote string }, len(info.Symbols))
	for _, sym := range info.Symbols {
		symbolInfo[sym.Symbol] = struct{ base, quote string }{sym.BaseAsset, sym.QuoteAsset}
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(tickers))
	for _, bt := range tickers {
		si, ok := symbolInfo[bt.Symbol]
		if !ok {
			continue
		}
		bid := exchanges.ParseFloat(bt.BidPrice)
		ask := exchanges.ParseFloat(bt.AskPrice)
		if bid <= 0 || ask <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(si.base), normalize.Symbol(si.quote), models.Perp)
		out = append(out, models.Ticker{
			Venue: "binance", Instrument: inst, Last: (bid + ask) / 2,
			Bid: &bid, Ask: &ask, Timestamp: now,
		})
	}
	return out, nil
}

type premiumIndexEntry struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// FetchFundingRates implements exchanges.FundingFetcher. Binance funding
// intervals are 8h; RatePerInterval is already on that basis.
func (c *Connector) FetchFundingRates(ctx context.Context) ([]models.FundingRate, error) {
	var entries []premiumIndexEntry
	if err := exchanges.FetchJSON(ctx, c.client, premiumIndexURL, &entries); err != nil {
		return nil, fmt.Errorf("binance premiumIndex: %w", err)
	}

	out := make([]models.FundingRate, 0, len(entries))
	for _, e := range entries {
		rate := exchanges.ParseFloat(e.LastFundingRate)
		base, ok := normalize.SplitQuote(normalize.Symbol(e.Symbol), "USDT")
		if !ok {
			continue
		}
		inst := models.NewInstrument(base, "USDT", models.Perp)
		out = append(out, models.FundingRate{
			Venue: "binance", Instrument: inst, RatePerInterval: rate, IntervalHours: 8,
			NextFundingTime: time.UnixMilli(e.NextFundingTime),
		})
	}
	return out, nil
}

type openInterestHistEntry struct {
	Symbol               string `json:"symbol"`
	SumOpenInterestValue string `json:"sumOpenInterestValue"`
}

// FetchOpenInterest implements exchanges.OpenInterestFetcher.
func (c *Connector) FetchOpenInterest(ctx context.Context) ([]models.OpenInterest, error) {
	var entries []openInterestHistEntry
	if err := exchanges.FetchJSON(ctx, c.client, openInterestURL, &entries); err != nil {
		return nil, fmt.Errorf("binance openInterestHist: %w", err)
	}
	out := make([]models.OpenInterest, 0, len(entries))
	for _, e := range entries {
		base, ok := normalize.SplitQuote(normalize.Symbol(e.Symbol), "USDT")
		if !ok {
			continue
		}
		inst := models.NewInstrument(base, "USDT", models.Perp)
		out = append(out, models.OpenInterest{
			Venue: "binance", Instrument: inst, OIUSD: exchanges.ParseFloat(e.SumOpenInterestValue),
		})
	}
	return out, nil
}

// AssetDetail mirrors Binance's capital/config/getall response shape.
type AssetDetail struct {
	Coin        string `json:"coin"`
	NetworkList []struct {
		DepositEnable  bool `json:"depositEnable"`
		WithdrawEnable bool `json:"withdrawEnable"`
	} `json:"networkList"`
}

// FetchWalletState implements exchanges.WalletFetcher, mirroring the
// teacher's HMAC-signed getall asset-detail request. A coin is treated as
// enabled if any of its networks is enabled.
func (c *Connector) FetchWalletState(ctx context.Context) ([]models.WalletState, error) {
	serverTime, err := c.getServerTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance server time: %w", err)
	}

	queryString := fmt.Sprintf("timestamp=%d", serverTime.UnixMilli())
	signature := c.sign(queryString)
	url := fmt.Sprintf("%s?%s&signature=%s", assetDetailURL, queryString, signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Invariant, "binance", "build asset detail request", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "binance", "asset detail request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.Wrap(errs.RateLimited, "binance", fmt.Sprintf("asset detail status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Wrap(errs.Transient, "binance", fmt.Sprintf("asset detail non-OK status %d", resp.StatusCode), nil)
	}

	var assets []AssetDetail
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, errs.Wrap(errs.Decode, "binance", "asset detail decode", err)
	}

	out := make([]models.WalletState, 0, len(assets))
	for _, a := range assets {
		deposit, withdraw := false, false
		for _, n := range a.NetworkList {
			deposit = deposit || n.DepositEnable
			withdraw = withdraw || n.WithdrawEnable
		}
		d, w := deposit, withdraw
		out = append(out, models.WalletState{
			Venue: "binance", Asset: normalize.Symbol(a.Coin), DepositEnabled: &d, WithdrawEnabled: &w,
		})
	}
	return out, nil
}

func (c *Connector) getServerTime(ctx context.Context) (time.Time, error) {
	var result struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := exchanges.FetchJSON(ctx, c.client, serverTimeURL, &result); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(result.ServerTime), nil
}

func (c *Connector) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
