// Package bitget implements the Bitget spot connector. Grounded on the
// teacher's exchanges/bitget/bitget.go (public spot symbols/tickers/coins
// endpoints, no signing required), rewritten to publish into
// snapshot.Snapshot instead of a Postgres table.
package bitget

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
	marketListURL  = "https://api.bitget.com/api/v2/spot/public/symbols"
	tickerPriceURL = "https://api.bitget.com/api/v2/spot/market/tickers"
	networkInfoURL = "https://api.bitget.com/api/v2/spot/public/coins"
)

// Connector implements exchanges.Connector, exchanges.SpotFetcher, and
// exchanges.WalletFetcher (Bitget's coin-network endpoint is public, unlike
// Binance's signed one).
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds a Bitget connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(5, 10),
		log:     applog.Default().WithComponent("bitget"),
	}
}

func (c *Connector) Name() string { return "bitget" }

// Refresh fetches spot tickers and wallet network status and publishes both.
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

	wallets, err := c.FetchWalletState(ctx)
	if err != nil {
		c.log.WithError(err).Warn("wallet state fetch failed")
		fetchErrs = append(fetchErrs, err)
	} else {
		snap.PublishWallets(wallets)
	}

	return exchanges.WorstError(fetchErrs...)
}

type marketListResponse struct {
	Data []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"data"`
}

type tickerPriceResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		BidPr  string `json:"bidPr"`
		AskPr  string `json:"askPr"`
		LastPr string `json:"lastPr"`
	} `json:"data"`
}

// FetchSpotTickers implements exchanges.SpotFetcher.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var marketList marketListResponse
	if err := exchanges.FetchJSON(ctx, c.client, marketListURL, &marketList); err != nil {
		return nil, err
	}
	var tickerData tickerPriceResponse
	if err := exchanges.FetchJSON(ctx, c.client, tickerPriceURL, &tickerData); err != nil {
		return nil, err
	}

	priceMap := make(map[string]struct{ bid, ask, last string }, len(tickerData.Data))
	for _, t := range tickerData.Data {
		priceMap[t.Symbol] = struct{ bid, ask, last string }{t.BidPr, t.AskPr, t.LastPr}
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(marketList.Data))
	for _, sym := range marketList.Data {
		if sym.Status != "online" {
			continue
		}
		p, ok := priceMap[sym.Symbol]
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(p.last)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym.BaseCoin), normalize.Symbol(sym.QuoteCoin), models.Spot)
		t := models.Ticker{Venue: "bitget", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(p.bid); bid > 0 {
			t.Bid = &bid
		}
		if ask := exchanges.ParseFloat(p.ask); ask > 0 {
			t.Ask = &ask
		}
		out = append(out, t)
	}
	return out, nil
}

type networkInfoResponse struct {
	Data []struct {
		Coin   string `json:"coin"`
		Chains []struct {
			Withdrawable string `json:"withdrawable"`
			Rechargeable string `json:"rechargeable"`
		} `json:"chains"`
	} `json:"data"`
}

// FetchWalletState implements exchanges.WalletFetcher. A coin is treated as
// enabled if any of its chains is enabled.
func (c *Connector) FetchWalletState(ctx context.Context) ([]models.WalletState, error) {
	var info networkInfoResponse
	if err := exchanges.FetchJSON(ctx, c.client, networkInfoURL, &info); err != nil {
		return nil, err
	}

	out := make([]models.WalletState, 0, len(info.Data))
	for _, coin := range info.Data {
		deposit, withdraw := false, false
		for _, chain := range coin.Chains {
			deposit = deposit || chain.Rechargeable == "true"
			withdraw = withdraw || chain.Withdrawable == "true"
		}
		d, w := deposit, withdraw
		out = append(out, models.WalletState{
			Venue: "bitget", Asset: normalize.Symbol(coin.Coin), DepositEnabled: &d, WithdrawEnabled: &w,
		})
	}
	return out, nil
}
