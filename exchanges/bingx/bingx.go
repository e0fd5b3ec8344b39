// Package bingx implements the BingX spot connector. Grounded on the
// teacher's exchanges/bitget/bitget.go shape (public symbols + tickers
// REST-JSON idiom, no signing for market data), adapted to BingX's
// endpoint and payload shapes.
package bingx

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
	symbolsURL = "https://open-api.bingx.com/openApi/spot/v1/common/symbols"
	tickerURL  = "https://open-api.bingx.com/openApi/spot/v1/ticker/24hr"
)

// Connector implements exchanges.Connector and exchanges.SpotFetcher.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds a BingX connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(5, 10),
		log:     applog.Default().WithComponent("bingx"),
	}
}

func (c *Connector) Name() string { return "bingx" }

// Refresh fetches spot tickers and publishes them.
func (c *Connector) Refresh(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	spot, err := c.FetchSpotTickers(ctx)
	if err != nil {
		c.log.WithError(err).Warn("spot fetch failed")
		return err
	}
	snap.PublishTickers(spot)
	return nil
}

type symbolsResponse struct {
	Data struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
			Status int    `json:"status"`
		} `json:"symbols"`
	} `json:"data"`
}

type tickerResponse struct {
	Data []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
		BidPrice  string `json:"bidPrice"`
		AskPrice  string `json:"askPrice"`
	} `json:"data"`
}

// FetchSpotTickers implements exchanges.SpotFetcher. BingX symbols are
// dash-delimited ("BTC-USDT"); splitDash splits on the dash and base and
// quote are normalized separately.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var symbols symbolsResponse
	if err := exchanges.FetchJSON(ctx, c.client, symbolsURL, &symbols); err != nil {
		return nil, err
	}
	var tickers tickerResponse
	if err := exchanges.FetchJSON(ctx, c.client, tickerURL, &tickers); err != nil {
		return nil, err
	}

	active := make(map[string]bool, len(symbols.Data.Symbols))
	for _, s := range symbols.Data.Symbols {
		if s.Status == 1 {
			active[s.Symbol] = true
		}
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(tickers.Data))
	for _, t := range tickers.Data {
		if !active[t.Symbol] {
			continue
		}
		base, quote, ok := splitDash(t.Symbol)
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(base), normalize.Symbol(quote), models.Spot)
		tk := models.Ticker{Venue: "bingx", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(t.BidPrice); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(t.AskPrice); ask > 0 {
			tk.Ask = &ask
		}
		out = append(out, tk)
	}
	return out, nil
}

func splitDash(symbol string) (base, quote string, ok bool) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '-' {
			return symbol[:i], symbol[i+1:], true
		}
	}
	return "", "", false
}
