// Package bithumb implements the Bithumb KRW spot connector, a secondary
// Korean-side feed for the kimchi-premium detector. Grounded on
// original_source/backend/app/connectors/bithumb_spot.py, generalized from
// its per-symbol orderbook loop to Bithumb's ALL_KRW ticker endpoint (one
// request for every KRW market instead of one per symbol).
package bithumb

import (
	"context"
	"encoding/json"
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

const allTickerURL = "https://api.bithumb.com/public/ticker/ALL_KRW"

// Connector implements exchanges.Connector and exchanges.SpotFetcher.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds a Bithumb connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(5, 10),
		log:     applog.Default().WithComponent("bithumb"),
	}
}

func (c *Connector) Name() string { return "bithumb" }

// Refresh fetches KRW spot tickers and publishes them.
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

type allTickerResponse struct {
	Status string                     `json:"status"`
	Data   map[string]json.RawMessage `json:"data"`
}

type tickerFields struct {
	BuyPrice     string `json:"buy_price"`
	SellPrice    string `json:"sell_price"`
	ClosingPrice string `json:"closing_price"`
}

// FetchSpotTickers implements exchanges.SpotFetcher. Bithumb's ALL_KRW
// response is a map keyed by base asset, with a "date" field mixed in
// alongside per-symbol entries; entries that don't decode as a ticker are
// skipped rather than treated as an error.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var resp allTickerResponse
	if err := exchanges.FetchJSON(ctx, c.client, allTickerURL, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(resp.Data))
	for asset, raw := range resp.Data {
		if strings.EqualFold(asset, "date") {
			continue
		}
		var t tickerFields
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		last := exchanges.ParseFloat(t.ClosingPrice)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(asset), "KRW", models.Spot)
		tk := models.Ticker{Venue: "bithumb", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(t.BuyPrice); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(t.SellPrice); ask > 0 {
			tk.Ask = &ask
		}
		out = append(out, tk)
	}
	return out, nil
}
