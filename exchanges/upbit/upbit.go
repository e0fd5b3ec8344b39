// Package upbit implements the Upbit KRW spot connector, the primary
// Korean-side feed for the kimchi-premium detector. Grounded on
// original_source/backend/app/connectors/upbit_spot.py (market discovery
// plus orderbook top-of-book), ported to the teacher's fetchJSON/parseFloat
// idiom against snapshot.Snapshot.
package upbit

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
	marketAllURL = "https://api.upbit.com/v1/market/all?isDetails=false"
	orderbookURL = "https://api.upbit.com/v1/orderbook?markets="
)

// Connector implements exchanges.Connector and exchanges.SpotFetcher.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds an Upbit connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(8, 10),
		log:     applog.Default().WithComponent("upbit"),
	}
}

func (c *Connector) Name() string { return "upbit" }

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

type marketInfo struct {
	Market string `json:"market"`
}

type orderbookEntry struct {
	Market         string `json:"market"`
	OrderbookUnits []struct {
		BidPrice float64 `json:"bid_price"`
		AskPrice float64 `json:"ask_price"`
	} `json:"orderbook_units"`
}

// FetchSpotTickers implements exchanges.SpotFetcher, taking top-of-book
// bid/ask from the orderbook endpoint the way the teacher-adjacent Python
// connector does, batched across every discovered KRW market in one call.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var markets []marketInfo
	if err := exchanges.FetchJSON(ctx, c.client, marketAllURL, &markets); err != nil {
		return nil, err
	}

	var krwMarkets []string
	for _, m := range markets {
		if strings.HasPrefix(m.Market, "KRW-") {
			krwMarkets = append(krwMarkets, m.Market)
		}
	}
	if len(krwMarkets) == 0 {
		return nil, nil
	}

	var books []orderbookEntry
	if err := exchanges.FetchJSON(ctx, c.client, orderbookURL+strings.Join(krwMarkets, ","), &books); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(books))
	for _, b := range books {
		base, quote, ok := normalize.SplitKRWMarket(b.Market)
		if !ok || len(b.OrderbookUnits) == 0 {
			continue
		}
		top := b.OrderbookUnits[0]
		if top.BidPrice <= 0 || top.AskPrice <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(base), normalize.Symbol(quote), models.Spot)
		bid, ask := top.BidPrice, top.AskPrice
		out = append(out, models.Ticker{
			Venue: "upbit", Instrument: inst, Last: (bid + ask) / 2, Bid: &bid, Ask: &ask, Timestamp: now,
		})
	}
	return out, nil
}
