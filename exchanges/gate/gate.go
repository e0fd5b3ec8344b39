// Package gate implements the Gate.io spot connector. Grounded on the
// teacher's exchanges/gate/gate.go (currency_pairs/tickers endpoint
// shapes), rewritten to publish into snapshot.Snapshot instead of a
// Postgres table.
package gate

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
	baseURL          = "https://api.gateio.ws/api/v4"
	currencyPairsURL = baseURL + "/spot/currency_pairs"
	tickerPricesURL  = baseURL + "/spot/tickers"
)

// Connector implements exchanges.Connector and exchanges.SpotFetcher.
type Connector struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *applog.Entry
}

// New builds a Gate.io connector.
func New() *Connector {
	return &Connector{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: exchanges.NewLimiter(5, 10),
		log:     applog.Default().WithComponent("gate"),
	}
}

func (c *Connector) Name() string { return "gate" }

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

type currencyPair struct {
	ID          string `json:"id"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
	TradeStatus string `json:"trade_status"`
}

type tickerEntry struct {
	CurrencyPair string `json:"currency_pair"`
	LastPrice    string `json:"last"`
	LowestAsk    string `json:"lowest_ask"`
	HighestBid   string `json:"highest_bid"`
}

// FetchSpotTickers implements exchanges.SpotFetcher.
func (c *Connector) FetchSpotTickers(ctx context.Context) ([]models.Ticker, error) {
	var currencyPairs []currencyPair
	if err := exchanges.FetchJSON(ctx, c.client, currencyPairsURL, &currencyPairs); err != nil {
		return nil, err
	}
	var tickers []tickerEntry
	if err := exchanges.FetchJSON(ctx, c.client, tickerPricesURL, &tickers); err != nil {
		return nil, err
	}

	priceMap := make(map[string]tickerEntry, len(tickers))
	for _, t := range tickers {
		priceMap[t.CurrencyPair] = t
	}

	now := time.Now()
	out := make([]models.Ticker, 0, len(currencyPairs))
	for _, sym := range currencyPairs {
		if sym.TradeStatus != "tradable" {
			continue
		}
		t, ok := priceMap[sym.ID]
		if !ok {
			continue
		}
		last := exchanges.ParseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		inst := models.NewInstrument(normalize.Symbol(sym.Base), normalize.Symbol(sym.Quote), models.Spot)
		tk := models.Ticker{Venue: "gate", Instrument: inst, Last: last, Timestamp: now}
		if bid := exchanges.ParseFloat(t.HighestBid); bid > 0 {
			tk.Bid = &bid
		}
		if ask := exchanges.ParseFloat(t.LowestAsk); ask > 0 {
			tk.Ask = &ask
		}
		out = append(out, tk)
	}
	return out, nil
}
