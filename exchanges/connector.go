// Package exchanges defines the capability-subset connector interfaces
// every venue package implements, plus the shared HTTP fetch/rate-limit
// helpers ported from the teacher's per-venue fetchJSON/parseFloat idiom.
package exchanges

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"arbwatch/errs"
	"arbwatch/models"
	"arbwatch/snapshot"
)

// SpotFetcher is implemented by venues offering centralized spot markets.
type SpotFetcher interface {
	FetchSpotTickers(ctx context.Context) ([]models.Ticker, error)
}

// PerpFetcher is implemented by venues offering perpetual futures.
type PerpFetcher interface {
	FetchPerpTickers(ctx context.Context) ([]models.Ticker, error)
}

// FundingFetcher is implemented by perp venues exposing funding rates.
type FundingFetcher interface {
	FetchFundingRates(ctx context.Context) ([]models.FundingRate, error)
}

// OpenInterestFetcher is implemented by perp venues exposing open interest.
type OpenInterestFetcher interface {
	FetchOpenInterest(ctx context.Context) ([]models.OpenInterest, error)
}

// WalletFetcher is implemented by venues exposing deposit/withdraw status
// endpoints, whether signed or public.
type WalletFetcher interface {
	FetchWalletState(ctx context.Context) ([]models.WalletState, error)
}

// FXFetcher is implemented by the (rare) connector that can also resolve an
// FX rate as a side effect of its normal market data (e.g. a KRW venue's
// USDT market implies KRW/USD).
type FXFetcher interface {
	FetchFX(ctx context.Context) (*models.FxRate, error)
}

// Connector is what the scheduler drives: every venue package publishes
// whatever fetchers it implements into the shared Snapshot on each
// Refresh.
type Connector interface {
	Name() string
	Refresh(ctx context.Context, snap *snapshot.Snapshot) error
}

// FetchJSON performs an HTTP GET and decodes the JSON body into target,
// mirroring the teacher's per-venue fetchJSON helper but context-aware and
// error-returning instead of channel-based. Every failure is classified
// into the errs taxonomy so the scheduler can branch on category (a 429
// backs off harder than a plain network hiccup) without string matching.
func FetchJSON(ctx context.Context, client *http.Client, rawURL string, target interface{}) error {
	venue := hostOf(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Wrap(errs.Invariant, venue, "build request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return errs.Wrap(errs.Transient, venue, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.Wrap(errs.RateLimited, venue, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return errs.Wrap(errs.Transient, venue, fmt.Sprintf("non-OK status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.Transient, venue, "read body", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errs.Wrap(errs.Decode, venue, "unmarshal body", err)
	}
	return nil
}

// hostOf extracts a short venue label from a request URL for error
// classification, falling back to the raw URL if it doesn't parse.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// ParseFloat mirrors the teacher's parseFloat helper: best-effort string to
// float64, returning 0 on failure rather than propagating a parse error for
// every malformed field in a large exchange response.
func ParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// NewLimiter builds a token-bucket rate limiter for one connector, grounded
// on rahjooh-CryptoTrade's per-connector golang.org/x/time/rate usage.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// WorstError picks the most actionable of a Refresh call's per-fetch errors
// so a connector can isolate failures between its own sub-fetches (publish
// whatever succeeded) while still surfacing one classified error to the
// scheduler. RateLimited outranks everything else since it drives backoff;
// Decode and Transient are reported but do not need special scheduling.
func WorstError(fetchErrs ...error) error {
	var worst error
	rank := func(err error) int {
		switch {
		case errors.Is(err, errs.RateLimited):
			return 3
		case errors.Is(err, errs.Decode):
			return 2
		case err != nil:
			return 1
		default:
			return 0
		}
	}
	worstRank := 0
	for _, err := range fetchErrs {
		if r := rank(err); r > worstRank {
			worstRank = r
			worst = err
		}
	}
	return worst
}
