// Package snapshot implements the fused, in-memory market-data read model:
// the only shared mutable state in arbwatch. Connectors publish by
// per-key replacement under a single mutex; detectors read a consistent,
// atomically-swapped immutable view for the duration of one tick, per
// spec.md §5. Grounded on Song-Mao-bittap-watch's single-writer order-book
// store, generalized to a concurrent multi-writer cache.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"arbwatch/models"
)

// View is an immutable point-in-time read of the snapshot, safe to share
// across concurrently-running detectors without locking.
type View struct {
	Tickers      map[models.Key]models.Ticker
	Funding      map[models.Key]models.FundingRate
	OpenInterest map[models.Key]models.OpenInterest
	FX           models.FxRate
	Wallets      map[walletKey]models.WalletState
	takenAt      time.Time
}

type walletKey struct {
	Venue string
	Asset string
}

// TickersFor returns every fresh ticker for symbol across all venues.
func (v View) TickersFor(symbol string, now time.Time, maxAge time.Duration) []models.Ticker {
	var out []models.Ticker
	for k, t := range v.Tickers {
		if k.Symbol != symbol {
			continue
		}
		if !t.Fresh(now, maxAge) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Wallet looks up tri-state deposit/withdraw flags, defaulting to unknown.
func (v View) Wallet(venue, asset string) models.WalletState {
	if ws, ok := v.Wallets[walletKey{Venue: venue, Asset: asset}]; ok {
		return ws
	}
	return models.WalletState{Venue: venue, Asset: asset}
}

// Snapshot is the long-lived, mutable fused market-data store. One instance
// lives per process. Writers hold the store's one mutex only for the
// duration of a publish; readers call View() to get a lock-free consistent
// snapshot for a whole detection tick.
type Snapshot struct {
	mu           sync.Mutex
	tickers      map[models.Key]models.Ticker
	funding      map[models.Key]models.FundingRate
	openInterest map[models.Key]models.OpenInterest
	fx           models.FxRate
	wallets      map[walletKey]models.WalletState

	cached atomic.Pointer[View]
}

// New builds an empty Snapshot.
func New() *Snapshot {
	s := &Snapshot{
		tickers:      make(map[models.Key]models.Ticker),
		funding:      make(map[models.Key]models.FundingRate),
		openInterest: make(map[models.Key]models.OpenInterest),
		wallets:      make(map[walletKey]models.WalletState),
	}
	s.rebuildCache()
	return s
}

// PublishTickers replaces the given venue's ticker entries. Only keys
// present in ticks are touched; other venues' entries are untouched.
func (s *Snapshot) PublishTickers(ticks []models.Ticker) {
	if len(ticks) == 0 {
		return
	}
	s.mu.Lock()
	for _, t := range ticks {
		s.tickers[models.Key{Venue: t.Venue, Symbol: t.Instrument.Symbol()}] = t
	}
	s.rebuildCacheLocked()
	s.mu.Unlock()
}

// PublishFunding replaces funding-rate entries.
func (s *Snapshot) PublishFunding(rates []models.FundingRate) {
	if len(rates) == 0 {
		return
	}
	s.mu.Lock()
	for _, r := range rates {
		s.funding[models.Key{Venue: r.Venue, Symbol: r.Instrument.Symbol()}] = r
	}
	s.rebuildCacheLocked()
	s.mu.Unlock()
}

// PublishOpenInterest replaces open-interest entries.
func (s *Snapshot) PublishOpenInterest(ois []models.OpenInterest) {
	if len(ois) == 0 {
		return
	}
	s.mu.Lock()
	for _, oi := range ois {
		s.openInterest[models.Key{Venue: oi.Venue, Symbol: oi.Instrument.Symbol()}] = oi
	}
	s.rebuildCacheLocked()
	s.mu.Unlock()
}

// PublishFX replaces the singleton FX rate.
func (s *Snapshot) PublishFX(rate models.FxRate) {
	s.mu.Lock()
	s.fx = rate
	s.rebuildCacheLocked()
	s.mu.Unlock()
}

// PublishWallets replaces wallet-state entries.
func (s *Snapshot) PublishWallets(states []models.WalletState) {
	if len(states) == 0 {
		return
	}
	s.mu.Lock()
	for _, w := range states {
		s.wallets[walletKey{Venue: w.Venue, Asset: w.Asset}] = w
	}
	s.rebuildCacheLocked()
	s.mu.Unlock()
}

// View returns the current consistent, immutable view. Cheap: it is a
// pointer load, not a copy-on-read.
func (s *Snapshot) View() View {
	return *s.cached.Load()
}

func (s *Snapshot) rebuildCache() {
	s.mu.Lock()
	s.rebuildCacheLocked()
	s.mu.Unlock()
}

// rebuildCacheLocked must be called with s.mu held. It copies the current
// maps into a fresh View and atomically swaps it in, so readers never see a
// torn write.
func (s *Snapshot) rebuildCacheLocked() {
	v := &View{
		Tickers:      make(map[models.Key]models.Ticker, len(s.tickers)),
		Funding:      make(map[models.Key]models.FundingRate, len(s.funding)),
		OpenInterest: make(map[models.Key]models.OpenInterest, len(s.openInterest)),
		Wallets:      make(map[walletKey]models.WalletState, len(s.wallets)),
		FX:           s.fx,
		takenAt:      time.Now(),
	}
	for k, t := range s.tickers {
		v.Tickers[k] = t
	}
	for k, f := range s.funding {
		v.Funding[k] = f
	}
	for k, oi := range s.openInterest {
		v.OpenInterest[k] = oi
	}
	for k, w := range s.wallets {
		v.Wallets[k] = w
	}
	s.cached.Store(v)
}
