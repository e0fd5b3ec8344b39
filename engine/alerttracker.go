package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"arbwatch/models"
)

// AlertState is the lifecycle state of a tracked opportunity signal.
type AlertState string

const (
	AlertOpen   AlertState = "open"
	AlertClosed AlertState = "closed"
)

// AlertTransition is a wire-visible OPEN/CLOSED event, layered on top of a
// tick's raw Opportunity list. Its ID is randomly generated: unlike an
// Opportunity's deterministic ID, a transition is inherently a one-time
// event and gains nothing from being a pure function of content.
type AlertTransition struct {
	ID         string             `json:"id"`
	Kind       models.OpportunityKind `json:"type"`
	Symbol     string             `json:"symbol"`
	Sign       int                `json:"sign"`
	State      AlertState         `json:"state"`
	SpreadBps  float64            `json:"spread_bps"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type alertKey struct {
	kind   models.OpportunityKind
	symbol string
	sign   int
}

type alertRecord struct {
	state     AlertState
	openedAt  time.Time
	updatedAt time.Time
}

// AlertTracker maintains OPEN/CLOSED transitions for opportunities keyed by
// (kind, symbol, sign(spread)), per spec.md §4.5.6. Sign reversal is treated
// as a new alert key (resolved open question, see DESIGN.md): the old
// opposite-sign alert is not seen on that tick, so the same Update that
// opens the new key closes it.
type AlertTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[alertKey]*alertRecord
}

// NewAlertTracker builds a tracker with the given expiry TTL.
func NewAlertTracker(ttl time.Duration) *AlertTracker {
	return &AlertTracker{ttl: ttl, records: make(map[alertKey]*alertRecord)}
}

// Update feeds one detection tick's opportunities through the state
// machine, returning the OPEN/CLOSED transitions that fired this tick. Any
// open alert not seen this tick is closed, and a closed alert's record is
// dropped once more than ttl has passed without it being seen again. An
// open alert that keeps appearing every tick stays open; ttl does not
// expire it.
func (a *AlertTracker) Update(opps []models.Opportunity, now time.Time) []AlertTransition {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[alertKey]bool, len(opps))
	var transitions []AlertTransition

	for _, o := range opps {
		key := alertKey{kind: o.Kind, symbol: o.Symbol, sign: sign(o.SpreadBps)}
		seen[key] = true
		rec, exists := a.records[key]
		if !exists {
			a.records[key] = &alertRecord{state: AlertOpen, openedAt: now, updatedAt: now}
			transitions = append(transitions, AlertTransition{
				ID: uuid.NewString(), Kind: o.Kind, Symbol: o.Symbol, Sign: key.sign,
				State: AlertOpen, SpreadBps: o.SpreadBps, OccurredAt: now,
			})
			continue
		}
		rec.updatedAt = now
		if rec.state == AlertClosed {
			rec.state = AlertOpen
			rec.openedAt = now
			transitions = append(transitions, AlertTransition{
				ID: uuid.NewString(), Kind: o.Kind, Symbol: o.Symbol, Sign: key.sign,
				State: AlertOpen, SpreadBps: o.SpreadBps, OccurredAt: now,
			})
		}
		// Same state as before: idempotent, no transition emitted.
	}

	for key, rec := range a.records {
		if seen[key] {
			continue
		}
		if rec.state == AlertOpen {
			rec.state = AlertClosed
			rec.updatedAt = now
			transitions = append(transitions, AlertTransition{
				ID: uuid.NewString(), Kind: key.kind, Symbol: key.symbol, Sign: key.sign,
				State: AlertClosed, SpreadBps: 0, OccurredAt: now,
			})
			continue
		}
		if now.Sub(rec.updatedAt) > a.ttl {
			delete(a.records, key)
		}
	}

	return transitions
}
