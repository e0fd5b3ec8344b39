package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/models"
)

func TestAlertTrackerOpenThenClose(t *testing.T) {
	tracker := NewAlertTracker(time.Minute)
	now := time.Now()

	opp := models.Opportunity{Kind: models.SpotCross, Symbol: "BTCUSDT", SpreadBps: 42}

	openTransitions := tracker.Update([]models.Opportunity{opp}, now)
	require.Len(t, openTransitions, 1)
	assert.Equal(t, AlertOpen, openTransitions[0].State)

	// Same opportunity present again: no new transition.
	sameTransitions := tracker.Update([]models.Opportunity{opp}, now.Add(time.Second))
	assert.Empty(t, sameTransitions)

	// Opportunity disappears: expect exactly one CLOSED transition.
	closeTransitions := tracker.Update(nil, now.Add(2*time.Second))
	require.Len(t, closeTransitions, 1)
	assert.Equal(t, AlertClosed, closeTransitions[0].State)
	assert.Equal(t, opp.Symbol, closeTransitions[0].Symbol)
}

func TestAlertTrackerSignReversalOpensNewAlert(t *testing.T) {
	tracker := NewAlertTracker(time.Minute)
	now := time.Now()

	positive := models.Opportunity{Kind: models.FundingArb, Symbol: "BTC/USDT:USDT", SpreadBps: 10}
	negative := models.Opportunity{Kind: models.FundingArb, Symbol: "BTC/USDT:USDT", SpreadBps: -10}

	first := tracker.Update([]models.Opportunity{positive}, now)
	require.Len(t, first, 1)

	// A sign-flipped opportunity is a distinct alert key: expect the old one
	// to close and a new one to open in the same tick.
	second := tracker.Update([]models.Opportunity{negative}, now.Add(time.Second))
	require.Len(t, second, 2)

	states := map[AlertState]int{}
	for _, tr := range second {
		states[tr.State]++
	}
	assert.Equal(t, 1, states[AlertOpen])
	assert.Equal(t, 1, states[AlertClosed])
}

func TestAlertTrackerExpiresClosedAlertsAfterTTL(t *testing.T) {
	tracker := NewAlertTracker(10 * time.Millisecond)
	now := time.Now()
	opp := models.Opportunity{Kind: models.SpotCross, Symbol: "ETHUSDT", SpreadBps: 15}

	tracker.Update([]models.Opportunity{opp}, now)
	tracker.Update(nil, now.Add(time.Millisecond)) // closes it

	// Long after TTL, with nothing tracked, no further transitions fire for
	// the same key: it was pruned rather than staying closed forever.
	transitions := tracker.Update(nil, now.Add(time.Hour))
	assert.Empty(t, transitions)

	require.Len(t, tracker.records, 0)
}
