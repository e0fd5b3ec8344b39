package fx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"arbwatch/models"
)

// A canceled context makes every source fetch fail immediately without ever
// reaching the network, so these tests exercise the fallback chain offline.

func TestResolverFallsBackWhenNoSourceAndNoLastGood(t *testing.T) {
	r := NewResolver(1450.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rate := r.Resolve(ctx)
	assert.Equal(t, sourceFallback, rate.Source)
	assert.Equal(t, 1450.0, rate.KRWPerUSD)
	assert.True(t, rate.Stale)
}

func TestResolverUsesLastGoodWhenSourcesFail(t *testing.T) {
	r := NewResolver(1450.0)
	r.lastGood = models.FxRate{KRWPerUSD: 1380.5, Source: sourceDunamu}
	r.hasGood = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rate := r.Resolve(ctx)
	assert.Equal(t, sourceLastGood, rate.Source)
	assert.Equal(t, 1380.5, rate.KRWPerUSD)
	assert.True(t, rate.Stale)
}

func TestFxRateInBandSanityCheck(t *testing.T) {
	assert.True(t, models.InBand(1400))
	assert.False(t, models.InBand(999))
	assert.False(t, models.InBand(2001))
}
