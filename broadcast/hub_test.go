package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/models"
)

func TestHubSnapshotEmptyBeforeFirstPublish(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	opps, fresh := hub.Snapshot()
	assert.Nil(t, opps)
	assert.False(t, fresh)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHubPublishUpdatesSnapshot(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	published := []models.Opportunity{
		{ID: "a", Kind: models.SpotCross, Symbol: "BTCUSDT", SpreadBps: 12},
	}
	hub.Publish(published)

	got, fresh := hub.Snapshot()
	require.Len(t, got, 1)
	assert.True(t, fresh)
	assert.Equal(t, "a", got[0].ID)
}

func TestHubSnapshotGoesStaleAfterTTL(t *testing.T) {
	hub := NewHub(time.Second, 5*time.Millisecond)
	hub.Publish([]models.Opportunity{{ID: "a"}})

	time.Sleep(20 * time.Millisecond)

	_, fresh := hub.Snapshot()
	assert.False(t, fresh)
}

func TestHubPublishEmptyTickPreservesLastGood(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	hub.Publish([]models.Opportunity{{ID: "a"}})
	hub.Publish(nil)

	got, fresh := hub.Snapshot()
	require.Len(t, got, 1, "an empty detection tick must not clobber the last-good snapshot")
	assert.Equal(t, "a", got[0].ID)
	assert.True(t, fresh)
}

func TestHubPublishOverwritesPreviousSnapshot(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	hub.Publish([]models.Opportunity{{ID: "a"}})
	hub.Publish([]models.Opportunity{{ID: "b"}})

	got, _ := hub.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}
