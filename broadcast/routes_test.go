package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOpportunitiesRouteWrapsResponseInEnvelope(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	hub.Publish([]models.Opportunity{{ID: "a", Kind: models.SpotCross, Symbol: "BTCUSDT", SpreadBps: 12}})
	router := SetupRouter(hub)

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Opportunities []models.Opportunity `json:"opportunities"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Opportunities, 1)
	assert.Equal(t, "a", body.Opportunities[0].ID)
}

func TestMonitorSpreadsRouteReturnsSummaryEnvelope(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	hub.Publish([]models.Opportunity{
		{
			ID: "a", Kind: models.SpotCross, Symbol: "BTCUSDT", SpreadBps: 30,
			Legs: []models.Leg{{Venue: "binance"}, {Venue: "okx"}},
		},
		{
			ID: "b", Kind: models.SpotCross, Symbol: "ETHUSDT", SpreadBps: 10,
			Legs: []models.Leg{{Venue: "binance"}, {Venue: "bybit"}},
		},
		{
			ID: "c", Kind: models.KimchiPremium, Symbol: "BTC/KRW vs BTC/USDT", SpreadBps: 200,
			Metadata: map[string]any{"premium_pct": 2.0, "fx_rate": 1450.0},
			Legs:     []models.Leg{{Venue: "upbit"}, {Venue: "binance"}},
		},
	})
	router := SetupRouter(hub)

	req := httptest.NewRequest(http.MethodGet, "/api/monitor/spreads?minCex=20", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Total   int                        `json:"total"`
		ByKind  map[string]kindStat        `json:"by_kind"`
		USDKRW  float64                    `json:"usd_krw"`
		ExCount map[string]int             `json:"exchange_counts"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))

	assert.Equal(t, 2, body.Total, "minCex=20 keeps the 30bps spot-cross spread and the kimchi opportunity, drops the 10bps one")
	assert.Equal(t, 1450.0, body.USDKRW)
	assert.Equal(t, 1, body.ByKind[string(models.SpotCross)].Count)
	assert.Equal(t, 1, body.ByKind[string(models.KimchiPremium)].Count)
	assert.Equal(t, 1, body.ExCount["upbit"])
}

func TestMonitorSpreadsRouteFiltersByType(t *testing.T) {
	hub := NewHub(time.Second, time.Minute)
	hub.Publish([]models.Opportunity{
		{ID: "a", Kind: models.SpotCross, SpreadBps: 30},
		{ID: "b", Kind: models.FundingArb, SpreadBps: 5, Metadata: map[string]any{"funding_diff_8h_pct": 0.2}},
	})
	router := SetupRouter(hub)

	req := httptest.NewRequest(http.MethodGet, "/api/monitor/spreads?types=funding_arb", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Total  int                 `json:"total"`
		ByKind map[string]kindStat `json:"by_kind"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	_, hasSpotCross := body.ByKind[string(models.SpotCross)]
	assert.False(t, hasSpotCross)
}
