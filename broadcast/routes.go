package broadcast

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"arbwatch/applog"
	"arbwatch/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetupRouter builds the gin.Engine serving the HTTP snapshot and WebSocket
// endpoints, generalized from the teacher's api/routes.go: same
// gin.Default()+cors.New() setup and the same c.Query/c.DefaultQuery/
// c.QueryArray parameter idiom, applied as in-memory filter predicates
// instead of building a SQL WHERE clause.
func SetupRouter(hub *Hub) *gin.Engine {
	router := gin.Default()
	log := applog.Default().WithComponent("broadcast")

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Data-Stale"},
		AllowCredentials: true,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "arbwatch detector is running"})
	})

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"subscribers": hub.SubscriberCount(),
		})
	})

	router.GET("/api/opportunities", func(c *gin.Context) {
		opps, fresh := hub.Snapshot()
		if !fresh {
			c.Header("X-Data-Stale", "true")
		}
		filtered := filterOpportunities(opps, c)
		c.JSON(http.StatusOK, gin.H{"opportunities": filtered})
	})

	router.GET("/api/signals/tether-bot", func(c *gin.Context) {
		opps, fresh := hub.Snapshot()
		if !fresh {
			c.Header("X-Data-Stale", "true")
		}
		var kimchi []models.Opportunity
		for _, o := range opps {
			if o.Kind == models.KimchiPremium {
				kimchi = append(kimchi, o)
			}
		}
		c.JSON(http.StatusOK, filterOpportunities(kimchi, c))
	})

	router.GET("/api/monitor/spreads", func(c *gin.Context) {
		opps, fresh := hub.Snapshot()
		if !fresh {
			c.Header("X-Data-Stale", "true")
		}
		filtered := filterSpreads(opps, c)
		c.JSON(http.StatusOK, spreadSummary(filtered, opps))
	})

	router.GET("/api/ws/opportunities", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		unregister := hub.Register(conn)
		defer unregister()

		if opps, _ := hub.Snapshot(); opps != nil {
			hub.Publish(opps)
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	return router
}

// filterOpportunities applies in-memory query-param filters, replacing the
// teacher's dynamic SQL WHERE-clause building with predicate functions over
// an already-fetched slice.
func filterOpportunities(opps []models.Opportunity, c *gin.Context) []models.Opportunity {
	kinds := c.QueryArray("type")
	symbols := c.QueryArray("symbol")
	exchangesParam := c.DefaultQuery("exchanges", "")
	var exchanges []string
	if exchangesParam != "" {
		exchanges = strings.Split(exchangesParam, ",")
	}
	minSpreadBps := parseFloatOr(c.Query("minSpreadBps"), 0)
	maxSpreadBps := parseFloatOr(c.Query("maxSpreadBps"), 0)
	topRows := c.Query("topRows")

	out := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if len(kinds) > 0 && !containsString(kinds, string(o.Kind)) {
			continue
		}
		if len(symbols) > 0 && !containsString(symbols, o.Symbol) {
			continue
		}
		if len(exchanges) > 0 && !anyLegOnExchange(o, exchanges) {
			continue
		}
		if minSpreadBps != 0 && absFloat(o.SpreadBps) < minSpreadBps {
			continue
		}
		if maxSpreadBps != 0 && absFloat(o.SpreadBps) > maxSpreadBps {
			continue
		}
		out = append(out, o)
	}

	if topRows != "" && strings.ToLower(topRows) != "all" {
		if n, err := strconv.Atoi(topRows); err == nil && n >= 0 && n < len(out) {
			out = out[:n]
		}
	}

	return out
}

// filterSpreads applies the unified-spread query params from spec §6:
// minGap gates the perp-side gap detectors (spot/perp basis and
// perp/perp spread), minCex gates cross-exchange spot spreads, minKimchi
// gates the kimchi premium magnitude, minFunding gates the funding-rate
// differential, and types restricts which detector kinds are considered
// at all.
func filterSpreads(opps []models.Opportunity, c *gin.Context) []models.Opportunity {
	types := splitCommaParam(c.QueryArray("types"))
	minGap := parseFloatOr(c.Query("minGap"), 0)
	minKimchi := parseFloatOr(c.Query("minKimchi"), 0)
	minFunding := parseFloatOr(c.Query("minFunding"), 0)
	minCex := parseFloatOr(c.Query("minCex"), 0)

	out := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if len(types) > 0 && !containsString(types, string(o.Kind)) {
			continue
		}
		switch o.Kind {
		case models.SpotCross:
			if minCex != 0 && absFloat(o.SpreadBps) < minCex {
				continue
			}
		case models.SpotPerpBasis, models.PerpPerpSpread:
			if minGap != 0 && absFloat(o.SpreadBps) < minGap {
				continue
			}
		case models.KimchiPremium:
			if minKimchi != 0 && absFloat(metadataFloat(o, "premium_pct")) < minKimchi {
				continue
			}
		case models.FundingArb:
			if minFunding != 0 && absFloat(metadataFloat(o, "funding_diff_8h_pct")) < minFunding {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

// kindStat holds the per-kind summary stats served by /api/monitor/spreads.
type kindStat struct {
	Count int     `json:"count"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// spreadSummary builds the summary-stat envelope mandated by spec §6:
// total, by_kind (count/max/avg of |spread_bps| per detector kind),
// usd_krw (the FX rate carried by the most recent kimchi opportunity, if
// any), and exchange_counts (how many legs, across the filtered set, sit
// on each venue).
func spreadSummary(filtered, all []models.Opportunity) gin.H {
	byKind := make(map[string]*kindStat)
	exchangeCounts := make(map[string]int)
	for _, o := range filtered {
		stat, ok := byKind[string(o.Kind)]
		if !ok {
			stat = &kindStat{}
			byKind[string(o.Kind)] = stat
		}
		mag := absFloat(o.SpreadBps)
		stat.Count++
		stat.Avg += mag
		if mag > stat.Max {
			stat.Max = mag
		}
		for _, leg := range o.Legs {
			exchangeCounts[leg.Venue]++
		}
	}
	for _, stat := range byKind {
		if stat.Count > 0 {
			stat.Avg = stat.Avg / float64(stat.Count)
		}
	}

	var usdKRW float64
	for _, o := range all {
		if o.Kind == models.KimchiPremium {
			usdKRW = metadataFloat(o, "fx_rate")
			break
		}
	}

	return gin.H{
		"total":           len(filtered),
		"by_kind":         byKind,
		"usd_krw":         usdKRW,
		"exchange_counts": exchangeCounts,
	}
}

// metadataFloat reads a float64 out of an Opportunity's free-form metadata
// map, returning 0 if the key is absent or holds a different type.
func metadataFloat(o models.Opportunity, key string) float64 {
	if o.Metadata == nil {
		return 0
	}
	v, ok := o.Metadata[key].(float64)
	if !ok {
		return 0
	}
	return v
}

// splitCommaParam accepts either repeated query params (types=a&types=b)
// or a single comma-separated value (types=a,b), matching how the teacher's
// exchanges filter is parsed.
func splitCommaParam(values []string) []string {
	if len(values) == 1 && strings.Contains(values[0], ",") {
		return strings.Split(values[0], ",")
	}
	return values
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func anyLegOnExchange(o models.Opportunity, exchanges []string) bool {
	for _, leg := range o.Legs {
		if containsString(exchanges, leg.Venue) {
			return true
		}
	}
	return false
}

func parseFloatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
