// Package config loads arbwatch's environment-driven configuration, the way
// the teacher's config package loads DatabaseURL/APIPort via godotenv, but
// enumerating the fuller settings surface the opportunity engine needs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"arbwatch/allocator"
)

// VenueCredentials holds an optional read-only API key/secret pair for a
// venue that needs signed endpoints (e.g. Binance wallet/network status).
type VenueCredentials struct {
	APIKey    string
	APISecret string
}

// Config is the small struct the core consumes; everything outside it
// (auth, persistence, order execution, UI, orchestration) is an external
// collaborator's concern.
type Config struct {
	// Ambient
	LogLevel  string
	LogFormat string
	APIPort   string

	// Venue toggles and universe
	EnableVenue    map[string]bool
	TradingSymbols []string
	Credentials    map[string]VenueCredentials

	// Timing
	DetectInterval         time.Duration
	ConnectorTimeout       time.Duration
	SubscriberWriteTimeout time.Duration
	FXRefreshInterval      time.Duration
	StaleTTL               time.Duration
	MaxAge                 time.Duration
	LastGoodTTL            time.Duration
	AlertTTL               time.Duration

	// Detection thresholds
	MinOIUSD               float64
	MinFunding8hPct        float64
	MinBasisBps            float64
	MinSpreadBps           float64
	MinKimchiPct           float64
	MaxCombinedSpreadBps   float64
	MaxSpreadBps           float64
	KimchiDeviationPct     float64
	MinKimchiAllocationPct float64
	FeeBpsDefault          float64
	SlippageBps            float64
	MaxOpportunities       int
	SimulatedNotionalUSD   float64

	// Capital allocation
	TetherTotalEquityUSD float64
	AllocationCurve      []allocator.Breakpoint

	// FX
	FXFallbackKRWPerUSD float64
}

// Load reads configuration from a .env file (if present) and the process
// environment, applying the spec's documented defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is not fatal, matches the teacher's intent

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		APIPort:   getEnv("API_PORT", ":8080"),

		EnableVenue: map[string]bool{
			"binance":     getBoolEnv("ENABLE_BINANCE", true),
			"bybit":       getBoolEnv("ENABLE_BYBIT", true),
			"okx":         getBoolEnv("ENABLE_OKX", true),
			"upbit":       getBoolEnv("ENABLE_UPBIT", true),
			"bithumb":     getBoolEnv("ENABLE_BITHUMB", true),
			"gate":        getBoolEnv("ENABLE_GATE", true),
			"bitget":      getBoolEnv("ENABLE_BITGET", true),
			"bingx":       getBoolEnv("ENABLE_BINGX", true),
			"hyperliquid": getBoolEnv("ENABLE_HYPERLIQUID", false),
			"synthetix":   getBoolEnv("ENABLE_SYNTHETIX", false),
		},
		TradingSymbols: getListEnv("TRADING_SYMBOLS", nil),
		Credentials: map[string]VenueCredentials{
			"binance": {
				APIKey:    getEnv("API_KEY_BINANCE", ""),
				APISecret: getEnv("API_SECRET_BINANCE", ""),
			},
		},

		DetectInterval:         getDurationEnv("DETECT_INTERVAL", 3*time.Second),
		ConnectorTimeout:       getDurationEnv("CONNECTOR_TIMEOUT", 5*time.Second),
		SubscriberWriteTimeout: getDurationEnv("SUBSCRIBER_WRITE_TIMEOUT", 2*time.Second),
		FXRefreshInterval:      getDurationEnv("FX_REFRESH_INTERVAL", 60*time.Second),
		StaleTTL:               getDurationEnv("STALE_TTL", 30*time.Second),
		MaxAge:                 getDurationEnv("MAX_AGE", 10*time.Second),
		LastGoodTTL:            getDurationEnv("LAST_GOOD_TTL", 30*time.Second),
		AlertTTL:               getDurationEnv("ALERT_TTL", 60*time.Second),

		MinOIUSD:               getFloatEnv("MIN_OI_USD", 100_000),
		MinFunding8hPct:        getFloatEnv("MIN_FUNDING_8H_PCT", 0.01),
		MinBasisBps:            getFloatEnv("MIN_BASIS_BPS", 10),
		MinSpreadBps:           getFloatEnv("MIN_SPREAD_BPS", 5),
		MinKimchiPct:           getFloatEnv("MIN_KIMCHI_PCT", 0.5),
		MaxCombinedSpreadBps:   getFloatEnv("MAX_COMBINED_SPREAD_BPS", 20),
		MaxSpreadBps:           getFloatEnv("MAX_SPREAD_BPS", 500),
		KimchiDeviationPct:     getFloatEnv("KIMCHI_DEVIATION_PCT", 0.3),
		MinKimchiAllocationPct: getFloatEnv("MIN_KIMCHI_ALLOCATION_PCT", 5),
		FeeBpsDefault:          getFloatEnv("FEE_BPS_DEFAULT", 10),
		SlippageBps:            getFloatEnv("SLIPPAGE_BPS", 2),
		MaxOpportunities:       getIntEnv("MAX_OPPORTUNITIES", 200),
		SimulatedNotionalUSD:   getFloatEnv("SIMULATED_NOTIONAL_USD", 10000),

		TetherTotalEquityUSD: getFloatEnv("TETHER_TOTAL_EQUITY_USD", 100000),
		AllocationCurve:      defaultAllocationCurve(),

		FXFallbackKRWPerUSD: getFloatEnv("FX_FALLBACK_KRW_PER_USD", 1450),
	}

	return cfg, nil
}

func defaultAllocationCurve() []allocator.Breakpoint {
	return []allocator.Breakpoint{
		{PremiumPct: -5.0, AllocationPct: 100, Action: allocator.BuyKRW},
		{PremiumPct: -2.0, AllocationPct: 70, Action: allocator.BuyKRW},
		{PremiumPct: 0.0, AllocationPct: 20, Action: allocator.Flat},
		{PremiumPct: 2.0, AllocationPct: 25, Action: allocator.SellKRW},
		{PremiumPct: 5.0, AllocationPct: 75, Action: allocator.SellKRW},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getFloatEnv(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getListEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
