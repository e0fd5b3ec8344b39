package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbwatch/applog"
	"arbwatch/broadcast"
	"arbwatch/config"
	"arbwatch/engine"
	"arbwatch/exchanges"
	"arbwatch/exchanges/binance"
	"arbwatch/exchanges/bingx"
	"arbwatch/exchanges/bitget"
	"arbwatch/exchanges/bithumb"
	"arbwatch/exchanges/bybit"
	"arbwatch/exchanges/gate"
	"arbwatch/exchanges/hyperliquid"
	"arbwatch/exchanges/okx"
	"arbwatch/exchanges/synthetix"
	"arbwatch/exchanges/upbit"
	"arbwatch/fx"
	"arbwatch/scheduler"
	"arbwatch/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		applog.Default().WithError(err).Fatal("error loading configuration")
	}
	if err := applog.Default().Configure(cfg.LogLevel, cfg.LogFormat, ""); err != nil {
		applog.Default().WithError(err).Fatal("error configuring logger")
	}
	log := applog.Default().WithComponent("main")

	snap := snapshot.New()

	connectors := buildConnectors(cfg)

	driver, err := scheduler.NewDriver()
	if err != nil {
		log.WithError(err).Fatal("error creating scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, c := range connectors {
		c := c
		err := driver.Register(ctx, scheduler.Job{
			Name:     c.Name(),
			Interval: cfg.DetectInterval,
			Run: func(runCtx context.Context) error {
				tctx, tcancel := context.WithTimeout(runCtx, cfg.ConnectorTimeout)
				defer tcancel()
				return c.Refresh(tctx, snap)
			},
		})
		if err != nil {
			log.WithError(err).WithFields(applog.Fields{"connector": c.Name()}).Fatal("error scheduling connector job")
		}
	}

	resolver := fx.NewResolver(cfg.FXFallbackKRWPerUSD)
	if err := driver.Register(ctx, scheduler.Job{
		Name:     "fx",
		Interval: cfg.FXRefreshInterval,
		Run: func(runCtx context.Context) error {
			tctx, tcancel := context.WithTimeout(runCtx, cfg.ConnectorTimeout)
			defer tcancel()
			rate := resolver.Resolve(tctx)
			snap.PublishFX(rate)
			return nil
		},
	}); err != nil {
		log.WithError(err).Fatal("error scheduling fx job")
	}

	eng := engine.New(cfg, snap)
	hub := broadcast.NewHub(cfg.SubscriberWriteTimeout, cfg.LastGoodTTL)
	if err := driver.Register(ctx, scheduler.Job{
		Name:     "engine-tick",
		Interval: cfg.DetectInterval,
		Run: func(runCtx context.Context) error {
			opps := eng.Tick(runCtx)
			hub.Publish(opps)
			return nil
		},
	}); err != nil {
		log.WithError(err).Fatal("error scheduling engine tick job")
	}

	driver.Start()
	log.Info("scheduler started")

	router := broadcast.SetupRouter(hub)
	go func() {
		log.WithFields(applog.Fields{"addr": cfg.APIPort}).Info("starting API server")
		if err := router.Run(cfg.APIPort); err != nil {
			log.WithError(err).Fatal("api server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancel()
	if err := driver.Shutdown(); err != nil {
		log.WithError(err).Warn("error shutting down scheduler")
	}
	time.Sleep(200 * time.Millisecond)
}

// buildConnectors constructs one exchanges.Connector per enabled venue,
// following the teacher's pattern of building an updater map from
// cfg-driven toggles before handing it to the scheduler.
func buildConnectors(cfg *config.Config) []exchanges.Connector {
	var out []exchanges.Connector

	if cfg.EnableVenue["binance"] {
		creds := cfg.Credentials["binance"]
		out = append(out, binance.New(creds.APIKey, creds.APISecret))
	}
	if cfg.EnableVenue["bybit"] {
		out = append(out, bybit.New())
	}
	if cfg.EnableVenue["okx"] {
		out = append(out, okx.New())
	}
	if cfg.EnableVenue["upbit"] {
		out = append(out, upbit.New())
	}
	if cfg.EnableVenue["bithumb"] {
		out = append(out, bithumb.New())
	}
	if cfg.EnableVenue["gate"] {
		out = append(out, gate.New())
	}
	if cfg.EnableVenue["bitget"] {
		out = append(out, bitget.New())
	}
	if cfg.EnableVenue["bingx"] {
		out = append(out, bingx.New())
	}
	if cfg.EnableVenue["hyperliquid"] {
		out = append(out, hyperliquid.New())
	}
	if cfg.EnableVenue["synthetix"] {
		out = append(out, synthetix.New(cfg.TradingSymbols))
	}

	return out
}
