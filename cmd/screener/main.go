package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CoinScreener/internal/cache"
	"CoinScreener/internal/config"
	"CoinScreener/internal/export"
	"CoinScreener/internal/fetcher"
	"CoinScreener/internal/model"
	"CoinScreener/internal/pipeline"
	"CoinScreener/internal/scheduler"
	"CoinScreener/internal/scoring"
	"CoinScreener/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CoinScreener starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init fetcher chain: CoinGecko client behind the shared rate limiter.
	policy := fetcher.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.API.MaxAttempts
	upstream := fetcher.NewCoinGeckoFetcher(cfg.API.BaseURL, cfg.API.APIKey, cfg.Proxy)
	limited := fetcher.NewRateLimited(upstream, cfg.API.RequestsPerMinute, cfg.API.Burst, policy)
	log.Printf("[INFO] data source: %s (%d req/min)", limited.Name(), cfg.API.RequestsPerMinute)

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using noop: %v", err)
			st = store.NewNoop()
		} else {
			st = ss
			defer ss.Close()
		}
	} else {
		st = store.NewNoop()
	}

	// Init pipeline
	engine := scoring.NewEngine(*cfg.Screening.Weights, cfg.Screening.Benchmark)
	pipe := pipeline.New(limited, cache.New(), engine, st, cfg.Screening.VsCurrency)
	pipe.SeriesTTL = cfg.SeriesTTL()
	pipe.IndicatorTTL = cfg.IndicatorTTL()
	pipe.Workers = cfg.Screening.Workers

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	req := pipeline.Request{
		CoinIDs:    cfg.Screening.Coins,
		Direction:  model.Direction(cfg.Screening.Direction),
		Timeframes: cfg.Screening.Timeframes,
		SMAPeriods: cfg.Screening.SMAPeriods,
	}
	exporter := export.New(cfg.Export.OutputDir)
	sched := scheduler.New(ctx, pipe, exporter, req)
	if err := sched.RegisterAll(cfg.Schedule.ScreeningCron, cfg.Schedule.CacheSweepCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing screening now")
		go sched.RunNow()
	}

	log.Println("[INFO] CoinScreener is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Printf("[INFO] upstream requests issued: %d", limited.Requests())
	log.Println("[INFO] CoinScreener stopped")
}
