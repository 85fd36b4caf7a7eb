package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"exchange-core/internal/admission"
	"exchange-core/internal/api"
	"exchange-core/internal/bets"
	"exchange-core/internal/events"
	"exchange-core/internal/execution"
	"exchange-core/internal/market"
	"exchange-core/internal/pricing"
	"exchange-core/internal/settlement"
	"exchange-core/internal/userclient"
	"exchange-core/pkg/cache"
	"exchange-core/pkg/config"
	"exchange-core/pkg/db"
	"exchange-core/pkg/refdata"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("exchange core starting on port %s (db=%s)", cfg.Port, cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Reference data seed (currency pairs, equities, options)
	if cfg.RefDataPath != "" {
		if seed, err := refdata.Load(cfg.RefDataPath); err != nil {
			log.Printf("refdata load skipped: %v", err)
		} else if err := refdata.Seed(ctx, database, seed); err != nil {
			log.Fatalf("refdata seed failed: %v", err)
		} else {
			log.Printf("refdata seeded from %s", cfg.RefDataPath)
		}
	}

	// Collaborators
	users := userclient.New(cfg.UserServiceURL)
	quoteCache := cache.NewShardedQuoteCache()
	prices := pricing.NewResolver(database, quoteCache, nil)

	// Execution engine: one cancellable fill task per approved order.
	engine := execution.NewEngine(database, users, prices, bus, cfg.TickInterval, cfg.FillSeed)
	defer engine.Close()

	admissionCtl := admission.NewController(database, users, prices, engine, bus)
	betSvc := bets.NewService(database, users, bus)

	// Settlement: daily run plus past-due sweep on startup.
	signer := settlement.NewSigner(cfg.JWTSecret, cfg.SettlementTokenTTL)
	settlement.NewScheduler(database, users, signer, bus).Start(ctx)

	// Market data: ticks update stored quotes only; order triggers are
	// evaluated by each order's own execution tick.
	market.NewFeed(database, quoteCache, bus).Start(ctx)
	if cfg.UseMockFeed {
		market.NewMockFeed(database, bus, cfg.MockFeedInterval, cfg.FillSeed).Start(ctx)
		log.Println("mock market feed started")
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	// API
	server := api.NewServer(
		bus,
		database,
		admissionCtl,
		betSvc,
		api.SystemMeta{
			UseMockFeed: cfg.UseMockFeed,
			Version:     buildVersion,
		},
		api.Options{
			RateLimitPerSecond: cfg.RateLimitPerSecond,
			RequestTimeout:     cfg.RequestTimeout,
		},
	)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
