package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"marketdata/aggregator"
	"marketdata/api"
	"marketdata/cache"
	"marketdata/config"
	"marketdata/db"
	"marketdata/pkg/logger"
	"marketdata/providers/alphavantage"
	"marketdata/providers/coingecko"
	"marketdata/providers/coinmarketcap"
	"marketdata/providers/metals"
	"marketdata/ratelimit"

	"github.com/go-co-op/gocron/v2"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logg := logger.Setup(slog.LevelInfo)

	// Pick the cache backend: Redis first, then Postgres, then a
	// process-local map. Caching degrades, it never blocks startup.
	var store cache.Store
	var backend api.Pinger
	switch {
	case cfg.RedisAddr != "":
		redisStore, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, logg)
		if err != nil {
			logg.Warn("Redis unavailable, falling back to in-memory cache", "error", err)
			store = cache.NewMemoryStore()
		} else {
			defer redisStore.Close()
			store = redisStore
			backend = redisStore
		}
	case cfg.DatabaseURL != "":
		conn, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			logg.Warn("Postgres unavailable, falling back to in-memory cache", "error", err)
			store = cache.NewMemoryStore()
		} else {
			defer conn.Close()
			pgStore, err := cache.NewPostgresStore(conn, logg)
			if err != nil {
				logg.Warn("Postgres cache init failed, falling back to in-memory cache", "error", err)
				store = cache.NewMemoryStore()
			} else {
				store = pgStore
				backend = pgStore
			}
		}
	default:
		logg.Info("No cache backend configured, using in-memory cache")
		store = cache.NewMemoryStore()
	}

	// Provider priority: CoinMarketCap primary, CoinGecko fallback for
	// crypto; Alpha Vantage for stocks; the metals API for commodities.
	// Historical series prefer CoinGecko, the series-optimized source.
	gecko := coingecko.New(cfg.CoinGeckoAPIKey, logg)
	cmc := coinmarketcap.New(cfg.CMCAPIKey, logg)
	alpha := alphavantage.New(cfg.AlphaVantageAPIKey, logg)
	metalsClient := metals.New(cfg.MetalsAPIKey, logg)

	agg := aggregator.New(aggregator.NewProviderState(), logg,
		aggregator.WithCryptoProviders(cmc, gecko),
		aggregator.WithStockProviders(alpha),
		aggregator.WithCommodityProviders(metalsClient),
		aggregator.WithHistoricalProviders(gecko, alpha),
		aggregator.WithOHLCProvider(gecko),
		aggregator.WithRateSource(alpha),
		aggregator.WithCache(store, aggregator.TTLs{
			Price:        cfg.PriceTTL,
			Historical:   cfg.HistoricalTTL,
			Stock:        cfg.StockTTL,
			ExchangeRate: cfg.ExchangeRateTTL,
		}),
		aggregator.WithMockOnly(cfg.UseMockData),
	)

	// Create scheduler
	s, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Error creating scheduler: %v", err)
	}

	// Keep catalog symbols warm so interactive requests mostly hit the
	// cache. Refresh well inside the TTL window.
	warmInterval := cfg.PriceTTL / 2
	if warmInterval < time.Minute {
		warmInterval = time.Minute
	}
	_, err = s.NewJob(
		gocron.DurationJob(warmInterval),
		gocron.NewTask(func() {
			assets := aggregator.ListAssets()
			// Budget each symbol separately so one slow upstream
			// cannot starve the rest of the pass.
			for _, asset := range assets {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				agg.GetAssetPrice(ctx, asset.Symbol)
				cancel()
			}
			logg.Info("cache warm pass finished", "symbols", len(assets))
		}),
	)
	if err != nil {
		log.Fatalf("Error scheduling cache warm job: %v", err)
	}

	// Log a top-of-market snapshot hourly; also a cheap canary for the
	// CoinMarketCap key.
	_, err = s.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			listings, err := cmc.GetListings(ctx, 10)
			if err != nil {
				logg.Warn("market snapshot fetch failed", "error", err)
				return
			}
			for _, l := range listings {
				logg.Info("market snapshot", "rank", l.Rank, "symbol", l.Symbol, "price", l.Price)
			}
		}),
	)
	if err != nil {
		log.Fatalf("Error scheduling market snapshot job: %v", err)
	}

	// Start scheduler
	s.Start()

	// Start API server in a separate goroutine
	go func() {
		limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
		router := api.SetupRouter(agg, limiter, backend)
		log.Printf("Starting API server on %s", cfg.APIPort)
		if err := router.Run(cfg.APIPort); err != nil {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// Block indefinitely
	select {}
}
