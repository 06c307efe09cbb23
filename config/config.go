package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	APIPort     string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	RedisDB     int

	CoinGeckoAPIKey    string
	CMCAPIKey          string
	AlphaVantageAPIKey string
	MetalsAPIKey       string

	// UseMockData forces mock-only mode: no upstream calls at all.
	UseMockData bool

	PriceTTL        time.Duration
	HistoricalTTL   time.Duration
	ExchangeRateTTL time.Duration
	StockTTL        time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// LoadConfig reads configuration variables or returns default values.
func LoadConfig() (*Config, error) {
	// Load .env file if available
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using system environment variables")
	}

	cfg := &Config{
		APIPort:     envOr("API_PORT", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:     envInt("REDIS_DB", 0),

		CoinGeckoAPIKey:    os.Getenv("COINGECKO_API_KEY"),
		CMCAPIKey:          os.Getenv("CMC_API_KEY"),
		AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		MetalsAPIKey:       os.Getenv("METALS_API_KEY"),

		UseMockData: envBool("USE_MOCK_DATA", false),

		PriceTTL:        envSeconds("PRICE_TTL_SECONDS", time.Hour),
		HistoricalTTL:   envSeconds("HISTORICAL_TTL_SECONDS", time.Hour),
		ExchangeRateTTL: envSeconds("EXCHANGE_RATE_TTL_SECONDS", 6*time.Hour),
		StockTTL:        envSeconds("STOCK_TTL_SECONDS", 6*time.Hour),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: envSeconds("RATE_LIMIT_WINDOW_SECONDS", time.Minute),
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return time.Duration(n) * time.Second
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
