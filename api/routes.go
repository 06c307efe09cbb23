package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"marketdata/aggregator"
	"marketdata/ratelimit"
)

// Pinger is the backend-health probe the cache stores expose.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetupRouter wires the market-data endpoints over the aggregator.
func SetupRouter(agg *aggregator.Aggregator, limiter *ratelimit.Limiter, backend Pinger) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	if limiter != nil {
		router.Use(rateLimitMiddleware(limiter))
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Market Data API is running!"})
	})

	router.GET("/api/health", func(c *gin.Context) {
		if backend == nil {
			c.JSON(http.StatusOK, gin.H{"status": "healthy", "cache": "local"})
			return
		}
		if err := backend.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "cache": "disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "cache": "connected"})
	})

	// Spot price. Always returns a body: when every provider is
	// exhausted the aggregator serves mock data marked by its source.
	router.GET("/market-data/price/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")

		var price interface{}
		if c.Query("inBTC") == "true" {
			price = agg.GetAssetPriceInBTC(c.Request.Context(), symbol)
		} else {
			price = agg.GetAssetPrice(c.Request.Context(), symbol)
		}
		c.JSON(http.StatusOK, price)
	})

	// Historical series. Exhaustion yields an empty array, never a
	// fabricated chart.
	router.GET("/market-data/historical/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")
		days := parseDays(c.DefaultQuery("days", "30"))

		series := agg.GetHistoricalData(c.Request.Context(), symbol, days)
		c.JSON(http.StatusOK, series)
	})

	router.GET("/market-data/ohlc/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")
		days := parseDays(c.DefaultQuery("days", "30"))

		series := agg.GetOHLC(c.Request.Context(), symbol, days)
		c.JSON(http.StatusOK, series)
	})

	router.GET("/market-data/exchange-rate", func(c *gin.Context) {
		from := c.DefaultQuery("from", "USD")
		to := c.Query("to")
		if to == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to currency is required"})
			return
		}

		rate, err := agg.GetExchangeRate(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "exchange rate unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "rate": rate})
	})

	router.GET("/market-data/assets", func(c *gin.Context) {
		c.JSON(http.StatusOK, aggregator.ListAssets())
	})

	router.GET("/market-data/assets/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")
		info, ok := aggregator.GetAssetBySymbol(symbol)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown asset %s", symbol)})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	return router
}

func rateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if !limiter.Allow(clientID) {
			retryAfter := limiter.RetryAfter(clientID)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func parseDays(raw string) int {
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 30
	}
	return days
}
