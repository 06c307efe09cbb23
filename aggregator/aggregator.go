// Package aggregator decides which upstream provider serves each
// request. Providers are tried strictly in priority order; a
// rate-limited provider is demoted for the rest of the process, a
// leading provider that fails is demoted in favor of its fallback, and
// when every provider is exhausted the spot path falls back to
// deterministic mock data while the historical path reports an honest
// empty series.
package aggregator

import (
	"context"
	"log/slog"
	"time"

	"marketdata/cache"
	"marketdata/mockdata"
	"marketdata/models"
	"marketdata/providers"
)

// TTLs carries the per-kind cache lifetimes chosen by the caller; the
// cache store itself is TTL-agnostic.
type TTLs struct {
	Price        time.Duration
	Historical   time.Duration
	Stock        time.Duration
	ExchangeRate time.Duration
}

// OHLCCapable is the optional candle endpoint some providers expose.
type OHLCCapable interface {
	GetOHLC(ctx context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error)
}

// RateSource is the optional currency cross-rate endpoint.
type RateSource interface {
	GetExchangeRate(ctx context.Context, from, to string) (float64, error)
}

// Aggregator owns the failover state and the provider priority lists.
type Aggregator struct {
	crypto     []providers.Provider // spot priority for cryptocurrencies
	stocks     []providers.Provider // spot priority for stocks/indices
	commodity  []providers.Provider // spot priority for commodities
	historical []providers.HistoricalProvider
	ohlc       OHLCCapable
	rates      RateSource

	state    *ProviderState
	store    cache.Store
	ttls     TTLs
	logger   *slog.Logger
	mockOnly bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCryptoProviders sets the spot priority order for crypto symbols,
// primary first.
func WithCryptoProviders(ps ...providers.Provider) Option {
	return func(a *Aggregator) { a.crypto = ps }
}

// WithStockProviders sets the spot priority order for stock symbols.
func WithStockProviders(ps ...providers.Provider) Option {
	return func(a *Aggregator) { a.stocks = ps }
}

// WithCommodityProviders sets the spot priority order for commodities.
func WithCommodityProviders(ps ...providers.Provider) Option {
	return func(a *Aggregator) { a.commodity = ps }
}

// WithHistoricalProviders sets the series priority order, which is
// independent of the spot order (a series-optimized provider first).
func WithHistoricalProviders(ps ...providers.HistoricalProvider) Option {
	return func(a *Aggregator) { a.historical = ps }
}

// WithOHLCProvider sets the candle source.
func WithOHLCProvider(p OHLCCapable) Option {
	return func(a *Aggregator) { a.ohlc = p }
}

// WithRateSource sets the currency cross-rate source.
func WithRateSource(r RateSource) Option {
	return func(a *Aggregator) { a.rates = r }
}

// WithCache enables read-through caching of successful fetches.
func WithCache(store cache.Store, ttls TTLs) Option {
	return func(a *Aggregator) {
		a.store = store
		a.ttls = ttls
	}
}

// WithMockOnly short-circuits every price path to the mock generator.
func WithMockOnly(mockOnly bool) Option {
	return func(a *Aggregator) { a.mockOnly = mockOnly }
}

func New(state *ProviderState, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		state:  state,
		logger: logger,
		ttls: TTLs{
			Price:        time.Hour,
			Historical:   time.Hour,
			Stock:        6 * time.Hour,
			ExchangeRate: 6 * time.Hour,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) spotProviders(symbol string) []providers.Provider {
	switch assetType(symbol) {
	case models.TypeStocks, models.TypeIndices:
		if len(a.stocks) > 0 {
			return a.stocks
		}
	case models.TypeCommodity:
		if len(a.commodity) > 0 {
			return a.commodity
		}
	}
	return a.crypto
}

// tryProviders walks the priority list, skipping demoted providers.
// A rate-limit signal demotes for the process lifetime; a plain failure
// demotes only when a fallback remains behind it, so the last provider
// gets retried on the next request instead of being written off over a
// transient error.
func (a *Aggregator) tryProviders(ctx context.Context, ps []providers.Provider, symbol string) *models.AssetPrice {
	for i, p := range ps {
		if a.state.IsRateLimited(p.Name()) {
			a.logger.Debug("skipping demoted provider", "provider", p.Name(), "symbol", symbol)
			continue
		}

		price, err := p.GetAssetPrice(ctx, symbol)
		if err == nil && price != nil {
			return price
		}

		switch {
		case p.IsRateLimitError(err):
			a.logger.Warn("provider rate limited, demoting for process lifetime",
				"provider", p.Name(), "symbol", symbol, "error", err)
			a.state.MarkRateLimited(p.Name())
		case i < len(ps)-1:
			a.logger.Warn("provider failed, demoting and trying next",
				"provider", p.Name(), "symbol", symbol, "error", err)
			a.state.MarkRateLimited(p.Name())
		default:
			a.logger.Warn("provider failed, will retry on next request",
				"provider", p.Name(), "symbol", symbol, "error", err)
		}
	}
	return nil
}

// GetAssetPrice returns the spot price for a symbol from the first
// provider that can serve it, or deterministic mock data once every
// provider is exhausted. It never returns nil: price display prefers
// degraded data over a visible error. Mock results are not cached.
func (a *Aggregator) GetAssetPrice(ctx context.Context, symbol string) *models.AssetPrice {
	if a.mockOnly {
		return mockdata.GeneratePrice(symbol)
	}

	ttl := a.ttls.Price
	if kind := assetType(symbol); kind == models.TypeStocks || kind == models.TypeIndices {
		ttl = a.ttls.Stock
	}

	price, err := cache.GetCachedData(ctx, a.store, a.logger, cache.Key("price", symbol), ttl,
		func(ctx context.Context) (*models.AssetPrice, error) {
			if p := a.tryProviders(ctx, a.spotProviders(symbol), symbol); p != nil {
				return p, nil
			}
			return nil, providers.ErrNoData
		})
	if err != nil || price == nil {
		a.logger.Warn("all providers exhausted, serving mock price", "symbol", symbol)
		return mockdata.GeneratePrice(symbol)
	}

	if info, ok := GetAssetBySymbol(symbol); ok && price.Name == price.Symbol {
		price.Name = info.Name
	}
	return price
}

// GetAssetPriceInBTC returns the spot price with PriceInBTC filled in,
// derived from the current BTC price when the provider did not supply
// the ratio itself.
func (a *Aggregator) GetAssetPriceInBTC(ctx context.Context, symbol string) *models.AssetPrice {
	price := a.GetAssetPrice(ctx, symbol)
	if price.PriceInBTC != 0 {
		return price
	}

	btc := a.GetAssetPrice(ctx, "BTC")
	if btc.Price > 0 {
		price.PriceInBTC = price.Price / btc.Price
	}
	return price
}

// GetHistoricalData returns up to days daily samples for a symbol.
// Unlike the spot path, exhaustion yields an empty slice: an honest
// "no data" beats a fabricated chart.
func (a *Aggregator) GetHistoricalData(ctx context.Context, symbol string, days int) []models.HistoricalDataPoint {
	if a.mockOnly {
		return mockdata.GenerateHistoricalSeries(symbol, days)
	}

	points, err := cache.GetCachedData(ctx, a.store, a.logger, cache.Key("historical", symbol, days), a.ttls.Historical,
		func(ctx context.Context) ([]models.HistoricalDataPoint, error) {
			for i, p := range a.historical {
				if a.state.IsRateLimited(p.Name()) {
					a.logger.Debug("skipping demoted provider", "provider", p.Name(), "symbol", symbol)
					continue
				}

				series, err := p.GetHistoricalData(ctx, symbol, days)
				if err == nil && len(series) > 0 {
					return series, nil
				}

				switch {
				case p.IsRateLimitError(err):
					a.logger.Warn("historical provider rate limited, demoting for process lifetime",
						"provider", p.Name(), "symbol", symbol, "error", err)
					a.state.MarkRateLimited(p.Name())
				case i < len(a.historical)-1:
					a.logger.Warn("historical provider failed, demoting and trying next",
						"provider", p.Name(), "symbol", symbol, "error", err)
					a.state.MarkRateLimited(p.Name())
				default:
					a.logger.Warn("historical provider failed, will retry on next request",
						"provider", p.Name(), "symbol", symbol, "error", err)
				}
			}
			return nil, providers.ErrNoData
		})
	if err != nil {
		a.logger.Warn("historical providers exhausted, returning empty series", "symbol", symbol)
		return []models.HistoricalDataPoint{}
	}
	return points
}

// GetExchangeRate returns the from→to currency cross rate, cached with
// its own lifetime since fiat rates move far slower than asset prices.
func (a *Aggregator) GetExchangeRate(ctx context.Context, from, to string) (float64, error) {
	if a.rates == nil {
		return 0, providers.ErrNoData
	}
	return cache.GetCachedData(ctx, a.store, a.logger, cache.Key("rate", from, to), a.ttls.ExchangeRate,
		func(ctx context.Context) (float64, error) {
			return a.rates.GetExchangeRate(ctx, from, to)
		})
}

// GetOHLC returns candles for a symbol; day-count snapping happens in
// the providing adapter. Exhaustion yields an empty slice like the
// historical path.
func (a *Aggregator) GetOHLC(ctx context.Context, symbol string, days int) []models.HistoricalDataPoint {
	if a.mockOnly {
		return mockdata.GenerateHistoricalSeries(symbol, days)
	}
	if a.ohlc == nil {
		return []models.HistoricalDataPoint{}
	}

	points, err := cache.GetCachedData(ctx, a.store, a.logger, cache.Key("ohlc", symbol, days), a.ttls.Historical,
		func(ctx context.Context) ([]models.HistoricalDataPoint, error) {
			return a.ohlc.GetOHLC(ctx, symbol, days)
		})
	if err != nil {
		a.logger.Warn("OHLC fetch failed, returning empty series", "symbol", symbol, "error", err)
		return []models.HistoricalDataPoint{}
	}
	return points
}
