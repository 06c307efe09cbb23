package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"marketdata/cache"
	"marketdata/mockdata"
	"marketdata/models"
	"marketdata/providers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeProvider scripts one provider's behavior and counts calls.
type fakeProvider struct {
	name      string
	price     float64
	err       error
	rateLimit bool // whether err is reported as a rate-limit signal
	calls     int
	series    []models.HistoricalDataPoint
	seriesErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetAssetPrice(_ context.Context, symbol string) (*models.AssetPrice, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	price := models.NewAssetPrice(symbol, symbol, models.TypeCryptocurrency, f.price, 0, 0)
	price.Source = f.name
	return &price, nil
}

func (f *fakeProvider) GetHistoricalData(_ context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error) {
	f.calls++
	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return f.series, nil
}

func (f *fakeProvider) IsRateLimitError(err error) bool {
	return err != nil && f.rateLimit
}

type fakeRateSource struct {
	rate  float64
	err   error
	calls int
}

func (f *fakeRateSource) GetExchangeRate(_ context.Context, from, to string) (float64, error) {
	f.calls++
	return f.rate, f.err
}

func TestFailoverToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("rate limit exceeded"), rateLimit: true}
	fallback := &fakeProvider{name: "fallback", price: 51000}

	state := NewProviderState()
	agg := New(state, testLogger(), WithCryptoProviders(primary, fallback))

	price := agg.GetAssetPrice(context.Background(), "BTC")
	if price.Price != 51000 || price.Source != "fallback" {
		t.Errorf("got %v from %q, want 51000 from fallback", price.Price, price.Source)
	}
	if !state.IsRateLimited("primary") {
		t.Error("primary not demoted after failure")
	}
}

func TestStickyDemotionSkipsPrimary(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("Rate limit exceeded"), rateLimit: true}
	fallback := &fakeProvider{name: "fallback", price: 51000}

	agg := New(NewProviderState(), testLogger(), WithCryptoProviders(primary, fallback))
	ctx := context.Background()

	first := agg.GetAssetPrice(ctx, "BTC")
	if first.Symbol != "BTC" || first.Price != 51000 {
		t.Errorf("first call: got %v %v", first.Symbol, first.Price)
	}

	// A different symbol must skip the demoted primary entirely.
	agg.GetAssetPrice(ctx, "ETH")
	if primary.calls != 1 {
		t.Errorf("primary called %d times across both requests, want 1", primary.calls)
	}
	if fallback.calls != 2 {
		t.Errorf("fallback called %d times, want 2", fallback.calls)
	}
}

func TestTransientFailureIsRetried(t *testing.T) {
	sole := &fakeProvider{name: "sole", err: errors.New("connection reset")}

	agg := New(NewProviderState(), testLogger(), WithCryptoProviders(sole))
	ctx := context.Background()

	first := agg.GetAssetPrice(ctx, "BTC")
	if first.Source != mockdata.ProviderName {
		t.Fatalf("source = %q, want mock while provider is down", first.Source)
	}

	// The blip clears; a non-rate-limit failure must not stick.
	sole.err = nil
	sole.price = 52000

	second := agg.GetAssetPrice(ctx, "BTC")
	if sole.calls != 2 {
		t.Fatalf("provider called %d times, want 2 (transient failure must not demote)", sole.calls)
	}
	if second.Price != 52000 || second.Source != "sole" {
		t.Errorf("got %v from %q, want 52000 from sole", second.Price, second.Source)
	}
}

func TestHistoricalTransientFailureIsRetried(t *testing.T) {
	sole := &fakeProvider{name: "sole", seriesErr: errors.New("connection reset")}

	agg := New(NewProviderState(), testLogger(), WithHistoricalProviders(sole))
	ctx := context.Background()

	if series := agg.GetHistoricalData(ctx, "BTC", 7); len(series) != 0 {
		t.Fatalf("len = %d, want 0 while provider is down", len(series))
	}

	sole.seriesErr = nil
	sole.series = []models.HistoricalDataPoint{
		models.NormalizeHistoricalDataPoint(models.HistoricalDataPoint{Timestamp: 1700000000000, Price: 50000}),
	}

	series := agg.GetHistoricalData(ctx, "BTC", 7)
	if sole.calls != 2 {
		t.Fatalf("provider called %d times, want 2 (transient failure must not demote)", sole.calls)
	}
	if len(series) != 1 {
		t.Errorf("len = %d, want 1 after recovery", len(series))
	}
}

func TestExhaustionReturnsMockPrice(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	b := &fakeProvider{name: "b", err: errors.New("down")}

	agg := New(NewProviderState(), testLogger(), WithCryptoProviders(a, b))

	price := agg.GetAssetPriceInBTC(context.Background(), "BTC")
	if price == nil {
		t.Fatal("nil price on exhaustion")
	}
	if price.Symbol != "BTC" {
		t.Errorf("symbol = %q, want BTC", price.Symbol)
	}
	if price.Source != mockdata.ProviderName {
		t.Errorf("source = %q, want mock", price.Source)
	}
}

func TestExhaustionReturnsEmptyHistorical(t *testing.T) {
	broken := &fakeProvider{name: "hist", seriesErr: errors.New("down")}

	agg := New(NewProviderState(), testLogger(), WithHistoricalProviders(broken))

	series := agg.GetHistoricalData(context.Background(), "BTC", 7)
	if series == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(series) != 0 {
		t.Errorf("len = %d, want 0 (no fabricated history)", len(series))
	}
}

func TestHistoricalFailover(t *testing.T) {
	broken := &fakeProvider{name: "first", seriesErr: errors.New("down")}
	working := &fakeProvider{name: "second", series: []models.HistoricalDataPoint{
		models.NormalizeHistoricalDataPoint(models.HistoricalDataPoint{Timestamp: 1700000000000, Price: 50000}),
	}}

	agg := New(NewProviderState(), testLogger(), WithHistoricalProviders(broken, working))

	series := agg.GetHistoricalData(context.Background(), "BTC", 7)
	if len(series) != 1 {
		t.Fatalf("len = %d, want 1", len(series))
	}
	if series[0].Close != 50000 {
		t.Errorf("close = %v, want 50000", series[0].Close)
	}
}

func TestPriceInBTCDerivation(t *testing.T) {
	provider := &fakeProvider{name: "p", price: 3250}
	agg := New(NewProviderState(), testLogger(), WithCryptoProviders(provider))

	// Both ETH and BTC resolve to 3250 from the same fake, so the
	// ratio must be 1.
	price := agg.GetAssetPriceInBTC(context.Background(), "ETH")
	if price.PriceInBTC != 1 {
		t.Errorf("priceInBTC = %v, want 1", price.PriceInBTC)
	}
}

func TestSpotResultIsCached(t *testing.T) {
	provider := &fakeProvider{name: "p", price: 42000}
	agg := New(NewProviderState(), testLogger(),
		WithCryptoProviders(provider),
		WithCache(cache.NewMemoryStore(), TTLs{Price: time.Hour, Historical: time.Hour, Stock: time.Hour}))

	ctx := context.Background()
	agg.GetAssetPrice(ctx, "BTC")
	agg.GetAssetPrice(ctx, "BTC")

	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1 (second hit served from cache)", provider.calls)
	}
}

func TestMockExhaustionNotCached(t *testing.T) {
	provider := &fakeProvider{name: "p", err: errors.New("down")}
	store := cache.NewMemoryStore()
	agg := New(NewProviderState(), testLogger(),
		WithCryptoProviders(provider),
		WithCache(store, TTLs{Price: time.Hour, Historical: time.Hour, Stock: time.Hour}))

	agg.GetAssetPrice(context.Background(), "BTC")

	if _, found, _ := store.Get(context.Background(), cache.Key("price", "BTC")); found {
		t.Error("mock fallback was written to the cache")
	}
}

func TestExchangeRateCached(t *testing.T) {
	src := &fakeRateSource{rate: 0.92}
	agg := New(NewProviderState(), testLogger(),
		WithRateSource(src),
		WithCache(cache.NewMemoryStore(), TTLs{ExchangeRate: time.Hour}))

	ctx := context.Background()
	rate, err := agg.GetExchangeRate(ctx, "USD", "EUR")
	if err != nil || rate != 0.92 {
		t.Fatalf("GetExchangeRate = %v, %v, want 0.92, nil", rate, err)
	}
	if _, err := agg.GetExchangeRate(ctx, "USD", "EUR"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Errorf("rate source called %d times, want 1 (second hit served from cache)", src.calls)
	}
}

func TestExchangeRateWithoutSource(t *testing.T) {
	agg := New(NewProviderState(), testLogger())
	if _, err := agg.GetExchangeRate(context.Background(), "USD", "EUR"); !errors.Is(err, providers.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestMockOnlyMode(t *testing.T) {
	provider := &fakeProvider{name: "real", price: 50000}
	agg := New(NewProviderState(), testLogger(),
		WithCryptoProviders(provider), WithMockOnly(true))

	price := agg.GetAssetPrice(context.Background(), "BTC")
	if price.Source != mockdata.ProviderName {
		t.Errorf("source = %q, want mock", price.Source)
	}
	if provider.calls != 0 {
		t.Errorf("real provider called %d times in mock-only mode", provider.calls)
	}

	series := agg.GetHistoricalData(context.Background(), "BTC", 7)
	if len(series) != 7 {
		t.Errorf("mock-only historical len = %d, want 7", len(series))
	}
}

func TestCatalogLookup(t *testing.T) {
	info, ok := GetAssetBySymbol("btc")
	if !ok {
		t.Fatal("BTC missing from catalog")
	}
	if info.Name != "Bitcoin" || info.CoinGeckoID != "bitcoin" {
		t.Errorf("unexpected info %+v", info)
	}

	if _, ok := GetAssetBySymbol("NOPE"); ok {
		t.Error("unexpected catalog hit")
	}

	assets := ListAssets()
	if len(assets) == 0 {
		t.Fatal("empty catalog")
	}
	for i := 1; i < len(assets); i++ {
		if assets[i-1].Symbol >= assets[i].Symbol {
			t.Errorf("catalog not sorted at %d", i)
		}
	}
}

func TestStockSymbolsUseStockProviders(t *testing.T) {
	crypto := &fakeProvider{name: "crypto", price: 1}
	stock := &fakeProvider{name: "stock", price: 190}

	agg := New(NewProviderState(), testLogger(),
		WithCryptoProviders(crypto), WithStockProviders(stock))

	price := agg.GetAssetPrice(context.Background(), "AAPL")
	if price.Source != "stock" {
		t.Errorf("source = %q, want stock", price.Source)
	}
	if crypto.calls != 0 {
		t.Errorf("crypto provider consulted %d times for a stock symbol", crypto.calls)
	}
}

func TestProviderStateIsolation(t *testing.T) {
	shared := &fakeProvider{name: "p", err: errors.New("rate limit exceeded"), rateLimit: true}

	first := New(NewProviderState(), testLogger(), WithCryptoProviders(shared))
	first.GetAssetPrice(context.Background(), "BTC")

	// A second aggregator with fresh state must still consult the
	// provider.
	second := New(NewProviderState(), testLogger(), WithCryptoProviders(shared))
	second.GetAssetPrice(context.Background(), "BTC")

	if shared.calls != 2 {
		t.Errorf("provider called %d times, want 2 (state should not leak between aggregators)", shared.calls)
	}
}

func TestSnapOHLCDaysThroughOHLCPath(t *testing.T) {
	src := &fakeOHLC{}
	agg := New(NewProviderState(), testLogger(), WithOHLCProvider(src))

	agg.GetOHLC(context.Background(), "BTC", 45)
	if src.gotDays != 45 {
		t.Errorf("aggregator altered day count: %d", src.gotDays)
	}
}

type fakeOHLC struct{ gotDays int }

func (f *fakeOHLC) GetOHLC(_ context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error) {
	f.gotDays = days
	return nil, fmt.Errorf("ohlc for %s: %w", symbol, providers.ErrNoData)
}
