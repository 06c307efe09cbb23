// Package mockdata generates deterministic pseudo-market data. It is
// the last line of defense when every real provider is exhausted or
// mock-only mode is forced: callers always receive a structurally
// valid record, never an error.
package mockdata

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"marketdata/models"
)

// ProviderName marks generated records as non-authoritative.
const ProviderName = "mock"

type baseAsset struct {
	name      string
	assetType models.AssetType
	price     float64
}

// Base prices for well-known symbols, close to plausible market levels.
var basePrices = map[string]baseAsset{
	"BTC":  {"Bitcoin", models.TypeCryptocurrency, 65000},
	"ETH":  {"Ethereum", models.TypeCryptocurrency, 3200},
	"SOL":  {"Solana", models.TypeCryptocurrency, 150},
	"XRP":  {"Ripple", models.TypeCryptocurrency, 0.55},
	"ADA":  {"Cardano", models.TypeCryptocurrency, 0.45},
	"DOGE": {"Dogecoin", models.TypeCryptocurrency, 0.12},
	"BNB":  {"BNB", models.TypeCryptocurrency, 580},
	"DOT":  {"Polkadot", models.TypeCryptocurrency, 7.5},
	"AAPL": {"Apple Inc.", models.TypeStocks, 190},
	"MSFT": {"Microsoft", models.TypeStocks, 420},
	"GOOG": {"Alphabet", models.TypeStocks, 170},
	"AMZN": {"Amazon", models.TypeStocks, 180},
	"TSLA": {"Tesla", models.TypeStocks, 250},
	"XAU":  {"Gold", models.TypeCommodity, 2300},
	"XAG":  {"Silver", models.TypeCommodity, 28},
	"SPX":  {"S&P 500", models.TypeIndices, 5200},
}

const (
	spotDriftLimit  = 0.01  // ±1% around the base for spot prices
	dailyDriftLimit = 0.005 // ±0.5% per day for series walks
)

// seed derives a stable seed from the symbol and a bucket value so
// repeated calls within the same bucket agree.
func seed(symbol string, bucket int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	return int64(h.Sum64()) ^ bucket
}

func base(symbol string) baseAsset {
	if asset, ok := basePrices[strings.ToUpper(symbol)]; ok {
		return asset
	}
	// Unknown symbols get a stable pseudo-price derived from the name.
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(symbol)))
	return baseAsset{
		name:      strings.ToUpper(symbol),
		assetType: models.TypeOther,
		price:     1 + float64(h.Sum32()%10000)/10,
	}
}

// GeneratePrice returns a deterministic mock spot price: the symbol's
// base price with a bounded drift that changes once per UTC day.
func GeneratePrice(symbol string) *models.AssetPrice {
	asset := base(symbol)
	day := time.Now().UTC().Truncate(24 * time.Hour).Unix()
	rng := rand.New(rand.NewSource(seed(symbol, day)))

	drift := (rng.Float64()*2 - 1) * spotDriftLimit
	value := asset.price * (1 + drift)
	changePercent := (rng.Float64()*2 - 1) * 2 // plausible ±2% day move

	price := models.NewAssetPrice(strings.ToUpper(symbol), asset.name, asset.assetType,
		value, value*changePercent/100, changePercent)
	price.Source = ProviderName
	return &price
}

// GenerateHistoricalSeries returns a deterministic daily OHLCV walk of
// the requested length ending at the current mock price, oldest first.
func GenerateHistoricalSeries(symbol string, days int) []models.HistoricalDataPoint {
	if days <= 0 {
		days = 1
	}

	current := GeneratePrice(symbol).Price
	day := time.Now().UTC().Truncate(24 * time.Hour).Unix()
	rng := rand.New(rand.NewSource(seed(symbol, day)))

	// Walk backwards from today so the last sample matches the mock
	// spot price, then emit oldest first.
	closes := make([]float64, days)
	closes[days-1] = current
	for i := days - 2; i >= 0; i-- {
		drift := (rng.Float64()*2 - 1) * dailyDriftLimit
		closes[i] = closes[i+1] / (1 + drift)
	}

	now := time.Now().UTC()
	points := make([]models.HistoricalDataPoint, 0, days)
	for i, close := range closes {
		ts := now.AddDate(0, 0, i-days+1).UnixMilli()
		open := close
		if i > 0 {
			open = closes[i-1]
		}
		spread := math.Abs(close-open) + close*0.002
		points = append(points, models.NormalizeHistoricalDataPoint(models.HistoricalDataPoint{
			Timestamp: ts,
			Open:      open,
			High:      math.Max(open, close) + spread/2,
			Low:       math.Min(open, close) - spread/2,
			Close:     close,
			Volume:    close * 1000 * (1 + rng.Float64()),
		}))
	}
	return points
}
