// coingecko.go
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketdata/models"
	"marketdata/providers"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	providerName   = "coingecko"
	requestTimeout = 10 * time.Second
)

// symbolToID maps tickers to CoinGecko coin ids.
var symbolToID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"BNB":   "binancecoin",
	"LTC":   "litecoin",
	"TON":   "the-open-network",
}

// idToSymbol is the reverse mapping.
var idToSymbol map[string]string

func init() {
	idToSymbol = make(map[string]string, len(symbolToID))
	for sym, id := range symbolToID {
		idToSymbol[id] = sym
	}
}

// allowedOHLCDays is the fixed set of day counts the OHLC endpoint
// accepts; other values are snapped to the nearest member.
var allowedOHLCDays = []int{1, 7, 14, 30, 90, 180, 365}

// Client wraps the CoinGecko REST API. The API key is optional; when
// present it is sent as the demo-plan header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

func (c *Client) Name() string { return providerName }

// coinID resolves a ticker to a CoinGecko id, guessing the lowercase
// ticker for unmapped symbols.
func coinID(symbol string) string {
	if id, ok := symbolToID[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// SymbolForID resolves a CoinGecko id back to a ticker, guessing the
// uppercase id for unmapped ones.
func SymbolForID(id string) string {
	if sym, ok := idToSymbol[id]; ok {
		return sym
	}
	return strings.ToUpper(id)
}

func (c *Client) fetchJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("coingecko error building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko error fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("coingecko %s: %w", path, providers.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return &providers.StatusError{Provider: providerName, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coingecko error reading response: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("coingecko error unmarshalling JSON: %w", err)
	}
	return nil
}

// GetAssetPrice fetches the spot price via /simple/price.
func (c *Client) GetAssetPrice(ctx context.Context, symbol string) (*models.AssetPrice, error) {
	id := coinID(symbol)

	query := url.Values{}
	query.Set("ids", id)
	query.Set("vs_currencies", "usd,btc")
	query.Set("include_24hr_change", "true")

	var result map[string]struct {
		USD       float64 `json:"usd"`
		BTC       float64 `json:"btc"`
		Change24h float64 `json:"usd_24h_change"`
	}
	if err := c.fetchJSON(ctx, "/simple/price", query, &result); err != nil {
		return nil, err
	}

	coin, ok := result[id]
	if !ok || coin.USD == 0 {
		return nil, fmt.Errorf("coingecko price for %s: %w", symbol, providers.ErrNoData)
	}

	price := models.NewAssetPrice(strings.ToUpper(symbol), symbol, models.TypeCryptocurrency,
		coin.USD, coin.USD*coin.Change24h/100, coin.Change24h)
	price.PriceInBTC = coin.BTC
	price.Source = providerName
	return &price, nil
}

// GetHistoricalData fetches a daily close series via market_chart.
func (c *Client) GetHistoricalData(ctx context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("days", fmt.Sprintf("%d", days))
	query.Set("interval", "daily")

	var result struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	path := fmt.Sprintf("/coins/%s/market_chart", coinID(symbol))
	if err := c.fetchJSON(ctx, path, query, &result); err != nil {
		return nil, err
	}
	if len(result.Prices) == 0 {
		return nil, fmt.Errorf("coingecko history for %s: %w", symbol, providers.ErrNoData)
	}

	volumes := make(map[int64]float64, len(result.TotalVolumes))
	for _, v := range result.TotalVolumes {
		if len(v) == 2 {
			volumes[int64(v[0])] = v[1]
		}
	}

	points := make([]models.HistoricalDataPoint, 0, len(result.Prices))
	for _, p := range result.Prices {
		if len(p) != 2 {
			continue
		}
		ts := int64(p[0])
		points = append(points, models.NormalizeHistoricalDataPoint(models.HistoricalDataPoint{
			Timestamp: ts,
			Price:     p[1],
			Volume:    volumes[ts],
		}))
	}
	return points, nil
}

// GetOHLC fetches candles via /coins/{id}/ohlc. The endpoint only
// accepts a fixed set of day counts, so the request is snapped to the
// nearest allowed value first.
func (c *Client) GetOHLC(ctx context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error) {
	snapped := SnapOHLCDays(days)
	if snapped != days {
		c.logger.Warn("adjusted OHLC day count to nearest supported value", "requested", days, "used", snapped)
	}

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("days", fmt.Sprintf("%d", snapped))

	var result [][]float64
	path := fmt.Sprintf("/coins/%s/ohlc", coinID(symbol))
	if err := c.fetchJSON(ctx, path, query, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("coingecko ohlc for %s: %w", symbol, providers.ErrNoData)
	}

	points := make([]models.HistoricalDataPoint, 0, len(result))
	for _, candle := range result {
		if len(candle) < 5 {
			continue
		}
		points = append(points, models.NormalizeHistoricalDataPoint(models.HistoricalDataPoint{
			Timestamp: int64(candle[0]),
			Open:      candle[1],
			High:      candle[2],
			Low:       candle[3],
			Close:     candle[4],
		}))
	}
	return points, nil
}

// SnapOHLCDays returns the member of the allowed day set nearest to
// days, resolving ties downward.
func SnapOHLCDays(days int) int {
	best := allowedOHLCDays[0]
	for _, allowed := range allowedOHLCDays {
		if abs(allowed-days) < abs(best-days) {
			best = allowed
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// IsRateLimitError reports whether err is CoinGecko's throttle signal
// (HTTP 429).
func (c *Client) IsRateLimitError(err error) bool {
	return errors.Is(err, providers.ErrRateLimited) ||
		providers.IsStatus(err, http.StatusTooManyRequests)
}
