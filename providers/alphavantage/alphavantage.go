// alphavantage.go
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketdata/models"
	"marketdata/providers"
)

const (
	defaultBaseURL = "https://www.alphavantage.co"
	providerName   = "alphavantage"
	requestTimeout = 10 * time.Second
)

// Alpha Vantage reports throttling inside a 200 payload instead of an
// HTTP status, as a "Note" or "Information" field mentioning call
// frequency.
var rateLimitPhrases = []string{
	"call frequency",
	"rate limit",
	"requests per day",
}

// Client wraps the Alpha Vantage query API; the key travels as the
// apikey query parameter.
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

func (c *Client) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("alphavantage error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage error fetching query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("alphavantage: %w", providers.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.StatusError{Provider: providerName, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage error reading response: %w", err)
	}
	if err := checkNote(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkNote sniffs the in-payload throttle marker.
func checkNote(body []byte) error {
	var note struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &note); err != nil {
		return nil // not an object payload, let the real decode complain
	}
	message := note.Note
	if message == "" {
		message = note.Information
	}
	if message == "" {
		return nil
	}
	lower := strings.ToLower(message)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("alphavantage: %s: %w", message, providers.ErrRateLimited)
		}
	}
	return nil
}

// GetAssetPrice fetches a stock quote via the GLOBAL_QUOTE function.
func (c *Client) GetAssetPrice(ctx context.Context, symbol string) (*models.AssetPrice, error) {
	symbol = strings.ToUpper(symbol)

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	var result struct {
		GlobalQuote struct {
			Price         string `json:"05. price"`
			Change        string `json:"09. change"`
			ChangePercent string `json:"10. change percent"`
		} `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("alphavantage error unmarshalling JSON: %w", err)
	}

	priceValue := parseFloat(result.GlobalQuote.Price)
	if priceValue == 0 {
		return nil, fmt.Errorf("alphavantage quote for %s: %w", symbol, providers.ErrNoData)
	}

	change := parseFloat(result.GlobalQuote.Change)
	changePercent := parseFloat(strings.TrimSuffix(result.GlobalQuote.ChangePercent, "%"))

	price := models.NewAssetPrice(symbol, symbol, models.TypeStocks, priceValue, change, changePercent)
	price.Source = providerName
	return &price, nil
}

// GetHistoricalData fetches a daily series via TIME_SERIES_DAILY,
// trimmed to the most recent days entries, oldest first.
func (c *Client) GetHistoricalData(ctx context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error) {
	symbol = strings.ToUpper(symbol)

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	if days > 100 {
		params.Set("outputsize", "full")
	}

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Series map[string]struct {
			Open   string `json:"1. open"`
			High   string `json:"2. high"`
			Low    string `json:"3. low"`
			Close  string `json:"4. close"`
			Volume string `json:"5. volume"`
		} `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("alphavantage error unmarshalling JSON: %w", err)
	}
	if len(result.Series) == 0 {
		return nil, fmt.Errorf("alphavantage series for %s: %w", symbol, providers.ErrNoData)
	}

	dates := make([]string, 0, len(result.Series))
	for date := range result.Series {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	points := make([]models.HistoricalDataPoint, 0, len(dates))
	for _, date := range dates {
		bar := result.Series[date]
		points = append(points, models.NormalizeHistoricalDataPoint(models.HistoricalDataPoint{
			Date:   date,
			Open:   parseFloat(bar.Open),
			High:   parseFloat(bar.High),
			Low:    parseFloat(bar.Low),
			Close:  parseFloat(bar.Close),
			Volume: parseFloat(bar.Volume),
		}))
	}
	return points, nil
}

// GetExchangeRate fetches a currency cross rate via
// CURRENCY_EXCHANGE_RATE. Used for USD conversions of non-USD quotes.
func (c *Client) GetExchangeRate(ctx context.Context, from, to string) (float64, error) {
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", strings.ToUpper(from))
	params.Set("to_currency", strings.ToUpper(to))

	body, err := c.fetch(ctx, params)
	if err != nil {
		return 0, err
	}

	var result struct {
		Rate struct {
			ExchangeRate string `json:"5. Exchange Rate"`
		} `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("alphavantage error unmarshalling JSON: %w", err)
	}

	rate := parseFloat(result.Rate.ExchangeRate)
	if rate == 0 {
		return 0, fmt.Errorf("alphavantage rate %s/%s: %w", from, to, providers.ErrNoData)
	}
	return rate, nil
}

func parseFloat(s string) float64 {
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return val
}

// IsRateLimitError reports whether err is Alpha Vantage's throttle
// signal, which usually arrives as an in-payload note rather than a
// status code.
func (c *Client) IsRateLimitError(err error) bool {
	return errors.Is(err, providers.ErrRateLimited)
}
