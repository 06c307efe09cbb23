// coinmarketcap.go
package coinmarketcap

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
	defaultBaseURL = "https://pro-api.coinmarketcap.com"
	providerName   = "coinmarketcap"
	requestTimeout = 10 * time.Second

	// CMC error codes that mean the key is over its plan limits.
	codeRateLimitMinute = 1008
	codeRateLimitDaily  = 1011
)

// symbolToCMCID maps tickers to CoinMarketCap numeric ids.
var symbolToCMCID = map[string]string{
	"BTC":   "1",
	"LTC":   "2",
	"DOGE":  "74",
	"XRP":   "52",
	"ETH":   "1027",
	"ADA":   "2010",
	"BNB":   "1839",
	"LINK":  "1975",
	"DOT":   "6636",
	"SOL":   "5426",
	"AVAX":  "5805",
	"MATIC": "3890",
	"TON":   "11419",
}

// Client wraps the CoinMarketCap pro API. Every request carries the
// X-CMC_PRO_API_KEY header.
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

type quoteResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string][]struct {
		Name  string `json:"name"`
		Quote map[string]struct {
			Price            float64 `json:"price"`
			PercentChange24h float64 `json:"percent_change_24h"`
			LastUpdated      string  `json:"last_updated"`
		} `json:"quote"`
	} `json:"data"`
}

func (c *Client) fetchJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("coinmarketcap error building request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coinmarketcap error fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("coinmarketcap %s: %w", path, providers.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return &providers.StatusError{Provider: providerName, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coinmarketcap error reading response: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("coinmarketcap error unmarshalling JSON: %w", err)
	}
	return nil
}

// GetAssetPrice fetches the spot quote via /v2/cryptocurrency/quotes/latest.
func (c *Client) GetAssetPrice(ctx context.Context, symbol string) (*models.AssetPrice, error) {
	symbol = strings.ToUpper(symbol)

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("convert", "USD")

	var result quoteResponse
	if err := c.fetchJSON(ctx, "/v2/cryptocurrency/quotes/latest", query, &result); err != nil {
		return nil, err
	}

	if result.Status.ErrorCode == codeRateLimitMinute || result.Status.ErrorCode == codeRateLimitDaily {
		return nil, fmt.Errorf("coinmarketcap: %s: %w", result.Status.ErrorMessage, providers.ErrRateLimited)
	}
	if result.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap error %d: %s", result.Status.ErrorCode, result.Status.ErrorMessage)
	}

	entries, ok := result.Data[symbol]
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("coinmarketcap quote for %s: %w", symbol, providers.ErrNoData)
	}

	entry := entries[0]
	quote, ok := entry.Quote["USD"]
	if !ok || quote.Price == 0 {
		return nil, fmt.Errorf("coinmarketcap USD quote for %s: %w", symbol, providers.ErrNoData)
	}

	price := models.NewAssetPrice(symbol, entry.Name, models.TypeCryptocurrency,
		quote.Price, quote.Price*quote.PercentChange24h/100, quote.PercentChange24h)
	if ts, err := time.Parse(time.RFC3339, quote.LastUpdated); err == nil {
		price.LastUpdated = ts.UTC().Format(time.RFC3339)
	}
	price.Source = providerName
	return &price, nil
}

// Listing is one row of the CMC listings endpoint, used to refresh
// which symbols are worth keeping warm in the cache.
type Listing struct {
	Symbol string
	Name   string
	Price  float64
	Rank   int
}

// GetListings fetches the top market-cap listings via
// /v1/cryptocurrency/listings/latest.
func (c *Client) GetListings(ctx context.Context, limit int) ([]Listing, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	query.Set("convert", "USD")

	var result struct {
		Status struct {
			ErrorCode    int    `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
		Data []struct {
			Symbol  string `json:"symbol"`
			Name    string `json:"name"`
			CmcRank int    `json:"cmc_rank"`
			Quote   map[string]struct {
				Price float64 `json:"price"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := c.fetchJSON(ctx, "/v1/cryptocurrency/listings/latest", query, &result); err != nil {
		return nil, err
	}
	if result.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap error %d: %s", result.Status.ErrorCode, result.Status.ErrorMessage)
	}

	listings := make([]Listing, 0, len(result.Data))
	for _, d := range result.Data {
		listings = append(listings, Listing{
			Symbol: d.Symbol,
			Name:   d.Name,
			Price:  d.Quote["USD"].Price,
			Rank:   d.CmcRank,
		})
	}
	return listings, nil
}

// CMCID resolves a ticker to its CoinMarketCap numeric id, falling
// back to the uppercase ticker itself, which the v2 endpoints accept
// as a symbol parameter.
func CMCID(symbol string) string {
	if id, ok := symbolToCMCID[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToUpper(symbol)
}

// IsRateLimitError reports whether err is CMC's throttle signal: an
// HTTP 429 or plan-limit error codes 1008/1011 in the payload.
func (c *Client) IsRateLimitError(err error) bool {
	return errors.Is(err, providers.ErrRateLimited) ||
		providers.IsStatus(err, http.StatusTooManyRequests)
}
