// metals.go
package metals

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
	defaultBaseURL = "https://api.metalpriceapi.com/v1"
	providerName   = "metals"
	requestTimeout = 10 * time.Second

	// Upstream error code for an exhausted monthly quota.
	codeQuotaExceeded = 104
)

var metalNames = map[string]string{
	"XAU": "Gold",
	"XAG": "Silver",
	"XPT": "Platinum",
	"XPD": "Palladium",
}

// Client wraps the metals price API. Quotes come back as USD->metal
// cross rates (e.g. "USDXAU") and must be inverted to get the USD
// price of one unit.
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

// GetAssetPrice fetches the latest USD cross rate for a metal symbol
// (XAU, XAG, ...) and inverts it.
func (c *Client) GetAssetPrice(ctx context.Context, symbol string) (*models.AssetPrice, error) {
	symbol = strings.ToUpper(symbol)

	query := url.Values{}
	query.Set("access_key", c.apiKey)
	query.Set("base", "USD")
	query.Set("currencies", symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("metals error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metals error fetching latest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("metals: %w", providers.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.StatusError{Provider: providerName, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("metals error reading response: %w", err)
	}

	var result struct {
		Success   bool               `json:"success"`
		Timestamp int64              `json:"timestamp"`
		Rates     map[string]float64 `json:"rates"`
		Error     struct {
			Code int    `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("metals error unmarshalling JSON: %w", err)
	}

	if !result.Success {
		if result.Error.Code == codeQuotaExceeded {
			return nil, fmt.Errorf("metals: %s: %w", result.Error.Info, providers.ErrRateLimited)
		}
		return nil, fmt.Errorf("metals error %d: %s", result.Error.Code, result.Error.Info)
	}

	rate, ok := result.Rates["USD"+symbol]
	if !ok {
		// Some plans omit the base prefix.
		rate, ok = result.Rates[symbol]
	}
	if !ok || rate == 0 {
		return nil, fmt.Errorf("metals rate for %s: %w", symbol, providers.ErrNoData)
	}

	name := metalNames[symbol]
	if name == "" {
		name = symbol
	}

	price := models.NewAssetPrice(symbol, name, models.TypeCommodity, 1/rate, 0, 0)
	if result.Timestamp > 0 {
		price.LastUpdated = time.Unix(result.Timestamp, 0).UTC().Format(time.RFC3339)
	}
	price.Source = providerName
	return &price, nil
}

// IsRateLimitError reports whether err is the metals API throttle
// signal (HTTP 429 or quota error code 104).
func (c *Client) IsRateLimitError(err error) bool {
	return errors.Is(err, providers.ErrRateLimited) ||
		providers.IsStatus(err, http.StatusTooManyRequests)
}
