// Package providers defines the contract shared by the upstream
// market-data adapters. Each adapter wraps exactly one HTTP API, maps
// tickers to that provider's identifiers and converts its bespoke JSON
// into the canonical models. Raw upstream shapes never leak past an
// adapter.
package providers

import (
	"context"
	"errors"
	"fmt"

	"marketdata/models"
)

// ErrRateLimited is wrapped by adapters when an upstream signals that
// the caller is being throttled, whether as HTTP 429 or an in-payload
// marker. The aggregator checks for it to demote a provider.
var ErrRateLimited = errors.New("provider rate limited")

// ErrNoData is wrapped when a request succeeded but the payload held
// nothing usable for the requested symbol. Treated like any other
// failure by the aggregator: move on to the next provider.
var ErrNoData = errors.New("no data in provider response")

// Provider is the spot-price contract.
type Provider interface {
	// Name identifies the provider in logs and AssetPrice.Source.
	Name() string

	// GetAssetPrice returns the current price for an uppercase ticker,
	// or an error when the provider cannot serve it. Absence of data is
	// an error, never a nil result with nil error.
	GetAssetPrice(ctx context.Context, symbol string) (*models.AssetPrice, error)

	// IsRateLimitError reports whether err carries this provider's
	// rate-limit signal.
	IsRateLimitError(err error) bool
}

// HistoricalProvider is implemented by adapters that can also serve
// daily time series.
type HistoricalProvider interface {
	Provider

	// GetHistoricalData returns up to days daily samples, newest last.
	GetHistoricalData(ctx context.Context, symbol string, days int) ([]models.HistoricalDataPoint, error)
}

// StatusError carries an upstream HTTP status for failed requests.
type StatusError struct {
	Provider string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
