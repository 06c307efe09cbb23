package models

import "time"

// AssetType classifies an asset for routing and display purposes.
type AssetType string

const (
	TypeCryptocurrency AssetType = "Cryptocurrency"
	TypeStocks         AssetType = "Stocks"
	TypeCommodity      AssetType = "Commodity"
	TypeIndices        AssetType = "Indices"
	TypeOther          AssetType = "Other"
)

// AssetPrice is the canonical spot-price record every provider response
// is converted into. Price is always quoted in USD.
type AssetPrice struct {
	Symbol        string    `json:"symbol"` // Uppercase ticker (e.g., "BTC")
	Name          string    `json:"name"`
	Type          AssetType `json:"type"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`        // Absolute 24h change, 0 when unavailable
	ChangePercent float64   `json:"changePercent"` // 24h change in percent
	PriceInUSD    float64   `json:"priceInUSD"`    // Duplicate of Price for API symmetry
	PriceInBTC    float64   `json:"priceInBTC"`    // 0 when not computable
	LastUpdated   string    `json:"lastUpdated"`   // RFC3339
	Source        string    `json:"source,omitempty"`
}

// HistoricalDataPoint is one OHLCV sample of a historical series.
type HistoricalDataPoint struct {
	Timestamp int64   `json:"timestamp"` // epoch millis
	Date      string  `json:"date"`
	Price     float64 `json:"price"`
	Value     float64 `json:"value"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// AssetInfo is a catalog record mapping a ticker to its display
// metadata and provider-specific identifiers.
type AssetInfo struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Type        AssetType `json:"type"`
	CoinGeckoID string    `json:"coingeckoId,omitempty"`
	CMCID       string    `json:"cmcId,omitempty"`
}

// NewAssetPrice builds an AssetPrice stamped with the current time.
func NewAssetPrice(symbol, name string, assetType AssetType, price, change, changePercent float64) AssetPrice {
	return AssetPrice{
		Symbol:        symbol,
		Name:          name,
		Type:          assetType,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		PriceInUSD:    price,
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
	}
}
