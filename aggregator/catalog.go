package aggregator

import (
	"sort"
	"strings"

	"marketdata/models"
)

// assetCatalog is the static metadata table consulted before any live
// provider call. Symbol lookups against it are local data and never
// subject to failover.
var assetCatalog = map[string]models.AssetInfo{
	"BTC":  {Symbol: "BTC", Name: "Bitcoin", Type: models.TypeCryptocurrency, CoinGeckoID: "bitcoin", CMCID: "1"},
	"ETH":  {Symbol: "ETH", Name: "Ethereum", Type: models.TypeCryptocurrency, CoinGeckoID: "ethereum", CMCID: "1027"},
	"SOL":  {Symbol: "SOL", Name: "Solana", Type: models.TypeCryptocurrency, CoinGeckoID: "solana", CMCID: "5426"},
	"XRP":  {Symbol: "XRP", Name: "Ripple", Type: models.TypeCryptocurrency, CoinGeckoID: "ripple", CMCID: "52"},
	"ADA":  {Symbol: "ADA", Name: "Cardano", Type: models.TypeCryptocurrency, CoinGeckoID: "cardano", CMCID: "2010"},
	"DOGE": {Symbol: "DOGE", Name: "Dogecoin", Type: models.TypeCryptocurrency, CoinGeckoID: "dogecoin", CMCID: "74"},
	"BNB":  {Symbol: "BNB", Name: "BNB", Type: models.TypeCryptocurrency, CoinGeckoID: "binancecoin", CMCID: "1839"},
	"DOT":  {Symbol: "DOT", Name: "Polkadot", Type: models.TypeCryptocurrency, CoinGeckoID: "polkadot", CMCID: "6636"},
	"LINK": {Symbol: "LINK", Name: "Chainlink", Type: models.TypeCryptocurrency, CoinGeckoID: "chainlink", CMCID: "1975"},
	"AVAX": {Symbol: "AVAX", Name: "Avalanche", Type: models.TypeCryptocurrency, CoinGeckoID: "avalanche-2", CMCID: "5805"},
	"AAPL": {Symbol: "AAPL", Name: "Apple Inc.", Type: models.TypeStocks},
	"MSFT": {Symbol: "MSFT", Name: "Microsoft", Type: models.TypeStocks},
	"GOOG": {Symbol: "GOOG", Name: "Alphabet", Type: models.TypeStocks},
	"AMZN": {Symbol: "AMZN", Name: "Amazon", Type: models.TypeStocks},
	"TSLA": {Symbol: "TSLA", Name: "Tesla", Type: models.TypeStocks},
	"XAU":  {Symbol: "XAU", Name: "Gold", Type: models.TypeCommodity},
	"XAG":  {Symbol: "XAG", Name: "Silver", Type: models.TypeCommodity},
	"XPT":  {Symbol: "XPT", Name: "Platinum", Type: models.TypeCommodity},
	"SPX":  {Symbol: "SPX", Name: "S&P 500", Type: models.TypeIndices},
}

// GetAssetBySymbol looks a ticker up in the static catalog.
func GetAssetBySymbol(symbol string) (models.AssetInfo, bool) {
	info, ok := assetCatalog[strings.ToUpper(symbol)]
	return info, ok
}

// ListAssets returns the catalog sorted by symbol.
func ListAssets() []models.AssetInfo {
	assets := make([]models.AssetInfo, 0, len(assetCatalog))
	for _, info := range assetCatalog {
		assets = append(assets, info)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	return assets
}

// assetType classifies a symbol for provider routing; unknown symbols
// are assumed to be cryptocurrencies, the dominant case.
func assetType(symbol string) models.AssetType {
	if info, ok := GetAssetBySymbol(symbol); ok {
		return info.Type
	}
	return models.TypeCryptocurrency
}
