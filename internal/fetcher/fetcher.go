package fetcher

import (
	"context"

	"CoinScreener/internal/model"
)

// Fetcher defines the interface for fetching historical market data.
type Fetcher interface {
	// Fetch returns up to `days` daily points for the coin quoted in vsCurrency.
	Fetch(ctx context.Context, coinID, vsCurrency string, days int) (*model.PriceSeries, error)
	Name() string
}
