package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"CoinScreener/internal/model"
)

// CoinGeckoFetcher implements Fetcher against the CoinGecko market-chart API.
type CoinGeckoFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewCoinGeckoFetcher creates a new fetcher with optional proxy support.
func NewCoinGeckoFetcher(baseURL, apiKey, proxyURL string) *CoinGeckoFetcher {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &CoinGeckoFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *CoinGeckoFetcher) Name() string { return "coingecko" }

// marketChart is the response structure from the market_chart endpoint:
// arrays of [unix_millis, value] pairs.
type marketChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

func (f *CoinGeckoFetcher) Fetch(ctx context.Context, coinID, vsCurrency string, days int) (*model.PriceSeries, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=%s&days=%d&interval=daily",
		f.BaseURL, url.PathEscape(coinID), url.QueryEscape(vsCurrency), days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindFatal, CoinID: coinID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if f.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindUpstreamUnavailable, CoinID: coinID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindUpstreamUnavailable, CoinID: coinID, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{Kind: KindQuotaExceeded, CoinID: coinID,
			Err: fmt.Errorf("status 429")}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Kind: KindInvalidCoin, CoinID: coinID,
			Err: fmt.Errorf("status 404")}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &FetchError{Kind: KindFatal, CoinID: coinID,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	case resp.StatusCode >= 500:
		return nil, &FetchError{Kind: KindUpstreamUnavailable, CoinID: coinID,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Kind: KindFatal, CoinID: coinID,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &FetchError{Kind: KindUpstreamUnavailable, CoinID: coinID,
			Err: fmt.Errorf("decode: %w", err)}
	}

	series := &model.PriceSeries{
		CoinID:     coinID,
		VsCurrency: vsCurrency,
		Points:     make([]model.PricePoint, 0, len(chart.Prices)),
		FetchedAt:  time.Now(),
	}
	for i, pair := range chart.Prices {
		var volume float64
		if i < len(chart.TotalVolumes) {
			volume = chart.TotalVolumes[i][1]
		}
		series.Points = append(series.Points, model.PricePoint{
			Time:   time.UnixMilli(int64(pair[0])),
			Price:  pair[1],
			Volume: volume,
		})
	}
	series.Normalize()
	return series, nil
}
