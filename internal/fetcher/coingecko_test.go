package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chartBody renders a market_chart response with n daily points.
func chartBody(n int) string {
	prices, volumes := "", ""
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if i > 0 {
			prices += ","
			volumes += ","
		}
		ts := base.AddDate(0, 0, i).UnixMilli()
		prices += fmt.Sprintf("[%d,%0.2f]", ts, 100.0+float64(i))
		volumes += fmt.Sprintf("[%d,%0.2f]", ts, 1000.0)
	}
	return fmt.Sprintf(`{"prices":[%s],"total_volumes":[%s]}`, prices, volumes)
}

func TestFetch_DecodesSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/coins/bitcoin/market_chart")
		assert.Equal(t, "btc", r.URL.Query().Get("vs_currency"))
		fmt.Fprint(w, chartBody(30))
	}))
	defer srv.Close()

	f := NewCoinGeckoFetcher(srv.URL, "", "")
	series, err := f.Fetch(context.Background(), "bitcoin", "btc", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, series.Len())
	assert.Equal(t, "bitcoin", series.CoinID)
	assert.Equal(t, 100.0, series.Points[0].Price)
	assert.Equal(t, 1000.0, series.Points[0].Volume)

	// Normalized: strictly increasing timestamps.
	for i := 1; i < series.Len(); i++ {
		assert.True(t, series.Points[i].Time.After(series.Points[i-1].Time))
	}
}

func TestFetch_SendsAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-cg-demo-api-key"))
		fmt.Fprint(w, chartBody(1))
	}))
	defer srv.Close()

	f := NewCoinGeckoFetcher(srv.URL, "secret", "")
	_, err := f.Fetch(context.Background(), "bitcoin", "btc", 1)
	require.NoError(t, err)
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, KindQuotaExceeded},
		{"unknown coin", http.StatusNotFound, KindInvalidCoin},
		{"bad key", http.StatusUnauthorized, KindFatal},
		{"forbidden", http.StatusForbidden, KindFatal},
		{"server error", http.StatusInternalServerError, KindUpstreamUnavailable},
		{"bad gateway", http.StatusBadGateway, KindUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := NewCoinGeckoFetcher(srv.URL, "", "")
			_, err := f.Fetch(context.Background(), "somecoin", "btc", 7)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestFetch_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused

	f := NewCoinGeckoFetcher(srv.URL, "", "")
	_, err := f.Fetch(context.Background(), "bitcoin", "btc", 7)
	require.Error(t, err)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
	assert.True(t, Retryable(err))
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"prices": "not an array"`)
	}))
	defer srv.Close()

	f := NewCoinGeckoFetcher(srv.URL, "", "")
	_, err := f.Fetch(context.Background(), "bitcoin", "btc", 7)
	require.Error(t, err)
}
