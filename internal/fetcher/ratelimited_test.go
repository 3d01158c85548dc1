package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinScreener/internal/model"
)

// scriptedFetcher returns queued responses in order, then repeats the last.
type scriptedFetcher struct {
	calls     atomic.Int32
	responses []func() (*model.PriceSeries, error)
}

func (s *scriptedFetcher) Name() string { return "scripted" }

func (s *scriptedFetcher) Fetch(_ context.Context, coinID, vsCurrency string, days int) (*model.PriceSeries, error) {
	n := int(s.calls.Add(1)) - 1
	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	return s.responses[n]()
}

func fullSeries(coinID string, days int) *model.PriceSeries {
	s := &model.PriceSeries{CoinID: coinID, VsCurrency: "btc", FetchedAt: time.Now()}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		s.Points = append(s.Points, model.PricePoint{Time: base.AddDate(0, 0, i), Price: 100})
	}
	return s
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
		Retryable:      Retryable,
	}
}

func TestRateLimited_RetriesTransientThenSucceeds(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) {
			return nil, &FetchError{Kind: KindUpstreamUnavailable, CoinID: "bitcoin"}
		},
		func() (*model.PriceSeries, error) {
			return nil, &FetchError{Kind: KindQuotaExceeded, CoinID: "bitcoin"}
		},
		func() (*model.PriceSeries, error) { return fullSeries("bitcoin", 30), nil },
	}}

	r := NewRateLimited(upstream, 6000, 10, fastPolicy())
	series, err := r.Fetch(context.Background(), "bitcoin", "btc", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, series.Len())
	assert.Equal(t, int32(3), upstream.calls.Load())
	assert.Equal(t, int64(1), r.Requests(), "only the successful call counts against the quota")
}

func TestRateLimited_InvalidCoinFailsImmediately(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) {
			return nil, &FetchError{Kind: KindInvalidCoin, CoinID: "nope"}
		},
	}}

	r := NewRateLimited(upstream, 6000, 10, fastPolicy())
	_, err := r.Fetch(context.Background(), "nope", "btc", 30)
	require.Error(t, err)
	assert.Equal(t, KindInvalidCoin, KindOf(err))
	assert.Equal(t, int32(1), upstream.calls.Load(), "non-retryable failures get a single attempt")
}

func TestRateLimited_FatalFailsImmediately(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) {
			return nil, &FetchError{Kind: KindFatal, CoinID: "bitcoin", Err: errors.New("bad key")}
		},
	}}

	r := NewRateLimited(upstream, 6000, 10, fastPolicy())
	_, err := r.Fetch(context.Background(), "bitcoin", "btc", 30)
	require.Error(t, err)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestRateLimited_ExhaustedAttemptsSurfaceLastError(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) {
			return nil, &FetchError{Kind: KindUpstreamUnavailable, CoinID: "bitcoin"}
		},
	}}

	r := NewRateLimited(upstream, 6000, 10, fastPolicy())
	_, err := r.Fetch(context.Background(), "bitcoin", "btc", 30)
	require.Error(t, err)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
	assert.Equal(t, int32(3), upstream.calls.Load(), "bounded attempts")
}

func TestRateLimited_ShortSeriesReported(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) { return fullSeries("bitcoin", 10), nil },
	}}

	r := NewRateLimited(upstream, 6000, 10, fastPolicy())
	series, err := r.Fetch(context.Background(), "bitcoin", "btc", 30)
	require.Error(t, err)
	assert.Equal(t, KindShortSeries, KindOf(err))
	require.NotNil(t, series, "the partial series accompanies the condition")
	assert.Equal(t, 10, series.Len())
}

func TestRateLimited_ShortToleranceAllowsSmallGaps(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) { return fullSeries("bitcoin", 28), nil },
	}}

	r := NewRateLimited(upstream, 6000, 10, fastPolicy())
	series, err := r.Fetch(context.Background(), "bitcoin", "btc", 30)
	require.NoError(t, err, "28 of 30 points is within the default tolerance")
	assert.Equal(t, 28, series.Len())
}

func TestRateLimited_SuspendsWhenBucketDrained(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) { return fullSeries("bitcoin", 30), nil },
	}}

	// 600 req/min = 10/s with burst 1: the 3rd call cannot start before
	// ~200ms of token refill.
	r := NewRateLimited(upstream, 600, 1, fastPolicy())
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := r.Fetch(context.Background(), "bitcoin", "btc", 30)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond,
		"callers must suspend for tokens, not fail")
	assert.Equal(t, int64(3), r.Requests())
}

func TestRateLimited_WaitHonorsContext(t *testing.T) {
	upstream := &scriptedFetcher{responses: []func() (*model.PriceSeries, error){
		func() (*model.PriceSeries, error) { return fullSeries("bitcoin", 30), nil },
	}}

	// 1 req/min with an empty bucket: the wait exceeds the context deadline.
	r := NewRateLimited(upstream, 1, 1, fastPolicy())
	_, err := r.Fetch(context.Background(), "bitcoin", "btc", 30) // drains the bucket
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Fetch(ctx, "bitcoin", "btc", 30)
	require.Error(t, err)
	assert.Equal(t, int32(1), upstream.calls.Load())
}
