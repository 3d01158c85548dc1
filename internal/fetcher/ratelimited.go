package fetcher

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"CoinScreener/internal/model"
)

// RateLimited wraps an upstream Fetcher with a shared token bucket, the retry
// policy, and a process-wide request counter. One instance is shared by every
// call site so the combined request rate stays under the provider's quota.
type RateLimited struct {
	inner    Fetcher
	limiter  *rate.Limiter
	policy   RetryPolicy
	requests atomic.Int64
	// ShortTolerance is the fraction of requested points that may be
	// missing before the fetch is flagged as a short series.
	ShortTolerance float64
}

// NewRateLimited builds the throttled wrapper. requestsPerMinute sizes the
// bucket refill rate; burst is the bucket capacity.
func NewRateLimited(inner Fetcher, requestsPerMinute, burst int, policy RetryPolicy) *RateLimited {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 14
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		inner:          inner,
		limiter:        rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
		policy:         policy,
		ShortTolerance: 0.2,
	}
}

func (r *RateLimited) Name() string { return r.inner.Name() + "+ratelimit" }

// Requests returns the total number of upstream calls issued so far.
func (r *RateLimited) Requests() int64 { return r.requests.Load() }

// Fetch acquires a token (suspending the caller if the bucket is drained),
// calls upstream with retries per the policy, and validates series length.
// A shorter-than-requested series is returned together with a ShortSeries
// error so callers see the data-quality condition instead of a silent gap.
func (r *RateLimited) Fetch(ctx context.Context, coinID, vsCurrency string, days int) (*model.PriceSeries, error) {
	var series *model.PriceSeries
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		s, err := r.inner.Fetch(ctx, coinID, vsCurrency, days)
		if err != nil {
			log.Printf("[WARN] fetch %s/%s: %v", coinID, vsCurrency, err)
			return err
		}
		r.requests.Add(1)
		series = s
		log.Printf("[INFO] fetched %s/%s: %d points in %s", coinID, vsCurrency, s.Len(), time.Since(start).Round(time.Millisecond))
		return nil
	})
	if err != nil {
		return nil, err
	}

	want := float64(days) * (1 - r.ShortTolerance)
	if float64(series.Len()) < want {
		return series, &FetchError{
			Kind:   KindShortSeries,
			CoinID: coinID,
			Err:    fmt.Errorf("got %d of %d requested points", series.Len(), days),
		}
	}
	return series, nil
}
