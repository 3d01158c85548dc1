package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"CoinScreener/internal/cache"
	"CoinScreener/internal/fetcher"
	"CoinScreener/internal/indicator"
	"CoinScreener/internal/model"
	"CoinScreener/internal/scoring"
	"CoinScreener/internal/store"
)

// Request is the invocation surface of one screening.
type Request struct {
	CoinIDs        []string
	EvaluationDate time.Time
	Direction      model.Direction
	Timeframes     []int
	SMAPeriods     []int
}

// Pipeline orchestrates fetch, cache, indicator and scoring for a coin set.
// The cache and rate limiter are explicit dependencies shared across runs.
type Pipeline struct {
	Fetcher      fetcher.Fetcher
	Cache        *cache.Cache
	Engine       *scoring.Engine
	Store        store.Store
	VsCurrency   string
	SeriesTTL    time.Duration
	IndicatorTTL time.Duration
	Workers      int
}

// New wires a pipeline with defaults matching the free-tier provider quota.
func New(f fetcher.Fetcher, c *cache.Cache, e *scoring.Engine, st store.Store, vsCurrency string) *Pipeline {
	if st == nil {
		st = store.NewNoop()
	}
	if vsCurrency == "" {
		vsCurrency = "btc"
	}
	return &Pipeline{
		Fetcher:      f,
		Cache:        c,
		Engine:       e,
		Store:        st,
		VsCurrency:   vsCurrency,
		SeriesTTL:    24 * time.Hour,
		IndicatorTTL: 2 * time.Hour,
		Workers:      4,
	}
}

// validate rejects malformed requests before any fetch is issued.
func (p *Pipeline) validate(req Request) error {
	if !req.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", req.Direction)
	}
	if req.EvaluationDate.IsZero() {
		return errors.New("evaluation date is required")
	}
	if len(req.Timeframes) == 0 {
		return errors.New("at least one timeframe is required")
	}
	for _, tf := range req.Timeframes {
		if tf <= 0 {
			return fmt.Errorf("invalid timeframe %d", tf)
		}
	}
	for _, period := range req.SMAPeriods {
		if period <= 0 {
			return fmt.Errorf("invalid SMA period %d", period)
		}
	}
	return nil
}

// lookbackDays resolves the maximum history window needed so each coin is
// fetched exactly once, covering every timeframe and SMA period plus the gap
// between the evaluation date and now.
func (p *Pipeline) lookbackDays(req Request) int {
	maxNeed := 0
	for _, tf := range req.Timeframes {
		if tf > maxNeed {
			maxNeed = tf
		}
	}
	for _, period := range req.SMAPeriods {
		if period > maxNeed {
			maxNeed = period
		}
	}
	maxNeed += 5 // slack for provider gaps

	if since := int(time.Since(req.EvaluationDate).Hours() / 24); since > 0 {
		maxNeed += since
	}
	return maxNeed
}

// Run executes one screening. Coins whose fetch fails non-retryably are
// excluded with a recorded reason; the run completes for the rest. Only a
// malformed request fails the run as a whole.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.ScreeningRun, error) {
	if err := p.validate(req); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	run := &model.ScreeningRun{
		ID:             uuid.NewString(),
		EvaluationDate: req.EvaluationDate,
		Direction:      req.Direction,
		Timeframes:     append([]int(nil), req.Timeframes...),
		SMAPeriods:     append([]int(nil), req.SMAPeriods...),
		StartedAt:      time.Now(),
	}
	sort.Ints(run.Timeframes)
	sort.Ints(run.SMAPeriods)

	days := p.lookbackDays(req)
	log.Printf("[INFO] run %s: %d coins, direction=%s, lookback=%dd",
		run.ID, len(req.CoinIDs), req.Direction, days)

	universe := make(map[string]scoring.CoinData, len(req.CoinIDs))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(p.workers())
	for _, coinID := range req.CoinIDs {
		coinID := coinID
		g.Go(func() error {
			// Canceled runs skip coins not yet started; in-flight
			// fetches complete and populate the cache.
			if ctx.Err() != nil {
				mu.Lock()
				run.Failures = append(run.Failures, model.CoinFailure{
					CoinID: coinID, Reason: "Canceled",
				})
				mu.Unlock()
				return nil
			}

			series, err := p.fetchSeries(ctx, coinID, days)
			if err != nil {
				reason := fetcher.KindOf(err).String()
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					reason = "Canceled"
				}
				mu.Lock()
				run.Failures = append(run.Failures, model.CoinFailure{
					CoinID: coinID, Reason: reason,
				})
				mu.Unlock()
				log.Printf("[WARN] run %s: excluding %s: %v", run.ID, coinID, err)
				return nil
			}

			set, err := p.deriveIndicators(ctx, series, req.SMAPeriods)
			if err != nil {
				mu.Lock()
				run.Failures = append(run.Failures, model.CoinFailure{
					CoinID: coinID, Reason: fmt.Sprintf("indicators: %v", err),
				})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			universe[coinID] = scoring.CoinData{Series: series, Indicators: set}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	run.Cards = p.Engine.Score(universe, req.EvaluationDate, req.Direction, req.Timeframes, req.SMAPeriods)
	sort.Slice(run.Failures, func(i, j int) bool {
		return run.Failures[i].CoinID < run.Failures[j].CoinID
	})
	run.Stats = statsOf(run.Cards)
	run.FinishedAt = time.Now()

	p.persist(run)

	stats := p.Cache.Stats()
	log.Printf("[INFO] run %s finished: %d scored, %d excluded, cache hits=%d misses=%d",
		run.ID, len(run.Cards), len(run.Failures), stats.Hits, stats.Misses)
	return run, nil
}

func (p *Pipeline) workers() int {
	if p.Workers <= 0 {
		return 1
	}
	return p.Workers
}

// fetchTimeout bounds one upstream fetch including its retries, replacing the
// run context's cancellation for work that has already started.
const fetchTimeout = 5 * time.Minute

// fetchSeries resolves a coin's series through the cache, consulting the
// persisted snapshot before going upstream. A value of an unexpected type is
// treated as corruption: the entry is discarded and fetched again.
func (p *Pipeline) fetchSeries(ctx context.Context, coinID string, days int) (*model.PriceSeries, error) {
	key := seriesKey(coinID, p.VsCurrency, days)

	for attempt := 0; attempt < 2; attempt++ {
		v, err := p.Cache.GetOrFetch(ctx, key, p.SeriesTTL, func(ctx context.Context) (any, error) {
			// A fetch that has started runs to completion even when the
			// run is canceled, so the cache and store still gain the
			// series. The caller's wait stays bounded by the run context.
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
			defer cancel()
			return p.fetchUpstream(fctx, coinID, days, key)
		})
		if err != nil {
			return nil, err
		}
		series, ok := v.(*model.PriceSeries)
		if ok {
			return series, nil
		}
		log.Printf("[WARN] cache corruption for %q: unexpected %T, refetching", key, v)
		p.Cache.Invalidate(func(k string, _ cache.Entry) bool { return k == key })
	}
	return nil, fmt.Errorf("cache corruption for %q persisted across refetch", key)
}

func (p *Pipeline) fetchUpstream(ctx context.Context, coinID string, days int, key string) (*model.PriceSeries, error) {
	if snap, fetchedAt, ok, err := p.Store.LoadCached(key); err == nil && ok {
		if time.Since(fetchedAt) < p.SeriesTTL && snap.Len() > 0 {
			log.Printf("[INFO] %s: using persisted snapshot from %s", coinID, fetchedAt.Format(time.RFC3339))
			return snap, nil
		}
	} else if err != nil {
		log.Printf("[WARN] load cached %q: %v", key, err)
	}

	series, err := p.Fetcher.Fetch(ctx, coinID, p.VsCurrency, days)
	if err != nil {
		if fetcher.KindOf(err) == fetcher.KindShortSeries && series != nil && series.Len() > 0 {
			// Data-quality condition: keep the partial series but surface it.
			log.Printf("[WARN] %s: short series: %v", coinID, err)
		} else {
			return nil, err
		}
	}

	if err := p.Store.SaveCached(key, series); err != nil {
		log.Printf("[WARN] persist cache entry %q: %v", key, err)
	}
	if err := p.Store.SavePrices(coinID, series); err != nil {
		log.Printf("[WARN] persist prices for %s: %v", coinID, err)
	}
	return series, nil
}

// deriveIndicators memoizes the SMA computation keyed by series identity, so
// refreshed series never resolve to indicators of their predecessor.
func (p *Pipeline) deriveIndicators(ctx context.Context, series *model.PriceSeries, periods []int) (*model.IndicatorSet, error) {
	if len(periods) == 0 {
		return &model.IndicatorSet{CoinID: series.CoinID, Values: map[int][]float64{}}, nil
	}
	key := indicator.CacheKey(series, periods)
	v, err := p.Cache.GetOrFetch(ctx, key, p.IndicatorTTL, func(context.Context) (any, error) {
		return indicator.ComputeSMA(series, periods)
	})
	if err != nil {
		return nil, err
	}
	set, ok := v.(*model.IndicatorSet)
	if !ok {
		p.Cache.Invalidate(func(k string, _ cache.Entry) bool { return k == key })
		fresh, err := indicator.ComputeSMA(series, periods)
		if err != nil {
			return nil, err
		}
		return fresh, nil
	}
	return set, nil
}

// BustCoin drops every cached entry (series and derived indicators) for a
// coin, forcing the next run to refetch. The coin field is matched
// positionally so a coin id that doubles as a quote currency cannot sweep
// unrelated entries.
func (p *Pipeline) BustCoin(coinID string) int {
	seriesPrefix := "series|" + coinID + "|"
	smaPrefix := "sma|" + coinID + "|"
	return p.Cache.Invalidate(func(key string, _ cache.Entry) bool {
		return strings.HasPrefix(key, seriesPrefix) || strings.HasPrefix(key, smaPrefix)
	})
}

func (p *Pipeline) persist(run *model.ScreeningRun) {
	if err := p.Store.SaveRun(run); err != nil {
		log.Printf("[ERROR] persist run %s: %v", run.ID, err)
		return
	}
	for i := range run.Cards {
		if err := p.Store.SaveScoreCard(run.ID, &run.Cards[i]); err != nil {
			log.Printf("[ERROR] persist card %s/%s: %v", run.ID, run.Cards[i].CoinID, err)
		}
	}
}

func seriesKey(coinID, vsCurrency string, days int) string {
	return fmt.Sprintf("series|%s|%s|%dd", coinID, vsCurrency, days)
}

func statsOf(cards []model.ScoreCard) model.RunStats {
	stats := model.RunStats{Coins: len(cards)}
	if len(cards) == 0 {
		return stats
	}
	stats.MinScore = cards[0].Aggregate
	stats.MaxScore = cards[0].Aggregate
	var sum float64
	for _, c := range cards {
		sum += c.Aggregate
		if c.Aggregate < stats.MinScore {
			stats.MinScore = c.Aggregate
		}
		if c.Aggregate > stats.MaxScore {
			stats.MaxScore = c.Aggregate
		}
	}
	stats.MeanScore = sum / float64(len(cards))
	return stats
}
