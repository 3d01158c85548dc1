package indicator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"CoinScreener/internal/model"
)

// ComputeSMA computes simple moving averages of the series for every period.
// For period P the result holds len(series)-P+1 values, the i-th being the
// mean of prices[i .. i+P-1]; positions before the window fills are absent,
// never zero-filled. Gaps in the series are taken as provided, no synthetic
// interpolation. Pure function: identical inputs yield identical output.
func ComputeSMA(series *model.PriceSeries, periods []int) (*model.IndicatorSet, error) {
	if series == nil {
		return nil, errors.New("nil series")
	}
	prices := series.Prices()
	set := &model.IndicatorSet{
		CoinID:  series.CoinID,
		Values:  make(map[int][]float64, len(periods)),
		Periods: append([]int(nil), periods...),
	}
	sort.Ints(set.Periods)

	for _, period := range set.Periods {
		if period <= 0 {
			return nil, fmt.Errorf("invalid SMA period %d", period)
		}
		if len(prices) < period {
			continue // entire period undefined for this series
		}
		vals := make([]float64, 0, len(prices)-period+1)
		var sum float64
		for i, p := range prices {
			sum += p
			if i >= period {
				sum -= prices[i-period]
			}
			if i >= period-1 {
				vals = append(vals, sum/float64(period))
			}
		}
		set.Values[period] = vals
	}
	return set, nil
}

// CacheKey derives the memoization key for a series' indicator set. The
// fetch timestamp is part of the key, so a refreshed series never resolves
// to indicators derived from its predecessor.
func CacheKey(series *model.PriceSeries, periods []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sma|%s|%s|%d|", series.CoinID, series.VsCurrency, series.FetchedAt.UnixNano())
	sorted := append([]int(nil), periods...)
	sort.Ints(sorted)
	for _, p := range sorted {
		fmt.Fprintf(&b, "%d,", p)
	}
	return b.String()
}
