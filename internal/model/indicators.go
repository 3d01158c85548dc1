package model

// IndicatorSet maps an SMA period to its series of moving-average values.
// Values for period P are aligned so that Values[P][i] is the SMA at series
// index P-1+i; positions before the window fills are simply absent.
type IndicatorSet struct {
	CoinID  string
	Values  map[int][]float64
	Periods []int
}

// At returns the SMA value for the given period at the given series index.
// The second return is false when the window has not filled at that index or
// the period was never computed.
func (is *IndicatorSet) At(period, seriesIndex int) (float64, bool) {
	vals, ok := is.Values[period]
	if !ok {
		return 0, false
	}
	i := seriesIndex - (period - 1)
	if i < 0 || i >= len(vals) {
		return 0, false
	}
	return vals[i], true
}
