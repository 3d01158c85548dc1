package indicator

import "CoinScreener/internal/model"

// ChangeAt computes the percentage price change over a timeframe of daily
// points around the evaluation index. Backward compares evalIdx to evalIdx-N,
// forward compares evalIdx+N to evalIdx. The second return is false when the
// series lacks the history for the requested window or a start price of zero
// makes the change undefined.
func ChangeAt(series *model.PriceSeries, evalIdx, timeframe int, dir model.Direction) (float64, bool) {
	if series == nil || evalIdx < 0 || evalIdx >= series.Len() || timeframe <= 0 {
		return 0, false
	}
	var startIdx, endIdx int
	switch dir {
	case model.DirectionBackward:
		startIdx, endIdx = evalIdx-timeframe, evalIdx
	case model.DirectionForward:
		startIdx, endIdx = evalIdx, evalIdx+timeframe
	default:
		return 0, false
	}
	if startIdx < 0 || endIdx >= series.Len() {
		return 0, false
	}
	start := series.Points[startIdx].Price
	if start == 0 {
		return 0, false
	}
	end := series.Points[endIdx].Price
	return (end - start) / start * 100, true
}
