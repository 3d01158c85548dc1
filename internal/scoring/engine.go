package scoring

import (
	"sort"
	"time"

	"CoinScreener/internal/indicator"
	"CoinScreener/internal/model"
)

// CoinData bundles the inputs the engine needs per coin.
type CoinData struct {
	Series     *model.PriceSeries
	Indicators *model.IndicatorSet
}

// Engine combines per-timeframe rank scores and SMA signals into one
// comparable score per coin. It holds no state between runs: identical
// inputs always produce identical score cards in identical order.
type Engine struct {
	Weights model.Weights
	// Benchmark names the coin whose change anchors the rankings. An empty
	// or absent benchmark ranks coins by their raw change.
	Benchmark string
}

// NewEngine creates a scoring engine. Weights are taken as given, zeros
// included; defaulting for unset configuration happens at config load.
func NewEngine(w model.Weights, benchmark string) *Engine {
	return &Engine{Weights: w, Benchmark: benchmark}
}

// Score produces one ScoreCard per universe coin, sorted by aggregate score
// descending (coin_id ascending on ties). A coin missing the history for a
// timeframe contributes zero for that timeframe and is excluded from its
// ranking pool, leaving other coins' ranks intact. An empty universe yields
// an empty result, not an error.
func (e *Engine) Score(universe map[string]CoinData, evalDate time.Time, dir model.Direction, timeframes, smaPeriods []int) []model.ScoreCard {
	coinIDs := make([]string, 0, len(universe))
	for id := range universe {
		coinIDs = append(coinIDs, id)
	}
	sort.Strings(coinIDs)

	// Evaluation index per coin: last point at or before the evaluation date.
	evalIdx := make(map[string]int, len(universe))
	for id, data := range universe {
		evalIdx[id] = data.Series.IndexAtOrBefore(evalDate)
	}

	cards := make(map[string]*model.ScoreCard, len(universe))
	for _, id := range coinIDs {
		cards[id] = &model.ScoreCard{
			CoinID:         id,
			EvaluationDate: evalDate,
			Direction:      dir,
			Volume:         universe[id].Series.LatestVolume(),
		}
	}

	sortedTimeframes := append([]int(nil), timeframes...)
	sort.Ints(sortedTimeframes)

	for _, tf := range sortedTimeframes {
		benchChange := e.benchmarkChange(universe, evalIdx, tf, dir)

		// Build the ranking pool from coins with sufficient history.
		pool := make([]rankEntry, 0, len(coinIDs))
		excluded := make(map[string]bool)
		for _, id := range coinIDs {
			data := universe[id]
			change, ok := indicator.ChangeAt(data.Series, evalIdx[id], tf, dir)
			if !ok {
				excluded[id] = true
				continue
			}
			pool = append(pool, rankEntry{
				CoinID:    id,
				Change:    change,
				RelChange: change - benchChange,
				Volume:    data.Series.LatestVolume(),
			})
		}
		rankByChange(pool)
		byID := make(map[string]rankEntry, len(pool))
		for _, entry := range pool {
			byID[entry.CoinID] = entry
		}

		for _, id := range coinIDs {
			card := cards[id]
			ts := model.TimeframeScore{Timeframe: tf, SMASignals: map[int]float64{}}
			if excluded[id] {
				ts.Excluded = true
				card.Timeframes = append(card.Timeframes, ts)
				continue
			}
			entry := byID[id]
			ts.Change = entry.Change
			ts.RelChange = entry.RelChange
			ts.Rank = entry.Rank
			ts.RankScore = rankScore(entry.Rank, e.Weights)
			ts.Subtotal = ts.RankScore

			for _, period := range smaPeriods {
				signal, ok := e.smaSignal(universe[id], evalIdx[id], period)
				if !ok {
					continue // insufficient history: excluded, not "below"
				}
				ts.SMASignals[period] = signal
				ts.Subtotal += signal
			}

			card.Timeframes = append(card.Timeframes, ts)
			card.Aggregate += ts.Subtotal
		}
	}

	out := make([]model.ScoreCard, 0, len(cards))
	for _, id := range coinIDs {
		out = append(out, *cards[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Aggregate != out[j].Aggregate {
			return out[i].Aggregate > out[j].Aggregate
		}
		return out[i].CoinID < out[j].CoinID
	})
	return out
}

// benchmarkChange returns the benchmark coin's change for the timeframe, or 0
// when no benchmark is configured or it lacks the history. A constant shift
// does not alter the ordering, only the reported relative changes.
func (e *Engine) benchmarkChange(universe map[string]CoinData, evalIdx map[string]int, tf int, dir model.Direction) float64 {
	if e.Benchmark == "" {
		return 0
	}
	data, ok := universe[e.Benchmark]
	if !ok {
		return 0
	}
	change, ok := indicator.ChangeAt(data.Series, evalIdx[e.Benchmark], tf, dir)
	if !ok {
		return 0
	}
	return change
}

// smaSignal compares the evaluation-date price to the SMA of one period:
// above contributes +period_weight*sma_above, below -period_weight*sma_below.
// The second return is false when the SMA is undefined at that index.
func (e *Engine) smaSignal(data CoinData, evalIdx, period int) (float64, bool) {
	if data.Indicators == nil || evalIdx < 0 || evalIdx >= data.Series.Len() {
		return 0, false
	}
	sma, ok := data.Indicators.At(period, evalIdx)
	if !ok {
		return 0, false
	}
	price := data.Series.Points[evalIdx].Price
	weight := e.Weights.PeriodWeight(period)
	if price > sma {
		return weight * e.Weights.SMAAbove, true
	}
	return -weight * e.Weights.SMABelow, true
}
