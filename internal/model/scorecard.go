package model

import "time"

// Direction selects which side of the evaluation date a timeframe window covers.
type Direction string

const (
	DirectionBackward Direction = "backward" // compare evaluation date to N days before
	DirectionForward  Direction = "forward"  // compare evaluation date to N days after
)

// Valid reports whether d is a recognized direction.
func (d Direction) Valid() bool {
	return d == DirectionBackward || d == DirectionForward
}

// Weights enumerates every recognized scoring option with its default.
type Weights struct {
	RankTop10 float64 `yaml:"rank_top10"`
	RankTop15 float64 `yaml:"rank_top15"`
	RankTop20 float64 `yaml:"rank_top20"`
	SMAAbove  float64 `yaml:"sma_above"`
	SMABelow  float64 `yaml:"sma_below"`
	// SMAPeriod scales the signal per period; unlisted periods weigh 1.
	SMAPeriod map[int]float64 `yaml:"sma_period"`
}

// DefaultWeights returns the stock scoring weights: 3/2/1 rank tiers and
// per-period SMA multipliers of 1/2/3 for the 6/11/21 day averages.
func DefaultWeights() Weights {
	return Weights{
		RankTop10: 3,
		RankTop15: 2,
		RankTop20: 1,
		SMAAbove:  1,
		SMABelow:  1,
		SMAPeriod: map[int]float64{6: 1, 11: 2, 21: 3},
	}
}

// PeriodWeight returns the multiplier for an SMA period, defaulting to 1.
func (w Weights) PeriodWeight(period int) float64 {
	if w.SMAPeriod == nil {
		return 1
	}
	if m, ok := w.SMAPeriod[period]; ok {
		return m
	}
	return 1
}

// TimeframeScore holds the scoring breakdown of one coin for one timeframe.
type TimeframeScore struct {
	Timeframe int     // day count of the window
	Change    float64 // percentage price change over the window
	RelChange float64 // change minus the benchmark's change
	Rank      int     // 1-based position in the timeframe ranking, 0 if excluded
	RankScore float64
	// SMASignals maps SMA period to its signed signal contribution;
	// periods with insufficient history are absent.
	SMASignals map[int]float64
	Subtotal   float64
	// Excluded is set when the coin lacked the history for this window;
	// every score field is then zero.
	Excluded bool
}

// ScoreCard is the finalized per-coin output of one screening run.
type ScoreCard struct {
	CoinID         string
	EvaluationDate time.Time
	Direction      Direction
	Timeframes     []TimeframeScore
	Aggregate      float64
	// Volume is the latest absolute volume of the coin's series, carried
	// for reporting and as the documented tie-break input.
	Volume float64
}

// CoinFailure records why a coin was excluded from a run.
type CoinFailure struct {
	CoinID string
	Reason string
}

// RunStats summarizes the aggregate score distribution of a run.
type RunStats struct {
	Coins     int
	MeanScore float64
	MinScore  float64
	MaxScore  float64
}

// ScreeningRun is the ordered result set of one screening for one
// evaluation date and direction. Cards are sorted by aggregate score
// descending; the ordering is immutable once the run is finalized.
type ScreeningRun struct {
	ID             string
	EvaluationDate time.Time
	Direction      Direction
	Timeframes     []int
	SMAPeriods     []int
	Cards          []ScoreCard
	Failures       []CoinFailure
	Stats          RunStats
	StartedAt      time.Time
	FinishedAt     time.Time
}
