package store

import (
	"time"

	"CoinScreener/internal/model"
)

// Noop is a no-op implementation used when SQLite is not configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) SavePrices(_ string, _ *model.PriceSeries) error  { return nil }
func (n *Noop) SaveRun(_ *model.ScreeningRun) error              { return nil }
func (n *Noop) SaveScoreCard(_ string, _ *model.ScoreCard) error { return nil }
func (n *Noop) SaveCached(_ string, _ *model.PriceSeries) error  { return nil }
func (n *Noop) Close() error                                     { return nil }

func (n *Noop) LoadCached(_ string) (*model.PriceSeries, time.Time, bool, error) {
	return nil, time.Time{}, false, nil
}
