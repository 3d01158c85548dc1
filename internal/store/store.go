package store

import (
	"time"

	"CoinScreener/internal/model"
)

// Store persists fetched series and finalized score cards. The pipeline only
// needs these operations to be available; the backing storage is pluggable.
type Store interface {
	SavePrices(coinID string, series *model.PriceSeries) error
	SaveRun(run *model.ScreeningRun) error
	SaveScoreCard(runID string, card *model.ScoreCard) error
	// LoadCached returns a persisted cache snapshot for the key, with its
	// original fetch time so TTL checks still apply, or absent.
	LoadCached(key string) (*model.PriceSeries, time.Time, bool, error)
	SaveCached(key string, series *model.PriceSeries) error
	Close() error
}
