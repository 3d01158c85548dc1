package model

import (
	"sort"
	"time"
)

// PricePoint is a single observation in a price series.
type PricePoint struct {
	Time   time.Time
	Price  float64
	Volume float64
}

// PriceSeries holds the historical prices for one coin in one quote currency.
// Points are ordered by strictly increasing timestamp.
type PriceSeries struct {
	CoinID     string
	VsCurrency string
	Points     []PricePoint
	FetchedAt  time.Time
}

// Len returns the number of points in the series.
func (s *PriceSeries) Len() int { return len(s.Points) }

// Prices returns the price column of the series.
func (s *PriceSeries) Prices() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.Price
	}
	return prices
}

// LatestVolume returns the volume of the most recent point, or 0 for an empty series.
func (s *PriceSeries) LatestVolume() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Volume
}

// IndexAtOrBefore returns the index of the last point with Time <= t, or -1
// if every point is later than t.
func (s *PriceSeries) IndexAtOrBefore(t time.Time) int {
	i := sort.Search(len(s.Points), func(i int) bool {
		return s.Points[i].Time.After(t)
	})
	return i - 1
}

// Normalize sorts points by time and drops duplicate timestamps, keeping the
// last observation for each. Upstream responses occasionally repeat the most
// recent day.
func (s *PriceSeries) Normalize() {
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Time.Before(s.Points[j].Time)
	})
	out := s.Points[:0]
	for _, p := range s.Points {
		if len(out) > 0 && out[len(out)-1].Time.Equal(p.Time) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	s.Points = out
}
