package scoring

import (
	"sort"

	"CoinScreener/internal/model"
)

// rankEntry is one coin's standing in a single timeframe ranking pool.
type rankEntry struct {
	CoinID    string
	Change    float64 // raw percentage change
	RelChange float64 // change relative to the benchmark
	Volume    float64 // latest absolute volume, first tie-break
	Rank      int     // assigned 1-based position
}

// rankByChange orders entries by relative change descending. Ties resolve by
// higher absolute volume, then by coin_id ascending, so equal inputs always
// produce the same ordering.
func rankByChange(entries []rankEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.RelChange != b.RelChange {
			return a.RelChange > b.RelChange
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return a.CoinID < b.CoinID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// rankScore maps a 1-based ranking position to its weight tier.
func rankScore(rank int, w model.Weights) float64 {
	switch {
	case rank <= 0:
		return 0
	case rank <= 10:
		return w.RankTop10
	case rank <= 15:
		return w.RankTop15
	case rank <= 20:
		return w.RankTop20
	default:
		return 0
	}
}
