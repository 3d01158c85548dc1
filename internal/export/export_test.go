package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinScreener/internal/model"
)

func sampleRun() *model.ScreeningRun {
	evalDate := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return &model.ScreeningRun{
		ID:             "run-export",
		EvaluationDate: evalDate,
		Direction:      model.DirectionBackward,
		Timeframes:     []int{1, 7},
		Cards: []model.ScoreCard{
			{
				CoinID:         "bitcoin",
				EvaluationDate: evalDate,
				Direction:      model.DirectionBackward,
				Aggregate:      8,
				Volume:         1_250_000,
				Timeframes: []model.TimeframeScore{
					{Timeframe: 1, Change: 0.0123, Subtotal: 4},
					{Timeframe: 7, Change: 0.0456, Subtotal: 4},
				},
			},
			{
				CoinID:         "ethereum",
				EvaluationDate: evalDate,
				Direction:      model.DirectionBackward,
				Aggregate:      3,
				Volume:         640_000,
				Timeframes: []model.TimeframeScore{
					{Timeframe: 1, Change: -0.004, Subtotal: 3},
					{Timeframe: 7, Excluded: true},
				},
			},
		},
		Stats: model.RunStats{Coins: 2, MeanScore: 5.5, MinScore: 3, MaxScore: 8},
	}
}

func TestWriteRunProducesBothFormats(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)
	run := sampleRun()

	require.NoError(t, e.WriteRun(run))

	csvPath := filepath.Join(dir, "leaderboard_backward_2024-05-10.csv")
	jsonPath := filepath.Join(dir, "leaderboard_backward_2024-05-10.json")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3, "header plus one row per card")
	assert.Equal(t, []string{"rank", "coin", "score", "volume", "change_1d", "score_1d", "change_7d", "score_7d"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "bitcoin", rows[1][1])
	assert.Equal(t, "1.25 M", rows[1][3])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "ethereum", rows[2][1])
	assert.Equal(t, "", rows[2][6], "excluded timeframes export as blanks")
	assert.Equal(t, "", rows[2][7])

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded model.ScreeningRun
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, run.ID, decoded.ID)
	require.Len(t, decoded.Cards, 2)
	assert.Equal(t, run.Cards[0].Aggregate, decoded.Cards[0].Aggregate)
}

func TestWriteRunCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "outputs")
	e := New(dir)

	require.NoError(t, e.WriteRun(sampleRun()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
