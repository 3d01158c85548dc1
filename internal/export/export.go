package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"CoinScreener/internal/model"
)

// Exporter writes finalized screening runs to disk as CSV and JSON
// leaderboards.
type Exporter struct {
	OutputDir string
}

func New(outputDir string) *Exporter {
	return &Exporter{OutputDir: outputDir}
}

// WriteRun writes both the CSV and JSON leaderboard for a run.
func (e *Exporter) WriteRun(run *model.ScreeningRun) error {
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	base := fmt.Sprintf("leaderboard_%s_%s", run.Direction, run.EvaluationDate.Format("2006-01-02"))
	if err := e.writeCSV(filepath.Join(e.OutputDir, base+".csv"), run); err != nil {
		return err
	}
	return e.writeJSON(filepath.Join(e.OutputDir, base+".json"), run)
}

func (e *Exporter) writeCSV(path string, run *model.ScreeningRun) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"rank", "coin", "score", "volume"}
	for _, tf := range run.Timeframes {
		header = append(header, fmt.Sprintf("change_%dd", tf), fmt.Sprintf("score_%dd", tf))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, card := range run.Cards {
		row := []string{
			strconv.Itoa(i + 1),
			card.CoinID,
			strconv.FormatFloat(card.Aggregate, 'f', 1, 64),
			humanize.SIWithDigits(card.Volume, 2, ""),
		}
		for _, ts := range card.Timeframes {
			if ts.Excluded {
				row = append(row, "", "")
				continue
			}
			row = append(row,
				strconv.FormatFloat(ts.Change, 'f', 4, 64),
				strconv.FormatFloat(ts.Subtotal, 'f', 1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeJSON(path string, run *model.ScreeningRun) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
