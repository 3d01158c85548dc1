package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"CoinScreener/internal/model"
)

// SQLiteStore persists series, score cards and cache snapshots to SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads do not block pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS historical_prices (
			coin_id     TEXT NOT NULL,
			vs_currency TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			price       REAL,
			volume      REAL,
			PRIMARY KEY (coin_id, vs_currency, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_coin ON historical_prices(coin_id)`,

		`CREATE TABLE IF NOT EXISTS screening_runs (
			run_id          TEXT PRIMARY KEY,
			evaluation_date INTEGER NOT NULL,
			direction       TEXT NOT NULL,
			coins           INTEGER,
			mean_score      REAL,
			min_score       REAL,
			max_score       REAL,
			started_at      INTEGER,
			finished_at     INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS score_cards (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			coin_id         TEXT NOT NULL,
			evaluation_date INTEGER NOT NULL,
			direction       TEXT NOT NULL,
			aggregate_score REAL,
			breakdown       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_run ON score_cards(run_id)`,

		`CREATE TABLE IF NOT EXISTS cache_entries (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			fetched_at  INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) SavePrices(coinID string, series *model.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO historical_prices
		(coin_id, vs_currency, timestamp, price, volume) VALUES (?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range series.Points {
		if _, err := stmt.Exec(coinID, series.VsCurrency, p.Time.Unix(), p.Price, p.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert price %s@%d: %w", coinID, p.Time.Unix(), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveRun(run *model.ScreeningRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO screening_runs
		(run_id, evaluation_date, direction, coins, mean_score, min_score, max_score, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.EvaluationDate.Unix(), string(run.Direction),
		run.Stats.Coins, run.Stats.MeanScore, run.Stats.MinScore, run.Stats.MaxScore,
		run.StartedAt.Unix(), run.FinishedAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) SaveScoreCard(runID string, card *model.ScoreCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	breakdown, err := json.Marshal(card.Timeframes)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO score_cards
		(run_id, coin_id, evaluation_date, direction, aggregate_score, breakdown)
		VALUES (?,?,?,?,?,?)`,
		runID, card.CoinID, card.EvaluationDate.Unix(), string(card.Direction),
		card.Aggregate, string(breakdown),
	)
	return err
}

func (s *SQLiteStore) SaveCached(key string, series *model.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO cache_entries (key, value, fetched_at)
		VALUES (?,?,?)`, key, string(value), series.FetchedAt.Unix())
	return err
}

func (s *SQLiteStore) LoadCached(key string) (*model.PriceSeries, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	var fetchedAt int64
	err := s.db.QueryRow(`SELECT value, fetched_at FROM cache_entries WHERE key = ?`, key).
		Scan(&value, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	var series model.PriceSeries
	if err := json.Unmarshal([]byte(value), &series); err != nil {
		// Corrupt snapshot: treat as absent, the caller refetches.
		log.Printf("[WARN] corrupt cache snapshot for %q, discarding: %v", key, err)
		s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, time.Time{}, false, nil
	}
	return &series, time.Unix(fetchedAt, 0), true, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
