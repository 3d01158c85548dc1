package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"CoinScreener/internal/model"
)

// Config holds all application configuration.
type Config struct {
	API struct {
		BaseURL           string `yaml:"base_url"`
		APIKey            string `yaml:"api_key"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		Burst             int    `yaml:"burst"`
		MaxAttempts       int    `yaml:"max_attempts"`
	} `yaml:"api"`
	Screening struct {
		Coins      []string `yaml:"coins"`
		Benchmark  string   `yaml:"benchmark"`
		VsCurrency string   `yaml:"vs_currency"`
		Direction  string   `yaml:"direction"`
		Timeframes []int    `yaml:"timeframes"`
		SMAPeriods []int    `yaml:"sma_periods"`
		// Weights is nil when the file omits the section; an explicit
		// all-zero weights block is honored as given.
		Weights *model.Weights `yaml:"weights"`
		Workers int            `yaml:"workers"`
	} `yaml:"screening"`
	Cache struct {
		SeriesTTLHours      int `yaml:"series_ttl_hours"`
		IndicatorTTLMinutes int `yaml:"indicator_ttl_minutes"`
	} `yaml:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		ScreeningCron  string `yaml:"screening_cron"`
		CacheSweepCron string `yaml:"cache_sweep_cron"`
	} `yaml:"schedule"`
	Export struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"export"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SCREENING_COINS"); v != "" {
		cfg.Screening.Coins = strings.Split(v, ",")
	}
	if v := os.Getenv("SCREENING_CRON"); v != "" {
		cfg.Schedule.ScreeningCron = v
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.RequestsPerMinute = n
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.API.RequestsPerMinute == 0 {
		c.API.RequestsPerMinute = 14 // free-tier provider quota
	}
	if c.API.Burst == 0 {
		c.API.Burst = 2
	}
	if c.API.MaxAttempts == 0 {
		c.API.MaxAttempts = 4
	}
	if c.Screening.Benchmark == "" {
		c.Screening.Benchmark = "bitcoin"
	}
	if c.Screening.VsCurrency == "" {
		c.Screening.VsCurrency = "btc"
	}
	if c.Screening.Direction == "" {
		c.Screening.Direction = string(model.DirectionBackward)
	}
	if len(c.Screening.Timeframes) == 0 {
		c.Screening.Timeframes = []int{1, 3, 7, 14, 30}
	}
	if len(c.Screening.SMAPeriods) == 0 {
		c.Screening.SMAPeriods = []int{6, 11, 21}
	}
	if c.Screening.Weights == nil {
		w := model.DefaultWeights()
		c.Screening.Weights = &w
	}
	if c.Screening.Workers == 0 {
		c.Screening.Workers = 4
	}
	if c.Cache.SeriesTTLHours == 0 {
		c.Cache.SeriesTTLHours = 24
	}
	if c.Cache.IndicatorTTLMinutes == 0 {
		c.Cache.IndicatorTTLMinutes = 120
	}
	if c.Schedule.ScreeningCron == "" {
		c.Schedule.ScreeningCron = "0 0 6 * * *"
	}
	if c.Schedule.CacheSweepCron == "" {
		c.Schedule.CacheSweepCron = "0 30 */6 * * *"
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "data/outputs"
	}
}

// SeriesTTL returns the configured price-series cache TTL.
func (c *Config) SeriesTTL() time.Duration {
	return time.Duration(c.Cache.SeriesTTLHours) * time.Hour
}

// IndicatorTTL returns the configured derived-indicator cache TTL.
func (c *Config) IndicatorTTL() time.Duration {
	return time.Duration(c.Cache.IndicatorTTLMinutes) * time.Minute
}

// Validate checks that all required fields are consistent. A failure here is
// fatal: nothing is fetched with a broken configuration.
func (c *Config) Validate() error {
	if len(c.Screening.Coins) == 0 {
		return fmt.Errorf("screening.coins must list at least one coin")
	}
	if !model.Direction(c.Screening.Direction).Valid() {
		return fmt.Errorf("screening.direction must be %q or %q",
			model.DirectionBackward, model.DirectionForward)
	}
	for _, tf := range c.Screening.Timeframes {
		if tf <= 0 {
			return fmt.Errorf("screening.timeframes: invalid day count %d", tf)
		}
	}
	for _, period := range c.Screening.SMAPeriods {
		if period <= 0 {
			return fmt.Errorf("screening.sma_periods: invalid period %d", period)
		}
	}
	if c.API.RequestsPerMinute <= 0 {
		return fmt.Errorf("api.requests_per_minute must be positive")
	}
	if c.Screening.Workers <= 0 {
		return fmt.Errorf("screening.workers must be positive")
	}
	return nil
}
