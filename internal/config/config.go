// Package config loads modquant-lab settings from a YAML file, a .env file
// and MODQUANT_* environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
)

// Environment variables that override file values.
const (
	EnvPostgresDSN   = "MODQUANT_POSTGRES_DSN"
	EnvClickhouseDSN = "MODQUANT_CLICKHOUSE_DSN"
	EnvLogLevel      = "MODQUANT_LOG_LEVEL"
)

// Storage modes
const (
	StorageMemory = "memory"
	StorageDB     = "db"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Backtest holds the follow-after-losses parameters.
type Backtest struct {
	Segmentation  string   `yaml:"segmentation"` // strict | oscillation
	ReversalRun   int      `yaml:"reversal_run"`
	LossThreshold int      `yaml:"loss_threshold"`
	StopPolicy    string   `yaml:"stop_policy"`     // single_win | win_rate
	TargetWinRate *float64 `yaml:"target_win_rate"` // percent, win_rate only
	Format        string   `yaml:"format"`          // auto | price-sign | directional
	Delimiter     string   `yaml:"delimiter"`       // tab | comma | any single character
	MinSelected   int      `yaml:"min_selected"`
}

// Storage selects where ledgers and runs are persisted.
type Storage struct {
	Mode          string `yaml:"mode"` // memory | db
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Log configures the process logger.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty: stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Server configures cmd/server.
type Server struct {
	Addr string `yaml:"addr"`
}

// Config collects every configuration leaf.
type Config struct {
	Backtest  Backtest `yaml:"backtest"`
	Storage   Storage  `yaml:"storage"`
	Log       Log      `yaml:"log"`
	Server    Server   `yaml:"server"`
	OutputDir string   `yaml:"output_dir"`
}

// Default returns the canonical configuration: oscillation segmentation with a
// reversal run of 3, follow after 2 losses until the first win, memory storage.
func Default() *Config {
	return &Config{
		Backtest: Backtest{
			Segmentation:  "oscillation",
			ReversalRun:   domain.DefaultReversalRun,
			LossThreshold: 2,
			StopPolicy:    "single_win",
			Format:        string(ledger.FormatAuto),
			Delimiter:     "tab",
			MinSelected:   decision.DefaultMinSelected,
		},
		Storage: Storage{Mode: StorageMemory},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server:    Server{Addr: ":8080"},
		OutputDir: "output",
	}
}

// Load reads configuration. An empty path means defaults plus environment.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks every field. It does not touch the network.
func (c *Config) Validate() error {
	if _, err := c.BacktestConfig(); err != nil {
		return err
	}

	switch c.Storage.Mode {
	case StorageMemory:
	case StorageDB:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("%w: storage mode db requires postgres_dsn and clickhouse_dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage mode %q", ErrInvalidConfig, c.Storage.Mode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// BacktestConfig converts the backtest section into runner parameters.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	b := c.Backtest
	cfg := backtest.DefaultConfig()

	switch strings.ToLower(b.Segmentation) {
	case "strict":
		cfg.Segmentation = domain.SegmentationStrict
	case "oscillation":
		cfg.Segmentation = domain.SegmentationOscillation
	default:
		return cfg, fmt.Errorf("%w: unknown segmentation %q", ErrInvalidConfig, b.Segmentation)
	}
	if b.ReversalRun < 1 {
		return cfg, fmt.Errorf("%w: reversal_run must be >= 1, got %d", ErrInvalidConfig, b.ReversalRun)
	}
	cfg.ReversalRun = b.ReversalRun

	if b.LossThreshold < 1 {
		return cfg, fmt.Errorf("%w: loss_threshold must be >= 1, got %d", ErrInvalidConfig, b.LossThreshold)
	}
	cfg.Follow.LossThreshold = b.LossThreshold

	switch strings.ToLower(b.StopPolicy) {
	case "single_win":
		cfg.Follow.StopPolicy = domain.StopPolicySingleWin
		cfg.Follow.TargetWinRate = nil
	case "win_rate":
		if b.TargetWinRate == nil {
			return cfg, fmt.Errorf("%w: stop_policy win_rate requires target_win_rate", ErrInvalidConfig)
		}
		if *b.TargetWinRate < 0 || *b.TargetWinRate > 100 {
			return cfg, fmt.Errorf("%w: target_win_rate must be in [0,100], got %g", ErrInvalidConfig, *b.TargetWinRate)
		}
		v := *b.TargetWinRate
		cfg.Follow.StopPolicy = domain.StopPolicyWinRate
		cfg.Follow.TargetWinRate = &v
	default:
		return cfg, fmt.Errorf("%w: unknown stop_policy %q", ErrInvalidConfig, b.StopPolicy)
	}

	format, err := ledger.ParseFormat(b.Format)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Format = format

	delim, err := ParseDelimiter(b.Delimiter)
	if err != nil {
		return cfg, err
	}
	cfg.Delimiter = delim

	if b.MinSelected > 0 {
		cfg.MinSelected = b.MinSelected
	}
	return cfg, nil
}

// ParseDelimiter maps tab, comma or a single character to a field delimiter.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '\n' || r[0] == '\r' || r[0] == '"' {
		return 0, fmt.Errorf("%w: bad delimiter %q", ErrInvalidConfig, s)
	}
	return r[0], nil
}
