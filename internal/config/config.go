// Package config provides configuration management for Tether.
// Settings come from three layers: built-in defaults, an optional YAML
// config file, and environment variables with the TETHER_ prefix.
// Environment variables win over the file, the file wins over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tetherhq/tether/internal/storage"
	"github.com/tetherhq/tether/internal/storage/postgres"
	"github.com/tetherhq/tether/internal/storage/sqlite"
)

// Config holds all configuration settings for the Tether application.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Extractor ExtractorConfig `yaml:"extractor"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // Directory for the SQLite database (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // Connection string when engine is postgres
}

// ScannerConfig tunes the batch scan job.
type ScannerConfig struct {
	BatchSize            int      `yaml:"batch_size"`             // Records per source type per run (default: 20)
	Interval             string   `yaml:"interval"`               // Delay between runs in loop mode (default: 10m)
	ExtractionsPerSecond float64  `yaml:"extractions_per_second"` // Rate limit on extraction calls (default: 1)
	ExtractionBurst      int      `yaml:"extraction_burst"`       // Limiter burst size (default: 1)
	SourceTypes          []string `yaml:"source_types"`           // Source types to scan (default: all)
}

// ExtractorConfig configures the extraction backend client and the circuit
// breaker guarding it.
type ExtractorConfig struct {
	Endpoint string `yaml:"endpoint"` // Extraction service URL (required for scanning)
	Timeout  string `yaml:"timeout"`  // Per-request timeout (default: 60s)

	BreakerMaxFailures  int    `yaml:"breaker_max_failures"`   // Consecutive failures before the circuit opens (default: 3)
	BreakerTimeout      string `yaml:"breaker_timeout"`        // How long the circuit stays open (default: 30s)
	BreakerHalfOpenWins int    `yaml:"breaker_half_open_wins"` // Successes needed to close again (default: 2)
}

// LoadConfig loads configuration from defaults, the optional YAML file at
// path (skipped when path is empty and TETHER_CONFIG_FILE is unset), and
// TETHER_-prefixed environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("TETHER_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the layered loading cannot.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres engine requires a DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}

	if _, err := time.ParseDuration(c.Scanner.Interval); err != nil {
		return fmt.Errorf("config: invalid scanner interval %q: %w", c.Scanner.Interval, err)
	}
	if _, err := time.ParseDuration(c.Extractor.BreakerTimeout); err != nil {
		return fmt.Errorf("config: invalid breaker timeout %q: %w", c.Extractor.BreakerTimeout, err)
	}
	if _, err := time.ParseDuration(c.Extractor.Timeout); err != nil {
		return fmt.Errorf("config: invalid extractor timeout %q: %w", c.Extractor.Timeout, err)
	}
	return nil
}

// ExtractorTimeout returns the parsed extraction request timeout.
func (c *Config) ExtractorTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Extractor.Timeout)
	return d
}

// ScanInterval returns the parsed scanner interval. Validate guarantees it
// parses.
func (c *Config) ScanInterval() time.Duration {
	d, _ := time.ParseDuration(c.Scanner.Interval)
	return d
}

// BreakerTimeout returns the parsed circuit breaker timeout.
func (c *Config) BreakerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Extractor.BreakerTimeout)
	return d
}

// OpenStore opens the configured storage backend.
func OpenStore(cfg StorageConfig) (storage.Store, error) {
	switch cfg.Engine {
	case "postgres":
		return postgres.NewStore(cfg.PostgresDSN)
	case "sqlite":
		if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("config: failed to create data directory: %w", err)
		}
		return sqlite.NewStore(filepath.Join(cfg.DataPath, "tether.db"))
	default:
		return nil, fmt.Errorf("config: unknown storage engine %q", cfg.Engine)
	}
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Scanner: ScannerConfig{
			BatchSize:            20,
			Interval:             "10m",
			ExtractionsPerSecond: 1,
			ExtractionBurst:      1,
		},
		Extractor: ExtractorConfig{
			Timeout:             "60s",
			BreakerMaxFailures:  3,
			BreakerTimeout:      "30s",
			BreakerHalfOpenWins: 2,
		},
	}
}

// applyEnvOverrides replaces config values with TETHER_-prefixed
// environment variables where set.
func applyEnvOverrides(cfg *Config) {
	cfg.Storage.Engine = getEnv("TETHER_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("TETHER_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("TETHER_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Scanner.BatchSize = getEnvInt("TETHER_SCAN_BATCH_SIZE", cfg.Scanner.BatchSize)
	cfg.Scanner.Interval = getEnv("TETHER_SCAN_INTERVAL", cfg.Scanner.Interval)
	cfg.Scanner.ExtractionsPerSecond = getEnvFloat("TETHER_EXTRACTIONS_PER_SECOND", cfg.Scanner.ExtractionsPerSecond)
	cfg.Scanner.ExtractionBurst = getEnvInt("TETHER_EXTRACTION_BURST", cfg.Scanner.ExtractionBurst)

	cfg.Extractor.Endpoint = getEnv("TETHER_EXTRACTOR_ENDPOINT", cfg.Extractor.Endpoint)
	cfg.Extractor.Timeout = getEnv("TETHER_EXTRACTOR_TIMEOUT", cfg.Extractor.Timeout)
	cfg.Extractor.BreakerMaxFailures = getEnvInt("TETHER_BREAKER_MAX_FAILURES", cfg.Extractor.BreakerMaxFailures)
	cfg.Extractor.BreakerTimeout = getEnv("TETHER_BREAKER_TIMEOUT", cfg.Extractor.BreakerTimeout)
	cfg.Extractor.BreakerHalfOpenWins = getEnvInt("TETHER_BREAKER_HALF_OPEN_WINS", cfg.Extractor.BreakerHalfOpenWins)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
