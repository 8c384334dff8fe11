package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("expected sqlite default engine, got %q", cfg.Storage.Engine)
	}
	if cfg.Scanner.BatchSize != 20 {
		t.Errorf("expected default batch size 20, got %d", cfg.Scanner.BatchSize)
	}
	if cfg.ScanInterval() != 10*time.Minute {
		t.Errorf("expected default interval 10m, got %v", cfg.ScanInterval())
	}
	if cfg.BreakerTimeout() != 30*time.Second {
		t.Errorf("expected default breaker timeout 30s, got %v", cfg.BreakerTimeout())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TETHER_SCAN_BATCH_SIZE", "50")
	t.Setenv("TETHER_SCAN_INTERVAL", "1h")
	t.Setenv("TETHER_EXTRACTIONS_PER_SECOND", "2.5")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Scanner.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Scanner.BatchSize)
	}
	if cfg.ScanInterval() != time.Hour {
		t.Errorf("expected interval 1h, got %v", cfg.ScanInterval())
	}
	if cfg.Scanner.ExtractionsPerSecond != 2.5 {
		t.Errorf("expected rate 2.5, got %f", cfg.Scanner.ExtractionsPerSecond)
	}
}

func TestLoadConfigUnparseableEnvFallsBack(t *testing.T) {
	t.Setenv("TETHER_SCAN_BATCH_SIZE", "lots")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Scanner.BatchSize != 20 {
		t.Errorf("expected fallback batch size 20, got %d", cfg.Scanner.BatchSize)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.yaml")
	content := []byte(`
storage:
  engine: postgres
  postgres_dsn: postgres://tether@localhost/tether?sslmode=disable
scanner:
  batch_size: 5
  source_types: [email, task]
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Engine != "postgres" {
		t.Errorf("expected postgres engine, got %q", cfg.Storage.Engine)
	}
	if cfg.Scanner.BatchSize != 5 {
		t.Errorf("expected batch size 5, got %d", cfg.Scanner.BatchSize)
	}
	if len(cfg.Scanner.SourceTypes) != 2 {
		t.Errorf("expected 2 source types, got %v", cfg.Scanner.SourceTypes)
	}
	// File must not disturb untouched defaults.
	if cfg.Scanner.Interval != "10m" {
		t.Errorf("expected default interval, got %q", cfg.Scanner.Interval)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.yaml")
	if err := os.WriteFile(path, []byte("scanner:\n  batch_size: 5\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("TETHER_SCAN_BATCH_SIZE", "99")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Scanner.BatchSize != 99 {
		t.Errorf("expected env to win with 99, got %d", cfg.Scanner.BatchSize)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("unknown engine", func(t *testing.T) {
		t.Setenv("TETHER_STORAGE_ENGINE", "etcd")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("expected error for unknown engine")
		}
	})

	t.Run("postgres without DSN", func(t *testing.T) {
		t.Setenv("TETHER_STORAGE_ENGINE", "postgres")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("expected error for postgres without DSN")
		}
	})

	t.Run("bad interval", func(t *testing.T) {
		t.Setenv("TETHER_SCAN_INTERVAL", "whenever")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("expected error for bad interval")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/tether.yaml"); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}

func TestOpenStoreSQLite(t *testing.T) {
	store, err := OpenStore(StorageConfig{Engine: "sqlite", DataPath: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Stats(context.Background()); err != nil {
		t.Errorf("store not usable after open: %v", err)
	}
}
