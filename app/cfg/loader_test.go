package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.SourcesDir != "./sources" {
		t.Errorf("Expected sources dir './sources', got '%s'", cfg.SourcesDir)
	}
	if cfg.Schedule != "0 7 * * *" {
		t.Errorf("Expected daily schedule, got '%s'", cfg.Schedule)
	}
	if cfg.FetchRetries != 2 || cfg.FetchRetryDelay != time.Second {
		t.Errorf("Expected 2 attempts 1s apart, got %d / %v", cfg.FetchRetries, cfg.FetchRetryDelay)
	}
	if cfg.RedisTTL != 168*time.Hour {
		t.Errorf("Expected Redis TTL 168h, got %v", cfg.RedisTTL)
	}
	if cfg.Once || cfg.RunOnStart || cfg.Debug {
		t.Error("Expected boolean flags to default to false")
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load([]string{
		"--once",
		"--sources-dir", "/etc/digest/sources",
		"--fetch-retries", "3",
		"--fetch-retry-delay", "250ms",
		"--redis-addr", "localhost:6379",
		"--api-key", "test-key",
		"--timezone", "UTC",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !cfg.Once {
		t.Error("Expected once mode")
	}
	if cfg.SourcesDir != "/etc/digest/sources" {
		t.Errorf("Expected sources dir override, got '%s'", cfg.SourcesDir)
	}
	if cfg.FetchRetries != 3 || cfg.FetchRetryDelay != 250*time.Millisecond {
		t.Errorf("Expected retry overrides, got %d / %v", cfg.FetchRetries, cfg.FetchRetryDelay)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected Redis and API overrides, got '%s' / '%s'", cfg.RedisAddr, cfg.APIAccessKey)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", cfg.Location())
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SCHEDULE", "30 6 * * 1-5")
	t.Setenv("WORKER_COUNT", "4")

	cfg, err := load([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Schedule != "30 6 * * 1-5" {
		t.Errorf("Expected schedule from env, got '%s'", cfg.Schedule)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("Expected worker count 4, got %d", cfg.WorkerCount)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := [][]string{
		{"--worker-count", "0"},
		{"--fetch-retries", "0"},
		{"--fetch-retry-delay", "soon"},
	}
	for _, args := range tests {
		if _, err := load(args); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}
