package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Create a temporary YAML config file.
	yamlContent := []byte(`
storage:
  data_dir: "/tmp/vulcan/data"
  journal_path: "/tmp/vulcan/journal.db"
server:
  host: "0.0.0.0"
  port: 8080
broker:
  paper: true
  start_cash: "100000000"
  live: false
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
feed:
  mode: "generate"
  instruments: ["TEST#A", "TEST#B"]
  start_price: "100"
  seed: 42
  interval_ms: 250
  record: true
logging:
  level: "info"
  format: "json"
`)

	tmpFile, err := os.CreateTemp("", "vulcan-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	// Clear any environment overrides that might interfere.
	os.Unsetenv("ALPACA_API_KEY")
	os.Unsetenv("ALPACA_API_SECRET")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	os.Unsetenv("DATA_DIR")
	os.Unsetenv("SERVER_PORT")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/vulcan/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/vulcan/data")
	}
	if cfg.Storage.JournalPath != "/tmp/vulcan/journal.db" {
		t.Errorf("Storage.JournalPath = %q, want %q", cfg.Storage.JournalPath, "/tmp/vulcan/journal.db")
	}

	// -- Server --
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	// -- Broker --
	if !cfg.Broker.Paper {
		t.Error("Broker.Paper = false, want true")
	}
	if cfg.Broker.StartCash != "100000000" {
		t.Errorf("Broker.StartCash = %q, want %q", cfg.Broker.StartCash, "100000000")
	}
	if cfg.Broker.Live {
		t.Error("Broker.Live = true, want false")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q", cfg.Alpaca.APISecret, "test-secret")
	}
	if cfg.Alpaca.BaseURL != "https://paper-api.alpaca.markets" {
		t.Errorf("Alpaca.BaseURL = %q, want %q", cfg.Alpaca.BaseURL, "https://paper-api.alpaca.markets")
	}

	// -- Feed --
	if cfg.Feed.Mode != "generate" {
		t.Errorf("Feed.Mode = %q, want %q", cfg.Feed.Mode, "generate")
	}
	if len(cfg.Feed.Instruments) != 2 || cfg.Feed.Instruments[0] != "TEST#A" {
		t.Errorf("Feed.Instruments = %v, want [TEST#A TEST#B]", cfg.Feed.Instruments)
	}
	if cfg.Feed.Seed != 42 {
		t.Errorf("Feed.Seed = %d, want 42", cfg.Feed.Seed)
	}
	if cfg.Feed.IntervalMS != 250 {
		t.Errorf("Feed.IntervalMS = %d, want 250", cfg.Feed.IntervalMS)
	}
	if !cfg.Feed.Record {
		t.Error("Feed.Record = false, want true")
	}

	// -- Logging --
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := []byte(`
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
server:
  port: 8080
`)

	tmpFile, err := os.CreateTemp("", "vulcan-config-env-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	// Set environment overrides.
	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("DATA_DIR", "/env/data")
	os.Setenv("SERVER_PORT", "9999")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	defer os.Unsetenv("ALPACA_API_KEY")
	defer os.Unsetenv("DATA_DIR")
	defer os.Unsetenv("SERVER_PORT")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
}
