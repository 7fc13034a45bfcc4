package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the vulcan trading core.
type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Broker  Broker  `yaml:"broker"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Feed    Feed    `yaml:"feed"`
	Logging Logging `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	JournalPath string `yaml:"journal_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Broker selects and parameterizes the execution venues.
type Broker struct {
	// Paper enables the simulated matching engine.
	Paper bool `yaml:"paper"`

	// StartCash is the paper engine's opening balance, as a decimal string.
	StartCash string `yaml:"start_cash"`

	// Live enables the Alpaca venue adapter.
	Live bool `yaml:"live"`

	// MaxOrderQuantity caps single-order size; zero disables the check.
	MaxOrderQuantity int64 `yaml:"max_order_quantity"`

	// MaxOrderNotional caps limit-order price*quantity, as a decimal
	// string; empty disables the check.
	MaxOrderNotional string `yaml:"max_order_notional"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Feed configures the market-data source.
type Feed struct {
	// Mode is "generate" for the synthetic random walk or "replay" for
	// recorded Parquet data.
	Mode string `yaml:"mode"`

	Instruments []string `yaml:"instruments"`

	// StartPrice seeds the synthetic walk, as a decimal string.
	StartPrice string `yaml:"start_price"`

	// Seed makes the synthetic walk reproducible; zero means random.
	Seed int64 `yaml:"seed"`

	// IntervalMS paces the synthetic walk in milliseconds.
	IntervalMS int `yaml:"interval_ms"`

	// Replay window, "2006-01-02" dates, inclusive.
	ReplayStart string `yaml:"replay_start"`
	ReplayEnd   string `yaml:"replay_end"`

	// Speed scales replay pacing; zero replays as fast as possible.
	Speed float64 `yaml:"speed"`

	// Record mirrors every feed tick into the Parquet recorder.
	Record bool `yaml:"record"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Storage.JournalPath = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK) take
	// priority over everything else.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
