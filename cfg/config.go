package cfg

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// StoreType defines where cursor values are persisted
type StoreType string

const (
	StoreMemory StoreType = "memory" // In-process map, lost on restart
	StorePebble StoreType = "pebble" // Local Pebble database
	StoreNATS   StoreType = "nats"   // NATS JetStream key-value bucket
)

// RedisConfiguration for the shared coordinator
type RedisConfiguration struct {
	Addresses  []string `toml:"addresses"`
	MasterName string   `toml:"master_name"` // Sentinel master name, empty for direct
	DB         int      `toml:"db"`
	Password   string   `toml:"password"`
}

// StoreConfiguration controls where cursors are persisted
type StoreConfiguration struct {
	Type       StoreType `toml:"type"`
	Path       string    `toml:"path"`        // Pebble data directory
	NatsURL    string    `toml:"nats_url"`    // NATS server URL
	NatsBucket string    `toml:"nats_bucket"` // JetStream KV bucket name
}

// AdminConfiguration for the HTTP admin surface
type AdminConfiguration struct {
	Enabled   bool   `toml:"enabled"`
	Bind      string `toml:"bind"`
	AuthToken string `toml:"auth_token"` // Bearer token, empty disables auth
}

// IndexerConfiguration holds cluster-wide indexer defaults. Individual
// indexers may override each value in their own options.
type IndexerConfiguration struct {
	RunningTimeoutSeconds     int `toml:"running_timeout_seconds"`     // Shadow TTL, governs the zombie boundary
	RetryTimeoutSeconds       int `toml:"retry_timeout_seconds"`       // Retry-queue key TTL
	ConcurrencyTimeoutSeconds int `toml:"concurrency_timeout_seconds"` // Live-task list TTL, 0 = 2x running timeout
	LockTTLMS                 int `toml:"lock_ttl_ms"`                 // Cursor lock TTL
	CleanupIntervalSeconds    int `toml:"cleanup_interval_seconds"`    // Demo-loop zombie scan interval
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// Configuration is the main configuration structure
type Configuration struct {
	Redis      RedisConfiguration      `toml:"redis"`
	Store      StoreConfiguration      `toml:"store"`
	Admin      AdminConfiguration      `toml:"admin"`
	Indexer    IndexerConfiguration    `toml:"indexer"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	RedisAddrFlag  = flag.String("redis", "", "Redis address (overrides config)")
	StorePathFlag  = flag.String("store-path", "", "Pebble store directory (overrides config)")
	AdminBindFlag  = flag.String("admin-bind", "", "Admin HTTP bind address (overrides config)")
)

// Default configuration
var Config = &Configuration{
	Redis: RedisConfiguration{
		Addresses: []string{"127.0.0.1:6379"},
	},

	Store: StoreConfiguration{
		Type:       StoreMemory,
		Path:       "./stride-data",
		NatsURL:    "nats://127.0.0.1:4222",
		NatsBucket: "stride-cursors",
	},

	Admin: AdminConfiguration{
		Enabled: true,
		Bind:    "127.0.0.1:8470",
	},

	Indexer: IndexerConfiguration{
		RunningTimeoutSeconds:     60,
		RetryTimeoutSeconds:       60,
		ConcurrencyTimeoutSeconds: 0, // Derived: 2x running timeout
		LockTTLMS:                 1000,
		CleanupIntervalSeconds:    30,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	// Apply CLI overrides
	if *RedisAddrFlag != "" {
		Config.Redis.Addresses = []string{*RedisAddrFlag}
	}
	if *StorePathFlag != "" {
		Config.Store.Path = *StorePathFlag
	}
	if *AdminBindFlag != "" {
		Config.Admin.Bind = *AdminBindFlag
	}

	return nil
}

// Validate checks configuration for errors
func Validate() error {
	if len(Config.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address is required")
	}

	switch Config.Store.Type {
	case StoreMemory:
	case StorePebble:
		if Config.Store.Path == "" {
			return fmt.Errorf("pebble store requires a path")
		}
	case StoreNATS:
		if Config.Store.NatsURL == "" || Config.Store.NatsBucket == "" {
			return fmt.Errorf("nats store requires nats_url and nats_bucket")
		}
	default:
		return fmt.Errorf("unknown store type: %s", Config.Store.Type)
	}

	if Config.Admin.Enabled && Config.Admin.Bind == "" {
		return fmt.Errorf("admin enabled without a bind address")
	}

	if Config.Indexer.RunningTimeoutSeconds < 1 {
		return fmt.Errorf("running timeout must be >= 1s")
	}
	if Config.Indexer.RetryTimeoutSeconds < 1 {
		return fmt.Errorf("retry timeout must be >= 1s")
	}
	if Config.Indexer.LockTTLMS < 100 {
		return fmt.Errorf("lock TTL must be >= 100ms")
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("unknown logging format: %s", Config.Logging.Format)
	}

	return nil
}
