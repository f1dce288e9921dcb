package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig() {
	Config = &Configuration{
		Redis:   RedisConfiguration{Addresses: []string{"127.0.0.1:6379"}},
		Store:   StoreConfiguration{Type: StoreMemory, Path: "./stride-data"},
		Admin:   AdminConfiguration{Enabled: true, Bind: "127.0.0.1:8470"},
		Indexer: IndexerConfiguration{RunningTimeoutSeconds: 60, RetryTimeoutSeconds: 60, LockTTLMS: 1000, CleanupIntervalSeconds: 30},
		Logging: LoggingConfiguration{Format: "console"},
	}
}

func TestLoadFromFile(t *testing.T) {
	resetConfig()
	defer resetConfig()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[redis]
addresses = ["10.0.0.1:6379", "10.0.0.2:6379"]

[store]
type = "pebble"
path = "/var/lib/stride"

[indexer]
running_timeout_seconds = 120
lock_ttl_ms = 500

[logging]
format = "json"
verbose = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, Load(path))

	assert.Equal(t, []string{"10.0.0.1:6379", "10.0.0.2:6379"}, Config.Redis.Addresses)
	assert.Equal(t, StorePebble, Config.Store.Type)
	assert.Equal(t, "/var/lib/stride", Config.Store.Path)
	assert.Equal(t, 120, Config.Indexer.RunningTimeoutSeconds)
	assert.Equal(t, 500, Config.Indexer.LockTTLMS)
	assert.Equal(t, "json", Config.Logging.Format)
	assert.True(t, Config.Logging.Verbose)

	// Untouched sections keep their defaults
	assert.Equal(t, 60, Config.Indexer.RetryTimeoutSeconds)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	resetConfig()
	defer resetConfig()

	require.NoError(t, Load("/nonexistent/config.toml"))
	assert.Equal(t, []string{"127.0.0.1:6379"}, Config.Redis.Addresses)
	assert.Equal(t, StoreMemory, Config.Store.Type)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func()
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func() {},
		},
		{
			name:    "empty redis addresses",
			mutate:  func() { Config.Redis.Addresses = nil },
			wantErr: "redis address",
		},
		{
			name:    "pebble without path",
			mutate:  func() { Config.Store.Type = StorePebble; Config.Store.Path = "" },
			wantErr: "pebble store requires a path",
		},
		{
			name:    "nats without bucket",
			mutate:  func() { Config.Store.Type = StoreNATS; Config.Store.NatsURL = "nats://localhost:4222" },
			wantErr: "nats store requires",
		},
		{
			name:    "unknown store type",
			mutate:  func() { Config.Store.Type = "etcd" },
			wantErr: "unknown store type",
		},
		{
			name:    "admin without bind",
			mutate:  func() { Config.Admin.Bind = "" },
			wantErr: "admin enabled without",
		},
		{
			name:    "zero running timeout",
			mutate:  func() { Config.Indexer.RunningTimeoutSeconds = 0 },
			wantErr: "running timeout",
		},
		{
			name:    "tiny lock TTL",
			mutate:  func() { Config.Indexer.LockTTLMS = 10 },
			wantErr: "lock TTL",
		},
		{
			name:    "unknown log format",
			mutate:  func() { Config.Logging.Format = "xml" },
			wantErr: "unknown logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetConfig()
			defer resetConfig()

			tt.mutate()
			err := Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
