package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentConfigVersion is the expected version of the config file.
const CurrentConfigVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	API        API        `koanf:"api"`
	Retry      Retry      `koanf:"retry"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Sync       Sync       `koanf:"sync"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum number of log sessions to keep on disk.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// API contains membership directory API configuration.
type API struct {
	// Base URL of the membership API.
	BaseURL string `koanf:"base_url"`
	// API identity sent as the "key" request parameter.
	Key string `koanf:"key"`
	// HMAC secret for request signing.
	Secret string `koanf:"secret"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
}

// Retry contains retry configuration for API calls.
type Retry struct {
	// Maximum number of retries.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial delay between retries in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum delay between retries in milliseconds.
	MaxDelay int `koanf:"max_delay"`
	// Maximum total elapsed time in milliseconds.
	MaxElapsedTime int `koanf:"max_elapsed_time"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	DBName       string `koanf:"db_name"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	// Connection max lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Connection max idle time in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains lookup-cache connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Sync contains sync orchestration configuration.
type Sync struct {
	// Seconds an entity stays fresh after a successful sync.
	UpdateInterval int `koanf:"update_interval"`
	// Maximum entities synced concurrently by the worker.
	Concurrency int `koanf:"concurrency"`
	// Seconds between worker sweeps.
	SweepInterval int `koanf:"sweep_interval"`
	// Maximum stale entities picked up per sweep.
	BatchSize int `koanf:"batch_size"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".commons-sync",
		homeDir + "/.commons-sync/config",
		"/etc/commons-sync/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := path + "/config.toml"
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Version == 0 {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigVersionMissing)
	}

	if config.Version != CurrentConfigVersion {
		return nil, "", fmt.Errorf("%w: config.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, config.Version, CurrentConfigVersion)
	}

	applyDefaults(&config)

	return &config, usedConfigPath, nil
}

func applyDefaults(config *Config) {
	if config.Debug.LogLevel == "" {
		config.Debug.LogLevel = "info"
	}

	if config.Debug.MaxLogsToKeep == 0 {
		config.Debug.MaxLogsToKeep = 10
	}

	if config.API.RequestTimeout == 0 {
		config.API.RequestTimeout = 10000
	}

	if config.Sync.UpdateInterval == 0 {
		config.Sync.UpdateInterval = 3600
	}

	if config.Sync.Concurrency == 0 {
		config.Sync.Concurrency = 4
	}

	if config.Sync.SweepInterval == 0 {
		config.Sync.SweepInterval = 300
	}

	if config.Sync.BatchSize == 0 {
		config.Sync.BatchSize = 50
	}
}
