// Package config loads and persists the application configuration as
// TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// HTTP server configuration
	Server ServerConfig `toml:"server"`

	// Database configuration
	Database DatabaseConfig `toml:"database"`

	// Character data set configuration
	Characters CharactersConfig `toml:"characters"`

	// Model training configuration
	Model ModelConfig `toml:"model"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `toml:"host"`             // Bind address
	Port            int    `toml:"port"`             // Listen port
	TrainRatePerMin int    `toml:"train_rate_min"`   // Allowed training requests per minute
	ShutdownTimeout string `toml:"shutdown_timeout"` // Graceful shutdown window (e.g., "10s")
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path        string `toml:"path"`         // Path to the SQLite database file
	AutoMigrate bool   `toml:"auto_migrate"` // Run pending migrations on startup
}

// CharactersConfig contains character data set settings.
type CharactersConfig struct {
	FilePath       string `toml:"file_path"`       // Path to the characters JSON file
	Watch          bool   `toml:"watch"`           // Reload the file on change
	ReloadDebounce string `toml:"reload_debounce"` // Debounce window for reloads (e.g., "500ms")
}

// ModelConfig contains training settings.
type ModelConfig struct {
	MaxDepth         int    `toml:"max_depth"`         // Decision tree depth limit
	MinSamplesSplit  int    `toml:"min_samples_split"` // Minimum samples to split a node
	MinSamplesLeaf   int    `toml:"min_samples_leaf"`  // Minimum samples per leaf
	VocabSize        int    `toml:"vocab_size"`        // TF-IDF vocabulary limit
	Seed             int64  `toml:"seed"`              // Split and shuffle seed
	AutoLoadSnapshot bool   `toml:"auto_load"`         // Restore latest snapshot on startup
	SnapshotPassword string `toml:"snapshot_password"` // Encrypt snapshots when set
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8090,
			TrainRatePerMin: 6,
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Path:        "",
			AutoMigrate: true,
		},
		Characters: CharactersConfig{
			FilePath:       "",
			Watch:          true,
			ReloadDebounce: "500ms",
		},
		Model: ModelConfig{
			MaxDepth:        10,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			VocabSize:       50,
			Seed:            42,
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// configPath returns the path to the configuration file.
func configPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".charquest-ml")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from disk. Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from an explicit path. Returns
// default config if the file doesn't exist.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.TrainRatePerMin < 0 {
		return fmt.Errorf("train rate cannot be negative: %d", c.Server.TrainRatePerMin)
	}

	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown timeout %q: %w", c.Server.ShutdownTimeout, err)
	}

	if _, err := time.ParseDuration(c.Characters.ReloadDebounce); err != nil {
		return fmt.Errorf("invalid reload debounce %q: %w", c.Characters.ReloadDebounce, err)
	}

	if c.Model.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive: %d", c.Model.MaxDepth)
	}

	if c.Model.MinSamplesSplit < 2 {
		return fmt.Errorf("min samples split must be at least 2: %d", c.Model.MinSamplesSplit)
	}

	if c.Model.MinSamplesLeaf < 1 {
		return fmt.Errorf("min samples leaf must be positive: %d", c.Model.MinSamplesLeaf)
	}

	if c.Model.VocabSize < 1 {
		return fmt.Errorf("vocab size must be positive: %d", c.Model.VocabSize)
	}

	return nil
}

// GetShutdownTimeout returns the graceful shutdown window as a duration.
func (c *Config) GetShutdownTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.ShutdownTimeout)
}

// GetReloadDebounce returns the reload debounce window as a duration.
func (c *Config) GetReloadDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Characters.ReloadDebounce)
}
