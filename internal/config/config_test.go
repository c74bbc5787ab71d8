package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v for default config", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("default port = %d, want 8090", cfg.Server.Port)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("default AutoMigrate = false, want true")
	}
	if cfg.Model.Seed != 42 {
		t.Errorf("default seed = %d, want 42", cfg.Model.Seed)
	}
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want default 127.0.0.1", cfg.Server.Host)
	}
}

func TestLoadFileParsesToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
host = "0.0.0.0"
port = 9000
train_rate_min = 2
shutdown_timeout = "5s"

[model]
max_depth = 6
vocab_size = 100
auto_load = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.TrainRatePerMin != 2 {
		t.Errorf("TrainRatePerMin = %d, want 2", cfg.Server.TrainRatePerMin)
	}
	if cfg.Model.MaxDepth != 6 {
		t.Errorf("MaxDepth = %d, want 6", cfg.Model.MaxDepth)
	}
	if !cfg.Model.AutoLoadSnapshot {
		t.Error("AutoLoadSnapshot = false, want true")
	}
}

func TestLoadFileRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\nport = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() = nil error for malformed TOML")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"negative rate", func(c *Config) { c.Server.TrainRatePerMin = -1 }},
		{"bad shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = "soon" }},
		{"bad debounce", func(c *Config) { c.Characters.ReloadDebounce = "fast" }},
		{"zero depth", func(c *Config) { c.Model.MaxDepth = 0 }},
		{"split below two", func(c *Config) { c.Model.MinSamplesSplit = 1 }},
		{"zero leaf", func(c *Config) { c.Model.MinSamplesLeaf = 0 }},
		{"zero vocab", func(c *Config) { c.Model.VocabSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil error for invalid config")
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()

	shutdown, err := cfg.GetShutdownTimeout()
	if err != nil {
		t.Fatalf("GetShutdownTimeout() error = %v", err)
	}
	if shutdown != 10*time.Second {
		t.Errorf("GetShutdownTimeout() = %v, want 10s", shutdown)
	}

	debounce, err := cfg.GetReloadDebounce()
	if err != nil {
		t.Fatalf("GetReloadDebounce() error = %v", err)
	}
	if debounce != 500*time.Millisecond {
		t.Errorf("GetReloadDebounce() = %v, want 500ms", debounce)
	}
}
