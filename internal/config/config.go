package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the per-profile config.toml.
type Config struct {
	// DataDir overrides where the message database lives; empty means the
	// profile directory.
	DataDir string `toml:"data_dir"`
	// PageSize is the default conversation page size.
	PageSize int `toml:"page_size"`
	// RenderCacheSize bounds the render cache entry count.
	RenderCacheSize int `toml:"render_cache_size"`
	// ConnectTimeoutMS bounds how long a send waits for a usable session.
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PageSize:         50,
		RenderCacheSize:  128,
		ConnectTimeoutMS: 15000,
	}
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
