// Package config handles loading and managing smsvault configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	BindAddr        string   `toml:"bind_addr"`        // Listen address (default: 127.0.0.1)
	Port            int      `toml:"port"`             // HTTP server port (default: 8000)
	CORSOrigins     []string `toml:"cors_origins"`     // Allowed CORS origins; empty disables CORS
	CORSCredentials bool     `toml:"cors_credentials"` // Allow credentialed CORS requests
	CORSMaxAge      int      `toml:"cors_max_age"`     // Preflight cache duration in seconds
	RateLimitRPS    float64  `toml:"rate_limit_rps"`   // Per-IP requests per second (default: 10)
	RateLimitBurst  int      `toml:"rate_limit_burst"` // Per-IP burst size (default: 20)
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir      string `toml:"data_dir"`
	DatabasePath string `toml:"database_path"`
}

// Config represents the smsvault configuration.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Server ServerConfig `toml:"server"`

	// Computed home directory (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default smsvault home directory.
// Respects the SMSVAULT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("SMSVAULT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smsvault"
	}
	return filepath.Join(home, ".smsvault")
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (<home>/config.toml).
// If homeOverride is non-empty it takes precedence over SMSVAULT_HOME.
func Load(path, homeOverride string) (*Config, error) {
	homeDir := DefaultHome()
	if homeOverride != "" {
		homeDir = expandPath(homeOverride)
	}

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Server: ServerConfig{
			BindAddr:       "127.0.0.1",
			Port:           8000,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
	}

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Expand ~ in paths
	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Data.DatabasePath = expandPath(cfg.Data.DatabasePath)

	return cfg, nil
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	if c.Data.DatabasePath != "" {
		return c.Data.DatabasePath
	}
	return filepath.Join(c.Data.DataDir, "smsvault.db")
}

// ConfigFilePath returns the path of the config file for this home directory.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
