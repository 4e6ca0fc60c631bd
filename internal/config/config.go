// Package config holds the compiler configuration: platform
// connection, caching, and lowering flags. Values come from an
// optional YAML file with flag overrides applied on top.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full compiler configuration.
type Config struct {
	// APIEndpoint is the platform API server.
	APIEndpoint string `yaml:"api_endpoint"`
	// Token authenticates platform calls. The DX_API_TOKEN environment
	// variable takes precedence.
	Token string `yaml:"token"`
	// CachePath is the SQLite resolution cache; empty disables caching
	// and ":memory:" keeps it process-local.
	CachePath string `yaml:"cache_path"`

	// Locked compiles the primary workflow with a closed surface.
	Locked bool `yaml:"locked"`
	// Reorg appends the output reorganization stage.
	Reorg bool `yaml:"reorg"`

	// LogLevel names the minimum level (debug, info, warn, error);
	// a -v flag on the command line takes precedence.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json"
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		APIEndpoint: "https://api.dnanexus.com",
		LogFormat:   "text",
	}
}

// Load reads a YAML config file over the defaults. An empty path or a
// missing file yields the defaults. In every case DX_API_TOKEN and
// DX_API_ENDPOINT from the environment override the loaded values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnv()
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv("DX_API_TOKEN"); token != "" {
		c.Token = token
	}
	if ep := os.Getenv("DX_API_ENDPOINT"); ep != "" {
		c.APIEndpoint = ep
	}
}
