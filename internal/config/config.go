package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for dnsmon
type Config struct {
	// Default scan behaviour
	Resolver string `yaml:"resolver"` // google or cloudflare
	DNSSEC   bool   `yaml:"dnssec"`   // request the DNSSEC-OK bit and report AD
	CT       bool   `yaml:"ct"`       // expand the catalog from CT logs

	// Per-query timeout in seconds. The batch joins on its slowest query,
	// so this is the only bound on worst-case scan latency.
	QueryTimeout int `yaml:"query_timeout"`

	// Outbound queries per second, 0 = unpaced
	QueryRate int `yaml:"query_rate"`

	// Path to the SQLite database holding the CT cache and scan history.
	// Empty falls back to an in-memory CT cache and no history.
	DBPath string `yaml:"db_path"`

	// Override for the crt.sh endpoint (primarily for testing)
	CTLogURL string `yaml:"ct_log_url"`

	// Debug enables verbose logging
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	// Default database: ~/.dnsmon/dnsmon.db
	dbPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".dnsmon", "dnsmon.db")
	}

	return &Config{
		Resolver:     "google",
		QueryTimeout: 10,
		QueryRate:    0,
		DBPath:       dbPath,
		CTLogURL:     "",
		Debug:        false,
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; flags layered on top by the CLI take final precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dnsmon", "config.yaml")
}
