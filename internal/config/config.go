// Package config holds drill's configuration and loads it from defaults, an
// optional YAML file, DRILL_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. DRILL_STORE_BACKEND.
const EnvPrefix = "DRILL"

// StoreConfig selects the progress store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // sqlite, postgres, redis, file
	DSN     string `mapstructure:"dsn"`     // file path, connection string or address
}

// Config holds configuration for the drill server and CLI.
type Config struct {
	Addr      string `mapstructure:"addr"`       // Listen address (default ":8080")
	LogLevel  string `mapstructure:"log_level"`  // debug, info, warn, error
	LogFormat string `mapstructure:"log_format"` // text, json
	DataDir   string `mapstructure:"data_dir"`   // default ~/.drill
	Records   string `mapstructure:"records"`    // record file or directory
	ServerURL string `mapstructure:"server_url"` // used by the CLI's remote commands

	Store StoreConfig `mapstructure:"store"`

	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	CheckTimeout  time.Duration `mapstructure:"check_timeout"`
	PythonBin     string        `mapstructure:"python_bin"`
	CheckRate     float64       `mapstructure:"check_rate"`  // code runs per second per learner
	CheckBurst    int           `mapstructure:"check_burst"` // burst of code runs
	SecureCookies bool          `mapstructure:"secure_cookies"`
	APIKeysFile   string        `mapstructure:"api_keys_file"` // JSON {"keys": {...}}; empty disables API auth
	APIKey        string        `mapstructure:"api_key"`       // sent by the CLI's remote commands
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		LogLevel:      "info",
		LogFormat:     "text",
		Records:       "tasks.json",
		ServerURL:     "http://localhost:8080",
		Store:         StoreConfig{Backend: "sqlite"},
		SessionTTL:    24 * time.Hour,
		SweepInterval: 10 * time.Minute,
		CheckTimeout:  5 * time.Second,
		PythonBin:     "python3",
		CheckRate:     1,
		CheckBurst:    5,
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":       "addr",
	"log-level":  "log_level",
	"log-format": "log_format",
	"data-dir":   "data_dir",
	"records":    "records",
	"server":     "server_url",
	"store":      "store.backend",
	"dsn":        "store.dsn",
	"python":     "python_bin",
	"api-key":    "api_key",
}

// Load builds a Config. path names an optional YAML config file; flags may be
// nil. Only flags listed in flagKeys and present in the set are bound.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("addr", d.Addr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("records", d.Records)
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("session_ttl", d.SessionTTL)
	v.SetDefault("sweep_interval", d.SweepInterval)
	v.SetDefault("check_timeout", d.CheckTimeout)
	v.SetDefault("python_bin", d.PythonBin)
	v.SetDefault("check_rate", d.CheckRate)
	v.SetDefault("check_burst", d.CheckBurst)
	v.SetDefault("secure_cookies", d.SecureCookies)
	v.SetDefault("api_keys_file", d.APIKeysFile)
	v.SetDefault("api_key", d.APIKey)
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "postgres", "redis", "file":
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite, postgres, redis or file)", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store backend postgres requires a dsn")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if c.CheckRate <= 0 || c.CheckBurst <= 0 {
		return fmt.Errorf("check_rate and check_burst must be positive")
	}
	return nil
}

// ResolveDataDir returns the data directory, creating it when needed.
// An empty DataDir means ~/.drill.
func (c Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".drill")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return dir, nil
}

// StoreDSN returns the configured DSN, filling in a default location under
// the data directory for the file-based backends and localhost for redis.
func (c Config) StoreDSN() (string, error) {
	if c.Store.DSN != "" {
		return c.Store.DSN, nil
	}
	switch c.Store.Backend {
	case "redis":
		return "localhost:6379", nil
	case "sqlite", "file":
		dir, err := c.ResolveDataDir()
		if err != nil {
			return "", err
		}
		if c.Store.Backend == "file" {
			return filepath.Join(dir, "progress"), nil
		}
		return filepath.Join(dir, "drill.db"), nil
	}
	return "", fmt.Errorf("store backend %s requires a dsn", c.Store.Backend)
}
