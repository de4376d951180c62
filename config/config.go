// Package config provides configuration management for the census client.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ukcensusapi/internal/httpclient"
)

// Metadata store backends.
const (
	StoreLocal = "local"
	StoreRedis = "redis"
)

// DefaultConfigFile is read when UKCENSUS_CONFIG is not set.
const DefaultConfigFile = "config.yaml"

// Config holds the client configuration
type Config struct {
	Nomis NomisConfig `yaml:"nomis"`
	Cache CacheConfig `yaml:"cache"`
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
}

// NomisConfig holds the data service endpoint and credential
type NomisConfig struct {
	// APIKey is sent with every request. Without it the service may truncate results.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CacheConfig holds the location of downloaded data and metadata
type CacheConfig struct {
	// Dir holds data files and, with the local store, metadata files.
	Dir string `yaml:"dir"`
	// MetadataStore is "local" or "redis".
	MetadataStore string `yaml:"metadata_store"`
	RedisURL      string `yaml:"redis_url"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// HTTPConfig holds outbound request settings
type HTTPConfig struct {
	// Timeout in seconds, applied to every request. HTTP_TIMEOUT also
	// accepts Go durations ("30s", "2m").
	Timeout int `yaml:"timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	// Format is "pretty", "json" or "text"
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Nomis: NomisConfig{BaseURL: "https://www.nomisweb.co.uk/"},
		Cache: CacheConfig{Dir: "./cache", MetadataStore: StoreLocal},
		HTTP:  HTTPConfig{Timeout: 15},
		Log:   LogConfig{Format: "pretty", Level: "info"},
	}
}

// Load reads configuration from an optional .env file, an optional YAML file
// (UKCENSUS_CONFIG, else config.yaml) and the environment, in increasing
// order of precedence.
func Load() (*Config, error) {
	// Optional, won't fail if not found; never overrides real environment variables.
	_ = godotenv.Load()

	path := os.Getenv("UKCENSUS_CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit YAML file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Cache.Dir, err = expandHome(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache directory is required")
	}
	switch c.Cache.MetadataStore {
	case StoreLocal:
	case StoreRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when METADATA_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown metadata store %q", c.Cache.MetadataStore)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %d", c.HTTP.Timeout)
	}
	return nil
}

// applyEnvOverrides replaces fields with environment variables that are set.
func applyEnvOverrides(cfg *Config) error {
	overrideString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	overrideString("NOMIS_API_KEY", &cfg.Nomis.APIKey)
	overrideString("NOMIS_BASE_URL", &cfg.Nomis.BaseURL)
	overrideString("UKCENSUS_CACHE_DIR", &cfg.Cache.Dir)
	overrideString("METADATA_STORE", &cfg.Cache.MetadataStore)
	overrideString("REDIS_URL", &cfg.Cache.RedisURL)
	overrideString("REDIS_PREFIX", &cfg.Cache.RedisPrefix)
	overrideString("LOG_FORMAT", &cfg.Log.Format)
	overrideString("LOG_LEVEL", &cfg.Log.Level)

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d := httpclient.ParseDuration(v, 0)
		if d <= 0 {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: want seconds or a duration such as 30s", v)
		}
		// Sub-second durations round up to one second.
		cfg.HTTP.Timeout = int(math.Ceil(d.Seconds()))
	}
	return nil
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders. A variable
// that is unset or empty takes the default when one is given; otherwise the
// placeholder is left as written.
func expandString(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
		parts := envPlaceholder.FindStringSubmatch(m)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if parts[2] != "" {
			return parts[3]
		}
		return m
	})
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
