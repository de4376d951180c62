package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"NOMIS_API_KEY", "NOMIS_BASE_URL", "UKCENSUS_CACHE_DIR", "UKCENSUS_CONFIG",
	"METADATA_STORE", "REDIS_URL", "REDIS_PREFIX", "HTTP_TIMEOUT", "LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://www.nomisweb.co.uk/", cfg.Nomis.BaseURL)
	assert.Empty(t, cfg.Nomis.APIKey)
	assert.Equal(t, "./cache", cfg.Cache.Dir)
	assert.Equal(t, StoreLocal, cfg.Cache.MetadataStore)
	assert.Equal(t, 15, cfg.HTTP.Timeout)
	assert.Equal(t, "pretty", cfg.Log.Format)
}

func TestLoadFile_YAMLWithPlaceholders(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_NOMIS_KEY", "0xFROMENV")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `nomis:
  api_key: ${TEST_NOMIS_KEY}
  base_url: ${TEST_BASE_URL:-http://localhost:9000/}
cache:
  dir: /var/cache/ukcensus
http:
  timeout: 40
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0xFROMENV", cfg.Nomis.APIKey)
	assert.Equal(t, "http://localhost:9000/", cfg.Nomis.BaseURL)
	assert.Equal(t, "/var/cache/ukcensus", cfg.Cache.Dir)
	assert.Equal(t, 40, cfg.HTTP.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	// Unset fields keep their defaults.
	assert.Equal(t, StoreLocal, cfg.Cache.MetadataStore)
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_TIMEOUT", "5")
	t.Setenv("UKCENSUS_CACHE_DIR", "/tmp/from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  dir: /from/yaml\nhttp:\n  timeout: 40\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.HTTP.Timeout)
	assert.Equal(t, "/tmp/from-env", cfg.Cache.Dir)
}

func TestLoadFile_DurationTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_TIMEOUT", "30s")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.HTTP.Timeout)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nomis: [unclosed"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_ExpandsHome(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("UKCENSUS_CACHE_DIR", "~/.ukpopulation/cache")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ukpopulation", "cache"), cfg.Cache.Dir)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nomis:\n  api_key: from-custom-file\n"), 0o644))
	t.Setenv("UKCENSUS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-custom-file", cfg.Nomis.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty dir", func(c *Config) { c.Cache.Dir = "" }, true},
		{"redis without url", func(c *Config) { c.Cache.MetadataStore = StoreRedis }, true},
		{"redis with url", func(c *Config) {
			c.Cache.MetadataStore = StoreRedis
			c.Cache.RedisURL = "redis://localhost:6379"
		}, false},
		{"unknown store", func(c *Config) { c.Cache.MetadataStore = "sqlite" }, true},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
