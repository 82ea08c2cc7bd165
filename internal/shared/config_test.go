package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		assert.Equal(t, "https://hegobck-production.up.railway.app", config.API.BaseURL)
		assert.Equal(t, ScopeLocal, config.Storage.Scope)
		assert.Equal(t, "./hego.db", config.Storage.Path)
		assert.Equal(t, 3000, config.Server.Port)
		assert.Equal(t, 15*time.Minute, config.Auth.InactivityTimeout())
		assert.Equal(t, 2*time.Second, config.Auth.LoginCooldown())
		assert.Equal(t, Interactive, config.Platform())
		assert.False(t, config.Gate.Enabled)
		require.NoError(t, config.Validate())
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, CreateConfigFile(configPath))
		_, err := os.Stat(configPath)
		require.NoError(t, err)

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Storage.Path, config.Storage.Path)

		assert.Error(t, CreateConfigFile(configPath), "creating config file again should fail")
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[app]
platform = "headless"

[api]
base_url = "http://localhost:8000"

[auth]
verify_on_restore = true
inactivity_timeout_seconds = 1

[storage]
scope = "session"

[gate]
enabled = true
password = "HegoWork"

[providers.google]
client_id = "test_client_id"
`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8000", config.API.BaseURL)
		assert.Equal(t, Headless, config.Platform())
		assert.True(t, config.Auth.VerifyOnRestore)
		assert.Equal(t, time.Second, config.Auth.InactivityTimeout())
		assert.Equal(t, ScopeSession, config.Storage.Scope)
		assert.True(t, config.Gate.Enabled)
		assert.Equal(t, "test_client_id", config.Providers.Google.ClientID)
		assert.Equal(t, 3000, config.Server.Port, "unset values keep defaults")
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(configPath, []byte("[api\nbase_url="), 0644))

		_, err := LoadConfig(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "relative base url", mutate: func(c *Config) { c.API.BaseURL = "/auth" }},
			{name: "unknown scope", mutate: func(c *Config) { c.Storage.Scope = "cookie" }},
			{name: "local without path", mutate: func(c *Config) { c.Storage.Path = "" }},
			{name: "unknown platform", mutate: func(c *Config) { c.App.Platform = "browser" }},
			{name: "negative cooldown", mutate: func(c *Config) { c.Auth.LoginCooldownSeconds = -1 }},
			{name: "gate without password", mutate: func(c *Config) { c.Gate.Enabled = true }},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				require.ErrorIs(t, config.Validate(), ErrInvalidConfig)
			})
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			"HEGO_API_URL":                    "http://api.test",
			"HEGO_STORAGE_SCOPE":              "session",
			"HEGO_GATE_PASSWORD":              "secret",
			"HEGO_INACTIVITY_TIMEOUT_SECONDS": "60",
		}
		config := DefaultConfig()
		ApplyEnv(config, func(k string) string { return env[k] })

		assert.Equal(t, "http://api.test", config.API.BaseURL)
		assert.Equal(t, ScopeSession, config.Storage.Scope)
		assert.True(t, config.Gate.Enabled)
		assert.Equal(t, "secret", config.Gate.Password)
		assert.Equal(t, time.Minute, config.Auth.InactivityTimeout())
	})

	t.Run("LoadEnv", func(t *testing.T) {
		dir := t.TempDir()
		envPath := filepath.Join(dir, "test.env")
		require.NoError(t, os.WriteFile(envPath, []byte("HEGO_TEST_LOADENV=loaded\n"), 0600))
		t.Cleanup(func() { os.Unsetenv("HEGO_TEST_LOADENV") })

		require.NoError(t, LoadEnv(envPath, filepath.Join(dir, "missing.env")))
		assert.Equal(t, "loaded", os.Getenv("HEGO_TEST_LOADENV"))
	})
}
