package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	ScopeLocal   = "local"
	ScopeSession = "session"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	App       AppConfig       `toml:"app"`
	API       APIConfig       `toml:"api"`
	Auth      AuthConfig      `toml:"auth"`
	Storage   StorageConfig   `toml:"storage"`
	Server    ServerConfig    `toml:"server"`
	Gate      GateConfig      `toml:"gate"`
	Providers ProvidersConfig `toml:"providers"`
}

// AppConfig selects the runtime [Platform].
type AppConfig struct {
	Platform string `toml:"platform"`
}

// APIConfig points at the backend REST API.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AuthConfig tunes the session lifecycle.
type AuthConfig struct {
	VerifyOnRestore          bool `toml:"verify_on_restore"`
	InactivityTimeoutSeconds int  `toml:"inactivity_timeout_seconds"`
	LoginCooldownSeconds     int  `toml:"login_cooldown_seconds"`
}

// StorageConfig selects where credential material lives.
type StorageConfig struct {
	Scope        string `toml:"scope"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the companion HTTP server settings (also used for OAuth callbacks).
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// GateConfig configures the pre-launch access gate.
type GateConfig struct {
	Enabled  bool   `toml:"enabled"`
	Password string `toml:"password"`
}

// ProvidersConfig contains third-party identity provider credentials.
type ProvidersConfig struct {
	Google GoogleConfig `toml:"google"`
	Apple  AppleConfig  `toml:"apple"`
}

// GoogleConfig contains Google OAuth client credentials.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// AppleConfig contains Sign in with Apple service settings.
type AppleConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// Addr returns the host:port the companion server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeout returns the HTTP client timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// InactivityTimeout returns the idle period after which a session is signed out.
func (a AuthConfig) InactivityTimeout() time.Duration {
	return time.Duration(a.InactivityTimeoutSeconds) * time.Second
}

// LoginCooldown returns the delay enforced after a failed login.
func (a AuthConfig) LoginCooldown() time.Duration {
	return time.Duration(a.LoginCooldownSeconds) * time.Second
}

// Platform parses [AppConfig.Platform].
func (c *Config) Platform() Platform {
	p, err := ParsePlatform(c.App.Platform)
	if err != nil {
		return Interactive
	}
	return p
}

// Validate checks the fields other packages rely on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q must be an absolute URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if _, err := ParsePlatform(c.App.Platform); err != nil {
		return err
	}
	switch c.Storage.Scope {
	case ScopeLocal:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for local scope", ErrInvalidConfig)
		}
	case ScopeSession:
	default:
		return fmt.Errorf("%w: storage.scope must be %q or %q", ErrInvalidConfig, ScopeLocal, ScopeSession)
	}
	if c.Gate.Enabled && c.Gate.Password == "" {
		return fmt.Errorf("%w: gate.password is required when the gate is enabled", ErrInvalidConfig)
	}
	if c.API.TimeoutSeconds < 0 || c.Auth.InactivityTimeoutSeconds < 0 || c.Auth.LoginCooldownSeconds < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads the given dotenv files (".env" when none are given) into the process environment.
//
// Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values with HEGO_* environment variables.
func ApplyEnv(c *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set("HEGO_API_URL", &c.API.BaseURL)
	set("HEGO_PLATFORM", &c.App.Platform)
	set("HEGO_STORAGE_SCOPE", &c.Storage.Scope)
	set("HEGO_STORAGE_PATH", &c.Storage.Path)
	set("HEGO_GOOGLE_CLIENT_ID", &c.Providers.Google.ClientID)
	set("HEGO_GOOGLE_CLIENT_SECRET", &c.Providers.Google.ClientSecret)
	set("HEGO_APPLE_CLIENT_ID", &c.Providers.Apple.ClientID)

	if v := getenv("HEGO_GATE_PASSWORD"); v != "" {
		c.Gate.Password = v
		c.Gate.Enabled = true
	}
	if v := getenv("HEGO_INACTIVITY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Auth.InactivityTimeoutSeconds = n
		}
	}
}
