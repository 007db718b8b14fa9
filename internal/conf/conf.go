package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
	"github.com/devricklin/fanwatch-bridge/internal/service"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Upstream stream configuration
	Upstream UpstreamConfig

	// Unknown-event alerting
	UnknownEvents UnknownEventConfig

	// Moonshot configuration (optional)
	Moonshot MoonshotConfig

	// Settings storage
	Settings SettingsConfig

	// HTTP admin API
	API APIConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// UpstreamConfig contains connection tuning for account sessions
type UpstreamConfig struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectBackoff     time.Duration
	KeepAliveInterval    time.Duration
	AuthTimeout          time.Duration
}

// UnknownEventConfig controls diagnostics for unrecognized events
type UnknownEventConfig struct {
	Alerts   bool
	Cooldown time.Duration
}

// MoonshotConfig contains Moonshot configuration
type MoonshotConfig struct {
	APIKey string
	Model  string
}

// SettingsConfig contains settings storage configuration
type SettingsConfig struct {
	DBPath string
}

// APIConfig contains the admin API configuration
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Settings DB path
	dbPath := os.Getenv("SETTINGS_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".fanwatch", "settings.db")
	}

	upstreamURL := os.Getenv("UPSTREAM_WS_URL")
	if upstreamURL == "" {
		upstreamURL = upstream.DefaultEndpoint
	}

	// Load prompts from YAML
	promptsConfig, _ := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Upstream: UpstreamConfig{
			URL:                  upstreamURL,
			MaxReconnectAttempts: envInt("MAX_RECONNECT_ATTEMPTS", 5),
			ReconnectBackoff:     envDuration("RECONNECT_BACKOFF", 5*time.Second),
			KeepAliveInterval:    envDuration("KEEPALIVE_INTERVAL", 30*time.Second),
			AuthTimeout:          envDuration("AUTH_TIMEOUT", 15*time.Second),
		},
		UnknownEvents: UnknownEventConfig{
			Alerts:   os.Getenv("UNKNOWN_EVENT_ALERTS") == "true",
			Cooldown: envDuration("UNKNOWN_EVENT_COOLDOWN", usecase.DefaultUnknownEventCooldown),
		},
		Moonshot: MoonshotConfig{
			APIKey: os.Getenv("MOONSHOT_API_KEY"),
			Model:  os.Getenv("MOONSHOT_MODEL"),
		},
		Settings: SettingsConfig{
			DBPath: dbPath,
		},
		API: APIConfig{
			Port: envInt("API_PORT", 9876),
		},
		Prompts: promptsConfig,
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// ToSessionConfig converts to service session configuration
func (c *UpstreamConfig) ToSessionConfig() service.SessionConfig {
	return service.SessionConfig{
		Endpoint:    c.URL,
		MaxAttempts: c.MaxReconnectAttempts,
		Backoff:     c.ReconnectBackoff,
		KeepAlive:   c.KeepAliveInterval,
		AuthTimeout: c.AuthTimeout,
	}
}

// ToLimiterConfig converts to alert limiter configuration
func (c *UnknownEventConfig) ToLimiterConfig() usecase.LimiterConfig {
	return usecase.LimiterConfig{
		Enabled:  c.Alerts,
		Cooldown: c.Cooldown,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Upstream.MaxReconnectAttempts < 0 {
		return &ConfigError{Field: "MAX_RECONNECT_ATTEMPTS", Message: "must not be negative"}
	}
	if c.Upstream.KeepAliveInterval <= 0 {
		return &ConfigError{Field: "KEEPALIVE_INTERVAL", Message: "must be positive"}
	}
	if c.Upstream.AuthTimeout <= 0 {
		return &ConfigError{Field: "AUTH_TIMEOUT", Message: "must be positive"}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// envDuration accepts Go durations ("5s") or plain seconds ("5")
func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
