package config

import (
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Paths    PathsConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Security SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	ServerID           string
}

type PathsConfig struct {
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// SyncConfig tunes the push/invalidation layer. Defaults are the documented
// ones: 5m max-age, 30s background revalidation.
type SyncConfig struct {
	// MaxAge is how long a cache entry stays fresh absent an invalidation.
	MaxAge time.Duration
	// RevalidateInterval bounds worst-case staleness when the push channel
	// is down; every subscribed entry is re-checked at this cadence.
	RevalidateInterval time.Duration
	// IdleEviction is how long an entry with zero subscribers survives.
	IdleEviction time.Duration
	// HeartbeatInterval is the app-level ping cadence on the websocket.
	HeartbeatInterval time.Duration
	// PongTimeout is how long to wait for a pong before declaring the
	// connection silently dead.
	PongTimeout time.Duration
	// ReconnectMinBackoff / ReconnectMaxBackoff bound the exponential
	// reconnect backoff. Retries are unbounded in count.
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration
}

type SecurityConfig struct {
	SecretKey string
}

// Global provides access to the loaded configuration.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	var trustedProxies []string
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		trustedProxies = strings.Split(v, ",")
	}

	cfg := &Config{
		App: AppConfig{
			Version:            "v1.4.0",
			Port:               getEnv("APP_PORT", "3000"),
			Debug:              getEnvBool("APP_DEBUG", false),
			Environment:        getEnv("APP_ENV", "development"),
			BasicAuth:          basicAuth,
			BasePath:           getEnv("APP_BASE_PATH", ""),
			BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			TrustedProxies:     trustedProxies,
			CorsAllowedOrigins: corsOrigins,
			ServerID:           getEnv("SERVER_ID", ""),
		},
		Paths: PathsConfig{
			Storages: getEnv("APP_STORAGES_PATH", "storages"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "fluxo"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "storages/fluxo.db"),
			ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
			ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:        getEnvInt("VALKEY_DB", 0),
			ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "fluxo"),
		},
		Sync: SyncConfig{
			MaxAge:              getEnvDuration("SYNC_MAX_AGE", 5*time.Minute),
			RevalidateInterval:  getEnvDuration("SYNC_REVALIDATE_INTERVAL", 30*time.Second),
			IdleEviction:        getEnvDuration("SYNC_IDLE_EVICTION", 10*time.Minute),
			HeartbeatInterval:   getEnvDuration("SYNC_HEARTBEAT_INTERVAL", 25*time.Second),
			PongTimeout:         getEnvDuration("SYNC_PONG_TIMEOUT", 10*time.Second),
			ReconnectMinBackoff: getEnvDuration("SYNC_RECONNECT_MIN_BACKOFF", 500*time.Millisecond),
			ReconnectMaxBackoff: getEnvDuration("SYNC_RECONNECT_MAX_BACKOFF", 30*time.Second),
		},
		Security: SecurityConfig{
			SecretKey: getEnv("APP_SECRET_KEY", "changeme_please_change_me_in_prod_12345"),
		},
	}

	Global = cfg
	return cfg, nil
}
