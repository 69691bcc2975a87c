package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns a map of the settings currently loaded in memory,
// for the diagnostics endpoint.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":              Global.App.Version,
		"app_debug":                Global.App.Debug,
		"app_environment":          Global.App.Environment,
		"sync_max_age":             Global.Sync.MaxAge.String(),
		"sync_revalidate_interval": Global.Sync.RevalidateInterval.String(),
		"sync_heartbeat_interval":  Global.Sync.HeartbeatInterval.String(),
		"db_driver":                Global.Database.Driver,
		"valkey_enabled":           Global.Database.ValkeyEnabled,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
