package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// loadFromEnv overrides config from TODOSYNC_* variables.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TODOSYNC_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("TODOSYNC_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TODOSYNC_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TODOSYNC_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TODOSYNC_IDENTITY_HEADER"); v != "" {
		cfg.Auth.IdentityHeader = v
	}
	if v := os.Getenv("TODOSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TODOSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TODOSYNC_ENFORCE_LIST_OWNER"); v != "" {
		cfg.EnforceListOwner = boolFromString(v)
	}
	if v := os.Getenv("TODOSYNC_HUB_SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TODOSYNC_HUB_SEND_BUFFER: %w", err)
		}
		cfg.Hub.SendBuffer = n
	}
	if v := os.Getenv("TODOSYNC_HUB_PING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TODOSYNC_HUB_PING_INTERVAL: %w", err)
		}
		cfg.Hub.PingInterval = d
	}
	if v := os.Getenv("TODOSYNC_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TODOSYNC_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

func boolFromString(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
