package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides applies CALBOT_* environment variables to cfg.
// Durations use Go syntax ("10s"); a plain integer is read as seconds.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CALBOT_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("CALBOT_DB_SCHEMA"); v != "" {
		cfg.DatabaseSchema = v
	}
	if err := envInt32("CALBOT_DB_MIN_CONNS", &cfg.DBMinConns); err != nil {
		return err
	}
	if err := envInt32("CALBOT_DB_MAX_CONNS", &cfg.DBMaxConns); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"CALBOT_DB_ACQUIRE_TIMEOUT":      &cfg.DBAcquireTimeout,
		"CALBOT_DB_QUERY_TIMEOUT":        &cfg.DBQueryTimeout,
		"CALBOT_DB_SLOW_QUERY_THRESHOLD": &cfg.DBSlowQueryThreshold,
		"CALBOT_DB_IDLE_TIMEOUT":         &cfg.DBIdleTimeout,
		"CALBOT_TOKEN_TTL":               &cfg.TokenTTL,
	} {
		if err := envDuration(key, dst); err != nil {
			return err
		}
	}

	// Security - always override in production
	if v := os.Getenv("CALBOT_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("CALBOT_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("CALBOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func envInt32(key string, dst *int32) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = int32(n)
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
