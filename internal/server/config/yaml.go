package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/calbot/internal/flagx"
	"github.com/dmitrijs2005/calbot/internal/timex"
	"gopkg.in/yaml.v3"
)

// YAMLConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "10s" and integer nanoseconds are accepted. Keys
// left out of the file keep their current value.
type YAMLConfig struct {
	DatabaseDSN          string         `yaml:"database_dsn"`
	DatabaseSchema       string         `yaml:"database_schema"`
	DBMinConns           *int32         `yaml:"db_min_conns"`
	DBMaxConns           int32          `yaml:"db_max_conns"`
	DBAcquireTimeout     timex.Duration `yaml:"db_acquire_timeout"`
	DBQueryTimeout       timex.Duration `yaml:"db_query_timeout"`
	DBSlowQueryThreshold timex.Duration `yaml:"db_slow_query_threshold"`
	DBIdleTimeout        timex.Duration `yaml:"db_idle_timeout"`
	SecretKey            string         `yaml:"secret_key"`
	TokenTTL             timex.Duration `yaml:"token_ttl"`
	Environment          string         `yaml:"environment"`
	LogLevel             string         `yaml:"log_level"`
}

// parseYAML overlays the file named by -c / -config (or CALBOT_CONFIG) onto
// config. No file configured is not an error.
func parseYAML(config *Config, args []string) error {
	path := flagx.ConfigFile(args, EnvConfigFile)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	c := &YAMLConfig{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *YAMLConfig) apply(config *Config) {
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.DatabaseSchema, c.DatabaseSchema)
	if c.DBMinConns != nil {
		config.DBMinConns = *c.DBMinConns
	}
	if c.DBMaxConns > 0 {
		config.DBMaxConns = c.DBMaxConns
	}
	setDuration(&config.DBAcquireTimeout, c.DBAcquireTimeout)
	setDuration(&config.DBQueryTimeout, c.DBQueryTimeout)
	setDuration(&config.DBSlowQueryThreshold, c.DBSlowQueryThreshold)
	setDuration(&config.DBIdleTimeout, c.DBIdleTimeout)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.TokenTTL, c.TokenTTL)
	setString(&config.Environment, c.Environment)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
