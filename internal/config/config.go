// Package config reads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variable names.
const (
	EnvAddr            = "CARDRULES_ADDR"
	EnvDB              = "CARDRULES_DB"
	EnvRedisURL        = "CARDRULES_REDIS_URL"
	EnvDecisionTimeout = "CARDRULES_DECISION_TIMEOUT"
	EnvRuleSetDir      = "CARDRULES_RULESET_DIR"
	EnvLogLevel        = "LOG_LEVEL"
)

// Config holds server settings.
type Config struct {
	Addr            string        // HTTP listen address
	DBPath          string        // SQLite database file
	RedisURL        string        // optional redis:// URL for event fan-out
	DecisionTimeout time.Duration // how long a player may take to answer a decision
	RuleSetDir      string        // optional directory of extra rule-set files
	LogLevel        logrus.Level
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:            ":8080",
		DBPath:          "cardrules.db",
		DecisionTimeout: 30 * time.Second,
		LogLevel:        logrus.InfoLevel,
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// environment. Missing files are ignored; variables already set in the
// environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables over the defaults.
func FromEnv() (Config, error) {
	cfg := Default()
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		cfg.DBPath = v
	}
	cfg.RedisURL = os.Getenv(EnvRedisURL)
	cfg.RuleSetDir = os.Getenv(EnvRuleSetDir)
	if v := os.Getenv(EnvDecisionTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvDecisionTimeout, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", EnvDecisionTimeout, v)
		}
		cfg.DecisionTimeout = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// ConfigureLogging applies the log level to the standard logrus logger.
func (c Config) ConfigureLogging() {
	logrus.SetLevel(c.LogLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
