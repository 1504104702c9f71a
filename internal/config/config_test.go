package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the package reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAddr, EnvDB, EnvRedisURL, EnvDecisionTimeout, EnvRuleSetDir, EnvLogLevel} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.DecisionTimeout)
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAddr, ":9090")
	t.Setenv(EnvDB, "/tmp/games.db")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvDecisionTimeout, "5s")
	t.Setenv(EnvRuleSetDir, "./rules")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Addr:            ":9090",
		DBPath:          "/tmp/games.db",
		RedisURL:        "redis://localhost:6379/0",
		DecisionTimeout: 5 * time.Second,
		RuleSetDir:      "./rules",
		LogLevel:        logrus.DebugLevel,
	}, cfg)
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CARDRULES_ADDR=:7000\nCARDRULES_DECISION_TIMEOUT=1m\n"), 0o644))
	t.Setenv(EnvDB, "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, time.Minute, cfg.DecisionTimeout)
	assert.Equal(t, "from-env.db", cfg.DBPath)

	// godotenv.Load sets real variables; drop them so later tests start clean.
	clearEnv(t)
}

func TestInvalidValues(t *testing.T) {
	for k, v := range map[string]string{
		EnvDecisionTimeout: "soon",
		EnvLogLevel:        "loud",
	} {
		clearEnv(t)
		t.Setenv(k, v)
		_, err := FromEnv()
		assert.Error(t, err, "%s=%s", k, v)
	}

	clearEnv(t)
	t.Setenv(EnvDecisionTimeout, "-1s")
	_, err := FromEnv()
	assert.Error(t, err)
}
