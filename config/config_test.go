package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.DailyRealLimit)
	assert.Equal(t, int64(1), cfg.MinWagerAmount)
	assert.Equal(t, int64(100), cfg.MaxWagerAmount)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, "feed.markets.updates", cfg.FeedSubject)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wagerbook.yaml")
	content := []byte(`
database_url: postgres://file:5432
daily_real_limit: 50
balance_cache_ttl: 2m
reference_timezone: America/Chicago
redis_addr: redis:6379
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://env:5432")
	t.Setenv("MAX_WAGER_AMOUNT", "40")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env:5432", cfg.DatabaseURL, "env overrides file")
	assert.Equal(t, int64(50), cfg.DailyRealLimit)
	assert.Equal(t, int64(40), cfg.MaxWagerAmount)
	assert.Equal(t, 2*time.Minute, cfg.BalanceCacheTTL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "America/Chicago", cfg.Location().String())
}

func TestLoad_Validation(t *testing.T) {
	t.Run("database url required outside test", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "")

		_, err := load()
		assert.ErrorContains(t, err, "DATABASE_URL is required")
	})

	t.Run("inverted wager bounds", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("MIN_WAGER_AMOUNT", "10")
		t.Setenv("MAX_WAGER_AMOUNT", "5")

		_, err := load()
		assert.ErrorContains(t, err, "invalid wager bounds")
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("REFERENCE_TIMEZONE", "Mars/Olympus")

		_, err := load()
		assert.ErrorContains(t, err, "invalid REFERENCE_TIMEZONE")
	})
}

func TestSetTestConfig(t *testing.T) {
	testCfg := NewTestConfig()
	testCfg.DailyRealLimit = 7
	SetTestConfig(testCfg)
	defer ResetConfig()

	assert.Same(t, testCfg, Get())
}
