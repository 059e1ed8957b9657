package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"wagerbook/database"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `yaml:"database_url"`
	DatabaseName string `yaml:"database_name"`

	// HTTP API
	HTTPAddr string `yaml:"http_addr"`

	// NATS configuration
	NATSServers string `yaml:"nats_servers"` // NATS server addresses (comma-separated), empty disables NATS
	FeedSubject string `yaml:"feed_subject"` // Subject carrying upstream market updates

	// Redis display cache, empty address disables the cache
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	BalanceCacheTTL time.Duration `yaml:"balance_cache_ttl"`

	// Settlement notifications
	DiscordToken    string `yaml:"discord_token"`
	NotifyChannelID string `yaml:"notify_channel_id"`

	// Ledger rules
	StartingPracticeBalance int64  `yaml:"starting_practice_balance"`
	DailyRealLimit          int64  `yaml:"daily_real_limit"`
	MinWagerAmount          int64  `yaml:"min_wager_amount"`
	MaxWagerAmount          int64  `yaml:"max_wager_amount"`
	ReferenceTimezone       string `yaml:"reference_timezone"` // Calendar used for the daily real spend cap

	// Store conflict retry policy
	RetryMaxAttempts     int           `yaml:"retry_max_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`

	// Workers
	LockCheckInterval time.Duration `yaml:"lock_check_interval"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `yaml:"otel_enabled"`
	OTelServiceName          string `yaml:"otel_service_name"`
	OTelExporterType         string `yaml:"otel_exporter_type"` // console, otlp, none
	OTelOTLPEndpoint         string `yaml:"otel_otlp_endpoint"`
	OTelExportIntervalMillis int    `yaml:"otel_export_interval_millis"`

	// Environment
	Environment string `yaml:"environment"` // "development", "production" or "test"
	LogLevel    string `yaml:"log_level"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the reference calendar location, falling back to UTC
func (c *Config) Location() *time.Location {
	if c.ReferenceTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaults() *Config {
	return &Config{
		HTTPAddr:                 ":8080",
		FeedSubject:              "feed.markets.updates",
		BalanceCacheTTL:          30 * time.Second,
		StartingPracticeBalance:  1000,
		DailyRealLimit:           100,
		MinWagerAmount:           1,
		MaxWagerAmount:           100,
		ReferenceTimezone:        "UTC",
		RetryMaxAttempts:         5,
		RetryInitialInterval:     20 * time.Millisecond,
		RetryMaxInterval:         500 * time.Millisecond,
		LockCheckInterval:        30 * time.Second,
		OTelServiceName:          "wagerbook",
		OTelExporterType:         "none",
		OTelOTLPEndpoint:         "otel-collector:4317",
		OTelExportIntervalMillis: 15000,
		LogLevel:                 "info",
	}
}

// load loads configuration from an optional YAML file and then environment variables
func load() (*Config, error) {
	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFile overlays values found in a YAML file onto config
func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(config *Config) {
	config.DatabaseURL = getEnvWithDefault("DATABASE_URL", config.DatabaseURL)
	config.DatabaseName = getEnvWithDefault("DATABASE_NAME", config.DatabaseName)
	config.HTTPAddr = getEnvWithDefault("HTTP_ADDR", config.HTTPAddr)
	config.NATSServers = getEnvWithDefault("NATS_SERVERS", config.NATSServers)
	config.FeedSubject = getEnvWithDefault("FEED_SUBJECT", config.FeedSubject)
	config.RedisAddr = getEnvWithDefault("REDIS_ADDR", config.RedisAddr)
	config.RedisPassword = getEnvWithDefault("REDIS_PASSWORD", config.RedisPassword)
	config.DiscordToken = getEnvWithDefault("DISCORD_TOKEN", config.DiscordToken)
	config.NotifyChannelID = getEnvWithDefault("NOTIFY_CHANNEL_ID", config.NotifyChannelID)
	config.ReferenceTimezone = getEnvWithDefault("REFERENCE_TIMEZONE", config.ReferenceTimezone)
	config.OTelServiceName = getEnvWithDefault("OTEL_SERVICE_NAME", config.OTelServiceName)
	config.OTelExporterType = getEnvWithDefault("OTEL_EXPORTER_TYPE", config.OTelExporterType)
	config.OTelOTLPEndpoint = getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", config.OTelOTLPEndpoint)
	config.Environment = getEnvWithDefault("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnvWithDefault("LOG_LEVEL", config.LogLevel)

	config.RedisDB = getEnvInt("REDIS_DB", config.RedisDB)
	config.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", config.RetryMaxAttempts)
	config.OTelExportIntervalMillis = getEnvInt("OTEL_EXPORT_INTERVAL_MILLIS", config.OTelExportIntervalMillis)

	config.StartingPracticeBalance = getEnvInt64("STARTING_PRACTICE_BALANCE", config.StartingPracticeBalance)
	config.DailyRealLimit = getEnvInt64("DAILY_REAL_LIMIT", config.DailyRealLimit)
	config.MinWagerAmount = getEnvInt64("MIN_WAGER_AMOUNT", config.MinWagerAmount)
	config.MaxWagerAmount = getEnvInt64("MAX_WAGER_AMOUNT", config.MaxWagerAmount)

	config.BalanceCacheTTL = getEnvDuration("BALANCE_CACHE_TTL", config.BalanceCacheTTL)
	config.RetryInitialInterval = getEnvDuration("RETRY_INITIAL_INTERVAL", config.RetryInitialInterval)
	config.RetryMaxInterval = getEnvDuration("RETRY_MAX_INTERVAL", config.RetryMaxInterval)
	config.LockCheckInterval = getEnvDuration("LOCK_CHECK_INTERVAL", config.LockCheckInterval)

	if enabled := os.Getenv("OTEL_ENABLED"); enabled != "" {
		config.OTelEnabled = strings.EqualFold(enabled, "true") || enabled == "1"
	}
}

func (c *Config) validate() error {
	if c.MinWagerAmount <= 0 || c.MaxWagerAmount < c.MinWagerAmount {
		return fmt.Errorf("invalid wager bounds %d..%d", c.MinWagerAmount, c.MaxWagerAmount)
	}
	if c.DailyRealLimit <= 0 {
		return fmt.Errorf("DAILY_REAL_LIMIT must be positive")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if _, err := time.LoadLocation(c.ReferenceTimezone); err != nil {
		return fmt.Errorf("invalid REFERENCE_TIMEZONE %q: %w", c.ReferenceTimezone, err)
	}

	if c.Environment != "test" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	cfg := defaults()
	cfg.Environment = "test"
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	return cfg
}
