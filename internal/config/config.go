// Package config holds process-level settings for the stepwise binaries.
// Values start from NewDefaultConfig, are overlaid by STEPWISE_* environment
// variables and finally by command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aretw0/stepwise/internal/logging"
)

type (
	// Config holds configuration settings for the CLI, HTTP and MCP servers
	Config struct {
		// Engine
		MaxErrors     int
		MaxIterations int
		MaxInputSize  int

		// Logging
		LogLevel string

		// Persistence
		Store      string
		StorePath  string
		Redis      RedisConfig
		SessionTTL time.Duration

		// Oracle
		Oracle string
		Model  string
		// Script is a JSON Lines file of replies for the scripted oracle
		Script string

		// Transport
		HTTPPort int
	}

	// RedisConfig configures the Redis store and locker
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const EnvPrefix = "STEPWISE_"

// Store backends
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreBlob   = "blob"
)

// Oracle backends
const (
	OracleScripted  = "scripted"
	OracleOpenAI    = "openai"
	OracleAnthropic = "anthropic"
)

const (
	DefaultMaxErrors     = 3
	DefaultMaxIterations = 10
	DefaultMaxInputSize  = 4096
	DefaultHTTPPort      = 8080
	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisPrefix   = "stepwise"
	DefaultStorePath     = ".stepwise/sessions"

	MaxTCPPort      = 65535
	MaxBudget       = 1000
	MaxInputSizeCap = 1 << 20
)

var (
	ErrInvalidHTTPPort      = errors.New("invalid HTTP port")
	ErrInvalidMaxErrors     = errors.New("max errors must be positive")
	ErrInvalidMaxIterations = errors.New("max iterations must be positive")
	ErrInvalidMaxInputSize  = errors.New("max input size must be positive")
	ErrInvalidStore         = errors.New("invalid store backend")
	ErrMissingStorePath     = errors.New("store path is required for this backend")
	ErrInvalidOracle        = errors.New("invalid oracle backend")
	ErrInvalidSessionTTL    = errors.New("session TTL cannot be negative")
)

// NewDefaultConfig creates a configuration with in-memory persistence and the
// engine's default budgets
func NewDefaultConfig() *Config {
	return &Config{
		MaxErrors:     DefaultMaxErrors,
		MaxIterations: DefaultMaxIterations,
		MaxInputSize:  DefaultMaxInputSize,
		LogLevel:      "info",
		Store:         StoreMemory,
		StorePath:     DefaultStorePath,
		Redis: RedisConfig{
			Addr:   DefaultRedisAddr,
			Prefix: DefaultRedisPrefix,
		},
		Oracle:   OracleScripted,
		HTTPPort: DefaultHTTPPort,
	}
}

// LoadFromEnv populates configuration values from STEPWISE_* environment
// variables. Returns an error if any value cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("STORE", &c.Store)
	loadEnvString("STORE_PATH", &c.StorePath)
	loadEnvString("REDIS_ADDR", &c.Redis.Addr)
	loadEnvString("REDIS_PASSWORD", &c.Redis.Password)
	loadEnvString("REDIS_PREFIX", &c.Redis.Prefix)
	loadEnvString("ORACLE", &c.Oracle)
	loadEnvString("MODEL", &c.Model)
	loadEnvString("SCRIPT", &c.Script)

	if err := loadEnvInt("MAX_ERRORS", &c.MaxErrors, 0, MaxBudget); err != nil {
		return err
	}
	if err := loadEnvInt("MAX_ITERATIONS", &c.MaxIterations, 0, MaxBudget); err != nil {
		return err
	}
	if err := loadEnvInt("MAX_INPUT_SIZE", &c.MaxInputSize, 0, MaxInputSizeCap); err != nil {
		return err
	}
	if err := loadEnvInt("HTTP_PORT", &c.HTTPPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt("REDIS_DB", &c.Redis.DB, -1, 15); err != nil {
		return err
	}

	if s := os.Getenv(EnvPrefix + "SESSION_TTL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid %sSESSION_TTL: %q", EnvPrefix, s)
		}
		c.SessionTTL = d
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidHTTPPort, c.HTTPPort)
	}
	if c.MaxErrors <= 0 {
		return ErrInvalidMaxErrors
	}
	if c.MaxIterations <= 0 {
		return ErrInvalidMaxIterations
	}
	if c.MaxInputSize <= 0 {
		return ErrInvalidMaxInputSize
	}
	if c.SessionTTL < 0 {
		return ErrInvalidSessionTTL
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Store {
	case StoreMemory, StoreRedis:
	case StoreFile, StoreSQLite, StoreBlob:
		if c.StorePath == "" {
			return fmt.Errorf("%w: %s", ErrMissingStorePath, c.Store)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStore, c.Store)
	}

	switch c.Oracle {
	case OracleScripted, OracleOpenAI, OracleAnthropic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOracle, c.Oracle)
	}
	return nil
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

// loadEnvInt reads STEPWISE_<key>, parses it as an integer, and sets *dst if
// the value is in the range (min, max].
func loadEnvInt(key string, dst *int, min, max int) error {
	s := os.Getenv(EnvPrefix + key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %q", EnvPrefix, key, s)
	}
	if v <= min || v > max {
		return fmt.Errorf("invalid %s%s: %d out of range [%d, %d]", EnvPrefix, key, v, min+1, max)
	}
	*dst = v
	return nil
}
