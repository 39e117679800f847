// Package config provides configuration management for the anchor indexer.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/anchor-indexer/internal/errors"
)

// StorageType names a storage backend
type StorageType string

const (
	// StorageRedis is the networked key-value backend
	StorageRedis StorageType = "redis"
	// StorageLevelDB is the embedded log-structured backend
	StorageLevelDB StorageType = "leveldb"
)

// Config holds all application configuration
type Config struct {
	Storage StorageConfig
	Indexer IndexerConfig
	Supply  SupplyConfig
	Logging LoggingConfig
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type            StorageType
	Namespace       string
	ConnectAttempts int
	ConnectDelay    time.Duration
	Redis           RedisConfig
	LevelDB         LevelDBConfig
}

// RedisConfig holds Redis configuration.
// URL wins over Cluster, Cluster wins over Host/Port.
type RedisConfig struct {
	URL            string
	Cluster        []string
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// LevelDBConfig holds configuration of the embedded store
type LevelDBConfig struct {
	Path string
}

// IndexerConfig holds configuration of the index worker
type IndexerConfig struct {
	StartingBlock int64
	RestartSync   bool
	Processors    []string
	MaxRate       float64 // events per second, 0 disables throttling
	Buffer        int
}

// SupplyConfig holds fee-burn configuration
type SupplyConfig struct {
	FeeBurnAmount int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Storage: StorageConfig{
			Type:            StorageType(strings.ToLower(getEnv("STORAGE_TYPE", string(StorageRedis)))),
			Namespace:       getEnv("STORAGE_NAMESPACE", "lto"),
			ConnectAttempts: getEnvAsInt("STORAGE_CONNECT_ATTEMPTS", 5),
			ConnectDelay:    getEnvAsDuration("STORAGE_CONNECT_DELAY", time.Second),
			Redis: RedisConfig{
				URL:            getEnv("REDIS_URL", ""),
				Cluster:        getEnvAsList("REDIS_CLUSTER", ";"),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
			LevelDB: LevelDBConfig{
				Path: getEnv("LEVELDB_PATH", "./data/leveldb"),
			},
		},
		Indexer: IndexerConfig{
			StartingBlock: getEnvAsInt64("INDEXER_STARTING_BLOCK", 1),
			RestartSync:   getEnvAsBool("INDEXER_RESTART_SYNC", false),
			Processors:    getEnvAsList("INDEXER_PROCESSORS", ","),
			MaxRate:       getEnvAsFloat("INDEXER_MAX_RATE", 0),
			Buffer:        getEnvAsInt("INDEXER_BUFFER", 256),
		},
		Supply: SupplyConfig{
			FeeBurnAmount: getEnvAsInt64("SUPPLY_FEE_BURN_AMOUNT", 10000000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if len(config.Indexer.Processors) == 0 {
		config.Indexer.Processors = []string{"index"}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageRedis, StorageLevelDB:
	default:
		return apperrors.NewConfigurationError("STORAGE_TYPE", fmt.Sprintf("unsupported backend %q", c.Storage.Type))
	}
	if c.Storage.Namespace == "" {
		return apperrors.NewConfigurationError("STORAGE_NAMESPACE", "must not be empty")
	}
	if c.Storage.Type == StorageLevelDB && c.Storage.LevelDB.Path == "" {
		return apperrors.NewConfigurationError("LEVELDB_PATH", "must be set for the leveldb backend")
	}
	return nil
}

// IsProcessorEnabled reports whether the named processor is switched on
func (c *IndexerConfig) IsProcessorEnabled(name string) bool {
	for _, p := range c.Processors {
		if p == name {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits an environment variable on sep, dropping empty items
func getEnvAsList(key, sep string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
