package storage

import (
	"context"
	"fmt"

	"github.com/anchor-indexer/internal/config"
	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/retry"
)

// Factory opens a driver for one backend
type Factory func(ctx context.Context, cfg *config.StorageConfig) (Driver, error)

// backends maps every supported STORAGE_TYPE to its driver
var backends = map[config.StorageType]Factory{
	config.StorageRedis:   openRedis,
	config.StorageLevelDB: openLevelDB,
}

func openRedis(ctx context.Context, cfg *config.StorageConfig) (Driver, error) {
	client, err := NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	driver := NewRedisDriver(client, cfg.Namespace)
	if err := driver.Ping(ctx); err != nil {
		_ = driver.Close()
		return nil, err
	}
	return driver, nil
}

func openLevelDB(ctx context.Context, cfg *config.StorageConfig) (Driver, error) {
	return OpenLevelDBDriver(cfg.LevelDB.Path, cfg.Namespace)
}

// Open resolves the configured backend once and returns the keyed store on top of it.
// Connection failures are retried with exponential backoff.
func Open(ctx context.Context, cfg *config.StorageConfig) (*Store, error) {
	factory, ok := backends[cfg.Type]
	if !ok {
		return nil, apperrors.NewConfigurationError("STORAGE_TYPE", fmt.Sprintf("unsupported backend %q", cfg.Type))
	}

	logger := logging.FromContext(ctx).WithComponent("storage").WithField("backend", string(cfg.Type))

	retryCfg := retry.DefaultRetryConfig()
	if cfg.ConnectAttempts > 0 {
		retryCfg.MaxAttempts = cfg.ConnectAttempts
	}
	if cfg.ConnectDelay > 0 {
		retryCfg.InitialDelay = cfg.ConnectDelay
	}
	retryCfg.ShouldRetry = apperrors.IsRetryable

	var driver Driver
	err := retry.Do(logging.WithLogger(ctx, logger), retryCfg, func(ctx context.Context, attempt int) error {
		d, err := factory(ctx, cfg)
		if err != nil {
			return err
		}
		driver = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Type, err)
	}

	logger.Info("Storage backend ready")
	return NewStore(driver, cfg.Namespace), nil
}
