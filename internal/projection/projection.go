// Package projection holds the address-keyed maps derived from identity
// transactions: verification methods and trust-network roles.
//
// Updates are read-merge-write without locking. Two concurrent saves for the
// same address race and the last write wins.
package projection

import (
	"context"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/storage"
)

// loadMap reads the map at key. A missing key or a failed read yields an empty map.
func loadMap[V any](ctx context.Context, store *storage.Store, key string, logger *logging.Logger) map[string]V {
	m := map[string]V{}
	if err := store.GetObject(ctx, key, &m); err != nil {
		if !apperrors.IsNotFound(err) {
			logger.WithField("key", key).WithError(err).Warn("Reading projection failed, using empty map")
		}
		return map[string]V{}
	}
	if m == nil {
		m = map[string]V{}
	}
	return m
}

// mergeEntry sets m[field] = value on the stored map and writes the whole map back
func mergeEntry[V any](ctx context.Context, store *storage.Store, key string, field string, value V, logger *logging.Logger) error {
	m := loadMap[V](ctx, store, key, logger)
	m[field] = value
	return store.SetObject(ctx, key, m)
}
