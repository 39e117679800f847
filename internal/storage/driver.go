// Package storage holds the storage driver contract, its backend implementations
// and the keyed store the projections are built on.
package storage

import (
	"context"
	"encoding/json"

	apperrors "github.com/anchor-indexer/internal/errors"
)

// Driver is the set of primitives every backend implements.
//
// Reads of an absent key return an error matching errors.ErrNotFound; callers decide
// whether that means "default". Every other failure is a backend error.
type Driver interface {
	// GetValue returns the scalar stored at key
	GetValue(ctx context.Context, key string) (string, error)
	// GetValues returns one entry per key, "" where the key is absent
	GetValues(ctx context.Context, keys []string) ([]string, error)
	SetValue(ctx context.Context, key string, value string) error
	DelValue(ctx context.Context, key string) error
	// IncrValue atomically increments the integer at key and returns the new value
	IncrValue(ctx context.Context, key string) (int64, error)

	// GetObject decodes the structured value at key into out
	GetObject(ctx context.Context, key string, out interface{}) error
	// SetObject replaces the structured value at key
	SetObject(ctx context.Context, key string, value interface{}) error
	// AddObject creates or overwrites a single record
	AddObject(ctx context.Context, key string, value interface{}) error

	// SAdd adds member to the set at key; adding an existing member is a no-op
	SAdd(ctx context.Context, key string, member string) error
	// SRem removes member from the set at key; removing an absent member is a no-op
	SRem(ctx context.Context, key string, member string) error
	// GetArray returns the members of the set at key in insertion order
	GetArray(ctx context.Context, key string) ([]string, error)

	// IndexTx appends txID to the (txType, address) index. Entries are ordered by
	// (timestamp, txID) ascending. Every call adds an entry, so writing the same
	// txID twice lists and counts it twice.
	IndexTx(ctx context.Context, txType string, address string, txID string, timestamp int64) error
	// GetTx pages through the (txType, address) index
	GetTx(ctx context.Context, txType string, address string, limit int, offset int) ([]string, error)
	// CountTx returns the number of entries of the (txType, address) index
	CountTx(ctx context.Context, txType string, address string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// txSeqSeparator splits a stored index entry into tx id and write sequence
const txSeqSeparator = 0x00

// txIndexKey is the logical key of a reverse transaction index
func txIndexKey(namespace, txType, address string) string {
	return namespace + ":tx:" + txType + ":" + address
}

func encodeObject(key string, value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, apperrors.NewValidationError(key, err.Error())
	}
	return data, nil
}

func decodeObject(key string, data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewValidationError(key, "stored value is not a valid object: "+err.Error())
	}
	return nil
}

// pageBounds converts limit/offset into an inclusive [start, stop] range; ok is false
// when the page is empty.
func pageBounds(limit, offset int) (start, stop int64, ok bool) {
	if limit <= 0 {
		return 0, 0, false
	}
	if offset < 0 {
		offset = 0
	}
	return int64(offset), int64(offset + limit - 1), true
}
