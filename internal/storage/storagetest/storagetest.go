// Package storagetest provides stores and fault-injecting drivers for tests.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/storage"
)

// Namespace used by every test store
const Namespace = "lto"

// NewRedisStore returns a store on a fresh miniredis instance
func NewRedisStore(t *testing.T) (*storage.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return storage.NewStore(storage.NewRedisDriver(client, Namespace), Namespace), mr
}

// NewLevelDBStore returns a store on an in-memory leveldb
func NewLevelDBStore(t *testing.T) *storage.Store {
	t.Helper()

	driver, err := storage.OpenMemLevelDBDriver(Namespace)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	return storage.NewStore(driver, Namespace)
}

// Backends returns one store per backend, keyed by name
func Backends(t *testing.T) map[string]*storage.Store {
	t.Helper()

	redisStore, _ := NewRedisStore(t)
	return map[string]*storage.Store{
		"redis":   redisStore,
		"leveldb": NewLevelDBStore(t),
	}
}

// FaultyDriver wraps a driver and fails selected operations
type FaultyDriver struct {
	storage.Driver

	mu       sync.Mutex
	fault    map[string]error
	keyFault map[string]error
	calls    map[string]int
}

// NewFaultyDriver wraps inner
func NewFaultyDriver(inner storage.Driver) *FaultyDriver {
	return &FaultyDriver{
		Driver:   inner,
		fault:    map[string]error{},
		keyFault: map[string]error{},
		calls:    map[string]int{},
	}
}

// FailOn makes every call of op return a backend error wrapping cause
func (f *FaultyDriver) FailOn(op string, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fault[op] = apperrors.NewBackendError(op, cause)
}

// FailOnKey makes calls of op on key return a backend error wrapping cause
func (f *FaultyDriver) FailOnKey(op string, key string, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyFault[op+" "+key] = apperrors.NewBackendError(op, cause)
}

// Heal removes every injected failure
func (f *FaultyDriver) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fault = map[string]error{}
	f.keyFault = map[string]error{}
}

// Calls returns how often op was invoked
func (f *FaultyDriver) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyDriver) check(op string) error {
	return f.checkKey(op, "")
}

func (f *FaultyDriver) checkKey(op string, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err := f.keyFault[op+" "+key]; err != nil && key != "" {
		return err
	}
	return f.fault[op]
}

func (f *FaultyDriver) GetValue(ctx context.Context, key string) (string, error) {
	if err := f.checkKey("GetValue", key); err != nil {
		return "", err
	}
	return f.Driver.GetValue(ctx, key)
}

func (f *FaultyDriver) GetValues(ctx context.Context, keys []string) ([]string, error) {
	if err := f.check("GetValues"); err != nil {
		return nil, err
	}
	return f.Driver.GetValues(ctx, keys)
}

func (f *FaultyDriver) SetValue(ctx context.Context, key string, value string) error {
	if err := f.checkKey("SetValue", key); err != nil {
		return err
	}
	return f.Driver.SetValue(ctx, key, value)
}

func (f *FaultyDriver) IncrValue(ctx context.Context, key string) (int64, error) {
	if err := f.check("IncrValue"); err != nil {
		return 0, err
	}
	return f.Driver.IncrValue(ctx, key)
}

func (f *FaultyDriver) GetObject(ctx context.Context, key string, out interface{}) error {
	if err := f.check("GetObject"); err != nil {
		return err
	}
	return f.Driver.GetObject(ctx, key, out)
}

func (f *FaultyDriver) SetObject(ctx context.Context, key string, value interface{}) error {
	if err := f.check("SetObject"); err != nil {
		return err
	}
	return f.Driver.SetObject(ctx, key, value)
}

func (f *FaultyDriver) AddObject(ctx context.Context, key string, value interface{}) error {
	if err := f.check("AddObject"); err != nil {
		return err
	}
	return f.Driver.AddObject(ctx, key, value)
}

func (f *FaultyDriver) SAdd(ctx context.Context, key string, member string) error {
	if err := f.check("SAdd"); err != nil {
		return err
	}
	return f.Driver.SAdd(ctx, key, member)
}

func (f *FaultyDriver) SRem(ctx context.Context, key string, member string) error {
	if err := f.check("SRem"); err != nil {
		return err
	}
	return f.Driver.SRem(ctx, key, member)
}

func (f *FaultyDriver) GetArray(ctx context.Context, key string) ([]string, error) {
	if err := f.check("GetArray"); err != nil {
		return nil, err
	}
	return f.Driver.GetArray(ctx, key)
}

func (f *FaultyDriver) IndexTx(ctx context.Context, txType string, address string, txID string, timestamp int64) error {
	if err := f.check("IndexTx"); err != nil {
		return err
	}
	return f.Driver.IndexTx(ctx, txType, address, txID, timestamp)
}

// NewFaultyStore returns a leveldb-backed store whose driver can be made to fail
func NewFaultyStore(t *testing.T) (*storage.Store, *FaultyDriver) {
	t.Helper()

	inner := NewLevelDBStore(t)
	faulty := NewFaultyDriver(inner.Driver)
	return storage.NewStore(faulty, Namespace), faulty
}
