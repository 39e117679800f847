package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anchor-indexer/internal/errors"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/storage/storagetest"
)

// Every backend must behave identically for every primitive.
func TestDriverConformance(t *testing.T) {
	for name, store := range storagetest.Backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("scalar values", func(t *testing.T) {
				_, err := store.GetValue(ctx, "lto:pubkey:missing")
				assert.True(t, apperrors.IsNotFound(err))

				require.NoError(t, store.SetValue(ctx, "lto:pubkey:a", "key-a"))
				value, err := store.GetValue(ctx, "lto:pubkey:a")
				require.NoError(t, err)
				assert.Equal(t, "key-a", value)

				require.NoError(t, store.DelValue(ctx, "lto:pubkey:a"))
				_, err = store.GetValue(ctx, "lto:pubkey:a")
				assert.True(t, apperrors.IsNotFound(err))

				assert.NoError(t, store.DelValue(ctx, "lto:pubkey:never-set"))
			})

			t.Run("multi get", func(t *testing.T) {
				require.NoError(t, store.SetValue(ctx, "lto:m:1", "1"))
				require.NoError(t, store.SetValue(ctx, "lto:m:3", "3"))

				values, err := store.GetValues(ctx, []string{"lto:m:1", "lto:m:2", "lto:m:3"})
				require.NoError(t, err)
				assert.Equal(t, []string{"1", "", "3"}, values)

				empty, err := store.GetValues(ctx, nil)
				require.NoError(t, err)
				assert.Empty(t, empty)
			})

			t.Run("increment", func(t *testing.T) {
				n, err := store.IncrValue(ctx, "lto:counter")
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				n, err = store.IncrValue(ctx, "lto:counter")
				require.NoError(t, err)
				assert.Equal(t, int64(2), n)
			})

			t.Run("concurrent increments are not lost", func(t *testing.T) {
				var wg sync.WaitGroup
				for i := 0; i < 50; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, _ = store.IncrValue(ctx, "lto:concurrent")
					}()
				}
				wg.Wait()

				value, err := store.GetValue(ctx, "lto:concurrent")
				require.NoError(t, err)
				assert.Equal(t, "50", value)
			})

			t.Run("objects", func(t *testing.T) {
				var out map[string]string
				err := store.GetObject(ctx, "lto:obj", &out)
				assert.True(t, apperrors.IsNotFound(err))

				require.NoError(t, store.SetObject(ctx, "lto:obj", map[string]string{"a": "1"}))
				require.NoError(t, store.SetObject(ctx, "lto:obj", map[string]string{"b": "2"}))
				require.NoError(t, store.GetObject(ctx, "lto:obj", &out))
				assert.Equal(t, map[string]string{"b": "2"}, out)

				require.NoError(t, store.AddObject(ctx, "lto:anchor:x", map[string]string{"id": "tx1"}))
				require.NoError(t, store.AddObject(ctx, "lto:anchor:x", map[string]string{"id": "tx2"}))
				require.NoError(t, store.GetObject(ctx, "lto:anchor:x", &out))
				assert.Equal(t, "tx2", out["id"])
			})

			t.Run("corrupt object", func(t *testing.T) {
				require.NoError(t, store.SetValue(ctx, "lto:bad", "not json"))
				var out map[string]string
				err := store.GetObject(ctx, "lto:bad", &out)
				assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))
			})

			t.Run("sets keep insertion order", func(t *testing.T) {
				members, err := store.GetArray(ctx, "lto:set")
				require.NoError(t, err)
				assert.Empty(t, members)

				for _, m := range []string{"c", "a", "b", "a"} {
					require.NoError(t, store.SAdd(ctx, "lto:set", m))
				}
				members, err = store.GetArray(ctx, "lto:set")
				require.NoError(t, err)
				assert.Equal(t, []string{"c", "a", "b"}, members)

				require.NoError(t, store.SRem(ctx, "lto:set", "a"))
				require.NoError(t, store.SRem(ctx, "lto:set", "zz"))
				require.NoError(t, store.SAdd(ctx, "lto:set", "a"))
				members, err = store.GetArray(ctx, "lto:set")
				require.NoError(t, err)
				assert.Equal(t, []string{"c", "b", "a"}, members)
			})

			t.Run("tx index", func(t *testing.T) {
				require.NoError(t, store.IndexTx(ctx, "anchor", "3Mx", "tx3", 3000))
				require.NoError(t, store.IndexTx(ctx, "anchor", "3Mx", "tx1", 1000))
				require.NoError(t, store.IndexTx(ctx, "anchor", "3Mx", "tx2b", 2000))
				require.NoError(t, store.IndexTx(ctx, "anchor", "3Mx", "tx2a", 2000))
				require.NoError(t, store.IndexTx(ctx, "transfer", "3Mx", "tx9", 9000))

				count, err := store.CountTx(ctx, "anchor", "3Mx")
				require.NoError(t, err)
				assert.Equal(t, int64(4), count)

				all, err := store.GetTx(ctx, "anchor", "3Mx", 25, 0)
				require.NoError(t, err)
				assert.Equal(t, []string{"tx1", "tx2a", "tx2b", "tx3"}, all)

				page, err := store.GetTx(ctx, "anchor", "3Mx", 2, 1)
				require.NoError(t, err)
				assert.Equal(t, []string{"tx2a", "tx2b"}, page)

				none, err := store.GetTx(ctx, "anchor", "3Mx", 0, 0)
				require.NoError(t, err)
				assert.Empty(t, none)

				missing, err := store.CountTx(ctx, "anchor", "nobody")
				require.NoError(t, err)
				assert.Zero(t, missing)
			})

			t.Run("tx index keeps repeated writes", func(t *testing.T) {
				for i := 0; i < 12; i++ {
					require.NoError(t, store.IndexTx(ctx, "data", "3My", "a", 10))
				}
				require.NoError(t, store.IndexTx(ctx, "data", "3My", "b", 20))
				require.NoError(t, store.IndexTx(ctx, "data", "3My", "a", 30))

				count, err := store.CountTx(ctx, "data", "3My")
				require.NoError(t, err)
				assert.Equal(t, int64(14), count)

				ids, err := store.GetTx(ctx, "data", "3My", 100, 0)
				require.NoError(t, err)
				require.Len(t, ids, 14)
				for _, id := range ids[:12] {
					assert.Equal(t, "a", id)
				}
				assert.Equal(t, []string{"b", "a"}, ids[12:])
			})

			t.Run("ping", func(t *testing.T) {
				assert.NoError(t, store.Ping(ctx))
			})
		})
	}
}

func TestRedisClusterMultiGet(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })

	store := storage.NewStore(storage.NewRedisDriver(client, "lto"), "lto")
	ctx := context.Background()

	require.NoError(t, store.SetValue(ctx, store.StatsKey("anchor", 18600), "4"))
	require.NoError(t, store.SetValue(ctx, store.StatsKey("transfer", 18602), "9"))

	values, err := store.GetValues(ctx, []string{
		store.StatsKey("anchor", 18600),
		store.StatsKey("anchor", 18601),
		store.StatsKey("transfer", 18602),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "", "9"}, values)

	mr.SetError("ERR backend unavailable")
	defer mr.SetError("")

	_, err = store.GetValues(ctx, []string{store.StatsKey("anchor", 18600)})
	assert.True(t, apperrors.IsBackend(err))
}

func TestRedisBackendErrors(t *testing.T) {
	store, mr := storagetest.NewRedisStore(t)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	defer mr.SetError("")

	_, err := store.GetValue(ctx, "lto:pubkey:a")
	require.Error(t, err)
	assert.True(t, apperrors.IsBackend(err))
	assert.False(t, apperrors.IsNotFound(err))

	_, err = store.CountTx(ctx, "anchor", "a")
	assert.True(t, apperrors.IsBackend(err))
}

func TestLevelDBClosed(t *testing.T) {
	store := storagetest.NewLevelDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Close())

	err := store.Ping(ctx)
	assert.True(t, apperrors.IsBackend(err))

	err = store.SetValue(ctx, "lto:x", "1")
	assert.True(t, apperrors.IsBackend(err), fmt.Sprintf("%v", err))
}
