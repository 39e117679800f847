package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchor-indexer/internal/association"
	"github.com/anchor-indexer/internal/config"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/stats"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/types"
)

const eventLog = `{"blockHeight":1,"position":4,"transaction":{"id":"anchor1","type":15,"sender":"3Mx","anchors":["2C26B46B"],"timestamp":1607126400000}}
{"blockHeight":2,"position":0,"transaction":{"id":"assoc1","type":16,"sender":"3Ma","recipient":"3Mb","timestamp":1607126401000}}
{"blockHeight":2,"position":1,"transaction":{"id":"assoc2","type":16,"sender":"3Mb","recipient":"3Mc","timestamp":1607126402000}}
{"blockHeight":3,"position":0,"transaction":{"id":"revoke1","type":17,"sender":"3Ma","recipient":"3Mb","timestamp":1607126403000}}
`

func testConfig(t *testing.T, processors ...string) *config.Config {
	t.Helper()

	return &config.Config{
		Storage: config.StorageConfig{
			Type:      config.StorageLevelDB,
			Namespace: "lto",
			LevelDB:   config.LevelDBConfig{Path: filepath.Join(t.TempDir(), "db")},
		},
		Indexer: config.IndexerConfig{
			StartingBlock: 1,
			Processors:    processors,
			Buffer:        4,
		},
		Supply: config.SupplyConfig{FeeBurnAmount: 100},
	}
}

func writeEvents(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(eventLog), 0o600))
	return path
}

func reopen(t *testing.T, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(context.Background(), &cfg.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunAllProcessors(t *testing.T) {
	cfg := testConfig(t, "index", "association")
	ctx := context.Background()

	require.NoError(t, run(ctx, cfg, writeEvents(t), logging.Discard()))

	store := reopen(t, cfg)

	count, err := store.CountTx(ctx, "anchor", "3Mx")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.CountTx(ctx, "association", "3Mb")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	graph := association.NewGraph(store, logging.Discard())
	assert.Empty(t, graph.Get(ctx, "3Ma").Children)
	assert.Empty(t, graph.Get(ctx, "3Mb").Children)
	assert.Empty(t, graph.Get(ctx, "3Mc").Parents)

	height, ok := stats.NewCursor(store, logging.Discard()).Get(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), height)
}

func TestRunAnchorProcessor(t *testing.T) {
	cfg := testConfig(t, "anchor")
	ctx := context.Background()

	require.NoError(t, run(ctx, cfg, writeEvents(t), logging.Discard()))

	store := reopen(t, cfg)

	var record types.AnchorRecord
	require.NoError(t, store.GetAnchor(ctx, "2c26b46b", &record))
	assert.Equal(t, types.AnchorRecord{ID: "anchor1", BlockHeight: 1, Position: 4}, record)

	count, err := store.CountTx(ctx, "anchor", "3Mx")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunIndexOnly(t *testing.T) {
	cfg := testConfig(t, "index")
	ctx := context.Background()

	require.NoError(t, run(ctx, cfg, writeEvents(t), logging.Discard()))

	store := reopen(t, cfg)
	graph := association.NewGraph(store, logging.Discard())
	assert.Empty(t, graph.Get(ctx, "3Mb").Parents)

	var record types.AnchorRecord
	assert.Error(t, store.GetAnchor(ctx, "2c26b46b", &record))

	count, err := store.CountTx(ctx, "all", "3Mb")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRunResumesFromCursor(t *testing.T) {
	cfg := testConfig(t, "association")
	ctx := context.Background()

	store := reopen(t, cfg)
	require.NoError(t, stats.NewCursor(store, logging.Discard()).Save(ctx, 2))
	require.NoError(t, store.Close())

	require.NoError(t, run(ctx, cfg, writeEvents(t), logging.Discard()))

	store = reopen(t, cfg)
	graph := association.NewGraph(store, logging.Discard())

	// only the revoke at height 3 ran, against edges that were never added
	assert.Empty(t, graph.Get(ctx, "3Mb").Children)
	count, err := store.CountTx(ctx, "all", "3Mx")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunNoProcessors(t *testing.T) {
	cfg := testConfig(t, "metrics")
	assert.NoError(t, run(context.Background(), cfg, "does-not-exist.ndjson", logging.Discard()))
}

func TestRunMissingInput(t *testing.T) {
	cfg := testConfig(t, "index")
	err := run(context.Background(), cfg, filepath.Join(t.TempDir(), "missing.ndjson"), logging.Discard())
	assert.Error(t, err)
}

func TestRunReadErrorLeavesBlockOpen(t *testing.T) {
	cfg := testConfig(t, "index")
	ctx := context.Background()

	good6 := `{"blockHeight":6,"transaction":{"id":"a6","type":15,"sender":"3Mx","timestamp":1607126400000}}`
	good7a := `{"blockHeight":7,"transaction":{"id":"a7","type":15,"sender":"3Mx","timestamp":1607126401000}}`
	good7b := `{"blockHeight":7,"transaction":{"id":"b7","type":15,"sender":"3Mx","timestamp":1607126402000}}`

	broken := filepath.Join(t.TempDir(), "broken.ndjson")
	require.NoError(t, os.WriteFile(broken, []byte(good6+"\n"+good7a+"\n{oops\n"+good7b+"\n"), 0o600))

	err := run(ctx, cfg, broken, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid index event")

	store := reopen(t, cfg)
	height, ok := stats.NewCursor(store, logging.Discard()).Get(ctx)
	assert.True(t, !ok || height < 7, "block 7 must stay open, cursor=%d", height)
	require.NoError(t, store.Close())

	fixed := filepath.Join(t.TempDir(), "fixed.ndjson")
	require.NoError(t, os.WriteFile(fixed, []byte(good6+"\n"+good7a+"\n"+good7b+"\n"), 0o600))
	require.NoError(t, run(ctx, cfg, fixed, logging.Discard()))

	store = reopen(t, cfg)
	ids, err := store.GetTx(ctx, "anchor", "3Mx", 100, 0)
	require.NoError(t, err)
	assert.Contains(t, ids, "b7")

	height, ok = stats.NewCursor(store, logging.Discard()).Get(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), height)
}
