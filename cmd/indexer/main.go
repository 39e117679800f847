// Package main provides the index worker entry point for the anchor indexer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/anchor-indexer/internal/association"
	"github.com/anchor-indexer/internal/config"
	"github.com/anchor-indexer/internal/indexer"
	"github.com/anchor-indexer/internal/logging"
	"github.com/anchor-indexer/internal/stats"
	"github.com/anchor-indexer/internal/storage"
	"github.com/anchor-indexer/internal/supply"
	"github.com/anchor-indexer/internal/types"
	"github.com/anchor-indexer/internal/worker"
)

func main() {
	input := flag.String("input", "", "NDJSON file of index events (default stdin)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger.WithField("backend", string(cfg.Storage.Type)).Info("Anchor indexer starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	if err := run(ctx, cfg, *input, logger); err != nil {
		logger.WithError(err).Error("Anchor indexer stopped")
		os.Exit(1)
	}
	logger.Info("Anchor indexer stopped. Goodbye!")
}

func run(ctx context.Context, cfg *config.Config, input string, logger *logging.Logger) error {
	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	aggregator := stats.NewAggregator(store, logger)
	supplyService := supply.NewService(aggregator, cfg.Supply.FeeBurnAmount, logger)

	ix, err := indexer.New(&indexer.Config{
		Store:  store,
		Stats:  aggregator,
		Supply: supplyService,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	d := &dispatcher{logger: logger}
	if cfg.Indexer.IsProcessorEnabled("index") {
		d.indexer = ix
	}
	if cfg.Indexer.IsProcessorEnabled("anchor") {
		d.anchors = indexer.NewAnchorIndexer(store, logger)
	}
	if cfg.Indexer.IsProcessorEnabled("association") {
		d.graph = association.NewGraph(store, logger)
	}
	if d.indexer == nil && d.anchors == nil && d.graph == nil {
		logger.Warn("No processors enabled, nothing to do")
		return nil
	}

	w, err := worker.NewIndexWorker(&worker.IndexWorkerConfig{
		Indexer:       d,
		Cursor:        stats.NewCursor(store, logger),
		StartingBlock: cfg.Indexer.StartingBlock,
		RestartSync:   cfg.Indexer.RestartSync,
		MaxRate:       cfg.Indexer.MaxRate,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The channel is closed only after a clean read. A read failure cancels the
	// worker instead, so the block being read is not committed to the cursor.
	events := make(chan *types.IndexEvent, cfg.Indexer.Buffer)
	go func() {
		if err := worker.ReadEvents(ctx, r, events); err != nil {
			cancel(err)
			return
		}
		close(events)
	}()

	if err := w.Run(ctx, events); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return fmt.Errorf("failed to read index events: %w", cause)
		}
		if errors.Is(err, context.Canceled) {
			logger.Info("Shutdown signal received, index worker stopped")
			return nil
		}
		return err
	}

	s := w.Stats()
	logger.WithFields(map[string]interface{}{
		"processed": s.Processed,
		"matched":   s.Matched,
		"skipped":   s.Skipped,
		"height":    s.BlockHeight,
	}).Info("Index worker finished")
	return nil
}

// dispatcher routes an event to every enabled processor
type dispatcher struct {
	indexer *indexer.Indexer
	anchors *indexer.AnchorIndexer
	graph   *association.Graph
	logger  *logging.Logger
}

func (d *dispatcher) Index(ctx context.Context, event *types.IndexEvent) (bool, error) {
	matched := false
	if d.indexer != nil {
		ok, err := d.indexer.Index(ctx, event)
		if err != nil {
			return false, err
		}
		matched = ok
	}

	if d.anchors != nil {
		ok, err := d.anchors.Index(ctx, event)
		if err != nil {
			return false, err
		}
		matched = matched || ok
	}

	if d.graph != nil {
		switch event.Transaction.Type {
		case association.InvokeType:
			if err := d.graph.AddFromTransaction(ctx, event.Transaction); err != nil {
				return false, err
			}
			matched = true
		case association.RevokeType:
			if err := d.graph.RemoveFromTransaction(ctx, event.Transaction); err != nil {
				return false, err
			}
			matched = true
		}
	}
	return matched, nil
}
