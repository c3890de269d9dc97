package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vouchfs/vouchfs/pkg/bloom"
	"github.com/vouchfs/vouchfs/pkg/dedup"
	"github.com/vouchfs/vouchfs/pkg/dlogger"
	"github.com/vouchfs/vouchfs/pkg/engine"
	"github.com/vouchfs/vouchfs/pkg/hasher"
	"github.com/vouchfs/vouchfs/pkg/metastore/bdgr"
	"github.com/vouchfs/vouchfs/pkg/metrics"
	"github.com/vouchfs/vouchfs/pkg/storage/localfs"
)

// paramsToEngine assembles the engine from the effective flags: badger
// metadata tables, local blob store, warmed dedup store. The returned
// closer releases the metadata store and must run before exit.
func paramsToEngine(ctx context.Context) (*engine.Engine, func(), error) {
	logger, err := dlogger.GetLogger(vouchfsFlags.root.logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("set log level: %w", err)
	}

	stores := bdgr.New(vouchfsFlags.store.metadataPath)
	if err := stores.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("open metadata store at %q: %w", vouchfsFlags.store.metadataPath, err)
	}
	closer := func() {
		if err := stores.Close(); err != nil {
			logger.Error("closing metadata store", zap.Error(err))
		}
	}

	if err := os.MkdirAll(vouchfsFlags.store.blobPath, 0700); err != nil {
		closer()
		return nil, nil, fmt.Errorf("create blob dir %q: %w", vouchfsFlags.store.blobPath, err)
	}
	blobs := localfs.New(afero.NewBasePathFs(afero.NewOsFs(), vouchfsFlags.store.blobPath))

	if vouchfsFlags.root.metrics {
		if err := metrics.Init(); err != nil {
			closer()
			return nil, nil, fmt.Errorf("register metrics views: %w", err)
		}
	}

	dedupOpts := []dedup.Option{
		dedup.Backend(blobs),
		dedup.ChunkMetadata(stores.Chunks()),
		dedup.Logger(logger),
		dedup.VerifyOnRead(!vouchfsFlags.store.skipVerify),
		dedup.WithMetrics(vouchfsFlags.root.metrics),
	}
	if vouchfsFlags.store.cacheChunks > 0 {
		dedupOpts = append(dedupOpts, dedup.CacheChunks(vouchfsFlags.store.cacheChunks))
	}
	if vouchfsFlags.store.filterEntries > 0 && vouchfsFlags.store.filterFPRate > 0 {
		filter, err := bloom.New(uint64(vouchfsFlags.store.filterEntries), vouchfsFlags.store.filterFPRate)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("size bloom filter: %w", err)
		}
		dedupOpts = append(dedupOpts, dedup.Filter(filter))
	}
	chunks, err := dedup.New(dedupOpts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if err := chunks.Warm(ctx); err != nil {
		closer()
		return nil, nil, fmt.Errorf("warm dedup store: %w", err)
	}

	engineOpts := []engine.Option{
		engine.Dedup(chunks),
		engine.Metadata(stores),
		engine.Logger(logger),
		engine.WithMetrics(vouchfsFlags.root.metrics),
	}
	if vouchfsFlags.store.algorithm != "" {
		algo, err := hasher.ParseAlgorithm(vouchfsFlags.store.algorithm)
		if err != nil {
			closer()
			return nil, nil, err
		}
		engineOpts = append(engineOpts, engine.Algorithm(algo))
	}
	if vouchfsFlags.store.chunkSize > 0 {
		engineOpts = append(engineOpts, engine.ChunkSize(vouchfsFlags.store.chunkSize))
	}

	eng, err := engine.New(engineOpts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return eng, closer, nil
}
