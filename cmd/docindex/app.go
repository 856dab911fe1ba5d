package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/config"
	dbRedis "github.com/kailas-cloud/docindex/internal/db/redis"
	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/metrics"
	"github.com/kailas-cloud/docindex/internal/parser"
	"github.com/kailas-cloud/docindex/internal/parser/pdf"
	"github.com/kailas-cloud/docindex/internal/parser/plaintext"
	"github.com/kailas-cloud/docindex/internal/repository/embcache"
	repoindex "github.com/kailas-cloud/docindex/internal/repository/index"
	openaiEmb "github.com/kailas-cloud/docindex/internal/transport/openai"
	"github.com/kailas-cloud/docindex/internal/usecase/chunking"
	embeddinguc "github.com/kailas-cloud/docindex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docindex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docindex/internal/usecase/ingest"
	"github.com/kailas-cloud/docindex/internal/usecase/vectorstore"
)

// app is the composition root shared by all subcommands.
type app struct {
	cache   *dbRedis.Store
	store   *repoindex.Store
	manager *vectorstore.Manager
	ingest  *ingestuc.Service
	health  *healthuc.Service
	logger  *zap.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	a := &app{logger: logger}

	if cfg.Cache.Enabled {
		cache, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		if err := cache.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			cache.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
		a.cache = cache
	}

	embedder := a.buildEmbedder(cfg.Embedding, cfg.Cache)

	store, err := repoindex.NewStore(cfg.Index.Path, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create index store: %w", err)
	}
	a.store = store

	a.manager = vectorstore.NewManager(store, embedder, vectorstore.Config{
		MaxRetries: cfg.Embedding.MaxRetries,
	}, logger)

	splitter, err := chunking.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create splitter: %w", err)
	}

	registry := parser.NewRegistry(
		plaintext.New(),
		pdf.New(pdf.WithBinary(cfg.Parsing.PDFToTextPath)),
	)
	if err := registry.Available(); err != nil {
		logger.Warn("Some document formats cannot be parsed", zap.Error(err))
	}
	a.ingest = ingestuc.New(registry, splitter, a.manager, logger)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.CachePinger
	if a.cache != nil {
		cachePinger = a.cache
	}
	a.health = healthuc.New(store, embedder, cachePinger, logger).WithParsers(registry)

	logger.Debug("Application assembled",
		zap.String("index_path", store.Path()),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", embedder.Model()),
		zap.Int("chunk_size", splitter.Size()),
		zap.Int("chunk_overlap", splitter.Overlap()),
		zap.Strings("formats", formatNames(registry)),
	)
	return a, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func (a *app) buildEmbedder(cfg config.EmbeddingConfig, cacheCfg config.CacheConfig) *embeddinguc.InstrumentedEmbedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Dimensions:        cfg.Dimensions,
		Provider:          cfg.Provider,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:            a.logger,
	})

	var inner domain.Embedder = base
	if a.cache != nil {
		ttl := time.Duration(cacheCfg.TTLHours) * time.Hour
		inner = embcache.New(base, a.cache, cfg.Model, ttl, metrics.EmbeddingCacheTotal, a.logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(inner, cfg.Provider, cfg.Model, cfg.BatchSize, a.logger)
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

func formatNames(r *parser.Registry) []string {
	formats := r.Formats()
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		out = append(out, string(f))
	}
	return out
}
