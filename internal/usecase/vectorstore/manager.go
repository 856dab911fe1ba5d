package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/chunk"
	domindex "github.com/kailas-cloud/docindex/internal/domain/index"
	"github.com/kailas-cloud/docindex/internal/metrics"
)

// Retry defaults for the embedding step.
const (
	DefaultBaseBackoff = 200 * time.Millisecond
	DefaultMaxBackoff  = 5 * time.Second
)

// Config tunes the embedding retry policy.
type Config struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// UpdateResult reports what an Update changed.
type UpdateResult struct {
	ChunksAdded int
}

// IndexStats describes the persisted index.
type IndexStats struct {
	Path      string
	Exists    bool
	Entries   int
	Model     string
	Dimension int
}

// Manager owns the persistent index: load, embed, merge and atomic save.
// Updates within one process are serialised; other processes writing the same path are not.
type Manager struct {
	store    IndexStore
	embedder Embedder
	cfg      Config
	logger   *zap.Logger

	mu sync.Mutex
}

// NewManager creates a Manager. Zero backoff values use the defaults.
func NewManager(store IndexStore, embedder Embedder, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, embedder: embedder, cfg: cfg, logger: logger}
}

// Update embeds chunks and appends them to the index, creating it on first use.
// Any failure leaves the snapshot on disk unchanged. Zero chunks is a no-op.
func (m *Manager) Update(ctx context.Context, chunks []chunk.Chunk) (UpdateResult, error) {
	if len(chunks) == 0 {
		return UpdateResult{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	added, err := m.update(ctx, chunks)
	metrics.IndexUpdateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IndexUpdatesTotal.WithLabelValues("error").Inc()
		stage, _ := domain.StageOf(err)
		m.logger.Error("Index update failed",
			zap.String("stage", string(stage)),
			zap.String("path", m.store.Path()),
			zap.Int("chunks", len(chunks)),
			zap.Error(err),
		)
		return UpdateResult{}, err
	}

	metrics.IndexUpdatesTotal.WithLabelValues("ok").Inc()
	metrics.IndexChunksAddedTotal.Add(float64(added))
	return UpdateResult{ChunksAdded: added}, nil
}

func (m *Manager) update(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	if err := m.embedder.CheckCredentials(); err != nil {
		return 0, domain.NewStageError(domain.StageCredentials, err)
	}

	idx, err := m.loadOrCreate(ctx)
	if err != nil {
		return 0, domain.NewStageError(domain.StageIndexLoad, err)
	}

	want := domindex.Binding{Model: m.embedder.Model(), Dimension: m.embedder.Dimension()}
	if err := idx.Binding().Check(want); err != nil {
		return 0, domain.NewStageError(domain.StageIndexMerge, err)
	}

	vectors, err := m.embed(ctx, chunk.Contents(chunks))
	if err != nil {
		return 0, domain.NewStageError(domain.StageEmbedding, err)
	}

	added, err := idx.Merge(chunks, vectors)
	if err != nil {
		return 0, domain.NewStageError(domain.StageIndexMerge, err)
	}

	if err := m.store.Save(ctx, idx); err != nil {
		return 0, domain.NewStageError(domain.StageIndexSave, err)
	}
	metrics.IndexEntries.Set(float64(idx.Len()))

	m.logger.Info("Index updated",
		zap.String("path", m.store.Path()),
		zap.Int("added", added),
		zap.Int("entries", idx.Len()),
		zap.Int("dimension", idx.Binding().Dimension),
	)
	return added, nil
}

func (m *Manager) loadOrCreate(ctx context.Context) (*domindex.Index, error) {
	exists, err := m.store.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		idx, err := m.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load index: %w", err)
		}
		return idx, nil
	}

	m.logger.Info("Creating new index",
		zap.String("path", m.store.Path()),
		zap.String("model", m.embedder.Model()),
	)
	return domindex.New(domindex.Binding{Model: m.embedder.Model(), Dimension: m.embedder.Dimension()})
}

// embed calls the embedder, retrying provider failures with exponential backoff.
func (m *Manager) embed(ctx context.Context, texts []string) ([][]float32, error) {
	for attempt := 0; ; attempt++ {
		res, err := m.embedder.BatchEmbed(ctx, texts)
		if err == nil {
			if len(res.Embeddings) != len(texts) {
				return nil, fmt.Errorf("got %d embeddings for %d texts: %w",
					len(res.Embeddings), len(texts), domain.ErrEmbeddingProvider)
			}
			return res.Embeddings, nil
		}
		if !errors.Is(err, domain.ErrEmbeddingProvider) || attempt >= m.cfg.MaxRetries {
			return nil, err
		}

		delay := m.backoff(attempt)
		m.logger.Warn("Embedding failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", m.cfg.MaxRetries),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("retry embedding: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func (m *Manager) backoff(attempt int) time.Duration {
	d := m.cfg.BaseBackoff << attempt
	if d <= 0 || d > m.cfg.MaxBackoff {
		d = m.cfg.MaxBackoff
	}
	return d
}

// Stats loads the index and reports its size and binding. A missing index is not an error.
func (m *Manager) Stats(ctx context.Context) (IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := IndexStats{Path: m.store.Path()}
	exists, err := m.store.Exists()
	if err != nil {
		return stats, domain.NewStageError(domain.StageIndexLoad, err)
	}
	if !exists {
		return stats, nil
	}

	idx, err := m.store.Load(ctx)
	if err != nil {
		return stats, domain.NewStageError(domain.StageIndexLoad, err)
	}
	b := idx.Binding()
	stats.Exists = true
	stats.Entries = idx.Len()
	stats.Model = b.Model
	stats.Dimension = b.Dimension
	metrics.IndexEntries.Set(float64(idx.Len()))
	return stats, nil
}
