package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
)

// KeyPrefix namespaces cached vectors in the shared key-value store.
const KeyPrefix = "docindex:emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings in a key-value store, keyed by model and text.
// Store failures are logged and treated as misses.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"error"), passed explicitly.
// A zero ttl stores entries without expiry.
func New(
	inner domain.Embedder,
	s store,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := c.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed serves hits from the cache and embeds only the misses, in one inner call.
// Token usage reflects the misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	out := c.getFromCache(ctx, keys)

	var missIdx []int
	var missTexts []string
	for i, vec := range out {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	c.addCache("hit", len(texts)-len(missIdx))
	c.addCache("miss", len(missIdx))

	if len(missIdx) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed texts: %w", err)
	}
	if len(res.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner returned %d vectors for %d texts: %w",
			len(res.Embeddings), len(missTexts), domain.ErrEmbeddingProvider)
	}

	for j, i := range missIdx {
		out[i] = res.Embeddings[j]
		c.putToCache(ctx, keys[i], res.Embeddings[j])
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// CheckCredentials delegates to the inner embedder when it supports the check.
func (c *CachedEmbedder) CheckCredentials() error {
	if cc, ok := c.inner.(domain.CredentialChecker); ok {
		return cc.CheckCredentials() //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// HealthCheck delegates to the inner embedder when it supports the check.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Model returns the model name used in cache keys.
func (c *CachedEmbedder) Model() string { return c.model }

// Dimension delegates to the inner embedder.
func (c *CachedEmbedder) Dimension() int {
	if md, ok := c.inner.(domain.ModelDescriber); ok {
		return md.Dimension()
	}
	return 0
}

func (c *CachedEmbedder) addCache(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

// cacheKey hashes model, requested dimension and text, so changing either setting never
// serves vectors produced under the old one.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(c.Dimension())))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// getFromCache returns one slot per key; nil marks a miss.
func (c *CachedEmbedder) getFromCache(ctx context.Context, keys []string) [][]float32 {
	out := make([][]float32, len(keys))

	data, err := c.store.MGet(ctx, keys)
	if err != nil {
		c.addCache("error", 1)
		c.logger.Warn("Failed to get cached embeddings", zap.Int("keys", len(keys)), zap.Error(err))
		return out
	}

	dim := c.Dimension()
	for i := range keys {
		if i >= len(data) || len(data[i]) == 0 {
			continue
		}
		vec, err := domain.BytesToVector(data[i])
		if err != nil {
			c.logger.Warn("Failed to parse cached embedding", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if dim > 0 && len(vec) != dim {
			c.logger.Warn("Cached embedding has wrong dimension",
				zap.String("key", keys[i]), zap.Int("got", len(vec)), zap.Int("want", dim))
			continue
		}
		out[i] = vec
	}
	return out
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, domain.VectorToBytes(vec), c.ttl); err != nil {
		c.addCache("error", 1)
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
