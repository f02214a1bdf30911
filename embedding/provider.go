// Package embedding exposes text embedding behind a small provider interface
// so the pipeline can swap models without touching retrieval.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/civicqa/govrag/cache"
	"github.com/civicqa/govrag/config"
)

// Provider turns text into dense vectors.
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in order; the result slice is index-aligned
	// with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model names the embedding model, recorded on every index record.
	Model() string
}

// New builds the configured embedding provider.
func New(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// memoTTL bounds how long a memoized query vector stays live. Corpus vectors
// are computed once at ingest; only query vectors benefit from the memo.
const memoTTL = 10 * time.Minute

type cachedProvider struct {
	inner Provider
	memo  cache.Cache
}

// WithCache wraps a provider with a bounded single-text memo. Batch calls
// bypass the memo, they only occur at ingest time.
func WithCache(p Provider, size int) Provider {
	if size <= 0 {
		return p
	}
	return &cachedProvider{inner: p, memo: cache.NewLRU(size, memoTTL)}
}

func (c *cachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.inner.Model() + "\x00" + text
	if v, ok := c.memo.Get(key); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.memo.Set(key, vec, 0)
	return vec, nil
}

func (c *cachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *cachedProvider) Model() string { return c.inner.Model() }
