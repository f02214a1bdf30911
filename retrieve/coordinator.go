// Package retrieve runs the vector-search leg of a query: embed, oversample,
// cut off, truncate.
package retrieve

import (
	"context"

	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/embedding"
	"github.com/civicqa/govrag/schema"
	"github.com/civicqa/govrag/vectordb"
)

// Options narrows a single retrieval pass. Zero values fall back to the
// configured defaults.
type Options struct {
	TopK    int
	Cutoff  float64
	Filters map[string]string
}

// Coordinator embeds the query and searches the vector store. It oversamples
// the store by 2x the budget with no store-side threshold, applies the
// similarity cutoff locally, then truncates to the budget. Any failure along
// the way degrades to zero candidates; the caller maps that to the
// no-knowledge answer rather than an error.
type Coordinator struct {
	store    vectordb.Provider
	embedder embedding.Provider
	defaults config.RAGConfig
}

func NewCoordinator(store vectordb.Provider, embedder embedding.Provider, defaults config.RAGConfig) *Coordinator {
	return &Coordinator{store: store, embedder: embedder, defaults: defaults}
}

// Retrieve returns at most TopK candidates scoring at least Cutoff, in
// descending score order.
func (c *Coordinator) Retrieve(ctx context.Context, query string, opts Options) []schema.Candidate {
	topK := opts.TopK
	if topK <= 0 {
		topK = c.defaults.TopK
	}
	cutoff := opts.Cutoff
	if cutoff <= 0 {
		cutoff = c.defaults.Cutoff
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		logger.Errorf("retrieve: embed query failed: %v", err)
		return nil
	}

	hits, err := c.store.Search(ctx, vector, vectordb.SearchOptions{
		TopK:           topK * 2,
		ScoreThreshold: 0,
		Filters:        sanitizeFilters(opts.Filters),
	})
	if err != nil {
		logger.Errorf("retrieve: vector search failed: %v", err)
		return nil
	}

	admitted := make([]schema.Candidate, 0, topK)
	for _, hit := range hits {
		if hit.Score < cutoff {
			continue
		}
		admitted = append(admitted, hit)
		if len(admitted) == topK {
			break
		}
	}
	logger.Debugf("retrieve: %d hits, %d admitted (topK=%d cutoff=%.2f)", len(hits), len(admitted), topK, cutoff)
	return admitted
}

// sanitizeFilters keeps only the payload fields callers may filter on.
func sanitizeFilters(filters map[string]string) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]string, 1)
	for k, v := range filters {
		if k == "content_type" && v != "" {
			out[k] = string(schema.ParseContentType(v))
			continue
		}
		logger.Warnf("retrieve: ignoring unsupported filter %q", k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
