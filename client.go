// Package govrag answers natural-language questions against a corpus of
// crawled government web pages. The query pipeline embeds the question,
// retrieves candidate chunks from the vector store, optionally reranks them
// with a cross-encoder, and asks a language model to compose a grounded,
// cited answer. Complete answers are cached under a canonical request key.
package govrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicqa/govrag/answer"
	"github.com/civicqa/govrag/cache"
	"github.com/civicqa/govrag/common/httpx"
	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/embedding"
	"github.com/civicqa/govrag/llm"
	"github.com/civicqa/govrag/metrics"
	"github.com/civicqa/govrag/rerank"
	"github.com/civicqa/govrag/retrieve"
	"github.com/civicqa/govrag/schema"
	"github.com/civicqa/govrag/vectordb"
)

// errNoKnowledge marks a pipeline run that produced no grounded answer. It
// never escapes Answer; it exists so the cache layer skips storing the
// fallback.
var errNoKnowledge = errors.New("no grounded answer")

// QueryOptions override the configured retrieval defaults for one query.
type QueryOptions struct {
	TopK    int
	TopN    int
	Cutoff  float64
	Filters map[string]string
}

// Client is the query-side entry point. All collaborators are injected at
// construction and shared across queries; Client itself is stateless per
// query and safe for concurrent use.
type Client struct {
	cfg         *config.Config
	coordinator *retrieve.Coordinator
	reranker    rerank.Reranker
	assembler   *answer.Assembler
	answers     cache.Answers
	store       vectordb.Provider
	embedder    embedding.Provider
}

// New wires a Client from config: openai embedding and generation, the
// configured vector store, the configured reranker and response cache.
func New(cfg *config.Config) (*Client, error) {
	hc := httpx.NewFromConfig(cfg.HTTP)

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	store, err := vectordb.New(cfg.VectorDB, hc)
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}
	generator, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}

	var answers cache.Answers
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Cache.Store == "redis" && cfg.Cache.Redis != nil {
		answers = cache.NewRedisAnswers(cfg.Cache.Redis, ttl)
	} else {
		answers = cache.NewMemoryAnswers(ttl)
	}

	return NewFromProviders(cfg, store,
		embedding.WithCache(embedder, cfg.Embedding.CacheSize),
		generator, rerank.New(cfg.Rerank, hc), answers), nil
}

// NewFromProviders assembles a Client from explicit collaborators. Tests use
// it to substitute fakes for the external services.
func NewFromProviders(cfg *config.Config, store vectordb.Provider, embedder embedding.Provider,
	generator llm.Provider, reranker rerank.Reranker, answers cache.Answers) *Client {
	return &Client{
		cfg:         cfg,
		coordinator: retrieve.NewCoordinator(store, embedder, cfg.RAG),
		reranker:    reranker,
		assembler:   answer.NewAssembler(generator),
		answers:     answers,
		store:       store,
		embedder:    embedder,
	}
}

// Answer runs the full query pipeline. It never returns an error: any
// failure in embedding, retrieval, reranking or generation degrades to the
// fixed no-knowledge answer with low confidence and no sources. Failure
// results are never cached.
func (c *Client) Answer(ctx context.Context, query string, opts QueryOptions) *schema.Answer {
	topK := opts.TopK
	if topK <= 0 {
		topK = c.cfg.RAG.TopK
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = c.cfg.RAG.TopN
	}
	cutoff := opts.Cutoff
	if cutoff <= 0 {
		cutoff = c.cfg.RAG.Cutoff
	}

	key := cache.AnswerKey(query, opts.Filters, topK, topN, cutoff)
	computed := false
	ans, err := c.answers.GetOrCompute(ctx, key, func(ctx context.Context) (*schema.Answer, error) {
		computed = true
		return c.pipeline(ctx, query, topK, topN, cutoff, opts.Filters)
	})
	switch {
	case errors.Is(err, errNoKnowledge):
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeNoKnowledge).Inc()
		return answer.NoKnowledge()
	case err != nil:
		logger.Errorf("query failed, returning no-knowledge answer: %v", err)
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return answer.NoKnowledge()
	case computed:
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeAnswered).Inc()
	default:
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeCacheHit).Inc()
	}
	return ans
}

// pipeline is the cache-miss path: retrieve, maybe rerank, assemble.
func (c *Client) pipeline(ctx context.Context, query string, topK, topN int, cutoff float64, filters map[string]string) (*schema.Answer, error) {
	start := time.Now()
	candidates := c.coordinator.Retrieve(ctx, query, retrieve.Options{
		TopK:    topK,
		Cutoff:  cutoff,
		Filters: filters,
	})
	metrics.ObserveStage(metrics.StageRetrieve, start)
	metrics.CandidatesAdmitted.Observe(float64(len(candidates)))

	if len(candidates) == 0 {
		return nil, errNoKnowledge
	}

	// Reranking is only worth the extra calls for a real batch: at least
	// MinCandidates admitted and more than will survive truncation anyway.
	var final []schema.Candidate
	if len(candidates) >= c.cfg.Rerank.MinCandidates && len(candidates) > topN {
		rerankStart := time.Now()
		final = c.reranker.Rerank(ctx, query, candidates, topN)
		metrics.ObserveStage(metrics.StageRerank, rerankStart)
	} else {
		final = rerank.Truncate(candidates, topN)
	}

	generateStart := time.Now()
	ans, err := c.assembler.Assemble(ctx, query, final)
	metrics.ObserveStage(metrics.StageGenerate, generateStart)
	if err != nil {
		return nil, err
	}
	return ans, nil
}

// Stats reports the backing collection's state for the stats surface.
func (c *Client) Stats(ctx context.Context) (*vectordb.CollectionInfo, error) {
	return c.store.Info(ctx)
}

// Embedder exposes the shared embedding provider for the ingest pipeline.
func (c *Client) Embedder() embedding.Provider { return c.embedder }

// Store exposes the shared vector store for the ingest pipeline.
func (c *Client) Store() vectordb.Provider { return c.store }
