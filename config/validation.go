package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateRAG()...)
	errs = append(errs, c.validateSegmenter()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateRerank()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateIngest()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateRAG() ValidationErrors {
	var errs ValidationErrors
	if c.RAG.TopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.top_k",
			Message: fmt.Sprintf("top_k must be positive, got %d", c.RAG.TopK),
		})
	}
	if c.RAG.TopN <= 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.top_n",
			Message: fmt.Sprintf("top_n must be positive, got %d", c.RAG.TopN),
		})
	}
	if c.RAG.Cutoff < 0 || c.RAG.Cutoff > 1 {
		errs = append(errs, ValidationError{
			Field:   "rag.cutoff",
			Message: fmt.Sprintf("cutoff must be in [0,1], got %g", c.RAG.Cutoff),
		})
	}
	return errs
}

func (c *Config) validateSegmenter() ValidationErrors {
	var errs ValidationErrors
	if c.Segmenter.MaxChunk <= 0 {
		errs = append(errs, ValidationError{
			Field:   "segmenter.max_chunk",
			Message: fmt.Sprintf("max_chunk must be positive, got %d", c.Segmenter.MaxChunk),
		})
	}
	if c.Segmenter.MinChunk <= 0 || c.Segmenter.MinChunk > c.Segmenter.MaxChunk {
		errs = append(errs, ValidationError{
			Field:   "segmenter.min_chunk",
			Message: fmt.Sprintf("min_chunk must be in (0, max_chunk], got %d", c.Segmenter.MinChunk),
		})
	}
	if c.Segmenter.OverlapRatio < 0 || c.Segmenter.OverlapRatio >= 1 {
		errs = append(errs, ValidationError{
			Field:   "segmenter.overlap_ratio",
			Message: fmt.Sprintf("overlap_ratio must be in [0,1), got %g", c.Segmenter.OverlapRatio),
		})
	}
	return errs
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors
	if c.Embedding.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: "embedding provider is required",
		})
	}
	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: fmt.Sprintf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions),
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors
	switch c.VectorDB.Provider {
	case "milvus":
		if c.VectorDB.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.host",
				Message: "milvus requires a host",
			})
		}
	case "qdrant":
		if c.VectorDB.URL == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.url",
				Message: "qdrant requires a url",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unknown vectordb provider %q (want milvus or qdrant)", c.VectorDB.Provider),
		})
	}
	if c.VectorDB.Collection == "" {
		errs = append(errs, ValidationError{
			Field:   "vectordb.collection",
			Message: "collection name is required",
		})
	}
	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	var errs ValidationErrors
	if c.Rerank.Enable && c.Rerank.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "rerank.endpoint",
			Message: "rerank is enabled but no endpoint is configured",
		})
	}
	if c.Rerank.BatchSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "rerank.batch_size",
			Message: fmt.Sprintf("batch_size must not be negative, got %d", c.Rerank.BatchSize),
		})
	}
	if c.Rerank.Workers < 0 {
		errs = append(errs, ValidationError{
			Field:   "rerank.workers",
			Message: fmt.Sprintf("workers must not be negative, got %d", c.Rerank.Workers),
		})
	}
	return errs
}

func (c *Config) validateCache() ValidationErrors {
	var errs ValidationErrors
	switch c.Cache.Store {
	case "", "memory":
	case "redis":
		if c.Cache.Redis == nil || c.Cache.Redis.Address == "" {
			errs = append(errs, ValidationError{
				Field:   "cache.redis.address",
				Message: "redis cache store requires an address",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "cache.store",
			Message: fmt.Sprintf("unknown cache store %q (want memory or redis)", c.Cache.Store),
		})
	}
	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_seconds",
			Message: fmt.Sprintf("ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds),
		})
	}
	return errs
}

func (c *Config) validateIngest() ValidationErrors {
	var errs ValidationErrors
	if c.Ingest.Concurrency <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ingest.concurrency",
			Message: fmt.Sprintf("concurrency must be positive, got %d", c.Ingest.Concurrency),
		})
	}
	if c.Ingest.RateLimitRPS <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ingest.rate_limit_rps",
			Message: fmt.Sprintf("rate_limit_rps must be positive, got %g", c.Ingest.RateLimitRPS),
		})
	}
	return errs
}
