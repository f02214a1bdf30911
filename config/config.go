package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the govrag service.
type Config struct {
	RAG       RAGConfig         `json:"rag" yaml:"rag"`
	Segmenter SegmenterConfig   `json:"segmenter" yaml:"segmenter"`
	Embedding EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	LLM       LLMConfig         `json:"llm" yaml:"llm"`
	VectorDB  VectorDBConfig    `json:"vectordb" yaml:"vectordb"`
	Rerank    RerankConfig      `json:"rerank" yaml:"rerank"`
	Cache     CacheConfig       `json:"cache" yaml:"cache"`
	Ingest    IngestConfig      `json:"ingest" yaml:"ingest"`
	HTTP      *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
	Log       LogConfig         `json:"log" yaml:"log"`
}

// RAGConfig holds the query-time retrieval knobs.
type RAGConfig struct {
	// TopK is the admitted candidate budget after the similarity cutoff.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	// TopN is the number of chunks handed to answer generation.
	TopN int `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	// Cutoff is the minimum similarity score admitted from vector search.
	Cutoff float64 `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
}

// SegmenterConfig defines document segmentation parameters.
type SegmenterConfig struct {
	MaxChunk     int     `json:"max_chunk,omitempty" yaml:"max_chunk,omitempty"`
	MinChunk     int     `json:"min_chunk,omitempty" yaml:"min_chunk,omitempty"`
	OverlapRatio float64 `json:"overlap_ratio,omitempty" yaml:"overlap_ratio,omitempty"`
}

// EmbeddingConfig defines the embedding model endpoint.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	// CacheSize bounds the per-process embedding memo (0 disables it).
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// LLMConfig defines the generation model endpoint.
type LLMConfig struct {
	Provider  string `json:"provider" yaml:"provider"` // openai
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model     string `json:"model" yaml:"model"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// VectorDBConfig defines the vector store backend.
type VectorDBConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // milvus, qdrant
	Host       string `json:"host,omitempty" yaml:"host,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"` // qdrant
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// RerankConfig defines the external cross-encoder reranking stage.
type RerankConfig struct {
	Enable   bool   `json:"enable,omitempty" yaml:"enable,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// BatchSize is the number of (query, text) pairs scored per request.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	// Workers bounds concurrent batch scoring requests.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
	// MinCandidates is the batch-worthiness floor: below it the query flow
	// truncates instead of reranking.
	MinCandidates int `json:"min_candidates,omitempty" yaml:"min_candidates,omitempty"`
}

// CacheConfig controls response caching for complete query results.
type CacheConfig struct {
	Store      string       `json:"store,omitempty" yaml:"store,omitempty"` // memory (default), redis
	TTLSeconds int          `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	Redis      *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig holds connection settings for the redis-backed response cache.
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// IngestConfig controls the crawl/index worker pool.
type IngestConfig struct {
	Concurrency  int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	RateLimitRPS float64 `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
	UserAgent    string  `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MaxPages     int     `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// HTTPClientConfig defines common options for outbound HTTP calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// Default returns a configuration with all tunables at their defaults.
func Default() *Config {
	return &Config{
		RAG: RAGConfig{
			TopK:   30,
			TopN:   3,
			Cutoff: 0.22,
		},
		Segmenter: SegmenterConfig{
			MaxChunk:     1600,
			MinChunk:     800,
			OverlapRatio: 0.25,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 384,
			CacheSize:  256,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 500,
		},
		VectorDB: VectorDBConfig{
			Provider:   "qdrant",
			URL:        "http://localhost:6333",
			Collection: "gov_rag_v1",
		},
		Rerank: RerankConfig{
			BatchSize:     8,
			Workers:       3,
			MinCandidates: 10,
		},
		Cache: CacheConfig{
			Store:      "memory",
			TTLSeconds: 3600,
		},
		Ingest: IngestConfig{
			Concurrency:  2,
			RateLimitRPS: 0.5,
			UserAgent:    "GovRAG-Bot/1.0",
			MaxPages:     100,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file on top of defaults and applies env overrides
// for secrets. A missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.VectorDB.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.VectorDB.APIKey = v
	}
	if v := os.Getenv("RERANK_API_KEY"); v != "" && c.Rerank.APIKey == "" {
		c.Rerank.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if c.Cache.Redis == nil {
			c.Cache.Redis = &RedisConfig{}
		}
		c.Cache.Redis.Address = v
	}
}
