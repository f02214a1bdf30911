// Package vectordb abstracts the vector store. Two backends are supported:
// qdrant over its REST API and milvus over its Go SDK. Both store the full
// denormalized chunk payload so search results need no secondary lookup.
package vectordb

import (
	"context"
	"fmt"

	"github.com/civicqa/govrag/common/httpx"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

// SearchOptions narrows one vector search.
type SearchOptions struct {
	// TopK is the number of hits requested from the store.
	TopK int
	// ScoreThreshold drops hits below this similarity at the store level.
	ScoreThreshold float64
	// Filters are exact-match payload constraints (e.g. content_type=faq).
	Filters map[string]string
}

// CollectionInfo summarizes the backing collection for the stats surface.
type CollectionInfo struct {
	Name       string `json:"name"`
	Points     int64  `json:"points"`
	Dimensions int    `json:"dimensions"`
}

// Provider is the vector store contract used by ingest and retrieval.
type Provider interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, dims int) error
	// Upsert writes records by id; re-upserting an id overwrites it.
	Upsert(ctx context.Context, records []schema.IndexRecord) error
	// Search returns the nearest candidates ordered by descending score.
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]schema.Candidate, error)
	// Info reports collection name, point count and vector dimensionality.
	Info(ctx context.Context) (*CollectionInfo, error)
}

// New builds the configured backend. The httpx client is shared with other
// outbound callers and only used by the qdrant backend.
func New(cfg config.VectorDBConfig, hc *httpx.Client) (Provider, error) {
	switch cfg.Provider {
	case "", "qdrant":
		return newQdrant(cfg, hc)
	case "milvus":
		return newMilvus(cfg)
	default:
		return nil, fmt.Errorf("unsupported vectordb provider: %s", cfg.Provider)
	}
}
