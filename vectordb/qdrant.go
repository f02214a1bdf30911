package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/civicqa/govrag/common/httpx"
	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

type qdrantProvider struct {
	baseURL    string
	apiKey     string
	collection string
	hc         *httpx.Client
}

func newQdrant(cfg config.VectorDBConfig, hc *httpx.Client) (*qdrantProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant: url is required")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "gov_rag_v1"
	}
	if hc == nil {
		hc = httpx.NewFromConfig(nil)
	}
	return &qdrantProvider{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		hc:         hc,
	}, nil
}

func (q *qdrantProvider) EnsureCollection(ctx context.Context, dims int) error {
	var probe struct {
		Status string `json:"status"`
	}
	err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, &probe)
	if err == nil && probe.Status == "ok" {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dims,
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, "/collections/"+q.collection, body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	logger.Infof("qdrant: created collection %s (dims=%d)", q.collection, dims)
	return nil
}

func (q *qdrantProvider) Upsert(ctx context.Context, records []schema.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     r.ID,
			"vector": r.Vector,
			"payload": map[string]any{
				"url":             r.URL,
				"title":           r.Title,
				"section_heading": r.SectionHeading,
				"text":            r.Text,
				"char_start":      r.CharStart,
				"char_end":        r.CharEnd,
				"content_type":    string(r.ContentType),
				"crawl_ts":        r.CrawlTS,
				"embedding_model": r.EmbeddingModel,
				"tokens":          r.Tokens,
				"hash":            r.Hash,
			},
		}
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
	if err := q.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

type qdrantHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (q *qdrantProvider) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]schema.Candidate, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        opts.TopK,
		"with_payload": true,
	}
	if opts.ScoreThreshold > 0 {
		body["score_threshold"] = opts.ScoreThreshold
	}
	if len(opts.Filters) > 0 {
		must := make([]map[string]any, 0, len(opts.Filters))
		for k, v := range opts.Filters {
			must = append(must, map[string]any{
				"key":   k,
				"match": map[string]any{"value": v},
			})
		}
		body["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []qdrantHit `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	if err := q.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	candidates := make([]schema.Candidate, 0, len(resp.Result))
	for _, hit := range resp.Result {
		candidates = append(candidates, candidateFromPayload(hit.ID, hit.Score, hit.Payload))
	}
	return candidates, nil
}

func (q *qdrantProvider) Info(ctx context.Context) (*CollectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, &resp); err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}
	return &CollectionInfo{
		Name:       q.collection,
		Points:     resp.Result.PointsCount,
		Dimensions: resp.Result.Config.Params.Vectors.Size,
	}, nil
}

func (q *qdrantProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func candidateFromPayload(id string, score float64, payload map[string]any) schema.Candidate {
	return schema.Candidate{
		ID:             id,
		Score:          score,
		URL:            payloadString(payload, "url"),
		Title:          payloadString(payload, "title"),
		SectionHeading: payloadString(payload, "section_heading"),
		Text:           payloadString(payload, "text"),
		CharStart:      payloadInt(payload, "char_start"),
		CharEnd:        payloadInt(payload, "char_end"),
		ContentType:    schema.ParseContentType(payloadString(payload, "content_type")),
		CrawlTS:        payloadString(payload, "crawl_ts"),
	}
}

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(p map[string]any, key string) int {
	if v, ok := p[key].(float64); ok {
		return int(v)
	}
	return 0
}
