// Package rerank rescores retrieval candidates with an external cross-encoder
// service. Scoring is best-effort: a failed batch zeroes its members instead
// of failing the query.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/civicqa/govrag/common/httpx"
	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

// Reranker rescores candidates against the query and returns the best
// min(topN, len(candidates)) of them in descending score order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []schema.Candidate, topN int) []schema.Candidate
}

// Noop truncates to topN preserving the retrieval scores and order. It is the
// degraded form of the stage when reranking is disabled or unconfigured.
type Noop struct{}

func (Noop) Rerank(_ context.Context, _ string, candidates []schema.Candidate, topN int) []schema.Candidate {
	return Truncate(candidates, topN)
}

// Truncate cuts candidates to at most topN without rescoring.
func Truncate(candidates []schema.Candidate, topN int) []schema.Candidate {
	if topN <= 0 || topN >= len(candidates) {
		return candidates
	}
	return candidates[:topN]
}

// CrossEncoder calls an external scoring endpoint in parallel batches.
type CrossEncoder struct {
	endpoint  string
	model     string
	apiKey    string
	batchSize int
	workers   int
	hc        *httpx.Client
}

// New builds a reranker from config. A disabled or endpoint-less config
// yields the Noop reranker.
func New(cfg config.RerankConfig, hc *httpx.Client) Reranker {
	if !cfg.Enable || cfg.Endpoint == "" {
		return Noop{}
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 3
	}
	if hc == nil {
		hc = httpx.NewFromConfig(nil)
	}
	return &CrossEncoder{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		batchSize: batchSize,
		workers:   workers,
		hc:        hc,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank splits candidates into batches, scores them on a bounded worker
// pool, sorts the combined result by descending score, then truncates to
// topN. Scores are written back by explicit (batch offset, result index)
// pairing so out-of-order responses cannot misattribute them. When every
// batch fails the model is unavailable, and the stage degrades to
// pass-through truncation with the retrieval scores intact.
func (r *CrossEncoder) Rerank(ctx context.Context, query string, candidates []schema.Candidate, topN int) []schema.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	scores := make([]float64, len(candidates))
	var succeeded int32

	type batch struct {
		offset int
		texts  []string
	}
	batches := make(chan batch)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				scored, err := r.scoreBatch(ctx, query, b.texts)
				if err != nil {
					logger.Warnf("rerank: batch at offset %d failed, zeroing %d scores: %v", b.offset, len(b.texts), err)
					continue // scores stay 0.0
				}
				atomic.AddInt32(&succeeded, 1)
				for i, s := range scored {
					scores[b.offset+i] = s
				}
			}
		}()
	}
	for offset := 0; offset < len(candidates); offset += r.batchSize {
		end := offset + r.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		texts := make([]string, 0, end-offset)
		for _, c := range candidates[offset:end] {
			texts = append(texts, c.Text)
		}
		batches <- batch{offset: offset, texts: texts}
	}
	close(batches)
	wg.Wait()

	if atomic.LoadInt32(&succeeded) == 0 {
		logger.Warnf("rerank: model unavailable, reranking skipped for %d candidates", len(candidates))
		return Truncate(candidates, topN)
	}

	out := make([]schema.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return Truncate(out, topN)
}

// scoreBatch returns scores index-aligned with texts.
func (r *CrossEncoder) scoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	payload, err := json.Marshal(rerankRequest{Query: query, Documents: texts, Model: r.model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(texts))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(texts) {
			return nil, fmt.Errorf("result index %d out of range for batch of %d", res.Index, len(texts))
		}
		scores[res.Index] = res.RelevanceScore
	}
	return scores, nil
}
