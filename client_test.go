package govrag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/civicqa/govrag/answer"
	"github.com/civicqa/govrag/cache"
	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/rerank"
	"github.com/civicqa/govrag/schema"
	"github.com/civicqa/govrag/vectordb"
)

func init() { logger.UseNop() }

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (stubEmbedder) Model() string { return "test-model" }

type stubStore struct {
	hits     []schema.Candidate
	searches int
}

func (s *stubStore) EnsureCollection(context.Context, int) error        { return nil }
func (s *stubStore) Upsert(context.Context, []schema.IndexRecord) error { return nil }
func (s *stubStore) Info(context.Context) (*vectordb.CollectionInfo, error) {
	return &vectordb.CollectionInfo{Name: "gov_rag_v1", Points: int64(len(s.hits))}, nil
}
func (s *stubStore) Search(context.Context, []float32, vectordb.SearchOptions) ([]schema.Candidate, error) {
	s.searches++
	return s.hits, nil
}

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Generate(context.Context, string, string, float64, int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type spyReranker struct {
	invoked bool
}

func (s *spyReranker) Rerank(_ context.Context, _ string, candidates []schema.Candidate, topN int) []schema.Candidate {
	s.invoked = true
	return rerank.Truncate(candidates, topN)
}

func uniformHits(n int, score float64) []schema.Candidate {
	hits := make([]schema.Candidate, n)
	for i := range hits {
		hits[i] = schema.Candidate{
			ID:    fmt.Sprintf("chunk-%d", i),
			Score: score,
			URL:   fmt.Sprintf("https://www.irs.gov/page-%d", i),
			Title: "Page",
			Text:  "candidate text long enough to cite",
		}
	}
	return hits
}

func newTestClient(store *stubStore, gen *stubLLM, rr rerank.Reranker) *Client {
	cfg := config.Default()
	if rr == nil {
		rr = rerank.Noop{}
	}
	return NewFromProviders(cfg, store, stubEmbedder{}, gen, rr,
		cache.NewMemoryAnswers(time.Hour))
}

func TestAnswerRerankInvokedForLargeCandidateSets(t *testing.T) {
	// 15 candidates at 0.9 with top_n=3: past the batch-worthiness floor.
	store := &stubStore{hits: uniformHits(15, 0.9)}
	gen := &stubLLM{reply: "grounded answer [1]"}
	rr := &spyReranker{}
	c := newTestClient(store, gen, rr)

	got := c.Answer(context.Background(), "how do i file an extension", QueryOptions{
		TopK: 20, TopN: 3, Cutoff: 0.22,
	})

	if !rr.invoked {
		t.Error("reranker should be invoked for 15 candidates")
	}
	if len(got.Sources) != 3 {
		t.Errorf("got %d sources, want 3", len(got.Sources))
	}
	if got.Text != "grounded answer [1]" {
		t.Errorf("answer text = %q", got.Text)
	}
	if got.Confidence != schema.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", got.Confidence)
	}
}

func TestAnswerSkipsRerankBelowThreshold(t *testing.T) {
	store := &stubStore{hits: uniformHits(5, 0.9)}
	rr := &spyReranker{}
	c := newTestClient(store, &stubLLM{reply: "answer"}, rr)

	got := c.Answer(context.Background(), "query", QueryOptions{TopN: 3})
	if rr.invoked {
		t.Error("5 candidates are below the batch-worthiness floor")
	}
	if len(got.Sources) != 3 {
		t.Errorf("truncation should still cap sources at 3, got %d", len(got.Sources))
	}
	// Truncation preserves the vector ranking.
	if got.Sources[0].URL != "https://www.irs.gov/page-0" {
		t.Errorf("order changed without reranking: %s", got.Sources[0].URL)
	}
}

func TestAnswerEmptyRetrievalYieldsNoKnowledge(t *testing.T) {
	store := &stubStore{}
	gen := &stubLLM{reply: "should never be called"}
	c := newTestClient(store, gen, nil)

	got := c.Answer(context.Background(), "something obscure", QueryOptions{})

	if got.Text != answer.NoKnowledgeText {
		t.Errorf("text = %q", got.Text)
	}
	if got.Confidence != schema.ConfidenceLow || len(got.Sources) != 0 {
		t.Errorf("fallback shape wrong: %+v", got)
	}
	if gen.calls != 0 {
		t.Errorf("generation ran %d times for empty retrieval", gen.calls)
	}
}

func TestAnswerGenerationFailureDegradesAndIsNotCached(t *testing.T) {
	store := &stubStore{hits: uniformHits(3, 0.9)}
	gen := &stubLLM{err: errors.New("model overloaded")}
	c := newTestClient(store, gen, nil)

	got := c.Answer(context.Background(), "query", QueryOptions{})
	if got.Text != answer.NoKnowledgeText {
		t.Errorf("generation failure should degrade to no-knowledge, got %q", got.Text)
	}

	// Recovery on the next call proves the failure was not cached.
	gen.err = nil
	gen.reply = "recovered answer"
	got = c.Answer(context.Background(), "query", QueryOptions{})
	if got.Text != "recovered answer" {
		t.Errorf("failure result leaked into the cache: %q", got.Text)
	}
}

func TestAnswerCachesCompleteResults(t *testing.T) {
	store := &stubStore{hits: uniformHits(3, 0.9)}
	gen := &stubLLM{reply: "cached answer"}
	c := newTestClient(store, gen, nil)

	first := c.Answer(context.Background(), "How do I file?", QueryOptions{})
	second := c.Answer(context.Background(), "  how do i file?  ", QueryOptions{})

	if store.searches != 1 || gen.calls != 1 {
		t.Errorf("second call recomputed: searches=%d generations=%d", store.searches, gen.calls)
	}
	if first != second {
		t.Errorf("cache should return the stored answer instance")
	}

	// Different retrieval knobs miss the cache.
	c.Answer(context.Background(), "How do I file?", QueryOptions{TopN: 5})
	if store.searches != 2 {
		t.Errorf("changed top_n should be a distinct cache key")
	}
}

func TestAnswerNoKnowledgeIsNeverCached(t *testing.T) {
	store := &stubStore{}
	c := newTestClient(store, &stubLLM{reply: "x"}, nil)

	c.Answer(context.Background(), "query", QueryOptions{})
	c.Answer(context.Background(), "query", QueryOptions{})
	if store.searches != 2 {
		t.Errorf("no-knowledge results must not be cached, searches=%d", store.searches)
	}
}
