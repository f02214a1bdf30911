package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

func init() { logger.UseNop() }

func makeCandidates(n int) []schema.Candidate {
	out := make([]schema.Candidate, n)
	for i := range out {
		out[i] = schema.Candidate{
			ID:    fmt.Sprintf("chunk-%d", i),
			Text:  fmt.Sprintf("doc-%d", i),
			Score: 0.3, // retrieval score, should be replaced
		}
	}
	return out
}

// scoringServer scores doc-N as N/100 so pairing is verifiable, and fails any
// batch containing a document listed in failOn.
func scoringServer(t *testing.T, requests *int64, failOn string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(requests, 1)
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		results := make([]map[string]any, 0, len(req.Documents))
		for i, doc := range req.Documents {
			if failOn != "" && doc == failOn {
				http.Error(w, "scoring failed", http.StatusInternalServerError)
				return
			}
			n, _ := strconv.Atoi(strings.TrimPrefix(doc, "doc-"))
			// Respond out of order to exercise index pairing.
			results = append([]map[string]any{{
				"index":           i,
				"relevance_score": float64(n) / 100,
			}}, results...)
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func newTestReranker(endpoint string) Reranker {
	return New(config.RerankConfig{
		Enable:    true,
		Endpoint:  endpoint,
		Model:     "test-cross-encoder",
		BatchSize: 8,
		Workers:   3,
	}, nil)
}

func TestRerankScoresAndSorts(t *testing.T) {
	var requests int64
	srv := scoringServer(t, &requests, "")
	defer srv.Close()

	candidates := makeCandidates(15)
	got := newTestReranker(srv.URL).Rerank(context.Background(), "query", candidates, 15)

	if len(got) != 15 {
		t.Fatalf("got %d candidates, want 15", len(got))
	}
	if atomic.LoadInt64(&requests) != 2 {
		t.Errorf("15 candidates at batch size 8 should take 2 requests, took %d", requests)
	}
	// doc-14 scores highest under the N/100 rule.
	if got[0].ID != "chunk-14" {
		t.Errorf("top candidate = %s, want chunk-14", got[0].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
	// Pairing: every candidate carries its own score, not a neighbor's.
	for _, c := range got {
		n, _ := strconv.Atoi(strings.TrimPrefix(c.ID, "chunk-"))
		if c.Score != float64(n)/100 {
			t.Errorf("%s has score %v, want %v", c.ID, c.Score, float64(n)/100)
		}
	}
	// Input must not be reordered in place.
	if candidates[0].ID != "chunk-0" || candidates[0].Score != 0.3 {
		t.Errorf("input slice was mutated: %+v", candidates[0])
	}
}

func TestRerankFailedBatchZeroesItsMembers(t *testing.T) {
	var requests int64
	srv := scoringServer(t, &requests, "doc-8")
	defer srv.Close()

	got := newTestReranker(srv.URL).Rerank(context.Background(), "query", makeCandidates(15), 15)

	if len(got) != 15 {
		t.Fatalf("got %d candidates, want 15", len(got))
	}
	zeroed := 0
	for _, c := range got {
		n, _ := strconv.Atoi(strings.TrimPrefix(c.ID, "chunk-"))
		switch {
		case n >= 8:
			if c.Score != 0 {
				t.Errorf("%s belongs to the failed batch, score = %v", c.ID, c.Score)
			}
			zeroed++
		default:
			if c.Score != float64(n)/100 {
				t.Errorf("%s from the healthy batch has score %v", c.ID, c.Score)
			}
		}
	}
	if zeroed != 7 {
		t.Errorf("failed batch should cover 7 candidates, zeroed %d", zeroed)
	}
}

func TestRerankTruncatesToTopN(t *testing.T) {
	var requests int64
	srv := scoringServer(t, &requests, "")
	defer srv.Close()

	got := newTestReranker(srv.URL).Rerank(context.Background(), "query", makeCandidates(15), 3)
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	// The three best under the N/100 rule.
	for i, want := range []string{"chunk-14", "chunk-13", "chunk-12"} {
		if got[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestRerankModelOutageSkipsToTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	candidates := []schema.Candidate{
		{ID: "a", Text: "doc-a", Score: 0.9},
		{ID: "b", Text: "doc-b", Score: 0.8},
		{ID: "c", Text: "doc-c", Score: 0.7},
	}
	got := newTestReranker(srv.URL).Rerank(context.Background(), "query", candidates, 2)

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	// Total unavailability keeps the vector ranking and scores.
	for i, want := range []struct {
		id    string
		score float64
	}{{"a", 0.9}, {"b", 0.8}} {
		if got[i].ID != want.id || got[i].Score != want.score {
			t.Errorf("position %d = %s/%v, want %s/%v", i, got[i].ID, got[i].Score, want.id, want.score)
		}
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := newTestReranker("http://localhost:0")
	if got := r.Rerank(context.Background(), "query", nil, 3); len(got) != 0 {
		t.Errorf("empty input should return empty, got %d", len(got))
	}
}

func TestNoopTruncatesPreservingScores(t *testing.T) {
	candidates := makeCandidates(3)
	got := New(config.RerankConfig{}, nil).Rerank(context.Background(), "query", candidates, 2)
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	for i, c := range got {
		if c.Score != 0.3 || c.ID != candidates[i].ID {
			t.Errorf("noop changed candidate %d: %+v", i, c)
		}
	}
}

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	if _, ok := New(config.RerankConfig{Enable: false, Endpoint: "http://x"}, nil).(Noop); !ok {
		t.Error("disabled config should yield Noop")
	}
	if _, ok := New(config.RerankConfig{Enable: true}, nil).(Noop); !ok {
		t.Error("missing endpoint should yield Noop")
	}
	if _, ok := New(config.RerankConfig{Enable: true, Endpoint: "http://x"}, nil).(*CrossEncoder); !ok {
		t.Error("enabled config should yield CrossEncoder")
	}
}
