// A stand-in cross-encoder for local development: scores each document by
// lexical overlap with the query. Speaks the same wire format the rerank
// stage expects.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type rerankReq struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
}

type result struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResp struct {
	Results []result `json:"results"`
}

func overlap(query, doc string) float64 {
	qWords := strings.Fields(strings.ToLower(query))
	if len(qWords) == 0 {
		return 0
	}
	lowered := strings.ToLower(doc)
	hits := 0
	for _, w := range qWords {
		if strings.Contains(lowered, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(qWords))
}

func handleRerank(w http.ResponseWriter, r *http.Request) {
	var req rerankReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := rerankResp{Results: make([]result, 0, len(req.Documents))}
	for i, doc := range req.Documents {
		resp.Results = append(resp.Results, result{Index: i, RelevanceScore: overlap(req.Query, doc)})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func main() {
	addr := ":8082"
	if v := os.Getenv("RERANK_ADDR"); v != "" {
		addr = v
	}
	http.HandleFunc("/", handleRerank)
	log.Printf("reranker mock listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
