package schema

import "unicode/utf8"

// Confidence is the coarse trust bucket derived from final relevance scores.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Source cites one chunk that grounded an answer. Snippet is capped at 300
// characters and Score is clamped into [0,1].
type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Section   string  `json:"section,omitempty"`
	Snippet   string  `json:"snippet"`
	CharStart int     `json:"char_start"`
	CharEnd   int     `json:"char_end"`
	Score     float64 `json:"score"`
}

// Answer is the final result of one query: generated text, ordered citations,
// a confidence bucket and the per-source relevance scores. Immutable after
// construction; safe to cache and return to multiple callers.
type Answer struct {
	Text       string     `json:"answer_text"`
	Sources    []Source   `json:"sources"`
	Confidence Confidence `json:"confidence"`
	Scores     []float64  `json:"query_embedding_similarity"`
}

// SnippetLimit caps source snippets and prompt excerpts.
const SnippetLimit = 300

// Truncate returns s cut to at most limit bytes without splitting a rune.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// ClampScore forces a score into [0,1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
