package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/civicqa/govrag/schema"
)

func TestScoreConfidence(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   schema.Confidence
	}{
		{"empty", nil, schema.ConfidenceLow},
		{"high", []float64{0.9, 0.85, 0.8}, schema.ConfidenceHigh},
		{"exactly high threshold", []float64{0.8}, schema.ConfidenceHigh},
		{"medium", []float64{0.6, 0.5, 0.55}, schema.ConfidenceMedium},
		{"exactly medium threshold", []float64{0.5}, schema.ConfidenceMedium},
		{"low", []float64{0.3, 0.2}, schema.ConfidenceLow},
		{"mixed pulls the mean down", []float64{0.9, 0.1, 0.1}, schema.ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScoreConfidence(tc.scores); got != tc.want {
				t.Errorf("ScoreConfidence(%v) = %s, want %s", tc.scores, got, tc.want)
			}
		})
	}
}

type fakeLLM struct {
	reply      string
	err        error
	lastPrompt string
	lastSystem string
	lastTemp   float64
	lastMax    int
}

func (f *fakeLLM) Generate(_ context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	f.lastSystem = system
	f.lastPrompt = prompt
	f.lastTemp = temperature
	f.lastMax = maxTokens
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testCandidates() []schema.Candidate {
	return []schema.Candidate{
		{
			ID:             "chunk-a",
			Score:          0.9,
			URL:            "https://www.irs.gov/filing/extensions",
			Title:          "Filing Extensions",
			SectionHeading: "HOW TO REQUEST AN EXTENSION",
			Text:           strings.Repeat("you can request an automatic extension. ", 12),
			CharStart:      0,
			CharEnd:        480,
		},
		{
			ID:    "chunk-b",
			Score: 1.4, // cross-encoder scores can exceed 1
			URL:   "https://www.irs.gov/payments",
			Title: "Payments",
			Text:  "an extension to file is not an extension to pay",
		},
	}
}

func TestAssembleBuildsSourcesAndConfidence(t *testing.T) {
	llm := &fakeLLM{reply: "  You can request an extension with Form 4868 [1].  "}
	got, err := NewAssembler(llm).Assemble(context.Background(), "how do i get a filing extension", testCandidates())
	if err != nil {
		t.Fatal(err)
	}

	if got.Text != "You can request an extension with Form 4868 [1]." {
		t.Errorf("answer text = %q", got.Text)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(got.Sources))
	}
	if len(got.Sources[0].Snippet) > schema.SnippetLimit {
		t.Errorf("snippet exceeds cap: %d", len(got.Sources[0].Snippet))
	}
	if got.Sources[1].Score != 1.0 {
		t.Errorf("source score should clamp to 1.0, got %v", got.Sources[1].Score)
	}
	// Scores keep the raw values even when the cited source is clamped.
	if got.Scores[1] != 1.4 {
		t.Errorf("raw score = %v, want 1.4", got.Scores[1])
	}
	if got.Confidence != schema.ConfidenceHigh {
		t.Errorf("confidence = %s, want high (mean 1.15)", got.Confidence)
	}

	if llm.lastTemp != 0.0 {
		t.Errorf("temperature = %v, want 0.0", llm.lastTemp)
	}
	if llm.lastMax != 500 {
		t.Errorf("max tokens = %d, want 500", llm.lastMax)
	}
	if !strings.Contains(llm.lastPrompt, "[1] Filing Extensions - HOW TO REQUEST AN EXTENSION") {
		t.Errorf("prompt missing numbered source header:\n%s", llm.lastPrompt)
	}
	if !strings.Contains(llm.lastPrompt, "(chars 0-480)") {
		t.Errorf("prompt missing source char offsets:\n%s", llm.lastPrompt)
	}
	if !strings.Contains(llm.lastSystem, "only the provided source excerpts") {
		t.Errorf("system prompt missing grounding instruction")
	}
	if !strings.Contains(llm.lastSystem, NoKnowledgeText) {
		t.Errorf("system prompt missing the fixed decline sentence")
	}
}

func TestAssemblePropagatesGenerationErrors(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model overloaded")}
	_, err := NewAssembler(llm).Assemble(context.Background(), "query", testCandidates())
	if err == nil {
		t.Fatal("expected generation error to propagate")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error lost its cause: %v", err)
	}
}

func TestBuildPromptAddsProfessionalDisclaimer(t *testing.T) {
	cands := testCandidates()
	withTax := BuildPrompt("can I deduct my home office on my taxes?", cands)
	if !strings.Contains(withTax, "qualified professional") {
		t.Errorf("tax query should request a disclaimer")
	}
	without := BuildPrompt("when does the library open", cands)
	if strings.Contains(without, "qualified professional") {
		t.Errorf("plain query should not request a disclaimer")
	}
	// Substrings must not trigger it (taxi is not tax).
	taxi := BuildPrompt("how do I get a taxi license", cands)
	if strings.Contains(taxi, "qualified professional") {
		t.Errorf("taxi should not match the tax term")
	}
}

func TestNoKnowledgeShape(t *testing.T) {
	a := NoKnowledge()
	if a.Text != NoKnowledgeText {
		t.Errorf("text = %q", a.Text)
	}
	if a.Confidence != schema.ConfidenceLow {
		t.Errorf("confidence = %s, want low", a.Confidence)
	}
	if a.Sources == nil || len(a.Sources) != 0 {
		t.Errorf("sources should be empty, not nil")
	}
	if a.Scores == nil || len(a.Scores) != 0 {
		t.Errorf("scores should be empty, not nil")
	}
}
