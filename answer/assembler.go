// Package answer turns the final candidate set into a grounded, cited answer.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/civicqa/govrag/llm"
	"github.com/civicqa/govrag/schema"
)

// NoKnowledgeText is the fixed reply when the knowledge base cannot ground an
// answer. It is returned verbatim for empty retrieval and for any degraded
// pipeline state, and is never cached.
const NoKnowledgeText = "I don't have verifiable information in the knowledge base for that query."

// NoKnowledge builds the fixed fallback answer: no sources, low confidence.
func NoKnowledge() *schema.Answer {
	return &schema.Answer{
		Text:       NoKnowledgeText,
		Sources:    []schema.Source{},
		Confidence: schema.ConfidenceLow,
		Scores:     []float64{},
	}
}

const systemPrompt = "You are an assistant answering questions about U.S. government services " +
	"using only the provided source excerpts. Never invent facts. " +
	"End the answer with a Sources section listing each excerpt you used as a bullet: \"- [n] title (url)\". " +
	"If the excerpts do not contain the answer, reply with exactly: \"" + NoKnowledgeText + "\""

// professionalAdviceTerms trigger the consult-a-professional instruction.
var professionalAdviceTerms = []string{
	"tax", "taxes", "deduction", "penalty", "legal", "lawsuit", "liability", "attorney",
}

const (
	generateTemperature = 0.0
	generateMaxTokens   = 500
)

// Assembler builds the grounding prompt and runs generation.
type Assembler struct {
	provider llm.Provider
}

func NewAssembler(provider llm.Provider) *Assembler {
	return &Assembler{provider: provider}
}

// Assemble generates an answer grounded on candidates. Generation failure is
// the one pipeline error surfaced to the caller; everything else in the
// answer path is deterministic.
func (a *Assembler) Assemble(ctx context.Context, query string, candidates []schema.Candidate) (*schema.Answer, error) {
	text, err := a.provider.Generate(ctx, systemPrompt, BuildPrompt(query, candidates), generateTemperature, generateMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]schema.Source, 0, len(candidates))
	scores := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, schema.Source{
			URL:       c.URL,
			Title:     c.Title,
			Section:   c.SectionHeading,
			Snippet:   schema.Truncate(c.Text, schema.SnippetLimit),
			CharStart: c.CharStart,
			CharEnd:   c.CharEnd,
			Score:     schema.ClampScore(c.Score),
		})
		scores = append(scores, c.Score)
	}

	return &schema.Answer{
		Text:       strings.TrimSpace(text),
		Sources:    sources,
		Confidence: ScoreConfidence(scores),
		Scores:     scores,
	}, nil
}

// BuildPrompt formats the numbered source excerpts and the question.
func BuildPrompt(query string, candidates []schema.Candidate) string {
	var b strings.Builder
	b.WriteString("Source excerpts:\n\n")
	for i, c := range candidates {
		b.WriteString(fmt.Sprintf("[%d] %s", i+1, c.Title))
		if c.SectionHeading != "" {
			b.WriteString(" - " + c.SectionHeading)
		}
		b.WriteString(fmt.Sprintf("\n%s (chars %d-%d)\n", c.URL, c.CharStart, c.CharEnd))
		b.WriteString(schema.Truncate(c.Text, schema.SnippetLimit))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: " + query + "\n")
	if needsDisclaimer(query) {
		b.WriteString("\nThe question touches tax or legal matters. Begin the answer with a one-line note that this is general information, not advice, and the reader should confirm with a qualified professional or the relevant agency.\n")
	}
	return b.String()
}

func needsDisclaimer(query string) bool {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, word := range words {
		for _, term := range professionalAdviceTerms {
			if word == term {
				return true
			}
		}
	}
	return false
}
