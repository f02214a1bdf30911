package answer

import "github.com/civicqa/govrag/schema"

// Confidence bucket thresholds over the mean final score.
const (
	highThreshold   = 0.8
	mediumThreshold = 0.5
)

// ScoreConfidence buckets the mean of the final relevance scores. No scores
// means no evidence, which is low confidence.
func ScoreConfidence(scores []float64) schema.Confidence {
	if len(scores) == 0 {
		return schema.ConfidenceLow
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	switch mean := sum / float64(len(scores)); {
	case mean >= highThreshold:
		return schema.ConfidenceHigh
	case mean >= mediumThreshold:
		return schema.ConfidenceMedium
	default:
		return schema.ConfidenceLow
	}
}
