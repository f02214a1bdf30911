package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicqa/govrag/schema"
)

func TestAnswerKeyCanonicalizes(t *testing.T) {
	base := AnswerKey("How do I file?", map[string]string{"content_type": "faq"}, 30, 3, 0.22)

	if got := AnswerKey("  how do i file?  ", map[string]string{"content_type": "faq"}, 30, 3, 0.22); got != base {
		t.Error("case and surrounding whitespace should not change the key")
	}
	if got := AnswerKey("How do I file?", map[string]string{"content_type": "html"}, 30, 3, 0.22); got == base {
		t.Error("different filters must produce different keys")
	}
	if got := AnswerKey("How do I file?", map[string]string{"content_type": "faq"}, 30, 5, 0.22); got == base {
		t.Error("different top_n must produce different keys")
	}
	if got := AnswerKey("How do I file?", nil, 30, 3, 0.22); got == base {
		t.Error("missing filters must produce a different key")
	}
}

func testAnswer(text string) *schema.Answer {
	return &schema.Answer{
		Text:       text,
		Sources:    []schema.Source{},
		Confidence: schema.ConfidenceHigh,
		Scores:     []float64{0.9},
	}
}

func TestMemoryAnswersHitWithinTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	m := &memoryAnswers{
		ttl:   time.Hour,
		items: make(map[string]storedAnswer),
		clock: func() time.Time { return now },
	}

	computes := 0
	fn := func(context.Context) (*schema.Answer, error) {
		computes++
		return testAnswer("fresh"), nil
	}

	first, err := m.GetOrCompute(context.Background(), "k", fn)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Minute)
	second, err := m.GetOrCompute(context.Background(), "k", fn)
	if err != nil {
		t.Fatal(err)
	}
	if computes != 1 {
		t.Errorf("computed %d times within ttl, want 1", computes)
	}
	if first != second {
		t.Error("hit should return the stored instance")
	}
}

func TestMemoryAnswersExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	m := &memoryAnswers{
		ttl:   time.Hour,
		items: make(map[string]storedAnswer),
		clock: func() time.Time { return now },
	}

	computes := 0
	fn := func(context.Context) (*schema.Answer, error) {
		computes++
		return testAnswer("fresh"), nil
	}

	m.GetOrCompute(context.Background(), "k", fn)
	now = now.Add(time.Hour + time.Second)
	m.GetOrCompute(context.Background(), "k", fn)
	if computes != 2 {
		t.Errorf("expired entry should recompute, computed %d times", computes)
	}
}

func TestMemoryAnswersDoesNotStoreFailures(t *testing.T) {
	m := NewMemoryAnswers(time.Hour)
	wantErr := errors.New("pipeline degraded")

	if _, err := m.GetOrCompute(context.Background(), "k", func(context.Context) (*schema.Answer, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}

	computes := 0
	m.GetOrCompute(context.Background(), "k", func(context.Context) (*schema.Answer, error) {
		computes++
		return testAnswer("ok"), nil
	})
	if computes != 1 {
		t.Error("failed compute should have left the key empty")
	}
}

func TestMemoryAnswersZeroTTLNeverExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	m := &memoryAnswers{
		items: make(map[string]storedAnswer),
		clock: func() time.Time { return now },
	}

	computes := 0
	fn := func(context.Context) (*schema.Answer, error) {
		computes++
		return testAnswer("forever"), nil
	}
	m.GetOrCompute(context.Background(), "k", fn)
	now = now.Add(1000 * time.Hour)
	m.GetOrCompute(context.Background(), "k", fn)
	if computes != 1 {
		t.Errorf("zero ttl should never expire, computed %d times", computes)
	}
}
