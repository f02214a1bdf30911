package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/civicqa/govrag/schema"
)

// ComputeFunc produces a fresh Answer on a cache miss. An error means the
// result must not be stored.
type ComputeFunc func(ctx context.Context) (*schema.Answer, error)

// Answers memoizes complete query results under a canonical key.
type Answers interface {
	// GetOrCompute returns the stored Answer when the key is present and
	// fresh; otherwise it invokes fn, stores a successful result, and
	// returns it. Concurrent misses on the same key may both compute;
	// duplicate work is accepted, both converge to the same stored value.
	GetOrCompute(ctx context.Context, key string, fn ComputeFunc) (*schema.Answer, error)
}

// AnswerKey renders (query, filters, top_k, top_n, cutoff) to a canonical
// string and hashes it. Filters are sorted by key so map iteration order
// never produces distinct keys for the same request.
func AnswerKey(query string, filters map[string]string, topK, topN int, cutoff float64) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	b.WriteByte('|')
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
		b.WriteByte(';')
	}
	fmt.Fprintf(&b, "|%d|%d|%g", topK, topN, cutoff)
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type storedAnswer struct {
	answer *schema.Answer
	at     time.Time
}

// memoryAnswers is the default in-process response cache: a map with a lazy
// TTL check at read time and no eviction. Unbounded growth is a known and
// accepted resource risk for the expected query cardinality.
type memoryAnswers struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]storedAnswer
	clock func() time.Time
}

// NewMemoryAnswers creates the in-memory response cache. A zero ttl disables
// expiry entirely.
func NewMemoryAnswers(ttl time.Duration) Answers {
	return &memoryAnswers{
		ttl:   ttl,
		items: make(map[string]storedAnswer),
		clock: time.Now,
	}
}

func (m *memoryAnswers) GetOrCompute(ctx context.Context, key string, fn ComputeFunc) (*schema.Answer, error) {
	m.mu.RLock()
	st, ok := m.items[key]
	m.mu.RUnlock()
	if ok && (m.ttl <= 0 || m.clock().Sub(st.at) < m.ttl) {
		return st.answer, nil
	}

	ans, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.items[key] = storedAnswer{answer: ans, at: m.clock()}
	m.mu.Unlock()
	return ans, nil
}
