package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU(2, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // refresh a
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Error("a should survive, it was refreshed")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Error("c should be present")
	}
}

func TestLRUTTL(t *testing.T) {
	c := NewLRU(8, 0)
	c.Set("k", "v", 10*time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should be gone")
	}
}

func TestLRUPurge(t *testing.T) {
	c := NewLRU(8, 0)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, 0)
	}
	c.Purge()
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			t.Errorf("k%d survived purge", i)
		}
	}
}

func TestLRUUpdateExistingKey(t *testing.T) {
	c := NewLRU(2, 0)
	c.Set("a", 1, 0)
	c.Set("a", 2, 0)
	c.Set("b", 3, 0)

	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("a = %v, want updated value 2", v)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("updating a key must not consume capacity")
	}
}
