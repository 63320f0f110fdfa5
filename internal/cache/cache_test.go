package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New(time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}
	c.Set("agg:set-1:3:summary", 42)
	value, ok := c.Get("agg:set-1:3:summary")
	if !ok || value.(int) != 42 {
		t.Errorf("Get = (%v, %v), expected (42, true)", value, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Minute)
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("key", "value")
	if _, ok := c.Get("key"); !ok {
		t.Fatal("fresh entry should hit")
	}

	current = current.Add(59 * time.Second)
	if _, ok := c.Get("key"); !ok {
		t.Error("entry inside TTL should hit")
	}

	current = current.Add(2 * time.Second)
	if _, ok := c.Get("key"); ok {
		t.Error("entry past TTL should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on read, len = %d", c.Len())
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := New(time.Minute)
	c.Set("agg:set-1:3:summary", 1)
	c.Set("agg:set-1:3:trend:day", 2)
	c.Set("agg:set-2:1:summary", 3)

	removed := c.InvalidatePrefix("agg:set-1:")
	if removed != 2 {
		t.Errorf("removed = %d, expected 2", removed)
	}
	if _, ok := c.Get("agg:set-2:1:summary"); !ok {
		t.Error("other record set entries must survive")
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, expected 1", c.Len())
	}
}

func TestCacheSweep(t *testing.T) {
	c := New(time.Minute)
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("old", 1)
	current = current.Add(30 * time.Second)
	c.Set("fresh", 2)
	current = current.Add(45 * time.Second)

	removed := c.Sweep()
	if removed != 1 {
		t.Errorf("swept %d entries, expected 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive sweep")
	}
}
