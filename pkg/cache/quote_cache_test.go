package cache

import (
	"testing"
	"time"
)

func TestQuoteCacheSetGet(t *testing.T) {
	c := NewShardedQuoteCache()

	if _, ok := c.Get("EURUSD"); ok {
		t.Fatal("expected miss on empty cache")
	}

	q := Quote{Ask: 1.0815, Bid: 1.0805, Ref: 1.08}
	c.Set("EURUSD", q)

	got, ok := c.Get("EURUSD")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got != q {
		t.Fatalf("got %+v, want %+v", got, q)
	}

	if c.Len() != 1 {
		t.Fatalf("Len=%d, want 1", c.Len())
	}

	c.Delete("EURUSD")
	if _, ok := c.Get("EURUSD"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestQuoteCacheCleanup(t *testing.T) {
	c := NewShardedQuoteCache()
	c.Set("AAPL", Quote{Ask: 190, Bid: 190, Ref: 190})
	c.Set("MSFT", Quote{Ask: 400, Bid: 400, Ref: 400})

	// Nothing old enough yet.
	if removed := c.Cleanup(time.Minute); removed != 0 {
		t.Fatalf("Cleanup removed %d, want 0", removed)
	}
	// Everything is older than a zero max age.
	if removed := c.Cleanup(0); removed != 2 {
		t.Fatalf("Cleanup removed %d, want 2", removed)
	}
	if c.Len() != 0 {
		t.Fatalf("Len=%d after cleanup, want 0", c.Len())
	}
}
