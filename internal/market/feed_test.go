package market

import (
	"context"
	"testing"
	"time"

	"exchange-core/internal/events"
	"exchange-core/pkg/cache"
	"exchange-core/pkg/db"
)

func newTestStore(t *testing.T) *db.Database {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.ApplyMigrations(d); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return d
}

func waitForStockPrice(t *testing.T, store *db.Database, symbol string, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		row, err := store.GetStock(context.Background(), symbol)
		if err != nil {
			t.Fatalf("GetStock: %v", err)
		}
		if row != nil && row.Price == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stock %s never reached %v", symbol, want)
}

func TestFeedWritesTickThrough(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.UpsertStock(ctx, db.Stock{Symbol: "AAPL", Price: 100})
	store.UpsertForex(ctx, db.Forex{Symbol: "EURUSD", FromCurrency: "EUR", ToCurrency: "USD", ExchangeRate: 1.08, AskPrice: 1.0815, BidPrice: 1.0805})

	bus := events.NewBus()
	quoteCache := cache.NewShardedQuoteCache()
	NewFeed(store, quoteCache, bus).Start(ctx)
	// Give the consumer goroutine a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	bus.Publish(events.EventStockTick, events.Tick{ListingType: db.ListingStock, Symbol: "AAPL", Price: 105, Ask: 105, Bid: 105})
	waitForStockPrice(t, store, "AAPL", 105)

	if q, ok := quoteCache.Get("AAPL"); !ok || q.Ref != 105 {
		t.Fatalf("cache not updated: %+v ok=%v", q, ok)
	}

	bus.Publish(events.EventForexTick, events.Tick{ListingType: db.ListingForex, Symbol: "EURUSD", Price: 1.09, Ask: 1.0911, Bid: 1.0889})
	deadline := time.Now().Add(2 * time.Second)
	for {
		row, err := store.GetForex(context.Background(), "EURUSD")
		if err != nil {
			t.Fatalf("GetForex: %v", err)
		}
		if row.ExchangeRate == 1.09 && row.AskPrice == 1.0911 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("forex tick never applied: %+v", row)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeedIgnoresUnknownSymbols(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	NewFeed(store, nil, bus).Start(ctx)
	time.Sleep(20 * time.Millisecond)

	bus.Publish(events.EventStockTick, events.Tick{ListingType: db.ListingStock, Symbol: "GHOST", Price: 1})
	time.Sleep(50 * time.Millisecond)

	row, err := store.GetStock(context.Background(), "GHOST")
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	if row != nil {
		t.Fatalf("unknown symbol persisted: %+v", row)
	}
}

func TestMockFeedPublishesForSeededSymbols(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.UpsertStock(ctx, db.Stock{Symbol: "AAPL", Price: 100})

	bus := events.NewBus()
	ticks, unsub := bus.Subscribe(events.EventStockTick, 8)
	defer unsub()

	NewMockFeed(store, bus, 10*time.Millisecond, 1).Start(ctx)

	select {
	case payload := <-ticks:
		tick, ok := payload.(events.Tick)
		if !ok || tick.Symbol != "AAPL" {
			t.Fatalf("unexpected tick %+v", payload)
		}
		if tick.Price <= 0 {
			t.Fatalf("non-positive tick price %v", tick.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick published")
	}
}
