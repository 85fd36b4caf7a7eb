package market

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"exchange-core/internal/events"
	"exchange-core/pkg/db"
)

// MockFeed publishes random-walk ticks for every symbol in the reference
// store. Used in development when no upstream market-data collaborator is
// configured.
type MockFeed struct {
	Store    *db.Database
	Bus      *events.Bus
	Interval time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockFeed builds a mock tick publisher.
func NewMockFeed(store *db.Database, bus *events.Bus, interval time.Duration, seed int64) *MockFeed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MockFeed{
		Store:    store,
		Bus:      bus,
		Interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Start publishes ticks until ctx is cancelled.
func (m *MockFeed) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.publishRound(ctx)
			}
		}
	}()
}

func (m *MockFeed) publishRound(ctx context.Context) {
	forex, err := m.Store.ListForex(ctx)
	if err != nil {
		log.Printf("market: mock feed list forex: %v", err)
	}
	for _, f := range forex {
		rate := m.walk(f.ExchangeRate)
		spread := rate * 0.001
		m.Bus.Publish(events.EventForexTick, events.Tick{
			ListingType: db.ListingForex,
			Symbol:      f.Symbol,
			Price:       rate,
			Ask:         rate + spread,
			Bid:         rate - spread,
		})
	}

	stocks, err := m.Store.ListStocks(ctx)
	if err != nil {
		log.Printf("market: mock feed list stocks: %v", err)
	}
	for _, s := range stocks {
		price := m.walk(s.Price)
		m.Bus.Publish(events.EventStockTick, events.Tick{
			ListingType: db.ListingStock,
			Symbol:      s.Symbol,
			Price:       price,
			Ask:         price,
			Bid:         price,
		})
	}
}

// walk perturbs a price by up to ±0.5%, floored above zero.
func (m *MockFeed) walk(price float64) float64 {
	m.mu.Lock()
	jitter := (m.rng.Float64() - 0.5) * 0.01
	m.mu.Unlock()

	next := price * (1 + jitter)
	if next <= 0 {
		return price
	}
	return next
}
