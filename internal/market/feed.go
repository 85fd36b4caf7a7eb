// Package market moves price ticks between the event bus and the reference
// store. Ticks update stored quotes and the quote cache only; order triggers
// are evaluated by each order's own execution tick, never by tick arrival.
package market

import (
	"context"
	"log"

	"exchange-core/internal/events"
	"exchange-core/pkg/cache"
	"exchange-core/pkg/db"
)

// Feed consumes tick events and writes them through to the store and cache.
type Feed struct {
	Store *db.Database
	Cache *cache.ShardedQuoteCache
	Bus   *events.Bus
}

// NewFeed wires a tick consumer.
func NewFeed(store *db.Database, quoteCache *cache.ShardedQuoteCache, bus *events.Bus) *Feed {
	return &Feed{Store: store, Cache: quoteCache, Bus: bus}
}

// Start consumes tick events until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) {
	forex, unsubForex := f.Bus.Subscribe(events.EventForexTick, 64)
	stocks, unsubStocks := f.Bus.Subscribe(events.EventStockTick, 64)

	go func() {
		defer unsubForex()
		defer unsubStocks()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-forex:
				if !ok {
					return
				}
				if tick, ok := payload.(events.Tick); ok {
					f.applyForex(ctx, tick)
				}
			case payload, ok := <-stocks:
				if !ok {
					return
				}
				if tick, ok := payload.(events.Tick); ok {
					f.applyStock(ctx, tick)
				}
			}
		}
	}()
}

func (f *Feed) applyForex(ctx context.Context, tick events.Tick) {
	row, err := f.Store.GetForex(ctx, tick.Symbol)
	if err != nil {
		log.Printf("market: load forex %s: %v", tick.Symbol, err)
		return
	}
	if row == nil {
		// Ticks for symbols outside the reference set are ignored.
		return
	}
	row.ExchangeRate = tick.Price
	row.AskPrice = tick.Ask
	row.BidPrice = tick.Bid
	if err := f.Store.UpsertForex(ctx, *row); err != nil {
		log.Printf("market: persist forex %s: %v", tick.Symbol, err)
		return
	}
	f.cacheSet(tick.Symbol, cache.Quote{Ask: tick.Ask, Bid: tick.Bid, Ref: tick.Price})
	log.Printf("market: forex tick %s rate=%.5f ask=%.5f bid=%.5f", tick.Symbol, tick.Price, tick.Ask, tick.Bid)
}

func (f *Feed) applyStock(ctx context.Context, tick events.Tick) {
	row, err := f.Store.GetStock(ctx, tick.Symbol)
	if err != nil {
		log.Printf("market: load stock %s: %v", tick.Symbol, err)
		return
	}
	if row == nil {
		return
	}
	row.Price = tick.Price
	if err := f.Store.UpsertStock(ctx, *row); err != nil {
		log.Printf("market: persist stock %s: %v", tick.Symbol, err)
		return
	}
	f.cacheSet(tick.Symbol, cache.Quote{Ask: tick.Price, Bid: tick.Price, Ref: tick.Price})
	log.Printf("market: stock tick %s price=%.4f", tick.Symbol, tick.Price)
}

func (f *Feed) cacheSet(symbol string, q cache.Quote) {
	if f.Cache != nil {
		f.Cache.Set(symbol, q)
	}
}
