package pricing

import (
	"context"
	"errors"
	"fmt"

	"exchange-core/pkg/cache"
	"exchange-core/pkg/db"
)

// ErrUnknownSymbol means the symbol has no reference row for its class.
var ErrUnknownSymbol = errors.New("pricing: unknown symbol")

// Quote is one price sample. Ask/Bid drive trigger evaluation; Ref is the
// reference price used for expected-price and notional calculations
// (exchange rate for forex, last price for equities).
type Quote struct {
	Ask float64
	Bid float64
	Ref float64
}

// MarketData refreshes a reference row from the upstream market-data
// collaborator before it is read. Optional; without it the resolver serves
// whatever the store holds.
type MarketData interface {
	RefreshForex(ctx context.Context, f *db.Forex) error
	RefreshStock(ctx context.Context, s *db.Stock) error
}

// Resolver reads current reference prices from the local store, optionally
// refreshing them first, and write-through caches each sample.
type Resolver struct {
	store  *db.Database
	cache  *cache.ShardedQuoteCache
	market MarketData
}

// NewResolver builds a resolver; market may be nil.
func NewResolver(store *db.Database, quoteCache *cache.ShardedQuoteCache, market MarketData) *Resolver {
	return &Resolver{store: store, cache: quoteCache, market: market}
}

// Quote samples the current price for a symbol. Ask, bid and reference come
// from the same read so one execution tick never mixes two samples.
func (r *Resolver) Quote(ctx context.Context, listingType, symbol string) (Quote, error) {
	switch listingType {
	case db.ListingForex:
		f, err := r.store.GetForex(ctx, symbol)
		if err != nil {
			return Quote{}, fmt.Errorf("load forex %s: %w", symbol, err)
		}
		if f == nil {
			return Quote{}, fmt.Errorf("%w: forex %s", ErrUnknownSymbol, symbol)
		}
		if r.market != nil {
			if err := r.market.RefreshForex(ctx, f); err != nil {
				return Quote{}, fmt.Errorf("refresh forex %s: %w", symbol, err)
			}
			if err := r.store.UpsertForex(ctx, *f); err != nil {
				return Quote{}, fmt.Errorf("persist forex %s: %w", symbol, err)
			}
		}
		q := Quote{Ask: f.AskPrice, Bid: f.BidPrice, Ref: f.ExchangeRate}
		r.cacheSet(symbol, q)
		return q, nil

	case db.ListingStock:
		s, err := r.store.GetStock(ctx, symbol)
		if err != nil {
			return Quote{}, fmt.Errorf("load stock %s: %w", symbol, err)
		}
		if s == nil {
			return Quote{}, fmt.Errorf("%w: stock %s", ErrUnknownSymbol, symbol)
		}
		if r.market != nil {
			if err := r.market.RefreshStock(ctx, s); err != nil {
				return Quote{}, fmt.Errorf("refresh stock %s: %w", symbol, err)
			}
			if err := r.store.UpsertStock(ctx, *s); err != nil {
				return Quote{}, fmt.Errorf("persist stock %s: %w", symbol, err)
			}
		}
		q := Quote{Ask: s.Price, Bid: s.Price, Ref: s.Price}
		r.cacheSet(symbol, q)
		return q, nil

	default:
		return Quote{}, fmt.Errorf("pricing: unsupported listing type %q", listingType)
	}
}

// Expected returns the reference notional for a quantity, used by admission.
func (r *Resolver) Expected(ctx context.Context, listingType, symbol string, quantity int) (float64, error) {
	q, err := r.Quote(ctx, listingType, symbol)
	if err != nil {
		return 0, err
	}
	return q.Ref * float64(quantity), nil
}

// Cached returns the last sampled quote without touching the store.
func (r *Resolver) Cached(symbol string) (Quote, bool) {
	if r.cache == nil {
		return Quote{}, false
	}
	q, ok := r.cache.Get(symbol)
	if !ok {
		return Quote{}, false
	}
	return Quote{Ask: q.Ask, Bid: q.Bid, Ref: q.Ref}, true
}

func (r *Resolver) cacheSet(symbol string, q Quote) {
	if r.cache == nil {
		return
	}
	r.cache.Set(symbol, cache.Quote{Ask: q.Ask, Bid: q.Bid, Ref: q.Ref})
}
