// Package execution owns the fill loop for approved orders. Each order gets
// one cancellable task that samples prices, evaluates its trigger condition
// and pushes balance/position mutations to the Account & Position Service
// until the order is fully filled.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"exchange-core/internal/events"
	"exchange-core/internal/pricing"
	"exchange-core/internal/userclient"
	"exchange-core/pkg/db"
)

var (
	// ErrAlreadyRunning means a task for this order id is already active.
	// At most one task per order is an enforced invariant, not an assumption.
	ErrAlreadyRunning = errors.New("execution: task already running for order")
	// ErrClosed means the engine is shutting down and accepts no new tasks.
	ErrClosed = errors.New("execution: engine closed")
)

// AccountService is the slice of the Account & Position Service the fill
// loop mutates.
type AccountService interface {
	FindListing(ctx context.Context, token, userID, listingType, symbol string) (*userclient.Listing, error)
	CreateListing(ctx context.Context, token, userID string, l userclient.Listing) (*userclient.Listing, error)
	UpdateListing(ctx context.Context, token, listingID string, newQuantity int) (*userclient.Listing, error)
	DecreaseBalance(ctx context.Context, token string, amount float64) error
	IncreaseBalance(ctx context.Context, token string, amount float64) error
}

// PriceSource samples the current quote for a symbol.
type PriceSource interface {
	Quote(ctx context.Context, listingType, symbol string) (pricing.Quote, error)
}

// Engine schedules one fill task per approved order.
type Engine struct {
	store    *db.Database
	users    AccountService
	prices   PriceSource
	bus      *events.Bus
	interval time.Duration

	// Seeded source so fill simulation is reproducible; guarded because
	// rand.Rand is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	tasks  map[string]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewEngine builds an execution engine. interval is the poll tick; seed
// drives the fill-quantity source.
func NewEngine(store *db.Database, users AccountService, prices PriceSource, bus *events.Bus, interval time.Duration, seed int64) *Engine {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		users:    users,
		prices:   prices,
		bus:      bus,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]context.CancelFunc),
	}
}

// Start launches the fill task for an approved order. The caller's bearer
// token authenticates the task's collaborator calls for the life of the
// order.
func (e *Engine) Start(o db.Order, token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if _, ok := e.tasks[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, o.ID)
	}

	taskCtx, cancel := context.WithCancel(e.ctx)
	e.tasks[o.ID] = cancel
	e.wg.Add(1)
	go e.run(taskCtx, o, token)
	return nil
}

// Cancel stops the task for an order, if one is running.
func (e *Engine) Cancel(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.tasks[orderID]
	if !ok {
		return false
	}
	cancel()
	delete(e.tasks, orderID)
	return true
}

// Running reports whether a task is active for an order.
func (e *Engine) Running(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tasks[orderID]
	return ok
}

// Close cancels every task and waits for them to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, o db.Order, token string) {
	defer e.wg.Done()
	defer e.remove(o.ID)

	log.Printf("execution: order %s started (%s %s %s qty=%d)", o.ID, o.Action, o.OrderType, o.Symbol, o.Quantity)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	failures := 0
	for !o.Done {
		select {
		case <-ctx.Done():
			log.Printf("execution: order %s cancelled (remaining=%d)", o.ID, o.RemainingQuantity)
			return
		case <-ticker.C:
		}

		filled, err := e.tick(ctx, &o, token)
		if err != nil {
			failures++
			log.Printf("execution: order %s tick failed (%d consecutive): %v", o.ID, failures, err)
			continue
		}
		failures = 0
		_ = filled
	}

	log.Printf("execution: order %s fully filled", o.ID)
}

// tick runs one poll step. Ordering is the safety contract: sample price and
// evaluate the trigger before anything mutates, push the external balance
// and position mutations next, and only then decrement remaining quantity
// and persist. A tick that fails partway leaves local state untouched and
// is retried on the next tick.
func (e *Engine) tick(ctx context.Context, o *db.Order, token string) (bool, error) {
	qty := e.drawQuantity(o.RemainingQuantity)
	if o.AllOrNone && qty != o.RemainingQuantity {
		return false, nil
	}
	if qty == 0 {
		return false, nil
	}

	quote, err := e.prices.Quote(ctx, o.ListingType, o.Symbol)
	if err != nil {
		return false, fmt.Errorf("sample price: %w", err)
	}
	if !eligible(o, quote) {
		return false, nil
	}

	listing, err := e.ensureListing(ctx, o, token)
	if err != nil {
		return false, fmt.Errorf("resolve listing: %w", err)
	}

	newQuantity := listing.Quantity + qty
	if o.Action == db.ActionSell {
		newQuantity = listing.Quantity - qty
	}
	notional := quote.Ref * float64(qty)

	if o.Action == db.ActionBuy {
		err = e.users.DecreaseBalance(ctx, token, notional)
	} else {
		err = e.users.IncreaseBalance(ctx, token, notional)
	}
	if err != nil {
		return false, fmt.Errorf("update balance: %w", err)
	}

	if _, err := e.users.UpdateListing(ctx, token, listing.ID, newQuantity); err != nil {
		return false, fmt.Errorf("update listing: %w", err)
	}

	o.RemainingQuantity -= qty
	o.Done = o.RemainingQuantity == 0
	o.LastModified = time.Now()
	if err := e.store.UpdateOrderFill(ctx, o.ID, o.RemainingQuantity, o.Done, o.OrderType, o.LastModified); err != nil {
		// External state already moved; the stored row lags one tick.
		return true, fmt.Errorf("persist fill: %w", err)
	}

	if e.bus != nil {
		fill := events.Fill{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Action:    o.Action,
			Quantity:  qty,
			Remaining: o.RemainingQuantity,
			Notional:  notional,
		}
		if o.Done {
			e.bus.Publish(events.EventOrderFilled, fill)
		} else {
			e.bus.Publish(events.EventOrderPartiallyFilled, fill)
		}
	}
	return true, nil
}

// eligible evaluates the order-type trigger against one quote sample. A STOP
// order whose stop condition is met converts to MARKET permanently and fills
// on the same tick.
func eligible(o *db.Order, q pricing.Quote) bool {
	switch o.OrderType {
	case db.TypeMarket:
		return true
	case db.TypeLimit:
		return limitMet(o, q)
	case db.TypeStop:
		if stopMet(o, q) {
			o.OrderType = db.TypeMarket
			return true
		}
		return false
	case db.TypeStopLimit:
		return stopMet(o, q) && limitMet(o, q)
	}
	return false
}

func limitMet(o *db.Order, q pricing.Quote) bool {
	if o.Action == db.ActionBuy {
		return q.Ask <= o.LimitValue
	}
	return q.Bid >= o.LimitValue
}

func stopMet(o *db.Order, q pricing.Quote) bool {
	if o.Action == db.ActionBuy {
		return o.StopValue >= q.Ask
	}
	return o.StopValue <= q.Bid
}

// ensureListing fetches the user's holding for the order's symbol, creating
// a zero-quantity listing on first contact. Fetched fresh every tick; the
// Account & Position Service is the source of record and each read is a
// point-in-time snapshot.
func (e *Engine) ensureListing(ctx context.Context, o *db.Order, token string) (*userclient.Listing, error) {
	listing, err := e.users.FindListing(ctx, token, o.UserID, o.ListingType, o.Symbol)
	if err != nil {
		return nil, err
	}
	if listing != nil {
		return listing, nil
	}
	return e.users.CreateListing(ctx, token, o.UserID, userclient.Listing{
		ListingType: o.ListingType,
		Symbol:      o.Symbol,
		Quantity:    0,
	})
}

// drawQuantity samples a candidate fill uniformly from [0, remaining].
func (e *Engine) drawQuantity(remaining int) int {
	if remaining <= 0 {
		return 0
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(remaining + 1)
}

func (e *Engine) remove(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.tasks[orderID]; ok {
		cancel()
		delete(e.tasks, orderID)
	}
}
