// Package admission decides whether a submitted order is rejected, held or
// approved, and hands approved orders to the execution engine.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"exchange-core/internal/events"
	"exchange-core/internal/userclient"
	"exchange-core/pkg/db"
)

var (
	// ErrOrderNotFound means the referenced order id does not exist.
	ErrOrderNotFound = errors.New("admission: order not found")
	// ErrNotAdministrator means the caller lacks the role for approve/reject.
	ErrNotAdministrator = errors.New("admission: administrator role required")
	// ErrInvalidRequest means the order request failed validation.
	ErrInvalidRequest = errors.New("admission: invalid order request")
)

// AccountService is the slice of the Account & Position Service admission needs.
type AccountService interface {
	MyProfile(ctx context.Context, token string) (*userclient.Profile, error)
	FindListing(ctx context.Context, token, userID, listingType, symbol string) (*userclient.Listing, error)
	ReduceDailyLimit(ctx context.Context, token, userID string, decrease float64) error
}

// PriceSource resolves the expected notional for an order request.
type PriceSource interface {
	Expected(ctx context.Context, listingType, symbol string, quantity int) (float64, error)
}

// Executor runs fill loops for approved orders.
type Executor interface {
	Start(o db.Order, token string) error
	Cancel(orderID string) bool
	Running(orderID string) bool
}

// OrderRequest is a client's order submission.
type OrderRequest struct {
	ListingType string  `json:"listing_type"`
	Symbol      string  `json:"symbol"`
	Action      string  `json:"action"`
	OrderType   string  `json:"order_type"`
	LimitValue  float64 `json:"limit_value"`
	StopValue   float64 `json:"stop_value"`
	Quantity    int     `json:"quantity"`
	AllOrNone   bool    `json:"all_or_none"`
}

// Validate checks the request shape before any collaborator is contacted.
func (r OrderRequest) Validate() error {
	if r.ListingType != db.ListingForex && r.ListingType != db.ListingStock {
		return fmt.Errorf("%w: listing type %q", ErrInvalidRequest, r.ListingType)
	}
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if r.Action != db.ActionBuy && r.Action != db.ActionSell {
		return fmt.Errorf("%w: action %q", ErrInvalidRequest, r.Action)
	}
	switch r.OrderType {
	case db.TypeMarket, db.TypeLimit, db.TypeStop, db.TypeStopLimit:
	default:
		return fmt.Errorf("%w: order type %q", ErrInvalidRequest, r.OrderType)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if (r.OrderType == db.TypeLimit || r.OrderType == db.TypeStopLimit) && r.LimitValue <= 0 {
		return fmt.Errorf("%w: limit value required for %s", ErrInvalidRequest, r.OrderType)
	}
	if (r.OrderType == db.TypeStop || r.OrderType == db.TypeStopLimit) && r.StopValue <= 0 {
		return fmt.Errorf("%w: stop value required for %s", ErrInvalidRequest, r.OrderType)
	}
	return nil
}

// Controller owns the admission decision.
type Controller struct {
	Store  *db.Database
	Users  AccountService
	Prices PriceSource
	Engine Executor
	Bus    *events.Bus
}

// NewController wires an admission controller.
func NewController(store *db.Database, users AccountService, prices PriceSource, engine Executor, bus *events.Bus) *Controller {
	return &Controller{Store: store, Users: users, Prices: prices, Engine: engine, Bus: bus}
}

// Admit validates the request against account state and assigns the initial
// status. Balance, limit and position shortfalls resolve to a status, never
// an error; only malformed requests and collaborator lookup failures abort
// the admission attempt.
func (c *Controller) Admit(ctx context.Context, req OrderRequest, token string) (*db.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	profile, err := c.Users.MyProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	expected, err := c.Prices.Expected(ctx, req.ListingType, req.Symbol, req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("resolve price: %w", err)
	}

	now := time.Now()
	order := db.Order{
		ID:                uuid.NewString(),
		UserID:            profile.ID,
		Email:             profile.Email,
		ListingType:       req.ListingType,
		Symbol:            req.Symbol,
		Action:            req.Action,
		OrderType:         req.OrderType,
		LimitValue:        req.LimitValue,
		StopValue:         req.StopValue,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		AllOrNone:         req.AllOrNone,
		ExpectedPrice:     expected,
		LastModified:      now,
		CreatedAt:         now,
	}

	switch {
	case profile.BankAccount.AccountBalance < expected:
		order.Status = db.StatusRejected
	case profile.BankAccount.DailyLimit-expected < 0:
		order.Status = db.StatusOnHold
	default:
		order.Status = db.StatusApproved
	}

	// A SELL of more than the held quantity is rejected regardless of the
	// balance/limit outcome.
	if req.Action == db.ActionSell {
		listing, err := c.Users.FindListing(ctx, token, profile.ID, req.ListingType, req.Symbol)
		if err != nil {
			return nil, fmt.Errorf("load listing: %w", err)
		}
		if listing == nil || listing.Quantity < req.Quantity {
			order.Status = db.StatusRejected
		}
	}

	if order.Status != db.StatusRejected {
		// Best effort; a failed limit reduction does not fail the admission.
		if err := c.Users.ReduceDailyLimit(ctx, token, profile.ID, expected); err != nil {
			log.Printf("admission: reduce daily limit for %s: %v", profile.ID, err)
		}
	}

	if err := c.Store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	if order.Status == db.StatusApproved {
		if err := c.Engine.Start(order, token); err != nil {
			log.Printf("admission: start execution for order %s: %v", order.ID, err)
		}
		c.publish(events.EventOrderAdmitted, order)
	} else {
		c.publish(events.EventOrderRejected, order)
	}

	return &order, nil
}

// Approve flips an order to APPROVED and (re)starts its execution task.
// Administrator only. Starting is skipped when a task is already running or
// the order has nothing left to fill.
func (c *Controller) Approve(ctx context.Context, token, orderID string) error {
	order, err := c.requireAdminAndOrder(ctx, token, orderID)
	if err != nil {
		return err
	}

	if err := c.Store.UpdateOrderStatus(ctx, orderID, db.StatusApproved); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	order.Status = db.StatusApproved

	if !order.Done && !c.Engine.Running(orderID) {
		if err := c.Engine.Start(*order, token); err != nil {
			return fmt.Errorf("start execution: %w", err)
		}
	}
	c.publish(events.EventOrderApproved, *order)
	return nil
}

// Reject flips an order to REJECTED and cancels its running execution task.
// Administrator only.
func (c *Controller) Reject(ctx context.Context, token, orderID string) error {
	if _, err := c.requireAdminAndOrder(ctx, token, orderID); err != nil {
		return err
	}

	c.Engine.Cancel(orderID)
	if err := c.Store.UpdateOrderStatus(ctx, orderID, db.StatusRejected); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	c.publish(events.EventOrderRejected, orderID)
	return nil
}

// AdminOrders returns all orders for an administrator caller.
func (c *Controller) AdminOrders(ctx context.Context, token string) ([]db.Order, error) {
	profile, err := c.Users.MyProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.Position != userclient.PositionAdministrator {
		return nil, ErrNotAdministrator
	}
	return c.Orders(ctx)
}

// Orders returns all orders with expected price recomputed at current prices.
func (c *Controller) Orders(ctx context.Context) ([]db.Order, error) {
	orders, err := c.Store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	c.refreshExpected(ctx, orders)
	return orders, nil
}

// UserOrders returns the calling user's orders.
func (c *Controller) UserOrders(ctx context.Context, token string) ([]db.Order, error) {
	profile, err := c.Users.MyProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	orders, err := c.Store.ListOrdersByUser(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	c.refreshExpected(ctx, orders)
	return orders, nil
}

func (c *Controller) refreshExpected(ctx context.Context, orders []db.Order) {
	for i := range orders {
		expected, err := c.Prices.Expected(ctx, orders[i].ListingType, orders[i].Symbol, orders[i].Quantity)
		if err != nil {
			continue // keep the stored value when the symbol cannot be priced
		}
		orders[i].ExpectedPrice = expected
	}
}

func (c *Controller) requireAdminAndOrder(ctx context.Context, token, orderID string) (*db.Order, error) {
	profile, err := c.Users.MyProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.Position != userclient.PositionAdministrator {
		return nil, ErrNotAdministrator
	}
	order, err := c.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (c *Controller) publish(e events.Event, payload any) {
	if c.Bus != nil {
		c.Bus.Publish(e, payload)
	}
}
