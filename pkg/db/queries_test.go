package db

import (
	"context"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return d
}

func TestOrderRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	o := Order{
		ID:                "o-1",
		UserID:            "u-1",
		Email:             "u1@example.com",
		ListingType:       ListingStock,
		Symbol:            "AAPL",
		Action:            ActionBuy,
		OrderType:         TypeLimit,
		LimitValue:        100,
		Quantity:          10,
		RemainingQuantity: 10,
		ExpectedPrice:     800,
		Status:            StatusApproved,
		LastModified:      now,
		CreatedAt:         now,
	}
	if err := d.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := d.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got == nil {
		t.Fatal("GetOrder returned nil for existing order")
	}
	if got.Symbol != "AAPL" || got.RemainingQuantity != 10 || got.Status != StatusApproved {
		t.Fatalf("unexpected order: %+v", got)
	}

	if err := d.UpdateOrderFill(ctx, "o-1", 4, false, TypeMarket, now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateOrderFill: %v", err)
	}
	got, err = d.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("GetOrder after fill: %v", err)
	}
	if got.RemainingQuantity != 4 || got.Done || got.OrderType != TypeMarket {
		t.Fatalf("fill not applied: %+v", got)
	}

	if err := d.UpdateOrderFill(ctx, "o-1", 0, true, TypeMarket, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("UpdateOrderFill final: %v", err)
	}
	got, _ = d.GetOrder(ctx, "o-1")
	if got.RemainingQuantity != 0 || !got.Done {
		t.Fatalf("final fill not applied: %+v", got)
	}
}

func TestGetOrderMissing(t *testing.T) {
	d := newTestDB(t)
	got, err := d.GetOrder(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing order, got %+v", got)
	}
}

func TestListOrdersByUser(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, user := range []string{"u-1", "u-1", "u-2"} {
		o := Order{
			ID:                "o-" + string(rune('a'+i)),
			UserID:            user,
			Email:             user + "@example.com",
			ListingType:       ListingForex,
			Symbol:            "EURUSD",
			Action:            ActionBuy,
			OrderType:         TypeMarket,
			Quantity:          5,
			RemainingQuantity: 5,
			ExpectedPrice:     5.4,
			Status:            StatusApproved,
			LastModified:      now,
			CreatedAt:         now,
		}
		if err := d.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
	}

	mine, err := d.ListOrdersByUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("ListOrdersByUser: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders for u-1, got %d", len(mine))
	}
	all, err := d.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}
}

func TestUnsettledBetsDue(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	opt := Option{ID: "opt-1", Symbol: "AAPL", OptionType: OptionCall, Strike: 50, ExpirationDate: "2026-12-18", Price: 12}
	if err := d.UpsertOption(ctx, opt); err != nil {
		t.Fatalf("UpsertOption: %v", err)
	}

	bets := []OptionBet{
		{ID: "b-past", UserID: "u-1", Email: "a@x.com", Code: "260801C50", Date: "2026-08-01", Amount: 10, OptionID: "opt-1"},
		{ID: "b-today", UserID: "u-1", Email: "a@x.com", Code: "260828C50", Date: "2026-08-28", Amount: 20, OptionID: "opt-1"},
		{ID: "b-future", UserID: "u-2", Email: "b@x.com", Code: "261001C50", Date: "2026-10-01", Amount: 30, OptionID: "opt-1"},
	}
	for _, b := range bets {
		if err := d.CreateOptionBet(ctx, b); err != nil {
			t.Fatalf("CreateOptionBet %s: %v", b.ID, err)
		}
	}

	due, err := d.ListUnsettledBetsDue(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("ListUnsettledBetsDue: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due bets, got %d", len(due))
	}

	if err := d.MarkBetSettled(ctx, "b-past", time.Now()); err != nil {
		t.Fatalf("MarkBetSettled: %v", err)
	}
	due, err = d.ListUnsettledBetsDue(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("ListUnsettledBetsDue after settle: %v", err)
	}
	if len(due) != 1 || due[0].ID != "b-today" {
		t.Fatalf("expected only b-today due, got %+v", due)
	}

	got, err := d.GetOptionBet(ctx, "b-past")
	if err != nil {
		t.Fatalf("GetOptionBet: %v", err)
	}
	if got.SettledAt == nil {
		t.Fatal("expected settled_at to be stamped")
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	f := Forex{Symbol: "EURUSD", FromCurrency: "EUR", ToCurrency: "USD", ExchangeRate: 1.08, AskPrice: 1.0815, BidPrice: 1.0805}
	if err := d.UpsertForex(ctx, f); err != nil {
		t.Fatalf("UpsertForex: %v", err)
	}
	f.AskPrice = 1.09
	if err := d.UpsertForex(ctx, f); err != nil {
		t.Fatalf("UpsertForex update: %v", err)
	}
	got, err := d.GetForex(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("GetForex: %v", err)
	}
	if got == nil || got.AskPrice != 1.09 {
		t.Fatalf("unexpected forex row: %+v", got)
	}

	if err := d.UpsertStock(ctx, Stock{Symbol: "AAPL", Price: 190.5}); err != nil {
		t.Fatalf("UpsertStock: %v", err)
	}
	s, err := d.GetStock(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	if s == nil || s.Price != 190.5 {
		t.Fatalf("unexpected stock row: %+v", s)
	}
	if missing, _ := d.GetStock(ctx, "MSFT"); missing != nil {
		t.Fatalf("expected nil for missing stock, got %+v", missing)
	}
}
