package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMyProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/my-profile" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization=%q", got)
		}
		json.NewEncoder(w).Encode(Profile{
			ID:       "u-1",
			Email:    "u1@example.com",
			Position: PositionAdministrator,
			BankAccount: BankAccount{
				AccountBalance: 2000,
				DailyLimit:     500,
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	p, err := c.MyProfile(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("MyProfile: %v", err)
	}
	if p.ID != "u-1" || p.BankAccount.AccountBalance != 2000 || p.BankAccount.DailyLimit != 500 {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestBalanceMutationQueries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if r.Method != http.MethodPut {
			t.Errorf("method=%s", r.Method)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if err := c.DecreaseBalance(ctx, "tok", 12.5); err != nil {
		t.Fatalf("DecreaseBalance: %v", err)
	}
	if gotPath != "/users/decrease-balance" || gotQuery != "decreaseAccount=12.5" {
		t.Fatalf("got %s?%s", gotPath, gotQuery)
	}

	if err := c.IncreaseBalance(ctx, "tok", 7); err != nil {
		t.Fatalf("IncreaseBalance: %v", err)
	}
	if gotPath != "/users/increase-balance" || gotQuery != "increaseAccount=7" {
		t.Fatalf("got %s?%s", gotPath, gotQuery)
	}

	if err := c.ReduceDailyLimit(ctx, "tok", "u-9", 800); err != nil {
		t.Fatalf("ReduceDailyLimit: %v", err)
	}
	if gotPath != "/users/reduce-daily-limit" {
		t.Fatalf("got path %s", gotPath)
	}
}

func TestFindListingFiltersLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Listing{
			{ID: "l-1", ListingType: "FOREX", Symbol: "EURUSD", Quantity: 100},
			{ID: "l-2", ListingType: "STOCK", Symbol: "AAPL", Quantity: 30},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	l, err := c.FindListing(ctx, "tok", "u-1", "STOCK", "AAPL")
	if err != nil {
		t.Fatalf("FindListing: %v", err)
	}
	if l == nil || l.ID != "l-2" || l.Quantity != 30 {
		t.Fatalf("unexpected listing: %+v", l)
	}

	none, err := c.FindListing(ctx, "tok", "u-1", "STOCK", "MSFT")
	if err != nil {
		t.Fatalf("FindListing miss: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for unheld symbol, got %+v", none)
	}
}

func TestErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/my-profile":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if _, err := c.MyProfile(ctx, "tok"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := c.UpdateListing(ctx, "tok", "l-1", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Transport failure.
	srv.Close()
	if err := c.DecreaseBalance(ctx, "tok", 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on transport error, got %v", err)
	}
}
