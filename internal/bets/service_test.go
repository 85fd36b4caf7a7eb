package bets

import (
	"context"
	"errors"
	"testing"
	"time"

	"exchange-core/internal/userclient"
	"exchange-core/pkg/db"
)

type fixedProfile struct {
	profile userclient.Profile
}

func (f fixedProfile) MyProfile(context.Context, string) (*userclient.Profile, error) {
	p := f.profile
	return &p, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.ApplyMigrations(d); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	s := NewService(d, fixedProfile{profile: userclient.Profile{ID: "u1", Email: "trader@example.com"}}, nil)
	// Pin the clock so date-boundary assertions are stable.
	s.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	return s
}

func seedOption(t *testing.T, s *Service, opt db.Option) {
	t.Helper()
	if err := s.Store.UpsertOption(context.Background(), opt); err != nil {
		t.Fatalf("UpsertOption: %v", err)
	}
}

func TestPlaceBet(t *testing.T) {
	s := newTestService(t)
	seedOption(t, s, db.Option{ID: "opt1", Symbol: "AAPL", OptionType: db.OptionCall,
		Strike: 150, ExpirationDate: "2026-06-19", Price: 12.5})

	bet, err := s.Place(context.Background(), "tok", "opt1", Request{Date: "2026-04-01", Amount: 200})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if bet.UserID != "u1" || bet.OptionID != "opt1" || bet.Amount != 200 {
		t.Fatalf("unexpected bet %+v", bet)
	}
	if bet.Code != "260401C150" {
		t.Fatalf("code = %q, want 260401C150", bet.Code)
	}

	stored, err := s.Store.GetOptionBet(context.Background(), bet.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored bet missing: %v", err)
	}
	if stored.SettledAt != nil {
		t.Fatalf("new bet must be unsettled, got %v", stored.SettledAt)
	}
}

func TestPlaceBetDateBounds(t *testing.T) {
	s := newTestService(t)
	seedOption(t, s, db.Option{ID: "opt1", Symbol: "AAPL", OptionType: db.OptionCall,
		Strike: 150, ExpirationDate: "2026-06-19", Price: 12.5})

	cases := []struct {
		name string
		date string
	}{
		{"past", "2026-03-09"},
		{"after expiry", "2026-06-20"},
		{"malformed", "20260401"},
	}
	for _, tc := range cases {
		_, err := s.Place(context.Background(), "tok", "opt1", Request{Date: tc.date, Amount: 10})
		if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("%s (%s): err = %v, want ErrInvalidDate", tc.name, tc.date, err)
		}
	}

	// Today and the expiry day itself are both allowed.
	for _, date := range []string{"2026-03-10", "2026-06-19"} {
		if _, err := s.Place(context.Background(), "tok", "opt1", Request{Date: date, Amount: 10}); err != nil {
			t.Errorf("Place(%s): %v", date, err)
		}
	}
}

func TestPlaceBetUnknownOption(t *testing.T) {
	s := newTestService(t)
	_, err := s.Place(context.Background(), "tok", "missing", Request{Date: "2026-04-01", Amount: 10})
	if !errors.Is(err, ErrOptionNotFound) {
		t.Fatalf("err = %v, want ErrOptionNotFound", err)
	}
}

func TestSettlementCode(t *testing.T) {
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := SettlementCode(date, db.OptionCall, 99.5); got != "260105C99.5" {
		t.Fatalf("call code = %q", got)
	}
	if got := SettlementCode(date, db.OptionPut, 120); got != "260105P120" {
		t.Fatalf("put code = %q", got)
	}
}

func TestRejectOwnerOnly(t *testing.T) {
	s := newTestService(t)
	seedOption(t, s, db.Option{ID: "opt1", Symbol: "AAPL", OptionType: db.OptionPut,
		Strike: 100, ExpirationDate: "2026-06-19", Price: 8})

	bet, err := s.Place(context.Background(), "tok", "opt1", Request{Date: "2026-04-01", Amount: 50})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	// Another user's bet cannot be rejected by the caller.
	foreign := *bet
	foreign.ID = "foreign"
	foreign.UserID = "u2"
	if err := s.Store.CreateOptionBet(context.Background(), foreign); err != nil {
		t.Fatalf("CreateOptionBet: %v", err)
	}
	if err := s.Reject(context.Background(), "tok", "foreign"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	if err := s.Reject(context.Background(), "tok", bet.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	gone, err := s.Store.GetOptionBet(context.Background(), bet.ID)
	if err != nil {
		t.Fatalf("GetOptionBet: %v", err)
	}
	if gone != nil {
		t.Fatalf("bet still present after reject: %+v", gone)
	}

	if err := s.Reject(context.Background(), "tok", "missing"); !errors.Is(err, ErrBetNotFound) {
		t.Fatalf("err = %v, want ErrBetNotFound", err)
	}
}

func TestMyBetsFutureOnly(t *testing.T) {
	s := newTestService(t)
	seedOption(t, s, db.Option{ID: "opt1", Symbol: "AAPL", OptionType: db.OptionCall,
		Strike: 150, ExpirationDate: "2026-06-19", Price: 12.5})

	// One future bet via the service, one matured bet seeded directly.
	if _, err := s.Place(context.Background(), "tok", "opt1", Request{Date: "2026-04-01", Amount: 10}); err != nil {
		t.Fatalf("Place: %v", err)
	}
	matured := db.OptionBet{ID: "old", UserID: "u1", Email: "trader@example.com",
		Code: "260310C150", Date: "2026-03-10", Amount: 5, OptionID: "opt1", CreatedAt: time.Now()}
	if err := s.Store.CreateOptionBet(context.Background(), matured); err != nil {
		t.Fatalf("CreateOptionBet: %v", err)
	}

	bets, err := s.MyBets(context.Background(), "tok")
	if err != nil {
		t.Fatalf("MyBets: %v", err)
	}
	if len(bets) != 1 || bets[0].Date != "2026-04-01" {
		t.Fatalf("MyBets = %+v, want only the future bet", bets)
	}
}
