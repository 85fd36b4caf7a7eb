// Package bets handles option bet placement and lifecycle. A bet wagers an
// amount on a dated option; the settlement scheduler applies its monetary
// outcome on the bet date.
package bets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"exchange-core/internal/events"
	"exchange-core/internal/userclient"
	"exchange-core/pkg/db"
)

var (
	// ErrInvalidDate means the bet date is in the past or after the option expiry.
	ErrInvalidDate = errors.New("bets: invalid bet date")
	// ErrOptionNotFound means the referenced option does not exist.
	ErrOptionNotFound = errors.New("bets: option not found")
	// ErrBetNotFound means the referenced bet does not exist.
	ErrBetNotFound = errors.New("bets: bet not found")
	// ErrNotOwner means the caller does not own the bet.
	ErrNotOwner = errors.New("bets: caller does not own this bet")
)

// ProfileService resolves the calling user.
type ProfileService interface {
	MyProfile(ctx context.Context, token string) (*userclient.Profile, error)
}

// Request is a client's bet submission.
type Request struct {
	Date   string  `json:"date"` // ISO date the bet settles on
	Amount float64 `json:"amount"`
}

// Service owns bet placement and rejection.
type Service struct {
	Store *db.Database
	Users ProfileService
	Bus   *events.Bus
	// now is injected for date-boundary tests.
	now func() time.Time
}

// NewService wires a bet service.
func NewService(store *db.Database, users ProfileService, bus *events.Bus) *Service {
	return &Service{Store: store, Users: users, Bus: bus, now: time.Now}
}

// Place validates and stores a bet on an option. The bet date must not be in
// the past and must not fall after the option's expiration date.
func (s *Service) Place(ctx context.Context, token, optionID string, req Request) (*db.OptionBet, error) {
	profile, err := s.Users.MyProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	option, err := s.Store.GetOption(ctx, optionID)
	if err != nil {
		return nil, fmt.Errorf("load option: %w", err)
	}
	if option == nil {
		return nil, ErrOptionNotFound
	}

	betDate, err := time.Parse(db.DateLayout, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
	}
	expiry, err := time.Parse(db.DateLayout, option.ExpirationDate)
	if err != nil {
		return nil, fmt.Errorf("option %s has malformed expiry %q: %v", option.ID, option.ExpirationDate, err)
	}
	today := s.today()
	if betDate.Before(today) || expiry.Before(betDate) {
		return nil, fmt.Errorf("%w: %s (expiry %s)", ErrInvalidDate, req.Date, option.ExpirationDate)
	}

	bet := db.OptionBet{
		ID:        uuid.NewString(),
		UserID:    profile.ID,
		Email:     profile.Email,
		Code:      SettlementCode(betDate, option.OptionType, option.Strike),
		Date:      betDate.Format(db.DateLayout),
		Amount:    req.Amount,
		OptionID:  option.ID,
		CreatedAt: s.now(),
	}
	if err := s.Store.CreateOptionBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("store bet: %w", err)
	}

	if s.Bus != nil {
		s.Bus.Publish(events.EventBetPlaced, bet)
	}
	return &bet, nil
}

// Reject deletes a bet; only its owner may do so.
func (s *Service) Reject(ctx context.Context, token, betID string) error {
	profile, err := s.Users.MyProfile(ctx, token)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	bet, err := s.Store.GetOptionBet(ctx, betID)
	if err != nil {
		return fmt.Errorf("load bet: %w", err)
	}
	if bet == nil {
		return ErrBetNotFound
	}
	if bet.UserID != profile.ID {
		return ErrNotOwner
	}
	return s.Store.DeleteOptionBet(ctx, betID)
}

// MyBets returns the caller's bets that have not matured yet.
func (s *Service) MyBets(ctx context.Context, token string) ([]db.OptionBet, error) {
	profile, err := s.Users.MyProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	all, err := s.Store.ListOptionBetsByUser(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	today := s.today().Format(db.DateLayout)
	var result []db.OptionBet
	for _, b := range all {
		if b.Date > today {
			result = append(result, b)
		}
	}
	return result, nil
}

// Options returns the reference option list.
func (s *Service) Options(ctx context.Context) ([]db.Option, error) {
	return s.Store.ListOptions(ctx)
}

// SettlementCode derives the bet's settlement code from its date, the option
// type and the strike: YYMMDD, then C or P, then the strike.
func SettlementCode(date time.Time, optionType string, strike float64) string {
	letter := "C"
	if optionType == db.OptionPut {
		letter = "P"
	}
	return fmt.Sprintf("%02d%02d%02d%s%s",
		date.Year()%100, int(date.Month()), date.Day(),
		letter, strconv.FormatFloat(strike, 'f', -1, 64))
}

func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
