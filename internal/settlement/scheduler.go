package settlement

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"exchange-core/internal/events"
	"exchange-core/pkg/db"
)

// AccountService is the slice of the Account & Position Service settlement
// mutates.
type AccountService interface {
	DecreaseBalance(ctx context.Context, token string, amount float64) error
	IncreaseBalance(ctx context.Context, token string, amount float64) error
}

// Scheduler settles matured option bets once a day. Each run also sweeps
// past-due bets whose earlier settlement attempts failed.
type Scheduler struct {
	Store  *db.Database
	Users  AccountService
	Signer *Signer
	Bus    *events.Bus
	// now is injected for date-boundary tests.
	now func() time.Time
}

// NewScheduler wires a settlement scheduler.
func NewScheduler(store *db.Database, users AccountService, signer *Signer, bus *events.Bus) *Scheduler {
	return &Scheduler{Store: store, Users: users, Signer: signer, Bus: bus, now: time.Now}
}

// Start runs the daily settlement loop until ctx is cancelled. The first run
// fires immediately to catch bets that matured while the process was down,
// then one run per midnight.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		if err := s.Run(ctx, s.today()); err != nil {
			log.Printf("settlement: startup run: %v", err)
		}
		for {
			next := s.nextMidnight()
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if err := s.Run(ctx, s.today()); err != nil {
				log.Printf("settlement: daily run: %v", err)
			}
		}
	}()
}

// Run settles every unsettled bet due on or before day. CALL bets debit the
// bettor by the option price, PUT bets credit it. A bet is marked settled
// only after its balance mutation succeeds; failed bets stay due for the next
// run.
func (s *Scheduler) Run(ctx context.Context, day string) error {
	due, err := s.Store.ListUnsettledBetsDue(ctx, day)
	if err != nil {
		return fmt.Errorf("list due bets: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	log.Printf("settlement: %d bet(s) due on or before %s", len(due), day)

	var failed []string
	for _, bet := range due {
		if err := s.settle(ctx, bet); err != nil {
			log.Printf("settlement: bet %s: %v", bet.ID, err)
			failed = append(failed, bet.ID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("settle bets %s", strings.Join(failed, ", "))
	}
	return nil
}

func (s *Scheduler) settle(ctx context.Context, bet db.OptionBet) error {
	option, err := s.Store.GetOption(ctx, bet.OptionID)
	if err != nil {
		return fmt.Errorf("load option: %w", err)
	}
	if option == nil {
		return fmt.Errorf("option %s not found", bet.OptionID)
	}

	token, err := s.Signer.Mint(bet.UserID, bet.Email)
	if err != nil {
		return err
	}

	if option.OptionType == db.OptionCall {
		err = s.Users.DecreaseBalance(ctx, token, option.Price)
	} else {
		err = s.Users.IncreaseBalance(ctx, token, option.Price)
	}
	if err != nil {
		return fmt.Errorf("apply outcome: %w", err)
	}

	if err := s.Store.MarkBetSettled(ctx, bet.ID, s.now()); err != nil {
		// Balance already moved; the next run would settle twice. Surface loudly.
		return fmt.Errorf("mark settled after balance mutation: %w", err)
	}

	if s.Bus != nil {
		s.Bus.Publish(events.EventBetSettled, bet)
	}
	log.Printf("settlement: bet %s (%s) settled, %s %.2f", bet.ID, bet.Code, option.OptionType, option.Price)
	return nil
}

func (s *Scheduler) today() string {
	return s.now().Format(db.DateLayout)
}

func (s *Scheduler) nextMidnight() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.now().Location()).AddDate(0, 0, 1)
}
