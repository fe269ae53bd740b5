/*
Package booking is the entry point to the credit engine: every exposed
operation runs as one unit of work on a gym.TxStore.

service.go - Service wiring, purchases, balances

OPERATIONS:
  BuyCredit      Purchase a membership lot from a price policy
  Reserve        Book a lesson, paying with credits (reservation.go)
  Cancel         Cancel a booking, refunding part or all of it (reservation.go)
  CreditBalance  Current balance after the expiry sweep
  RemainingLots  Consumable lots in FIFO order
  Entries        Full ledger of a user
  ExpireLots     Run the expiry sweep now
  ExpireAll      Run the expiry sweep for every user

UNIT OF WORK:
  Each call opens exactly one WithTx. The credit.Account and lesson.Catalog
  used inside are bound to the transaction's Store, so the capacity check,
  the reservation insert and the Use entries commit or vanish together.
  Reads run in a transaction too: the expiry sweep they trigger writes.

EXAMPLE:
  svc := booking.New(store, clock.NewRealClock(seoul), seoul, logger)

  lot, err := svc.BuyCredit(ctx, userID, policyID, today)
  res, err := svc.Reserve(ctx, userID, lessonID)
  cancel, err := svc.Cancel(ctx, res.ID, userID)
*/
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/credit"
	"github.com/warp/gym-credit/gym"
	"github.com/warp/gym-credit/lesson"
	"github.com/warp/gym-credit/metrics"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store    gym.TxStore
	Clock    clock.Clock
	Location *time.Location
	Logger   *slog.Logger
}

func New(store gym.TxStore, clk clock.Clock, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Clock: clk, Location: loc, Logger: logger}
}

// inTx runs fn as one unit of work with a credit facade bound to the
// transaction. Expiry metrics and logs are emitted only after commit.
func (s *Service) inTx(ctx context.Context, fn func(tx gym.Store, acc *credit.Account) error) error {
	type sweep struct {
		userID gym.UserID
		lots   []gym.Lot
	}
	var swept []sweep

	err := s.Store.WithTx(ctx, func(tx gym.Store) error {
		swept = swept[:0]
		acc := credit.NewAccount(tx, s.Clock)
		acc.OnExpire = func(userID gym.UserID, lots []gym.Lot) {
			swept = append(swept, sweep{userID: userID, lots: lots})
		}
		return fn(tx, acc)
	})
	if err != nil {
		return err
	}
	for _, sw := range swept {
		s.recordExpiry(sw.userID, sw.lots)
	}
	return nil
}

func (s *Service) catalog(store gym.Store) *lesson.Catalog {
	return lesson.NewCatalog(store, s.Clock, s.Location)
}

func (s *Service) recordExpiry(userID gym.UserID, lots []gym.Lot) {
	for _, lot := range lots {
		metrics.LotsExpired.Inc()
		metrics.CreditsExpired.Add(float64(lot.Remaining))
		s.Logger.Info("lot expired",
			"user_id", userID,
			"lot_id", lot.Entry.ID,
			"end_date", lot.Entry.EndDate,
			"remaining", lot.Remaining,
		)
	}
}

// Today is the current calendar day in the gym's timezone.
func (s *Service) Today() gym.Date {
	return gym.DateOf(s.Clock.Now().In(s.Location))
}

// =============================================================================
// PURCHASES
// =============================================================================

// BuyCredit records a membership purchase. A zero startDate means today.
func (s *Service) BuyCredit(ctx context.Context, userID gym.UserID, policyID gym.PolicyID, startDate gym.Date) (gym.LedgerEntry, error) {
	if startDate.IsZero() {
		startDate = s.Today()
	}

	var lot gym.LedgerEntry
	err := s.inTx(ctx, func(tx gym.Store, acc *credit.Account) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		policy, err := tx.GetPolicy(ctx, policyID)
		if err != nil {
			return err
		}
		lot, err = acc.Grant(ctx, userID, policy, startDate)
		return err
	})
	if err != nil {
		return gym.LedgerEntry{}, err
	}

	metrics.CreditsGranted.Add(float64(lot.Amount))
	s.Logger.Info("credit purchased",
		"user_id", userID,
		"policy_id", policyID,
		"lot_id", lot.ID,
		"amount", lot.Amount,
		"end_date", lot.EndDate,
	)
	return lot, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Service) CreditBalance(ctx context.Context, userID gym.UserID) (int64, error) {
	var balance int64
	err := s.inTx(ctx, func(_ gym.Store, acc *credit.Account) error {
		var err error
		balance, err = acc.CreditBalance(ctx, userID)
		return err
	})
	return balance, err
}

func (s *Service) RemainingLots(ctx context.Context, userID gym.UserID) ([]gym.Lot, error) {
	var lots []gym.Lot
	err := s.inTx(ctx, func(_ gym.Store, acc *credit.Account) error {
		var err error
		lots, err = acc.RemainingLots(ctx, userID)
		return err
	})
	return lots, err
}

func (s *Service) Entries(ctx context.Context, userID gym.UserID) ([]gym.LedgerEntry, error) {
	var entries []gym.LedgerEntry
	err := s.inTx(ctx, func(tx gym.Store, acc *credit.Account) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		entries, err = acc.Entries(ctx, userID)
		return err
	})
	return entries, err
}

// ExpireLots runs the expiry sweep for a user and returns what it expired.
func (s *Service) ExpireLots(ctx context.Context, userID gym.UserID) ([]gym.Lot, error) {
	var expired []gym.Lot
	err := s.inTx(ctx, func(tx gym.Store, acc *credit.Account) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		expired, err = acc.Sweep(ctx, userID)
		return err
	})
	return expired, err
}

// SweepResult summarizes an ExpireAll run.
type SweepResult struct {
	Users  int
	Lots   int
	Failed map[gym.UserID]error
}

// ExpireAll runs the expiry sweep for every user, one transaction per user.
// A failing user does not stop the others; it is reported in Failed.
func (s *Service) ExpireAll(ctx context.Context) (SweepResult, error) {
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Users: len(users)}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		expired, err := s.ExpireLots(ctx, u.ID)
		if err != nil {
			if result.Failed == nil {
				result.Failed = make(map[gym.UserID]error)
			}
			result.Failed[u.ID] = err
			continue
		}
		result.Lots += len(expired)
	}
	return result, nil
}
