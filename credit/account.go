package credit

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// ACCOUNT - Per-user balance view
// =============================================================================

// Account is the per-user facade over the ledger. Every read first runs the
// expiry sweep for the user as of today, so an expired lot never counts
// towards a balance or a consumption decision.
//
// An Account is bound to one Store. Inside a transaction, build it from the
// transaction's Store.
type Account struct {
	ledger *Ledger
	lots   *LotTracker
	clock  clock.Clock

	// OnExpire, if set, is called with the lots a sweep expired.
	OnExpire func(userID gym.UserID, lots []gym.Lot)
}

func NewAccount(store gym.LedgerStore, clk clock.Clock) *Account {
	ledger := NewLedger(store, clk)
	return &Account{
		ledger: ledger,
		lots:   NewLotTracker(ledger),
		clock:  clk,
	}
}

// Today returns the account's notion of the current day.
func (a *Account) Today() gym.Date {
	return clock.Today(a.clock)
}

// Sweep runs the expiry sweep for the user as of today.
func (a *Account) Sweep(ctx context.Context, userID gym.UserID) ([]gym.Lot, error) {
	expired, err := a.lots.ExpireDueLots(ctx, userID, a.Today())
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 && a.OnExpire != nil {
		a.OnExpire(userID, expired)
	}
	return expired, nil
}

// CreditBalance is the sum of every entry of the user after expiry.
func (a *Account) CreditBalance(ctx context.Context, userID gym.UserID) (int64, error) {
	if _, err := a.Sweep(ctx, userID); err != nil {
		return 0, err
	}
	sum, err := a.ledger.Store.SumByUser(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "sum user entries")
	}
	return sum, nil
}

// RemainingLots lists the user's consumable lots in FIFO order.
func (a *Account) RemainingLots(ctx context.Context, userID gym.UserID) ([]gym.Lot, error) {
	if _, err := a.Sweep(ctx, userID); err != nil {
		return nil, err
	}
	return a.lots.ActiveLots(ctx, userID)
}

// HasEnough reports whether the user can pay for the lesson.
func (a *Account) HasEnough(ctx context.Context, userID gym.UserID, lesson gym.Lesson) (bool, error) {
	balance, err := a.CreditBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return lesson.CreditCount <= balance, nil
}

// Consume draws the lesson's cost from the user's lots, oldest first, and
// records one Use entry per lot touched. The magnitudes of the returned
// entries always add up to lesson.CreditCount. On a shortage it returns an
// InsufficientCreditError and writes nothing.
func (a *Account) Consume(ctx context.Context, reservation gym.Reservation, lesson gym.Lesson) ([]gym.LedgerEntry, error) {
	balance, err := a.CreditBalance(ctx, reservation.UserID)
	if err != nil {
		return nil, err
	}
	if lesson.CreditCount > balance {
		return nil, &gym.InsufficientCreditError{
			UserID:    reservation.UserID,
			Available: balance,
			Requested: lesson.CreditCount,
		}
	}

	lots, err := a.lots.ActiveLots(ctx, reservation.UserID)
	if err != nil {
		return nil, err
	}

	// Plan first so a shortfall across lots writes nothing.
	needed := lesson.CreditCount
	type draw struct {
		lot    gym.LedgerEntry
		amount int64
	}
	var plan []draw
	for _, lot := range lots {
		if needed == 0 {
			break
		}
		amount := min(needed, lot.Remaining)
		plan = append(plan, draw{lot: lot.Entry, amount: amount})
		needed -= amount
	}
	if needed > 0 {
		// Balance counted refunds into expired lots that no active lot holds.
		return nil, &gym.InsufficientCreditError{
			UserID:    reservation.UserID,
			Available: lesson.CreditCount - needed,
			Requested: lesson.CreditCount,
		}
	}

	today := a.Today()
	message := reservation.CreditMessage(lesson)
	entries := make([]gym.LedgerEntry, 0, len(plan))
	for _, d := range plan {
		e, err := a.ledger.Append(ctx, NewUseEntry(d.lot, reservation.ID, d.amount, today, message))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Refund credits amount back into target for a cancellation.
func (a *Account) Refund(ctx context.Context, cancel gym.Reservation, lesson gym.Lesson, amount int64, target gym.LedgerEntry) (gym.LedgerEntry, error) {
	if !target.IsLot() {
		return gym.LedgerEntry{}, errors.Mark(errors.Newf("entry %s is not a purchase lot", target.ID), gym.ErrInvalidEntry)
	}
	return a.ledger.Append(ctx, NewRefundEntry(target, cancel.ID, amount, cancel.CreditMessage(lesson)))
}

// Grant records a purchase lot for the user.
func (a *Account) Grant(ctx context.Context, userID gym.UserID, policy *gym.PricePolicy, startDate gym.Date) (gym.LedgerEntry, error) {
	e, err := NewPurchaseEntry(PurchaseParams{UserID: userID, Policy: policy, StartDate: startDate})
	if err != nil {
		return gym.LedgerEntry{}, err
	}
	return a.ledger.Append(ctx, e)
}

// Entries lists the user's ledger, oldest first.
func (a *Account) Entries(ctx context.Context, userID gym.UserID) ([]gym.LedgerEntry, error) {
	if _, err := a.Sweep(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := a.ledger.Store.EntriesByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user entries")
	}
	return entries, nil
}
