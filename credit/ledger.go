/*
Package credit implements the credit ledger: entry construction, purchase
lot tracking, and the per-user account facade.

ledger.go - Append-only ledger entries

PURPOSE:
  Every credit movement is a LedgerEntry. One entry type carries a kind
  discriminant; the constructors in this file are the only way entries are
  built, so kind-specific rules live in one place.

DERIVED FIELDS:
  Purchase:  EndDate = StartDate + policy.Period. Passing an EndDate is an
             error, it is never independently settable.
  Use:       StartDate = the day of consumption, SourceLotID = lot drawn from.
  Refund:    StartDate = the target lot's StartDate, SourceLotID = that lot.
  Expiry:    Purchase kind, Amount = -remaining, ExpiredLotID = the lot.

CORRECTIONS:
  Nothing is edited or deleted. A lot that lapses gets a reversing entry;
  a canceled reservation gets a refund entry.

EXAMPLE FLOW:
  1. Buy 800 credits:       Purchase +800 (lot A, ends start+30d)
  2. Reserve a 100 lesson:  Use -100 (source A)
  3. Cancel 10 days ahead:  Refund +100 (source A)
  4. Lot A lapses:          Purchase -800 (expired A), A.IsExpired = true

  Ledger: [+800, -100, +100, -800] = 0
*/
package credit

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// ENTRY CONSTRUCTORS
// =============================================================================

// PurchaseParams are the inputs of a purchase. EndDate exists only so that
// callers who try to set it get ErrEndDateDerived instead of silence.
type PurchaseParams struct {
	UserID    gym.UserID
	Policy    *gym.PricePolicy
	StartDate gym.Date
	EndDate   *gym.Date
}

// NewPurchaseEntry builds a purchase lot from a price policy.
func NewPurchaseEntry(p PurchaseParams) (gym.LedgerEntry, error) {
	if p.Policy == nil {
		return gym.LedgerEntry{}, gym.ErrPolicyRequired
	}
	if p.StartDate.IsZero() {
		return gym.LedgerEntry{}, gym.ErrStartDateRequired
	}
	if p.EndDate != nil {
		return gym.LedgerEntry{}, gym.ErrEndDateDerived
	}

	end := p.StartDate.AddDays(p.Policy.Period)
	return gym.LedgerEntry{
		ID:        newEntryID(),
		UserID:    p.UserID,
		Amount:    p.Policy.CreditCount,
		Kind:      gym.EntryPurchase,
		StartDate: p.StartDate,
		EndDate:   &end,
		PolicyID:  p.Policy.ID,
		Message:   p.Policy.CreditMessage(),
	}, nil
}

// NewUseEntry draws amount credits from lot for a reservation.
func NewUseEntry(lot gym.LedgerEntry, reservationID gym.ReservationID, amount int64, on gym.Date, message string) gym.LedgerEntry {
	return gym.LedgerEntry{
		ID:            newEntryID(),
		UserID:        lot.UserID,
		Amount:        -amount,
		Kind:          gym.EntryUse,
		StartDate:     on,
		ReservationID: reservationID,
		SourceLotID:   lot.ID,
		Message:       message,
	}
}

// NewRefundEntry returns amount credits into lot for a cancellation.
func NewRefundEntry(lot gym.LedgerEntry, cancelID gym.ReservationID, amount int64, message string) gym.LedgerEntry {
	return gym.LedgerEntry{
		ID:            newEntryID(),
		UserID:        lot.UserID,
		Amount:        amount,
		Kind:          gym.EntryRefund,
		StartDate:     lot.StartDate,
		PolicyID:      lot.PolicyID,
		ReservationID: cancelID,
		SourceLotID:   lot.ID,
		Message:       message,
	}
}

// NewExpiryEntry reverses whatever is left of lot.
func NewExpiryEntry(lot gym.LedgerEntry, remaining int64, on gym.Date) gym.LedgerEntry {
	return gym.LedgerEntry{
		ID:           newEntryID(),
		UserID:       lot.UserID,
		Amount:       -remaining,
		Kind:         gym.EntryPurchase,
		StartDate:    on,
		PolicyID:     lot.PolicyID,
		ExpiredLotID: lot.ID,
		Message:      lot.Message,
	}
}

func newEntryID() gym.EntryID {
	return gym.EntryID(uuid.NewString())
}

// =============================================================================
// LEDGER - Validated append on top of a LedgerStore
// =============================================================================

// Ledger is the only writer of entries. It has no Update or Delete.
type Ledger struct {
	Store gym.LedgerStore
	Clock clock.Clock
}

func NewLedger(store gym.LedgerStore, clk clock.Clock) *Ledger {
	return &Ledger{Store: store, Clock: clk}
}

// Append validates kind-specific rules and persists the entry, stamping
// CreatedAt when the caller left it zero.
func (l *Ledger) Append(ctx context.Context, e gym.LedgerEntry) (gym.LedgerEntry, error) {
	if err := Validate(e); err != nil {
		return gym.LedgerEntry{}, err
	}
	if e.CreatedAt.IsZero() && l.Clock != nil {
		e.CreatedAt = l.Clock.Now()
	}
	if err := l.Store.AppendEntry(ctx, e); err != nil {
		return gym.LedgerEntry{}, errors.Wrapf(err, "append %s entry", e.Kind)
	}
	return e, nil
}

// Validate checks the shape of an entry against its kind.
func Validate(e gym.LedgerEntry) error {
	if e.ID == "" || e.UserID == "" {
		return errors.Mark(errors.New("entry id and user are required"), gym.ErrInvalidEntry)
	}
	if !e.Kind.IsValid() {
		return errors.Mark(errors.Newf("unknown entry kind %q", e.Kind), gym.ErrInvalidEntry)
	}
	if e.StartDate.IsZero() {
		return gym.ErrStartDateRequired
	}

	switch e.Kind {
	case gym.EntryPurchase:
		if e.IsExpiryReversal() {
			if e.EndDate != nil || e.Amount > 0 {
				return errors.Mark(errors.New("expiry reversal must be non-positive with no end date"), gym.ErrInvalidEntry)
			}
			return nil
		}
		if e.PolicyID == "" {
			return gym.ErrPolicyRequired
		}
		if e.EndDate == nil || e.Amount <= 0 {
			return errors.Mark(errors.New("purchase lot needs a positive amount and an end date"), gym.ErrInvalidEntry)
		}
	case gym.EntryUse:
		if e.SourceLotID == "" || e.ReservationID == "" || e.Amount >= 0 {
			return errors.Mark(errors.New("use entry needs a source lot, a reservation and a negative amount"), gym.ErrInvalidEntry)
		}
	case gym.EntryRefund:
		if e.SourceLotID == "" || e.ReservationID == "" || e.Amount < 0 {
			return errors.Mark(errors.New("refund entry needs a source lot, a reservation and a non-negative amount"), gym.ErrInvalidEntry)
		}
	}
	if e.Kind != gym.EntryPurchase && (e.EndDate != nil || e.IsExpired) {
		return errors.Mark(errors.New("only purchase lots carry an end date or expiry flag"), gym.ErrInvalidEntry)
	}
	return nil
}
