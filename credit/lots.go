package credit

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// LOT TRACKER - Remaining balance per purchase lot
// =============================================================================

// LotTracker computes lot balances from the ledger. Nothing it returns is
// cached; every call re-reads entries.
type LotTracker struct {
	ledger *Ledger
}

func NewLotTracker(ledger *Ledger) *LotTracker {
	return &LotTracker{ledger: ledger}
}

// Remaining is the lot's own amount plus every Use and Refund entry that
// names it as source lot.
func (t *LotTracker) Remaining(ctx context.Context, lot gym.LedgerEntry) (int64, error) {
	linked, err := t.ledger.Store.SumBySourceLot(ctx, lot.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "sum entries of lot %s", lot.ID)
	}
	return lot.Amount + linked, nil
}

// ActiveLots returns the user's non-expired lots with a positive remaining
// balance, oldest start date first.
func (t *LotTracker) ActiveLots(ctx context.Context, userID gym.UserID) ([]gym.Lot, error) {
	lots, err := t.ledger.Store.Lots(ctx, gym.LotFilter{UserID: userID})
	if err != nil {
		return nil, errors.Wrap(err, "list lots")
	}

	var active []gym.Lot
	for _, lot := range lots {
		if lot.IsExpired {
			continue
		}
		remaining, err := t.Remaining(ctx, lot)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			active = append(active, gym.Lot{Entry: lot, Remaining: remaining})
		}
	}
	return active, nil
}

// ExpireDueLots reverses every non-expired lot whose end date is before
// asOf and flags it expired. Lots already flagged are skipped, so calling it
// again is a no-op. Returns the lots it expired.
func (t *LotTracker) ExpireDueLots(ctx context.Context, userID gym.UserID, asOf gym.Date) ([]gym.Lot, error) {
	due, err := t.ledger.Store.Lots(ctx, gym.LotFilter{UserID: userID, EndBefore: &asOf})
	if err != nil {
		return nil, errors.Wrap(err, "list due lots")
	}

	var expired []gym.Lot
	for _, lot := range due {
		if lot.IsExpired {
			continue
		}
		remaining, err := t.Remaining(ctx, lot)
		if err != nil {
			return nil, err
		}
		if _, err := t.ledger.Append(ctx, NewExpiryEntry(lot, remaining, asOf)); err != nil {
			return nil, err
		}
		if err := t.ledger.Store.MarkLotExpired(ctx, lot.ID); err != nil {
			return nil, errors.Wrapf(err, "mark lot %s expired", lot.ID)
		}
		expired = append(expired, gym.Lot{Entry: lot, Remaining: remaining})
	}
	return expired, nil
}
