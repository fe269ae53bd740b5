/*
reservation.go - Reservation state machine

STATES:
  ┌──────────┐   cancel    ┌──────────────────────────┐
  │  Active  │ ──────────▶ │ Active (CancelID linked) │
  └──────────┘             └────────────┬─────────────┘
                                        │ creates
                                        ▼
                              ┌──────────────────┐
                              │   Cancellation   │  terminal
                              └──────────────────┘

RESERVE (checks in this order, first failure wins):
  1. lesson full            -> ErrExceedMaxCapacity
  2. lesson already started -> ErrExceedLessonTime
  3. user already holds one -> ErrAlreadyRegistered
  4. balance below cost     -> ErrNotEnoughCredit
  then: insert Active reservation, consume credits FIFO.

CANCEL (checks in this order):
  1. record is a Cancellation -> ErrInvalidReservationType
  2. actor is not the owner   -> ErrNotYourReservation
  3. already linked           -> ErrAlreadyCanceled
  4. lesson day reached       -> ErrInvalidCancelDate
  then: insert Cancellation, refund into the lot the first Use entry
  drew from, link CancelID on the original.

The refund target is the first Use entry's lot even when that lot has
since expired or drained. Its balance rises but an expired lot is never
drawn from again.
*/
package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/warp/gym-credit/credit"
	"github.com/warp/gym-credit/gym"
	"github.com/warp/gym-credit/metrics"
)

// =============================================================================
// RESERVE
// =============================================================================

// Reserve books lessonID for userID and pays for it.
func (s *Service) Reserve(ctx context.Context, userID gym.UserID, lessonID gym.LessonID) (gym.Reservation, error) {
	started := time.Now()

	var (
		reservation gym.Reservation
		used        []gym.LedgerEntry
	)
	err := s.inTx(ctx, func(tx gym.Store, acc *credit.Account) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		l, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		catalog := s.catalog(tx)

		full, err := catalog.IsFull(ctx, *l)
		if err != nil {
			return err
		}
		if full {
			return gym.ErrExceedMaxCapacity
		}
		if catalog.IsClosed(*l) {
			return gym.ErrExceedLessonTime
		}
		holding, err := tx.HasHolding(ctx, l.ID, userID)
		if err != nil {
			return errors.Wrap(err, "check existing reservation")
		}
		if holding {
			return gym.ErrAlreadyRegistered
		}
		enough, err := acc.HasEnough(ctx, userID, *l)
		if err != nil {
			return err
		}
		if !enough {
			return gym.ErrNotEnoughCredit
		}

		reservation = gym.Reservation{
			ID:        gym.ReservationID(uuid.NewString()),
			UserID:    userID,
			LessonID:  l.ID,
			Kind:      gym.ReservationActive,
			CreatedAt: s.Clock.Now(),
		}
		if err := tx.CreateReservation(ctx, reservation); err != nil {
			return errors.Wrap(err, "create reservation")
		}

		used, err = acc.Consume(ctx, reservation, *l)
		return err
	})
	metrics.Observe("reserve", resultLabel(err), started)
	if err != nil {
		s.Logger.Info("reserve rejected", "user_id", userID, "lesson_id", lessonID, "error", err)
		return gym.Reservation{}, err
	}

	var total int64
	for _, e := range used {
		total -= e.Amount
	}
	metrics.CreditsConsumed.Add(float64(total))
	s.Logger.Info("lesson reserved",
		"user_id", userID,
		"lesson_id", lessonID,
		"reservation_id", reservation.ID,
		"credits", total,
		"lots", len(used),
	)
	return reservation, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel voids reservationID on behalf of actor and returns the new
// Cancellation record.
func (s *Service) Cancel(ctx context.Context, reservationID gym.ReservationID, actor gym.UserID) (gym.Reservation, error) {
	started := time.Now()

	var (
		cancellation gym.Reservation
		refund       gym.LedgerEntry
	)
	err := s.inTx(ctx, func(tx gym.Store, acc *credit.Account) error {
		original, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if original.Kind == gym.ReservationCancellation {
			return gym.ErrInvalidReservationType
		}
		if original.UserID != actor {
			return gym.ErrNotYourReservation
		}
		if original.IsCanceled() {
			return gym.ErrAlreadyCanceled
		}

		l, err := tx.GetLesson(ctx, original.LessonID)
		if err != nil {
			return err
		}
		catalog := s.catalog(tx)
		if !catalog.IsCancelable(*l) {
			return gym.ErrInvalidCancelDate
		}
		amount, err := catalog.CancelRefundAmount(*l)
		if err != nil {
			return err
		}

		cancellation = gym.Reservation{
			ID:        gym.ReservationID(uuid.NewString()),
			UserID:    original.UserID,
			LessonID:  original.LessonID,
			Kind:      gym.ReservationCancellation,
			CreatedAt: s.Clock.Now(),
		}
		if err := tx.CreateReservation(ctx, cancellation); err != nil {
			return errors.Wrap(err, "create cancellation")
		}

		target, err := consumedLot(ctx, tx, original.ID)
		if err != nil {
			return err
		}
		refund, err = acc.Refund(ctx, cancellation, *l, amount, *target)
		if err != nil {
			return err
		}

		return tx.LinkCancellation(ctx, original.ID, cancellation.ID)
	})
	metrics.Observe("cancel", resultLabel(err), started)
	if err != nil {
		s.Logger.Info("cancel rejected", "user_id", actor, "reservation_id", reservationID, "error", err)
		return gym.Reservation{}, err
	}

	metrics.CreditsRefunded.Add(float64(refund.Amount))
	s.Logger.Info("reservation canceled",
		"user_id", actor,
		"reservation_id", reservationID,
		"cancellation_id", cancellation.ID,
		"refund", refund.Amount,
		"lot_id", refund.SourceLotID,
	)
	return cancellation, nil
}

// consumedLot finds the lot the reservation's first Use entry drew from.
func consumedLot(ctx context.Context, store gym.LedgerStore, reservationID gym.ReservationID) (*gym.LedgerEntry, error) {
	uses, err := store.EntriesByReservation(ctx, reservationID, gym.EntryUse)
	if err != nil {
		return nil, errors.Wrap(err, "list use entries")
	}
	if len(uses) == 0 {
		return nil, gym.ErrNoConsumedLot
	}
	lot, err := store.GetEntry(ctx, uses[0].SourceLotID)
	if err != nil {
		return nil, errors.Wrapf(err, "load lot %s", uses[0].SourceLotID)
	}
	return lot, nil
}

// resultLabel maps an outcome to a low-cardinality metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gym.ErrExceedMaxCapacity):
		return "full"
	case errors.Is(err, gym.ErrExceedLessonTime):
		return "closed"
	case errors.Is(err, gym.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, gym.ErrNotEnoughCredit):
		return "not_enough_credit"
	case errors.Is(err, gym.ErrInvalidReservationType):
		return "invalid_type"
	case errors.Is(err, gym.ErrNotYourReservation):
		return "forbidden"
	case errors.Is(err, gym.ErrAlreadyCanceled):
		return "already_canceled"
	case errors.Is(err, gym.ErrInvalidCancelDate):
		return "invalid_cancel_date"
	case gym.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
