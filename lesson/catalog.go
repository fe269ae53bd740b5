/*
Package lesson holds the predicates the reservation flow asks about a lesson.

RULES:
  isFull:        holding reservations >= MaxCapacity
  isClosed:      now is past StartDate + StartTime (in the gym's timezone)
  isCancelable:  at least one whole calendar day before StartDate
  refund amount: days ahead >= 3 -> full cost
                 days ahead 1-2 -> cost / 2 (floor)
                 otherwise      -> ErrInvalidCancelDate

"Days ahead" is StartDate minus today, in calendar days. The time of day
does not matter: a lesson tomorrow at 06:00 is one day ahead at 23:59 today.
*/
package lesson

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/gym"
)

const (
	fullRefundDays    = 3
	partialRefundDays = 1
)

// Catalog answers capacity and timing questions about lessons.
type Catalog struct {
	reservations gym.ReservationStore
	clock        clock.Clock
	loc          *time.Location
}

// NewCatalog binds the predicates to a reservation store and a clock.
// loc is the timezone lesson start times are expressed in.
func NewCatalog(reservations gym.ReservationStore, clk clock.Clock, loc *time.Location) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	return &Catalog{reservations: reservations, clock: clk, loc: loc}
}

func (c *Catalog) IsFull(ctx context.Context, lesson gym.Lesson) (bool, error) {
	holding, err := c.reservations.CountHolding(ctx, lesson.ID)
	if err != nil {
		return false, errors.Wrapf(err, "count reservations of lesson %s", lesson.ID)
	}
	return holding >= lesson.MaxCapacity, nil
}

func (c *Catalog) IsClosed(lesson gym.Lesson) bool {
	return c.clock.Now().After(lesson.StartDate.At(lesson.StartTime, c.loc))
}

func (c *Catalog) IsCancelable(lesson gym.Lesson) bool {
	return c.daysAhead(lesson) >= partialRefundDays
}

// CancelRefundAmount returns how many credits a cancellation made today
// gives back.
func (c *Catalog) CancelRefundAmount(lesson gym.Lesson) (int64, error) {
	days := c.daysAhead(lesson)
	switch {
	case days >= fullRefundDays:
		return lesson.CreditCount, nil
	case days >= partialRefundDays:
		return lesson.CreditCount / 2, nil
	default:
		return 0, gym.ErrInvalidCancelDate
	}
}

func (c *Catalog) daysAhead(lesson gym.Lesson) int {
	today := gym.DateOf(c.clock.Now().In(c.loc))
	return today.DaysUntil(lesson.StartDate)
}
