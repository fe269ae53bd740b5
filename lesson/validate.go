package lesson

import (
	"github.com/cockroachdb/errors"

	"github.com/warp/gym-credit/gym"
)

// Validate checks a lesson before it is added to the catalog.
func Validate(l gym.Lesson) error {
	if !l.Gym.IsValid() {
		return errors.Mark(errors.Newf("unknown gym %q", l.Gym), gym.ErrInvalidLesson)
	}
	if !l.Type.IsValid() {
		return errors.Mark(errors.Newf("unknown lesson type %q", l.Type), gym.ErrInvalidLesson)
	}
	if l.CreditCount <= 0 {
		return errors.Mark(errors.New("credit count must be positive"), gym.ErrInvalidLesson)
	}
	if l.MaxCapacity < 0 {
		return errors.Mark(errors.New("max capacity must not be negative"), gym.ErrInvalidLesson)
	}
	if l.StartDate.IsZero() {
		return errors.Mark(errors.New("start date is required"), gym.ErrInvalidLesson)
	}
	if l.EndTime.Before(l.StartTime) {
		return gym.ErrInvalidEndTime
	}
	return nil
}
