/*
errors.go - Centralized error types for the credit engine

ERROR CATEGORIES:
  1. Capacity/timing:  ErrExceedMaxCapacity, ErrExceedLessonTime, ErrInvalidCancelDate
  2. Balance:          ErrNotEnoughCredit
  3. Duplicate action: ErrAlreadyRegistered, ErrAlreadyCanceled
  4. Authorization:    ErrNotYourReservation
  5. Type-state:       ErrInvalidReservationType
  6. Input:            ErrInvalidEndTime, ErrInvalidLesson, ErrInvalidPolicy, ...
  7. Lookup:           ErrXxxNotFound

All business-rule errors are final: they are returned unchanged to the
request boundary and are never retried.

USAGE:
  if errors.Is(err, gym.ErrNotEnoughCredit) { ... }
*/
package gym

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Reservation state machine
	ErrExceedMaxCapacity      = errors.New("lesson is at max capacity")
	ErrExceedLessonTime       = errors.New("lesson has already started")
	ErrAlreadyRegistered      = errors.New("already registered for this lesson")
	ErrNotEnoughCredit        = errors.New("not enough credit")
	ErrInvalidReservationType = errors.New("a cancellation cannot be canceled")
	ErrNotYourReservation     = errors.New("reservation belongs to another user")
	ErrAlreadyCanceled        = errors.New("reservation already canceled")
	ErrInvalidCancelDate      = errors.New("lessons cannot be canceled on or after the lesson day")

	// Ledger
	ErrEndDateDerived    = errors.New("end date is derived from the price policy and cannot be set")
	ErrPolicyRequired    = errors.New("purchase requires a price policy")
	ErrStartDateRequired = errors.New("purchase requires a start date")
	ErrInvalidEntry      = errors.New("invalid ledger entry")
	ErrLotAlreadyExpired = errors.New("lot already expired")
	ErrNoConsumedLot     = errors.New("reservation has no consumed lot to refund")

	// Input validation
	ErrInvalidEndTime = errors.New("lesson end time must not be before start time")
	ErrInvalidLesson  = errors.New("invalid lesson")
	ErrInvalidPolicy  = errors.New("invalid price policy")
	ErrInvalidUser    = errors.New("invalid user")
	ErrUsernameTaken  = errors.New("username already taken")

	// Lookup
	ErrUserNotFound        = errors.New("user not found")
	ErrPolicyNotFound      = errors.New("price policy not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrEntryNotFound       = errors.New("ledger entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientCreditError reports a balance shortage.
type InsufficientCreditError struct {
	UserID    UserID
	Available int64
	Requested int64
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("not enough credit: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientCreditError) Unwrap() error {
	return ErrNotEnoughCredit
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true for business-rule and input violations.
func IsClientError(err error) bool {
	return errors.IsAny(err,
		ErrExceedMaxCapacity,
		ErrExceedLessonTime,
		ErrAlreadyRegistered,
		ErrNotEnoughCredit,
		ErrInvalidReservationType,
		ErrAlreadyCanceled,
		ErrInvalidCancelDate,
		ErrEndDateDerived,
		ErrPolicyRequired,
		ErrStartDateRequired,
		ErrInvalidEntry,
		ErrInvalidEndTime,
		ErrInvalidLesson,
		ErrInvalidPolicy,
		ErrInvalidUser,
		ErrUsernameTaken,
	)
}

// IsForbidden returns true when the actor may not act on the target.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotYourReservation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.IsAny(err,
		ErrUserNotFound,
		ErrPolicyNotFound,
		ErrLessonNotFound,
		ErrReservationNotFound,
		ErrEntryNotFound,
	)
}
