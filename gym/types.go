/*
Package gym holds the core types of the gym credit engine.

PURPOSE:
  Users buy credit bundles (memberships) described by a PricePolicy, spend
  credits to reserve lessons, and get some or all of them back when they
  cancel. Every credit movement is a LedgerEntry; balances are never stored,
  they are always recomputed from entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - PricePolicy: Immutable catalog entry (name, price, credits, validity days)
  - LedgerEntry: Signed credit movement with a kind discriminant
  - Lesson: A bookable class with a cost, capacity, and start time
  - Reservation: Active booking or the Cancellation record that voids one
  - User: The identity that owns entries and reservations

LEDGER KINDS:
  Purchase  +N   One lot per membership purchase (has an end date)
  Purchase  -N   Expiry reversal of a lot (ExpiredLotID set, not a lot itself)
  Use       -N   Draw from a lot for a reservation (SourceLotID set)
  Refund    +N   Return to a lot on cancellation (SourceLotID set)

MUTABILITY:
  Entries and reservations are immutable except for two one-time writes:
  a lot's IsExpired flag (set together with its expiry reversal) and a
  reservation's CancelID link (set together with its Cancellation record).

SEE ALSO:
  - store.go: Persistence contract
  - credit/: Ledger constructors, lot tracking, balance facade
  - booking/: Reserve/cancel state machine
*/
package gym

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type PolicyID string
type EntryID string
type LessonID string
type ReservationID string

// =============================================================================
// PRICE POLICY - What a membership costs and grants
// =============================================================================

type PricePolicy struct {
	ID          PolicyID
	Name        string
	Price       decimal.Decimal
	CreditCount int64
	Period      int // validity in days
	CreatedAt   time.Time
}

func (p PricePolicy) CreditMessage() string {
	return p.Name + " membership purchase"
}

// =============================================================================
// LEDGER ENTRY - Atomic credit movement
// =============================================================================

type EntryKind string

const (
	EntryPurchase EntryKind = "purchase"
	EntryUse      EntryKind = "use"
	EntryRefund   EntryKind = "refund"
)

func (k EntryKind) IsValid() bool {
	switch k {
	case EntryPurchase, EntryUse, EntryRefund:
		return true
	default:
		return false
	}
}

type LedgerEntry struct {
	ID     EntryID
	UserID UserID
	Amount int64
	Kind   EntryKind

	StartDate Date
	EndDate   *Date // Purchase lots only, always derived

	PolicyID      PolicyID      // empty when not derived from a policy
	ReservationID ReservationID // Use/Refund

	// Purchase lots only
	IsExpired    bool
	ExpiredLotID EntryID // set on the expiry reversal, points at the lot

	// Use: lot drawn from. Refund: lot restored into.
	SourceLotID EntryID

	Message   string
	CreatedAt time.Time
}

// IsLot reports whether the entry is a purchase lot that credits can be
// drawn from. Expiry reversals share the Purchase kind but are not lots.
func (e LedgerEntry) IsLot() bool {
	return e.Kind == EntryPurchase && e.ExpiredLotID == ""
}

func (e LedgerEntry) IsExpiryReversal() bool {
	return e.Kind == EntryPurchase && e.ExpiredLotID != ""
}

// Lot pairs a purchase lot with its recomputed remaining balance.
type Lot struct {
	Entry     LedgerEntry
	Remaining int64
}

// =============================================================================
// LESSON
// =============================================================================

type Location string

const (
	GymSeoul Location = "seoul"
	GymBusan Location = "busan"
)

func (g Location) IsValid() bool {
	return g == GymSeoul || g == GymBusan
}

type LessonType string

const (
	LessonWeight   LessonType = "weight"
	LessonCrossFit LessonType = "crossfit"
	LessonSwim     LessonType = "swim"
	LessonYoga     LessonType = "yoga"
)

func (t LessonType) IsValid() bool {
	switch t {
	case LessonWeight, LessonCrossFit, LessonSwim, LessonYoga:
		return true
	default:
		return false
	}
}

type Lesson struct {
	ID          LessonID
	Gym         Location
	Type        LessonType
	CreditCount int64 // cost to reserve
	MaxCapacity int
	StartDate   Date
	StartTime   ClockTime
	EndTime     ClockTime
	CreatedAt   time.Time
}

// =============================================================================
// RESERVATION
// =============================================================================

type ReservationKind string

const (
	ReservationActive       ReservationKind = "active"
	ReservationCancellation ReservationKind = "cancellation"
)

type Reservation struct {
	ID       ReservationID
	UserID   UserID
	LessonID LessonID
	Kind     ReservationKind

	// CancelID is set on the original Active reservation once its
	// Cancellation record exists. Never set on the Cancellation itself.
	CancelID ReservationID

	CreatedAt time.Time
}

func (r Reservation) IsCanceled() bool { return r.CancelID != "" }

// IsHolding reports whether the reservation still occupies a seat.
func (r Reservation) IsHolding() bool {
	return r.Kind == ReservationActive && !r.IsCanceled()
}

// CreditMessage is the ledger message for entries tied to this reservation.
func (r Reservation) CreditMessage(lesson Lesson) string {
	if r.Kind == ReservationCancellation {
		return string(lesson.Type) + " lesson reservation cancel"
	}
	return string(lesson.Type) + " lesson reservation"
}

// =============================================================================
// USER
// =============================================================================

type User struct {
	ID          UserID
	Username    string
	PhoneNumber string
	IsAdmin     bool
	CreatedAt   time.Time
}
