/*
store.go - Persistence contract for the credit engine

PURPOSE:
  Defines what the core needs from a database: create, filter by equality,
  filter by date range, aggregate sums, and ordering. The core never sees
  SQL; it talks to these interfaces.

KEY INTERFACES:
  LedgerStore:      Ledger entries (append-only plus the expiry flag)
  CatalogStore:     Price policies and lessons (create + read)
  ReservationStore: Reservations (create + the one-time cancel link)
  UserStore:        Identities
  Store:            All of the above
  TxStore:          Store plus WithTx for all-or-nothing units of work

APPEND-ONLY CONTRACT:
  There is no Update or Delete for entries or reservations. The only
  mutations are MarkLotExpired and LinkCancellation, and both refuse to run
  twice on the same row.

ORDERING:
  "Creation order" means insertion order in the store (rowid in SQLite,
  slice position in memory), not CreatedAt, so ties are impossible.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and dev
  - store/sqlite: SQLite for production
*/
package gym

import "context"

// =============================================================================
// LEDGER STORE
// =============================================================================

type LotFilter struct {
	UserID         UserID
	IncludeExpired bool
	// EndBefore keeps only lots whose end date is strictly before this day.
	EndBefore *Date
}

type LedgerStore interface {
	// AppendEntry persists an entry. The ID must be set by the caller.
	AppendEntry(ctx context.Context, e LedgerEntry) error

	// MarkLotExpired flips IsExpired on a purchase lot.
	// Returns ErrLotAlreadyExpired if it was already set.
	MarkLotExpired(ctx context.Context, lotID EntryID) error

	GetEntry(ctx context.Context, id EntryID) (*LedgerEntry, error)

	// EntriesByUser returns every entry of the user in creation order.
	EntriesByUser(ctx context.Context, userID UserID) ([]LedgerEntry, error)

	// SumByUser returns the sum of all entry amounts of the user (0 if none).
	SumByUser(ctx context.Context, userID UserID) (int64, error)

	// Lots returns purchase lots (never expiry reversals) ordered by
	// start date, then creation order.
	Lots(ctx context.Context, filter LotFilter) ([]LedgerEntry, error)

	// SumBySourceLot sums the amounts of all entries that name lotID as
	// their source lot (0 if none).
	SumBySourceLot(ctx context.Context, lotID EntryID) (int64, error)

	// EntriesByReservation returns entries of the given kind tied to a
	// reservation, in creation order.
	EntriesByReservation(ctx context.Context, reservationID ReservationID, kind EntryKind) ([]LedgerEntry, error)
}

// =============================================================================
// CATALOG STORE
// =============================================================================

type CatalogStore interface {
	CreatePolicy(ctx context.Context, p PricePolicy) error
	GetPolicy(ctx context.Context, id PolicyID) (*PricePolicy, error)
	ListPolicies(ctx context.Context) ([]PricePolicy, error)

	CreateLesson(ctx context.Context, l Lesson) error
	GetLesson(ctx context.Context, id LessonID) (*Lesson, error)
	ListLessons(ctx context.Context) ([]Lesson, error)
}

// =============================================================================
// RESERVATION STORE
// =============================================================================

type ReservationStore interface {
	CreateReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, id ReservationID) (*Reservation, error)

	// LinkCancellation sets CancelID on an Active reservation.
	// Returns ErrAlreadyCanceled if a link already exists.
	LinkCancellation(ctx context.Context, id, cancelID ReservationID) error

	// CountHolding counts Active, not-canceled reservations for a lesson.
	CountHolding(ctx context.Context, lessonID LessonID) (int, error)

	// HasHolding reports whether the user holds an Active, not-canceled
	// reservation for the lesson.
	HasHolding(ctx context.Context, lessonID LessonID, userID UserID) (bool, error)

	ReservationsByLesson(ctx context.Context, lessonID LessonID) ([]Reservation, error)
	ReservationsByUser(ctx context.Context, userID UserID) ([]Reservation, error)
}

// =============================================================================
// USER STORE
// =============================================================================

type UserStore interface {
	// CreateUser returns ErrUsernameTaken on a duplicate username.
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

type Store interface {
	LedgerStore
	CatalogStore
	ReservationStore
	UserStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. The Store passed to fn must
	// be used for every read and write of the unit of work. If fn returns an
	// error nothing it wrote is kept. Units of work are serialized.
	WithTx(ctx context.Context, fn func(Store) error) error
}
