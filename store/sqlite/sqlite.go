/*
Package sqlite provides a SQLite-backed gym.TxStore.

KEY TABLES:
  users:          Identities (unique username)
  price_policies: Membership catalog
  lessons:        Bookable classes
  reservations:   Active reservations and their Cancellation records
  ledger_entries: Append-only credit movements

APPEND-ONLY ENFORCEMENT:
  ledger_entries and reservations are never deleted. The only UPDATEs are
  the two one-time writes of the domain:
  - ledger_entries.is_expired   0 -> 1   (MarkLotExpired)
  - reservations.cancel_id      NULL -> id (LinkCancellation)
  Both are guarded in the WHERE clause, so a second write affects no rows
  and is reported as ErrLotAlreadyExpired / ErrAlreadyCanceled.

ORDERING:
  Creation order is rowid order. FIFO lot order is start_date, then rowid.

CONCURRENCY:
  The pool holds a single connection, so statements never interleave and
  ":memory:" stays one database. WithTx additionally holds a mutex so units
  of work run one after another; the Store handed to fn is bound to the
  *sql.Tx and never touches the pool.

USAGE:
  store, err := sqlite.New("./gym.db")
  if err != nil {
      return err
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/gym-credit/gym"
)

// Store implements gym.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex
}

var _ gym.TxStore = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		phone_number TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		credit_count INTEGER NOT NULL,
		period INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		gym TEXT NOT NULL,
		lesson_type TEXT NOT NULL,
		credit_count INTEGER NOT NULL,
		max_capacity INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		cancel_id TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_lesson
		ON reservations(lesson_id, kind);
	CREATE INDEX IF NOT EXISTS idx_reservations_user
		ON reservations(user_id);

	-- Append-only ledger
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		kind TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		policy_id TEXT,
		reservation_id TEXT,
		is_expired INTEGER NOT NULL DEFAULT 0,
		expired_lot_id TEXT UNIQUE,
		source_lot_id TEXT,
		message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_user
		ON ledger_entries(user_id);
	-- FIFO lot selection (hot path)
	CREATE INDEX IF NOT EXISTS idx_ledger_user_lots
		ON ledger_entries(user_id, kind, start_date) WHERE expired_lot_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_ledger_source_lot
		ON ledger_entries(source_lot_id) WHERE source_lot_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_ledger_reservation
		ON ledger_entries(reservation_id) WHERE reservation_id IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(gym.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}
	return errors.Wrap(sqlTx.Commit(), "commit transaction")
}

// =============================================================================
// QUERIES - gym.Store over either the pool or a transaction
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

var _ gym.Store = (*queries)(nil)

// ---- ledger ----

const entryColumns = `id, user_id, amount, kind, start_date, end_date, policy_id,
	reservation_id, is_expired, expired_lot_id, source_lot_id, message, created_at`

func (s *queries) AppendEntry(ctx context.Context, e gym.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var endDate sql.NullString
	if e.EndDate != nil {
		endDate = sql.NullString{String: e.EndDate.String(), Valid: true}
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.q.ExecContext(ctx, query,
		string(e.ID),
		string(e.UserID),
		e.Amount,
		string(e.Kind),
		e.StartDate.String(),
		endDate,
		nullable(string(e.PolicyID)),
		nullable(string(e.ReservationID)),
		e.IsExpired,
		nullable(string(e.ExpiredLotID)),
		nullable(string(e.SourceLotID)),
		e.Message,
		formatTime(createdAt),
	)
	return errors.Wrap(err, "insert ledger entry")
}

func (s *queries) MarkLotExpired(ctx context.Context, lotID gym.EntryID) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE ledger_entries SET is_expired = 1
		WHERE id = ? AND kind = ? AND expired_lot_id IS NULL AND is_expired = 0`,
		string(lotID), string(gym.EntryPurchase))
	if err != nil {
		return errors.Wrap(err, "mark lot expired")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	lot, err := s.GetEntry(ctx, lotID)
	if err != nil {
		return err
	}
	if !lot.IsLot() {
		return gym.ErrEntryNotFound
	}
	return gym.ErrLotAlreadyExpired
}

func (s *queries) GetEntry(ctx context.Context, id gym.EntryID) (*gym.LedgerEntry, error) {
	entries, err := s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, gym.ErrEntryNotFound
	}
	return &entries[0], nil
}

func (s *queries) EntriesByUser(ctx context.Context, userID gym.UserID) ([]gym.LedgerEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = ? ORDER BY rowid`, string(userID))
}

func (s *queries) SumByUser(ctx context.Context, userID gym.UserID) (int64, error) {
	var sum int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = ?`,
		string(userID),
	).Scan(&sum)
	return sum, errors.Wrap(err, "sum user entries")
}

func (s *queries) Lots(ctx context.Context, f gym.LotFilter) ([]gym.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE user_id = ? AND kind = ? AND expired_lot_id IS NULL`
	args := []any{string(f.UserID), string(gym.EntryPurchase)}

	if !f.IncludeExpired {
		query += ` AND is_expired = 0`
	}
	if f.EndBefore != nil {
		// ISO dates compare correctly as text.
		query += ` AND end_date IS NOT NULL AND end_date < ?`
		args = append(args, f.EndBefore.String())
	}
	query += ` ORDER BY start_date, rowid`

	return s.queryEntries(ctx, query, args...)
}

func (s *queries) SumBySourceLot(ctx context.Context, lotID gym.EntryID) (int64, error) {
	var sum int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE source_lot_id = ?`,
		string(lotID),
	).Scan(&sum)
	return sum, errors.Wrap(err, "sum lot entries")
}

func (s *queries) EntriesByReservation(ctx context.Context, reservationID gym.ReservationID, kind gym.EntryKind) ([]gym.LedgerEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE reservation_id = ? AND kind = ? ORDER BY rowid`,
		string(reservationID), string(kind))
}

func (s *queries) queryEntries(ctx context.Context, query string, args ...any) ([]gym.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query ledger entries")
	}
	defer rows.Close()

	var result []gym.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func scanEntry(rows *sql.Rows) (gym.LedgerEntry, error) {
	var (
		e                                      gym.LedgerEntry
		id, userID, kind, startDate, createdAt string
		endDate, policyID, reservationID       sql.NullString
		expiredLotID, sourceLotID              sql.NullString
	)
	err := rows.Scan(
		&id, &userID, &e.Amount, &kind, &startDate, &endDate, &policyID,
		&reservationID, &e.IsExpired, &expiredLotID, &sourceLotID, &e.Message, &createdAt,
	)
	if err != nil {
		return e, errors.Wrap(err, "scan ledger entry")
	}

	e.ID = gym.EntryID(id)
	e.UserID = gym.UserID(userID)
	e.Kind = gym.EntryKind(kind)
	if e.StartDate, err = gym.ParseDate(startDate); err != nil {
		return e, err
	}
	if endDate.Valid {
		end, err := gym.ParseDate(endDate.String)
		if err != nil {
			return e, err
		}
		e.EndDate = &end
	}
	e.PolicyID = gym.PolicyID(policyID.String)
	e.ReservationID = gym.ReservationID(reservationID.String)
	e.ExpiredLotID = gym.EntryID(expiredLotID.String)
	e.SourceLotID = gym.EntryID(sourceLotID.String)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// ---- catalog ----

func (s *queries) CreatePolicy(ctx context.Context, p gym.PricePolicy) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO price_policies (id, name, price, credit_count, period, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(p.ID), p.Name, p.Price.String(), p.CreditCount, p.Period, formatTime(p.CreatedAt),
	)
	return errors.Wrap(err, "insert price policy")
}

const policyColumns = `id, name, price, credit_count, period, created_at`

func (s *queries) GetPolicy(ctx context.Context, id gym.PolicyID) (*gym.PricePolicy, error) {
	policies, err := s.queryPolicies(ctx, `SELECT `+policyColumns+` FROM price_policies WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, gym.ErrPolicyNotFound
	}
	return &policies[0], nil
}

func (s *queries) ListPolicies(ctx context.Context) ([]gym.PricePolicy, error) {
	return s.queryPolicies(ctx, `SELECT `+policyColumns+` FROM price_policies ORDER BY rowid`)
}

func (s *queries) queryPolicies(ctx context.Context, query string, args ...any) ([]gym.PricePolicy, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query price policies")
	}
	defer rows.Close()

	var result []gym.PricePolicy
	for rows.Next() {
		var p gym.PricePolicy
		var id, createdAt string
		if err := rows.Scan(&id, &p.Name, &p.Price, &p.CreditCount, &p.Period, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan price policy")
		}
		p.ID = gym.PolicyID(id)
		p.CreatedAt = parseTime(createdAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

const lessonColumns = `id, gym, lesson_type, credit_count, max_capacity, start_date, start_time, end_time, created_at`

func (s *queries) CreateLesson(ctx context.Context, l gym.Lesson) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO lessons (`+lessonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(l.ID), string(l.Gym), string(l.Type), l.CreditCount, l.MaxCapacity,
		l.StartDate.String(), l.StartTime.String(), l.EndTime.String(), formatTime(l.CreatedAt),
	)
	return errors.Wrap(err, "insert lesson")
}

func (s *queries) GetLesson(ctx context.Context, id gym.LessonID) (*gym.Lesson, error) {
	lessons, err := s.queryLessons(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(lessons) == 0 {
		return nil, gym.ErrLessonNotFound
	}
	return &lessons[0], nil
}

func (s *queries) ListLessons(ctx context.Context) ([]gym.Lesson, error) {
	return s.queryLessons(ctx, `SELECT `+lessonColumns+` FROM lessons ORDER BY rowid`)
}

func (s *queries) queryLessons(ctx context.Context, query string, args ...any) ([]gym.Lesson, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query lessons")
	}
	defer rows.Close()

	var result []gym.Lesson
	for rows.Next() {
		var (
			l                                      gym.Lesson
			id, location, lessonType               string
			startDate, startTime, endTime, created string
		)
		if err := rows.Scan(&id, &location, &lessonType, &l.CreditCount, &l.MaxCapacity,
			&startDate, &startTime, &endTime, &created); err != nil {
			return nil, errors.Wrap(err, "scan lesson")
		}
		l.ID = gym.LessonID(id)
		l.Gym = gym.Location(location)
		l.Type = gym.LessonType(lessonType)
		if l.StartDate, err = gym.ParseDate(startDate); err != nil {
			return nil, err
		}
		if l.StartTime, err = gym.ParseClockTime(startTime); err != nil {
			return nil, err
		}
		if l.EndTime, err = gym.ParseClockTime(endTime); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(created)
		result = append(result, l)
	}
	return result, rows.Err()
}

// ---- reservations ----

const reservationColumns = `id, user_id, lesson_id, kind, cancel_id, created_at`

func (s *queries) CreateReservation(ctx context.Context, r gym.Reservation) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.UserID), string(r.LessonID), string(r.Kind),
		nullable(string(r.CancelID)), formatTime(r.CreatedAt),
	)
	return errors.Wrap(err, "insert reservation")
}

func (s *queries) GetReservation(ctx context.Context, id gym.ReservationID) (*gym.Reservation, error) {
	reservations, err := s.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, gym.ErrReservationNotFound
	}
	return &reservations[0], nil
}

func (s *queries) LinkCancellation(ctx context.Context, id, cancelID gym.ReservationID) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE reservations SET cancel_id = ? WHERE id = ? AND cancel_id IS NULL`,
		string(cancelID), string(id))
	if err != nil {
		return errors.Wrap(err, "link cancellation")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.GetReservation(ctx, id); err != nil {
		return err
	}
	return gym.ErrAlreadyCanceled
}

func (s *queries) CountHolding(ctx context.Context, lessonID gym.LessonID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE lesson_id = ? AND kind = ? AND cancel_id IS NULL`,
		string(lessonID), string(gym.ReservationActive),
	).Scan(&n)
	return n, errors.Wrap(err, "count holding reservations")
}

func (s *queries) HasHolding(ctx context.Context, lessonID gym.LessonID, userID gym.UserID) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations
		WHERE lesson_id = ? AND user_id = ? AND kind = ? AND cancel_id IS NULL`,
		string(lessonID), string(userID), string(gym.ReservationActive),
	).Scan(&n)
	return n > 0, errors.Wrap(err, "check holding reservation")
}

func (s *queries) ReservationsByLesson(ctx context.Context, lessonID gym.LessonID) ([]gym.Reservation, error) {
	return s.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE lesson_id = ? ORDER BY rowid`, string(lessonID))
}

func (s *queries) ReservationsByUser(ctx context.Context, userID gym.UserID) ([]gym.Reservation, error) {
	return s.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE user_id = ? ORDER BY rowid`, string(userID))
}

func (s *queries) queryReservations(ctx context.Context, query string, args ...any) ([]gym.Reservation, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query reservations")
	}
	defer rows.Close()

	var result []gym.Reservation
	for rows.Next() {
		var (
			r                                   gym.Reservation
			id, userID, lessonID, kind, created string
			cancelID                            sql.NullString
		)
		if err := rows.Scan(&id, &userID, &lessonID, &kind, &cancelID, &created); err != nil {
			return nil, errors.Wrap(err, "scan reservation")
		}
		r.ID = gym.ReservationID(id)
		r.UserID = gym.UserID(userID)
		r.LessonID = gym.LessonID(lessonID)
		r.Kind = gym.ReservationKind(kind)
		r.CancelID = gym.ReservationID(cancelID.String)
		r.CreatedAt = parseTime(created)
		result = append(result, r)
	}
	return result, rows.Err()
}

// ---- users ----

const userColumns = `id, username, phone_number, is_admin, created_at`

func (s *queries) CreateUser(ctx context.Context, u gym.User) error {
	if _, err := s.GetUserByUsername(ctx, u.Username); err == nil {
		return gym.ErrUsernameTaken
	} else if !errors.Is(err, gym.ErrUserNotFound) {
		return err
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		string(u.ID), u.Username, u.PhoneNumber, u.IsAdmin, formatTime(u.CreatedAt),
	)
	return errors.Wrap(err, "insert user")
}

func (s *queries) GetUser(ctx context.Context, id gym.UserID) (*gym.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, string(id))
}

func (s *queries) GetUserByUsername(ctx context.Context, username string) (*gym.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *queries) getUser(ctx context.Context, query string, args ...any) (*gym.User, error) {
	users, err := s.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, gym.ErrUserNotFound
	}
	return &users[0], nil
}

func (s *queries) ListUsers(ctx context.Context) ([]gym.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY rowid`)
}

func (s *queries) queryUsers(ctx context.Context, query string, args ...any) ([]gym.User, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer rows.Close()

	var result []gym.User
	for rows.Next() {
		var u gym.User
		var id, created string
		if err := rows.Scan(&id, &u.Username, &u.PhoneNumber, &u.IsAdmin, &created); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		u.ID = gym.UserID(id)
		u.CreatedAt = parseTime(created)
		result = append(result, u)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
