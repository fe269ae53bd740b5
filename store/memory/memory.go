// Package memory provides an in-memory gym.TxStore for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// DATA - Unlocked tables, insertion ordered
// =============================================================================

type data struct {
	entries      []gym.LedgerEntry
	entryIndex   map[gym.EntryID]int
	policies     []gym.PricePolicy
	lessons      []gym.Lesson
	reservations []gym.Reservation
	resIndex     map[gym.ReservationID]int
	users        []gym.User
}

var _ gym.Store = (*data)(nil)

func newData() *data {
	return &data{
		entryIndex: make(map[gym.EntryID]int),
		resIndex:   make(map[gym.ReservationID]int),
	}
}

func (d *data) clone() *data {
	c := &data{
		entries:      append([]gym.LedgerEntry(nil), d.entries...),
		entryIndex:   make(map[gym.EntryID]int, len(d.entryIndex)),
		policies:     append([]gym.PricePolicy(nil), d.policies...),
		lessons:      append([]gym.Lesson(nil), d.lessons...),
		reservations: append([]gym.Reservation(nil), d.reservations...),
		resIndex:     make(map[gym.ReservationID]int, len(d.resIndex)),
		users:        append([]gym.User(nil), d.users...),
	}
	for k, v := range d.entryIndex {
		c.entryIndex[k] = v
	}
	for k, v := range d.resIndex {
		c.resIndex[k] = v
	}
	return c
}

// ---- ledger ----

func (d *data) AppendEntry(_ context.Context, e gym.LedgerEntry) error {
	if _, ok := d.entryIndex[e.ID]; ok {
		return gym.ErrInvalidEntry
	}
	d.entryIndex[e.ID] = len(d.entries)
	d.entries = append(d.entries, e)
	return nil
}

func (d *data) MarkLotExpired(_ context.Context, lotID gym.EntryID) error {
	i, ok := d.entryIndex[lotID]
	if !ok || !d.entries[i].IsLot() {
		return gym.ErrEntryNotFound
	}
	if d.entries[i].IsExpired {
		return gym.ErrLotAlreadyExpired
	}
	d.entries[i].IsExpired = true
	return nil
}

func (d *data) GetEntry(_ context.Context, id gym.EntryID) (*gym.LedgerEntry, error) {
	i, ok := d.entryIndex[id]
	if !ok {
		return nil, gym.ErrEntryNotFound
	}
	e := d.entries[i]
	return &e, nil
}

func (d *data) EntriesByUser(_ context.Context, userID gym.UserID) ([]gym.LedgerEntry, error) {
	var result []gym.LedgerEntry
	for _, e := range d.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (d *data) SumByUser(_ context.Context, userID gym.UserID) (int64, error) {
	var sum int64
	for _, e := range d.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (d *data) Lots(_ context.Context, f gym.LotFilter) ([]gym.LedgerEntry, error) {
	var result []gym.LedgerEntry
	for _, e := range d.entries {
		if e.UserID != f.UserID || !e.IsLot() {
			continue
		}
		if e.IsExpired && !f.IncludeExpired {
			continue
		}
		if f.EndBefore != nil && (e.EndDate == nil || !e.EndDate.Before(*f.EndBefore)) {
			continue
		}
		result = append(result, e)
	}
	// Stable: equal start dates keep creation order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})
	return result, nil
}

func (d *data) SumBySourceLot(_ context.Context, lotID gym.EntryID) (int64, error) {
	var sum int64
	for _, e := range d.entries {
		if e.SourceLotID == lotID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (d *data) EntriesByReservation(_ context.Context, reservationID gym.ReservationID, kind gym.EntryKind) ([]gym.LedgerEntry, error) {
	var result []gym.LedgerEntry
	for _, e := range d.entries {
		if e.ReservationID == reservationID && e.Kind == kind {
			result = append(result, e)
		}
	}
	return result, nil
}

// ---- catalog ----

func (d *data) CreatePolicy(_ context.Context, p gym.PricePolicy) error {
	d.policies = append(d.policies, p)
	return nil
}

func (d *data) GetPolicy(_ context.Context, id gym.PolicyID) (*gym.PricePolicy, error) {
	for _, p := range d.policies {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, gym.ErrPolicyNotFound
}

func (d *data) ListPolicies(_ context.Context) ([]gym.PricePolicy, error) {
	return append([]gym.PricePolicy(nil), d.policies...), nil
}

func (d *data) CreateLesson(_ context.Context, l gym.Lesson) error {
	d.lessons = append(d.lessons, l)
	return nil
}

func (d *data) GetLesson(_ context.Context, id gym.LessonID) (*gym.Lesson, error) {
	for _, l := range d.lessons {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, gym.ErrLessonNotFound
}

func (d *data) ListLessons(_ context.Context) ([]gym.Lesson, error) {
	return append([]gym.Lesson(nil), d.lessons...), nil
}

// ---- reservations ----

func (d *data) CreateReservation(_ context.Context, r gym.Reservation) error {
	d.resIndex[r.ID] = len(d.reservations)
	d.reservations = append(d.reservations, r)
	return nil
}

func (d *data) GetReservation(_ context.Context, id gym.ReservationID) (*gym.Reservation, error) {
	i, ok := d.resIndex[id]
	if !ok {
		return nil, gym.ErrReservationNotFound
	}
	r := d.reservations[i]
	return &r, nil
}

func (d *data) LinkCancellation(_ context.Context, id, cancelID gym.ReservationID) error {
	i, ok := d.resIndex[id]
	if !ok {
		return gym.ErrReservationNotFound
	}
	if d.reservations[i].IsCanceled() {
		return gym.ErrAlreadyCanceled
	}
	d.reservations[i].CancelID = cancelID
	return nil
}

func (d *data) CountHolding(_ context.Context, lessonID gym.LessonID) (int, error) {
	n := 0
	for _, r := range d.reservations {
		if r.LessonID == lessonID && r.IsHolding() {
			n++
		}
	}
	return n, nil
}

func (d *data) HasHolding(_ context.Context, lessonID gym.LessonID, userID gym.UserID) (bool, error) {
	for _, r := range d.reservations {
		if r.LessonID == lessonID && r.UserID == userID && r.IsHolding() {
			return true, nil
		}
	}
	return false, nil
}

func (d *data) ReservationsByLesson(_ context.Context, lessonID gym.LessonID) ([]gym.Reservation, error) {
	var result []gym.Reservation
	for _, r := range d.reservations {
		if r.LessonID == lessonID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (d *data) ReservationsByUser(_ context.Context, userID gym.UserID) ([]gym.Reservation, error) {
	var result []gym.Reservation
	for _, r := range d.reservations {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	return result, nil
}

// ---- users ----

func (d *data) CreateUser(_ context.Context, u gym.User) error {
	for _, existing := range d.users {
		if existing.Username == u.Username {
			return gym.ErrUsernameTaken
		}
	}
	d.users = append(d.users, u)
	return nil
}

func (d *data) GetUser(_ context.Context, id gym.UserID) (*gym.User, error) {
	for _, u := range d.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, gym.ErrUserNotFound
}

func (d *data) GetUserByUsername(_ context.Context, username string) (*gym.User, error) {
	for _, u := range d.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, gym.ErrUserNotFound
}

func (d *data) ListUsers(_ context.Context) ([]gym.User, error) {
	return append([]gym.User(nil), d.users...), nil
}

// =============================================================================
// MEMORY STORE - Locked access to data
// =============================================================================

// Memory is a gym.TxStore kept entirely in process memory.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

var _ gym.TxStore = (*Memory)(nil)

func New() *Memory {
	return &Memory{d: newData()}
}

// WithTx runs fn against the live tables while holding the write lock.
// On error the tables are restored from a snapshot taken before fn ran.
func (m *Memory) WithTx(_ context.Context, fn func(gym.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (m *Memory) write(fn func(*data) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.d)
}

func (m *Memory) AppendEntry(ctx context.Context, e gym.LedgerEntry) error {
	return m.write(func(d *data) error { return d.AppendEntry(ctx, e) })
}

func (m *Memory) MarkLotExpired(ctx context.Context, lotID gym.EntryID) error {
	return m.write(func(d *data) error { return d.MarkLotExpired(ctx, lotID) })
}

func (m *Memory) CreatePolicy(ctx context.Context, p gym.PricePolicy) error {
	return m.write(func(d *data) error { return d.CreatePolicy(ctx, p) })
}

func (m *Memory) CreateLesson(ctx context.Context, l gym.Lesson) error {
	return m.write(func(d *data) error { return d.CreateLesson(ctx, l) })
}

func (m *Memory) CreateReservation(ctx context.Context, r gym.Reservation) error {
	return m.write(func(d *data) error { return d.CreateReservation(ctx, r) })
}

func (m *Memory) LinkCancellation(ctx context.Context, id, cancelID gym.ReservationID) error {
	return m.write(func(d *data) error { return d.LinkCancellation(ctx, id, cancelID) })
}

func (m *Memory) CreateUser(ctx context.Context, u gym.User) error {
	return m.write(func(d *data) error { return d.CreateUser(ctx, u) })
}

func (m *Memory) GetEntry(ctx context.Context, id gym.EntryID) (*gym.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetEntry(ctx, id)
}

func (m *Memory) EntriesByUser(ctx context.Context, userID gym.UserID) ([]gym.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.EntriesByUser(ctx, userID)
}

func (m *Memory) SumByUser(ctx context.Context, userID gym.UserID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.SumByUser(ctx, userID)
}

func (m *Memory) Lots(ctx context.Context, f gym.LotFilter) ([]gym.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.Lots(ctx, f)
}

func (m *Memory) SumBySourceLot(ctx context.Context, lotID gym.EntryID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.SumBySourceLot(ctx, lotID)
}

func (m *Memory) EntriesByReservation(ctx context.Context, reservationID gym.ReservationID, kind gym.EntryKind) ([]gym.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.EntriesByReservation(ctx, reservationID, kind)
}

func (m *Memory) GetPolicy(ctx context.Context, id gym.PolicyID) (*gym.PricePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetPolicy(ctx, id)
}

func (m *Memory) ListPolicies(ctx context.Context) ([]gym.PricePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListPolicies(ctx)
}

func (m *Memory) GetLesson(ctx context.Context, id gym.LessonID) (*gym.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetLesson(ctx, id)
}

func (m *Memory) ListLessons(ctx context.Context) ([]gym.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListLessons(ctx)
}

func (m *Memory) GetReservation(ctx context.Context, id gym.ReservationID) (*gym.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetReservation(ctx, id)
}

func (m *Memory) CountHolding(ctx context.Context, lessonID gym.LessonID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.CountHolding(ctx, lessonID)
}

func (m *Memory) HasHolding(ctx context.Context, lessonID gym.LessonID, userID gym.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.HasHolding(ctx, lessonID, userID)
}

func (m *Memory) ReservationsByLesson(ctx context.Context, lessonID gym.LessonID) ([]gym.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ReservationsByLesson(ctx, lessonID)
}

func (m *Memory) ReservationsByUser(ctx context.Context, userID gym.UserID) ([]gym.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ReservationsByUser(ctx, userID)
}

func (m *Memory) GetUser(ctx context.Context, id gym.UserID) (*gym.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetUser(ctx, id)
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*gym.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetUserByUsername(ctx, username)
}

func (m *Memory) ListUsers(ctx context.Context) ([]gym.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListUsers(ctx)
}
