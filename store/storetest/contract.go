// Package storetest holds the behavior every gym.TxStore must share. Each
// implementation's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/gym"
)

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) gym.TxStore) {
	t.Run("LotsOrderedByStartDateThenCreation", func(t *testing.T) { testLotOrdering(t, newStore(t)) })
	t.Run("LotFilter", func(t *testing.T) { testLotFilter(t, newStore(t)) })
	t.Run("Sums", func(t *testing.T) { testSums(t, newStore(t)) })
	t.Run("MarkLotExpiredOnce", func(t *testing.T) { testMarkLotExpired(t, newStore(t)) })
	t.Run("LinkCancellationOnce", func(t *testing.T) { testLinkCancellation(t, newStore(t)) })
	t.Run("Holding", func(t *testing.T) { testHolding(t, newStore(t)) })
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("WithTxCommits", func(t *testing.T) { testWithTxCommit(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testWithTxRollback(t, newStore(t)) })
}

var (
	day0    = gym.NewDate(2025, time.March, 1)
	created = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
)

func lot(id gym.EntryID, user gym.UserID, start gym.Date, amount int64) gym.LedgerEntry {
	end := start.AddDays(30)
	return gym.LedgerEntry{
		ID:        id,
		UserID:    user,
		Amount:    amount,
		Kind:      gym.EntryPurchase,
		StartDate: start,
		EndDate:   &end,
		PolicyID:  "policy-1",
		Message:   "Monthly membership purchase",
		CreatedAt: created,
	}
}

func use(id, source gym.EntryID, user gym.UserID, reservation gym.ReservationID, amount int64) gym.LedgerEntry {
	return gym.LedgerEntry{
		ID:            id,
		UserID:        user,
		Amount:        -amount,
		Kind:          gym.EntryUse,
		StartDate:     day0,
		ReservationID: reservation,
		SourceLotID:   source,
		Message:       "yoga lesson reservation",
		CreatedAt:     created,
	}
}

func ids(entries []gym.LedgerEntry) []gym.EntryID {
	out := make([]gym.EntryID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func testLotOrdering(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	require.NoError(t, s.AppendEntry(ctx, lot("late", "u-1", day0.AddDays(5), 100)))
	require.NoError(t, s.AppendEntry(ctx, lot("early-a", "u-1", day0, 100)))
	require.NoError(t, s.AppendEntry(ctx, lot("early-b", "u-1", day0, 100)))
	require.NoError(t, s.AppendEntry(ctx, lot("other-user", "u-2", day0.AddDays(-5), 100)))

	lots, err := s.Lots(ctx, gym.LotFilter{UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, []gym.EntryID{"early-a", "early-b", "late"}, ids(lots))

	entries, err := s.EntriesByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []gym.EntryID{"late", "early-a", "early-b"}, ids(entries), "entries keep creation order")
}

func testLotFilter(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	require.NoError(t, s.AppendEntry(ctx, lot("old", "u-1", day0.AddDays(-60), 100)))
	require.NoError(t, s.AppendEntry(ctx, lot("current", "u-1", day0, 100)))
	require.NoError(t, s.MarkLotExpired(ctx, "old"))

	reversal := gym.LedgerEntry{
		ID: "rev", UserID: "u-1", Amount: -100, Kind: gym.EntryPurchase,
		StartDate: day0, PolicyID: "policy-1", ExpiredLotID: "old", CreatedAt: created,
	}
	require.NoError(t, s.AppendEntry(ctx, reversal))

	lots, err := s.Lots(ctx, gym.LotFilter{UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, []gym.EntryID{"current"}, ids(lots), "expired lots and reversals are excluded")

	lots, err = s.Lots(ctx, gym.LotFilter{UserID: "u-1", IncludeExpired: true})
	require.NoError(t, err)
	assert.Equal(t, []gym.EntryID{"old", "current"}, ids(lots))

	cutoff := day0.AddDays(30)
	lots, err = s.Lots(ctx, gym.LotFilter{UserID: "u-1", IncludeExpired: true, EndBefore: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, []gym.EntryID{"old"}, ids(lots), "end date equal to the cutoff is not before it")

	got, err := s.GetEntry(ctx, "rev")
	require.NoError(t, err)
	assert.True(t, got.IsExpiryReversal())
	assert.Nil(t, got.EndDate)
	assert.Equal(t, day0, got.StartDate)
}

func testSums(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	sum, err := s.SumByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	require.NoError(t, s.AppendEntry(ctx, lot("a", "u-1", day0, 800)))
	require.NoError(t, s.AppendEntry(ctx, use("use-1", "a", "u-1", "r-1", 100)))
	require.NoError(t, s.AppendEntry(ctx, use("use-2", "a", "u-1", "r-2", 50)))

	refund := gym.LedgerEntry{
		ID: "refund-1", UserID: "u-1", Amount: 100, Kind: gym.EntryRefund, StartDate: day0,
		ReservationID: "r-3", SourceLotID: "a", CreatedAt: created,
	}
	require.NoError(t, s.AppendEntry(ctx, refund))

	sum, err = s.SumByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), sum)

	linked, err := s.SumBySourceLot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(-50), linked)

	byRes, err := s.EntriesByReservation(ctx, "r-1", gym.EntryUse)
	require.NoError(t, err)
	assert.Equal(t, []gym.EntryID{"use-1"}, ids(byRes))

	byRes, err = s.EntriesByReservation(ctx, "r-1", gym.EntryRefund)
	require.NoError(t, err)
	assert.Empty(t, byRes)

	_, err = s.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, gym.ErrEntryNotFound)
}

func testMarkLotExpired(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	require.NoError(t, s.AppendEntry(ctx, lot("a", "u-1", day0, 800)))
	require.NoError(t, s.AppendEntry(ctx, use("use-1", "a", "u-1", "r-1", 100)))

	require.NoError(t, s.MarkLotExpired(ctx, "a"))
	assert.ErrorIs(t, s.MarkLotExpired(ctx, "a"), gym.ErrLotAlreadyExpired)
	assert.ErrorIs(t, s.MarkLotExpired(ctx, "use-1"), gym.ErrEntryNotFound)
	assert.ErrorIs(t, s.MarkLotExpired(ctx, "missing"), gym.ErrEntryNotFound)

	got, err := s.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.IsExpired)
	assert.Equal(t, int64(800), got.Amount, "expiry never rewrites the amount")
}

func testLinkCancellation(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	require.NoError(t, s.CreateReservation(ctx, gym.Reservation{ID: "r-1", UserID: "u-1", LessonID: "l-1", Kind: gym.ReservationActive, CreatedAt: created}))
	require.NoError(t, s.CreateReservation(ctx, gym.Reservation{ID: "c-1", UserID: "u-1", LessonID: "l-1", Kind: gym.ReservationCancellation, CreatedAt: created}))

	require.NoError(t, s.LinkCancellation(ctx, "r-1", "c-1"))
	assert.ErrorIs(t, s.LinkCancellation(ctx, "r-1", "c-2"), gym.ErrAlreadyCanceled)
	assert.ErrorIs(t, s.LinkCancellation(ctx, "missing", "c-3"), gym.ErrReservationNotFound)

	r, err := s.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, gym.ReservationID("c-1"), r.CancelID)
	assert.True(t, r.IsCanceled())
	assert.False(t, r.IsHolding())

	c, err := s.GetReservation(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, c.CancelID)
	assert.Equal(t, gym.ReservationCancellation, c.Kind)
}

func testHolding(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	require.NoError(t, s.CreateReservation(ctx, gym.Reservation{ID: "r-1", UserID: "u-1", LessonID: "l-1", Kind: gym.ReservationActive, CreatedAt: created}))
	require.NoError(t, s.CreateReservation(ctx, gym.Reservation{ID: "r-2", UserID: "u-2", LessonID: "l-1", Kind: gym.ReservationActive, CreatedAt: created}))
	require.NoError(t, s.CreateReservation(ctx, gym.Reservation{ID: "c-2", UserID: "u-2", LessonID: "l-1", Kind: gym.ReservationCancellation, CreatedAt: created}))
	require.NoError(t, s.LinkCancellation(ctx, "r-2", "c-2"))

	n, err := s.CountHolding(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	holding, err := s.HasHolding(ctx, "l-1", "u-1")
	require.NoError(t, err)
	assert.True(t, holding)

	holding, err = s.HasHolding(ctx, "l-1", "u-2")
	require.NoError(t, err)
	assert.False(t, holding)

	byLesson, err := s.ReservationsByLesson(ctx, "l-1")
	require.NoError(t, err)
	assert.Len(t, byLesson, 3)

	byUser, err := s.ReservationsByUser(ctx, "u-2")
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, gym.ReservationID("r-2"), byUser[0].ID)
}

func testCatalog(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	price, err := decimal.NewFromString("300000.50")
	require.NoError(t, err)
	policy := gym.PricePolicy{ID: "p-1", Name: "Monthly", Price: price, CreditCount: 800, Period: 30, CreatedAt: created}
	require.NoError(t, s.CreatePolicy(ctx, policy))

	got, err := s.GetPolicy(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, price.Equal(got.Price), "price %s", got.Price)
	assert.Equal(t, int64(800), got.CreditCount)
	assert.Equal(t, 30, got.Period)

	_, err = s.GetPolicy(ctx, "missing")
	assert.ErrorIs(t, err, gym.ErrPolicyNotFound)

	l := gym.Lesson{
		ID: "l-1", Gym: gym.GymBusan, Type: gym.LessonSwim, CreditCount: 100, MaxCapacity: 8,
		StartDate: day0, StartTime: gym.NewClockTime(6, 30), EndTime: gym.NewClockTime(7, 30), CreatedAt: created,
	}
	require.NoError(t, s.CreateLesson(ctx, l))

	gotLesson, err := s.GetLesson(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, l.StartDate, gotLesson.StartDate)
	assert.Equal(t, l.StartTime, gotLesson.StartTime)
	assert.Equal(t, l.EndTime, gotLesson.EndTime)
	assert.Equal(t, gym.GymBusan, gotLesson.Gym)

	lessons, err := s.ListLessons(ctx)
	require.NoError(t, err)
	assert.Len(t, lessons, 1)

	_, err = s.GetLesson(ctx, "missing")
	assert.ErrorIs(t, err, gym.ErrLessonNotFound)
}

func testUsers(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, gym.User{ID: "u-1", Username: "kim", CreatedAt: created}))
	assert.ErrorIs(t, s.CreateUser(ctx, gym.User{ID: "u-2", Username: "kim", CreatedAt: created}), gym.ErrUsernameTaken)
	require.NoError(t, s.CreateUser(ctx, gym.User{ID: "u-3", Username: "admin", IsAdmin: true, CreatedAt: created}))

	u, err := s.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, gym.UserID("u-3"), u.ID)
	assert.True(t, u.IsAdmin)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = s.GetUser(ctx, "u-2")
	assert.ErrorIs(t, err, gym.ErrUserNotFound)
}

func testWithTxCommit(t *testing.T, s gym.TxStore) {
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx gym.Store) error {
		if err := tx.AppendEntry(ctx, lot("a", "u-1", day0, 800)); err != nil {
			return err
		}
		// Reads inside the transaction see its own writes.
		sum, err := tx.SumByUser(ctx, "u-1")
		if err != nil {
			return err
		}
		if sum != 800 {
			return errors.Newf("sum inside tx = %d", sum)
		}
		return nil
	})
	require.NoError(t, err)

	sum, err := s.SumByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), sum)
}

func testWithTxRollback(t *testing.T, s gym.TxStore) {
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.AppendEntry(ctx, lot("a", "u-1", day0, 800)))

	err := s.WithTx(ctx, func(tx gym.Store) error {
		if err := tx.AppendEntry(ctx, use("use-1", "a", "u-1", "r-1", 100)); err != nil {
			return err
		}
		if err := tx.CreateReservation(ctx, gym.Reservation{ID: "r-1", UserID: "u-1", LessonID: "l-1", Kind: gym.ReservationActive, CreatedAt: created}); err != nil {
			return err
		}
		if err := tx.MarkLotExpired(ctx, "a"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	sum, err := s.SumByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), sum)

	_, err = s.GetReservation(ctx, "r-1")
	assert.ErrorIs(t, err, gym.ErrReservationNotFound)

	a, err := s.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.False(t, a.IsExpired)
}
