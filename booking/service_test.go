package booking_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/booking"
	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/gym"
	"github.com/warp/gym-credit/store/memory"
	"github.com/warp/gym-credit/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var seoul = time.FixedZone("KST", 9*3600)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	clock  *clock.MockClock
	svc    *booking.Service
	policy gym.PricePolicy
}

func newFixture(t *testing.T, store gym.TxStore) *fixture {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2025, time.March, 1, 10, 0, 0, 0, seoul))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: clk,
		svc:   booking.New(store, clk, seoul, logger),
	}
	f.policy = f.createPolicy(800, 30)
	return f
}

func newMemoryFixture(t *testing.T) *fixture {
	return newFixture(t, memory.New())
}

func newSQLiteFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return newFixture(t, store)
}

func (f *fixture) createPolicy(credits int64, period int) gym.PricePolicy {
	f.t.Helper()
	p, err := f.svc.CreatePolicy(f.ctx, booking.NewPolicy{
		Name:        "Monthly",
		Price:       decimal.NewFromInt(300000),
		CreditCount: credits,
		Period:      period,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) user(name string) gym.UserID {
	f.t.Helper()
	u, err := f.svc.CreateUser(f.ctx, booking.NewUser{Username: name})
	require.NoError(f.t, err)
	return u.ID
}

func (f *fixture) buy(userID gym.UserID, policy gym.PricePolicy) gym.LedgerEntry {
	f.t.Helper()
	lot, err := f.svc.BuyCredit(f.ctx, userID, policy.ID, gym.Date{})
	require.NoError(f.t, err)
	return lot
}

// lesson creates a 100-credit lesson daysAhead days from the clock's today,
// starting at 18:00.
func (f *fixture) lesson(daysAhead int, capacity int) gym.LessonID {
	f.t.Helper()
	l, err := f.svc.CreateLesson(f.ctx, booking.NewLesson{
		Gym:         gym.GymSeoul,
		Type:        gym.LessonYoga,
		CreditCount: 100,
		MaxCapacity: capacity,
		StartDate:   f.svc.Today().AddDays(daysAhead),
		StartTime:   gym.NewClockTime(18, 0),
		EndTime:     gym.NewClockTime(19, 0),
	})
	require.NoError(f.t, err)
	return l.ID
}

func (f *fixture) balance(userID gym.UserID) int64 {
	f.t.Helper()
	b, err := f.svc.CreditBalance(f.ctx, userID)
	require.NoError(f.t, err)
	return b
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_BuyReserveCancel(t *testing.T) {
	// GIVEN: 800 credits bought from a 300000 / 800 / 30-day policy
	// WHEN: Two 100-credit lessons are reserved, then one is canceled 10 days ahead
	// THEN: 800 -> 600 -> 700

	f := newMemoryFixture(t)
	kim := f.user("kim")

	lot := f.buy(kim, f.policy)
	assert.Equal(t, "2025-03-01", lot.StartDate.String())
	assert.Equal(t, "2025-03-31", lot.EndDate.String())
	assert.Equal(t, int64(800), f.balance(kim))

	first := f.lesson(10, 10)
	second := f.lesson(12, 10)

	res, err := f.svc.Reserve(f.ctx, kim, first)
	require.NoError(t, err)
	assert.Equal(t, gym.ReservationActive, res.Kind)
	_, err = f.svc.Reserve(f.ctx, kim, second)
	require.NoError(t, err)
	assert.Equal(t, int64(600), f.balance(kim))

	cancel, err := f.svc.Cancel(f.ctx, res.ID, kim)
	require.NoError(t, err)
	assert.Equal(t, gym.ReservationCancellation, cancel.Kind)
	assert.Equal(t, int64(700), f.balance(kim))

	entries, err := f.svc.Entries(f.ctx, kim)
	require.NoError(t, err)
	type row struct {
		Kind    gym.EntryKind
		Amount  int64
		Message string
	}
	var got []row
	for _, e := range entries {
		got = append(got, row{e.Kind, e.Amount, e.Message})
	}
	want := []row{
		{gym.EntryPurchase, 800, "Monthly membership purchase"},
		{gym.EntryUse, -100, "yoga lesson reservation"},
		{gym.EntryUse, -100, "yoga lesson reservation"},
		{gym.EntryRefund, 100, "yoga lesson reservation cancel"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_HalfRefundOneToTwoDaysAhead(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.policy)

	for _, days := range []int{1, 2} {
		lessonID := f.lesson(days, 10)
		res, err := f.svc.Reserve(f.ctx, kim, lessonID)
		require.NoError(t, err)
		_, err = f.svc.Cancel(f.ctx, res.ID, kim)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(700), f.balance(kim), "each cancel refunds 50 of 100")
}

func TestScenario_CancelOnLessonDayIsRefused(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.policy)
	lessonID := f.lesson(0, 10)

	res, err := f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, res.ID, kim)
	assert.ErrorIs(t, err, gym.ErrInvalidCancelDate)
	assert.Equal(t, int64(700), f.balance(kim))

	detail, err := f.svc.GetLesson(f.ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Holding)
	assert.Len(t, detail.Reservations, 1, "no cancellation record was written")
}

func TestScenario_ReservationSpansLots(t *testing.T) {
	// GIVEN: Two 60-credit lots
	// WHEN: A 100-credit lesson is reserved and canceled with full refund
	// THEN: Draws are 60 + 40 and the whole refund lands in the first lot

	f := newMemoryFixture(t)
	small := f.createPolicy(60, 30)
	kim := f.user("kim")
	lotA := f.buy(kim, small)
	lotB := f.buy(kim, small)

	res, err := f.svc.Reserve(f.ctx, kim, f.lesson(5, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(20), f.balance(kim))

	_, err = f.svc.Cancel(f.ctx, res.ID, kim)
	require.NoError(t, err)

	lots, err := f.svc.RemainingLots(f.ctx, kim)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, lotA.ID, lots[0].Entry.ID)
	assert.Equal(t, int64(100), lots[0].Remaining)
	assert.Equal(t, lotB.ID, lots[1].Entry.ID)
	assert.Equal(t, int64(20), lots[1].Remaining)
	assert.Equal(t, int64(120), f.balance(kim))
}

func TestScenario_RefundIntoExpiredLot(t *testing.T) {
	// GIVEN: A reservation paid from lot A, far in the future
	// WHEN: Lot A expires, a new lot B is bought, then the reservation is canceled
	// THEN: The refund goes to lot A; the balance rises but A stays unusable

	f := newMemoryFixture(t)
	kim := f.user("kim")
	lotA := f.buy(kim, f.policy)
	res, err := f.svc.Reserve(f.ctx, kim, f.lesson(60, 10))
	require.NoError(t, err)

	f.clock.AddDays(35)
	assert.Equal(t, int64(0), f.balance(kim))
	lotB := f.buy(kim, f.policy)

	cancel, err := f.svc.Cancel(f.ctx, res.ID, kim)
	require.NoError(t, err)
	assert.Equal(t, int64(900), f.balance(kim))

	detail, err := f.svc.UserDetail(f.ctx, kim)
	require.NoError(t, err)
	require.Len(t, detail.Reservations, 2)
	refunds := detail.Reservations[1]
	assert.Equal(t, cancel.ID, refunds.Reservation.ID)
	require.Len(t, refunds.Entries, 1)
	assert.Equal(t, lotA.ID, refunds.Entries[0].SourceLotID)
	assert.Equal(t, lotA.StartDate, refunds.Entries[0].StartDate)

	lots, err := f.svc.RemainingLots(f.ctx, kim)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, lotB.ID, lots[0].Entry.ID)
}

func TestScenario_YearOldPurchaseIsWorthNothing(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")

	_, err := f.svc.BuyCredit(f.ctx, kim, f.policy.ID, f.svc.Today().AddDays(-365))
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.balance(kim))

	_, err = f.svc.Reserve(f.ctx, kim, f.lesson(3, 10))
	assert.ErrorIs(t, err, gym.ErrNotEnoughCredit)

	expired, err := f.svc.ExpireLots(f.ctx, kim)
	require.NoError(t, err)
	assert.Empty(t, expired, "already swept by the balance read")
}

// =============================================================================
// RESERVE CHECK ORDER
// =============================================================================

func TestReserve_FullBeatsClosed(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	lessonID := f.lesson(-1, 0)

	_, err := f.svc.Reserve(f.ctx, kim, lessonID)
	assert.ErrorIs(t, err, gym.ErrExceedMaxCapacity)
}

func TestReserve_ClosedBeatsAlreadyRegistered(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.policy)
	lessonID := f.lesson(0, 10)

	_, err := f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err)

	f.clock.Add(9 * time.Hour) // 19:00, lesson started at 18:00
	_, err = f.svc.Reserve(f.ctx, kim, lessonID)
	assert.ErrorIs(t, err, gym.ErrExceedLessonTime)
}

func TestReserve_AlreadyRegisteredBeatsNotEnoughCredit(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.createPolicy(100, 30))
	lessonID := f.lesson(3, 10)

	_, err := f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.balance(kim))

	_, err = f.svc.Reserve(f.ctx, kim, lessonID)
	assert.ErrorIs(t, err, gym.ErrAlreadyRegistered)
}

func TestReserve_NotEnoughCreditWritesNothing(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.createPolicy(99, 30))
	lessonID := f.lesson(3, 10)

	_, err := f.svc.Reserve(f.ctx, kim, lessonID)
	assert.ErrorIs(t, err, gym.ErrNotEnoughCredit)

	detail, err := f.svc.GetLesson(f.ctx, lessonID)
	require.NoError(t, err)
	assert.Empty(t, detail.Reservations)
	assert.Equal(t, int64(99), f.balance(kim))
}

func TestReserve_ReRegisterAfterCancel(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.policy)
	lessonID := f.lesson(5, 1)

	res, err := f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, res.ID, kim)
	require.NoError(t, err)

	_, err = f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err, "the canceled seat is free again")
	assert.Equal(t, int64(700), f.balance(kim))
}

func TestReserve_Lookups(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")

	_, err := f.svc.Reserve(f.ctx, kim, "missing")
	assert.ErrorIs(t, err, gym.ErrLessonNotFound)

	_, err = f.svc.Reserve(f.ctx, "ghost", f.lesson(3, 10))
	assert.ErrorIs(t, err, gym.ErrUserNotFound)
}

// =============================================================================
// CANCEL CHECK ORDER
// =============================================================================

func TestCancel_CheckOrder(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	lee := f.user("lee")
	f.buy(kim, f.policy)
	lessonID := f.lesson(5, 10)

	res, err := f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err)
	cancel, err := f.svc.Cancel(f.ctx, res.ID, kim)
	require.NoError(t, err)

	// A cancellation record is rejected before ownership is looked at.
	_, err = f.svc.Cancel(f.ctx, cancel.ID, lee)
	assert.ErrorIs(t, err, gym.ErrInvalidReservationType)

	// Ownership is checked before the canceled flag.
	_, err = f.svc.Cancel(f.ctx, res.ID, lee)
	assert.ErrorIs(t, err, gym.ErrNotYourReservation)

	// The canceled flag is checked before the date.
	f.clock.AddDays(5)
	_, err = f.svc.Cancel(f.ctx, res.ID, kim)
	assert.ErrorIs(t, err, gym.ErrAlreadyCanceled)

	_, err = f.svc.Cancel(f.ctx, "missing", kim)
	assert.ErrorIs(t, err, gym.ErrReservationNotFound)

	assert.Equal(t, int64(800), f.balance(kim))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentReserve_LastSeat(t *testing.T) {
	// GIVEN: A lesson with one seat and two funded users
	// WHEN: Both reserve at the same time
	// THEN: Exactly one wins, the other sees ErrExceedMaxCapacity

	f := newSQLiteFixture(t)
	users := []gym.UserID{f.user("kim"), f.user("lee")}
	for _, u := range users {
		f.buy(u, f.policy)
	}
	lessonID := f.lesson(5, 1)

	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u gym.UserID) {
			defer wg.Done()
			_, errs[i] = f.svc.Reserve(f.ctx, u, lessonID)
		}(i, u)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, gym.ErrExceedMaxCapacity):
			full++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)

	detail, err := f.svc.GetLesson(f.ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Holding)
	assert.Equal(t, int64(1500), f.balance(users[0])+f.balance(users[1]))
}

func TestConcurrentCancel_RefundsOnce(t *testing.T) {
	f := newSQLiteFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.policy)
	res, err := f.svc.Reserve(f.ctx, kim, f.lesson(5, 10))
	require.NoError(t, err)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Cancel(f.ctx, res.ID, kim)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, gym.ErrAlreadyCanceled)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(800), f.balance(kim))
}

// =============================================================================
// CATALOG AND USERS
// =============================================================================

func TestBuyCredit_Lookups(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")

	_, err := f.svc.BuyCredit(f.ctx, kim, "missing", gym.Date{})
	assert.ErrorIs(t, err, gym.ErrPolicyNotFound)

	_, err = f.svc.BuyCredit(f.ctx, "ghost", f.policy.ID, gym.Date{})
	assert.ErrorIs(t, err, gym.ErrUserNotFound)
}

func TestCreatePolicyAndLesson_Validation(t *testing.T) {
	f := newMemoryFixture(t)

	_, err := f.svc.CreatePolicy(f.ctx, booking.NewPolicy{Name: "Broken", CreditCount: 0, Period: 30})
	assert.ErrorIs(t, err, gym.ErrInvalidPolicy)

	_, err = f.svc.CreateLesson(f.ctx, booking.NewLesson{
		Gym: gym.GymSeoul, Type: gym.LessonSwim, CreditCount: 100, MaxCapacity: 5,
		StartDate: f.svc.Today(), StartTime: gym.NewClockTime(10, 0), EndTime: gym.NewClockTime(9, 0),
	})
	assert.ErrorIs(t, err, gym.ErrInvalidEndTime)

	policies, err := f.svc.ListPolicies(f.ctx)
	require.NoError(t, err)
	assert.Len(t, policies, 1)
}

func TestEnsureAdmin(t *testing.T) {
	f := newMemoryFixture(t)

	admin, created, err := f.svc.EnsureAdmin(f.ctx, "admin")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin)

	again, created, err := f.svc.EnsureAdmin(f.ctx, "admin")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
}

func TestCreateUser_Validation(t *testing.T) {
	f := newMemoryFixture(t)

	_, err := f.svc.CreateUser(f.ctx, booking.NewUser{Username: "   "})
	assert.ErrorIs(t, err, gym.ErrInvalidUser)

	f.user("kim")
	_, err = f.svc.CreateUser(f.ctx, booking.NewUser{Username: " kim "})
	assert.ErrorIs(t, err, gym.ErrUsernameTaken)
}

func TestUserDetail(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")
	f.buy(kim, f.policy)

	res, err := f.svc.Reserve(f.ctx, kim, f.lesson(2, 10))
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, res.ID, kim)
	require.NoError(t, err)

	detail, err := f.svc.UserDetail(f.ctx, kim)
	require.NoError(t, err)
	assert.Equal(t, "kim", detail.User.Username)
	assert.Equal(t, int64(750), detail.CreditBalance)
	require.Len(t, detail.Reservations, 2)

	active := detail.Reservations[0]
	assert.True(t, active.Reservation.IsCanceled())
	require.Len(t, active.Entries, 1)
	assert.Equal(t, int64(-100), active.Entries[0].Amount)

	cancel := detail.Reservations[1]
	assert.Equal(t, active.Reservation.CancelID, cancel.Reservation.ID)
	require.Len(t, cancel.Entries, 1)
	assert.Equal(t, int64(50), cancel.Entries[0].Amount)

	_, err = f.svc.UserDetail(f.ctx, "ghost")
	assert.ErrorIs(t, err, gym.ErrUserNotFound)
}
