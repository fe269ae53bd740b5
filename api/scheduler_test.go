package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/booking"
	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/store/memory"
)

func TestExpiryScheduler_RunNow(t *testing.T) {
	// GIVEN: One lapsed lot and one lot ending in five days, neither swept
	// WHEN: The clock moves past the second lot's end and a sweep runs
	// THEN: Both lots are expired and a second sweep finds nothing

	ctx := context.Background()
	clk := clock.NewMockClock(time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.New(memory.New(), clk, time.UTC, logger)

	monthly, err := svc.CreatePolicy(ctx, monthlyPolicy())
	require.NoError(t, err)
	u, err := svc.CreateUser(ctx, booking.NewUser{Username: "kim"})
	require.NoError(t, err)
	_, err = svc.BuyCredit(ctx, u.ID, monthly.ID, svc.Today().AddDays(-45))
	require.NoError(t, err)
	_, err = svc.BuyCredit(ctx, u.ID, monthly.ID, svc.Today().AddDays(-25))
	require.NoError(t, err)

	scheduler := NewExpiryScheduler(svc, logger, time.Hour)
	assert.Equal(t, 1, scheduler.RunNow(ctx))

	clk.AddDays(10)
	assert.Equal(t, 1, scheduler.RunNow(ctx))
	assert.Equal(t, 0, scheduler.RunNow(ctx))

	balance, err := svc.CreditBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestExpiryScheduler_StartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.New(memory.New(), clock.NewMockClock(time.Now()), time.UTC, logger)

	disabled := NewExpiryScheduler(svc, logger, 0)
	disabled.Start()
	disabled.Stop()

	scheduler := NewExpiryScheduler(svc, logger, time.Millisecond)
	scheduler.Start()
	scheduler.Start() // second start is a no-op
	time.Sleep(5 * time.Millisecond)
	scheduler.Stop()
	scheduler.Stop()
}
