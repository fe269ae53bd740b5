package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/gym"
	"github.com/warp/gym-credit/store/memory"
	"github.com/warp/gym-credit/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) gym.TxStore {
		return memory.New()
	})
}

func TestMemoryStore_DuplicateEntryID(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := gym.LedgerEntry{ID: "e-1", UserID: "u-1", Kind: gym.EntryRefund, Amount: 10, SourceLotID: "lot"}

	require.NoError(t, s.AppendEntry(ctx, e))
	assert.ErrorIs(t, s.AppendEntry(ctx, e), gym.ErrInvalidEntry)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateReservation(ctx, gym.Reservation{ID: "r-1", UserID: "u-1", LessonID: "l-1", Kind: gym.ReservationActive}))

	r, err := s.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	r.CancelID = "tampered"

	again, err := s.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	assert.False(t, again.IsCanceled())
}
