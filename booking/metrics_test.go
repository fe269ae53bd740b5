package booking_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/gym"
	"github.com/warp/gym-credit/metrics"
)

func TestMetrics_RecordedAfterCommit(t *testing.T) {
	f := newMemoryFixture(t)
	kim := f.user("kim")

	okBefore := testutil.ToFloat64(metrics.Operations.WithLabelValues("reserve", "ok"))
	poorBefore := testutil.ToFloat64(metrics.Operations.WithLabelValues("reserve", "not_enough_credit"))
	consumedBefore := testutil.ToFloat64(metrics.CreditsConsumed)
	expiredBefore := testutil.ToFloat64(metrics.LotsExpired)

	lessonID := f.lesson(5, 10)
	_, err := f.svc.Reserve(f.ctx, kim, lessonID)
	require.ErrorIs(t, err, gym.ErrNotEnoughCredit)

	f.buy(kim, f.policy)
	_, err = f.svc.Reserve(f.ctx, kim, lessonID)
	require.NoError(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.Operations.WithLabelValues("reserve", "ok")))
	assert.Equal(t, poorBefore+1, testutil.ToFloat64(metrics.Operations.WithLabelValues("reserve", "not_enough_credit")))
	assert.Equal(t, consumedBefore+100, testutil.ToFloat64(metrics.CreditsConsumed))

	f.clock.AddDays(40)
	assert.Equal(t, int64(0), f.balance(kim))
	assert.Equal(t, expiredBefore+1, testutil.ToFloat64(metrics.LotsExpired))
}
