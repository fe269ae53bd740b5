package credit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/credit"
	"github.com/warp/gym-credit/gym"
)

func TestNewPurchaseEntry_DerivesEndDate(t *testing.T) {
	policy := monthlyPolicy()
	start := gym.NewDate(2025, time.March, 1)

	lot, err := credit.NewPurchaseEntry(credit.PurchaseParams{UserID: "u-1", Policy: policy, StartDate: start})
	require.NoError(t, err)

	assert.Equal(t, gym.EntryPurchase, lot.Kind)
	assert.Equal(t, int64(800), lot.Amount)
	require.NotNil(t, lot.EndDate)
	assert.Equal(t, "2025-03-31", lot.EndDate.String())
	assert.Equal(t, "Monthly membership purchase", lot.Message)
	assert.Equal(t, policy.ID, lot.PolicyID)
	assert.True(t, lot.IsLot())
	assert.NotEmpty(t, lot.ID)
}

func TestNewPurchaseEntry_Rejections(t *testing.T) {
	start := gym.NewDate(2025, time.March, 1)
	end := start.AddDays(10)

	_, err := credit.NewPurchaseEntry(credit.PurchaseParams{UserID: "u-1", StartDate: start})
	assert.ErrorIs(t, err, gym.ErrPolicyRequired)

	_, err = credit.NewPurchaseEntry(credit.PurchaseParams{UserID: "u-1", Policy: monthlyPolicy()})
	assert.ErrorIs(t, err, gym.ErrStartDateRequired)

	_, err = credit.NewPurchaseEntry(credit.PurchaseParams{UserID: "u-1", Policy: monthlyPolicy(), StartDate: start, EndDate: &end})
	assert.ErrorIs(t, err, gym.ErrEndDateDerived)
}

func TestNewRefundEntry_UsesLotStartDate(t *testing.T) {
	lot, err := credit.NewPurchaseEntry(credit.PurchaseParams{
		UserID: "u-1", Policy: monthlyPolicy(), StartDate: gym.NewDate(2025, time.January, 5),
	})
	require.NoError(t, err)

	refund := credit.NewRefundEntry(lot, "r-cancel", 50, "yoga lesson reservation cancel")

	assert.Equal(t, gym.EntryRefund, refund.Kind)
	assert.Equal(t, int64(50), refund.Amount)
	assert.Equal(t, lot.StartDate, refund.StartDate)
	assert.Equal(t, lot.ID, refund.SourceLotID)
	assert.Equal(t, lot.PolicyID, refund.PolicyID)
	assert.Nil(t, refund.EndDate)
}

func TestNewExpiryEntry_IsNotALot(t *testing.T) {
	lot, err := credit.NewPurchaseEntry(credit.PurchaseParams{
		UserID: "u-1", Policy: monthlyPolicy(), StartDate: gym.NewDate(2025, time.January, 5),
	})
	require.NoError(t, err)

	rev := credit.NewExpiryEntry(lot, 300, gym.NewDate(2025, time.February, 10))

	assert.Equal(t, gym.EntryPurchase, rev.Kind)
	assert.Equal(t, int64(-300), rev.Amount)
	assert.Equal(t, lot.ID, rev.ExpiredLotID)
	assert.Equal(t, lot.Message, rev.Message)
	assert.False(t, rev.IsLot())
	assert.True(t, rev.IsExpiryReversal())
	assert.NoError(t, credit.Validate(rev))
}

func TestValidate(t *testing.T) {
	day := gym.NewDate(2025, time.March, 1)
	end := day.AddDays(30)

	tests := []struct {
		name  string
		entry gym.LedgerEntry
		err   error
	}{
		{
			name:  "use with positive amount",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: gym.EntryUse, Amount: 10, StartDate: day, SourceLotID: "lot", ReservationID: "r"},
			err:   gym.ErrInvalidEntry,
		},
		{
			name:  "use without source lot",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: gym.EntryUse, Amount: -10, StartDate: day, ReservationID: "r"},
			err:   gym.ErrInvalidEntry,
		},
		{
			name:  "refund with end date",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: gym.EntryRefund, Amount: 10, StartDate: day, EndDate: &end, SourceLotID: "lot", ReservationID: "r"},
			err:   gym.ErrInvalidEntry,
		},
		{
			name:  "purchase without policy",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: gym.EntryPurchase, Amount: 10, StartDate: day, EndDate: &end},
			err:   gym.ErrPolicyRequired,
		},
		{
			name:  "missing start date",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: gym.EntryPurchase, Amount: 10, PolicyID: "p", EndDate: &end},
			err:   gym.ErrStartDateRequired,
		},
		{
			name:  "unknown kind",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: "bonus", Amount: 10, StartDate: day},
			err:   gym.ErrInvalidEntry,
		},
		{
			name:  "refund of zero is allowed",
			entry: gym.LedgerEntry{ID: "e", UserID: "u", Kind: gym.EntryRefund, Amount: 0, StartDate: day, SourceLotID: "lot", ReservationID: "r"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := credit.Validate(tt.entry)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
