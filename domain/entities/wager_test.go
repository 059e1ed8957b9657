package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenWager(amount int64) *Wager {
	return &Wager{
		ID:              "w1",
		Amount:          amount,
		RemainingAmount: amount,
		Status:          WagerStatusPending,
		Currency:        CurrencyReal,
	}
}

func TestWager_Fill(t *testing.T) {
	now := time.Now()

	t.Run("partial then full", func(t *testing.T) {
		w := newOpenWager(100)
		require.NoError(t, w.Fill(60, now))
		assert.Equal(t, WagerStatusPartiallyMatched, w.Status)
		assert.Equal(t, int64(40), w.RemainingAmount)

		require.NoError(t, w.Fill(40, now))
		assert.Equal(t, WagerStatusFullyMatched, w.Status)
		assert.Equal(t, int64(0), w.RemainingAmount)
	})

	t.Run("over-fill rejected", func(t *testing.T) {
		w := newOpenWager(50)
		assert.ErrorIs(t, w.Fill(51, now), ErrInvalidAmount)
		assert.Equal(t, int64(50), w.RemainingAmount)
		assert.Equal(t, WagerStatusPending, w.Status)
	})

	t.Run("fully matched wager cannot fill", func(t *testing.T) {
		w := newOpenWager(50)
		require.NoError(t, w.Fill(50, now))
		assert.Error(t, w.Fill(1, now))
	})
}

func TestWager_ReleaseRemainder(t *testing.T) {
	now := time.Now()

	t.Run("pending wager is cancelled with full refund", func(t *testing.T) {
		w := newOpenWager(50)
		refund, err := w.ReleaseRemainder(now)
		require.NoError(t, err)
		assert.Equal(t, int64(50), refund)
		assert.Equal(t, WagerStatusCancelled, w.Status)
		assert.True(t, w.IsTerminal())
	})

	t.Run("partially matched wager keeps its matched part", func(t *testing.T) {
		w := newOpenWager(100)
		require.NoError(t, w.Fill(60, now))
		refund, err := w.ReleaseRemainder(now)
		require.NoError(t, err)
		assert.Equal(t, int64(40), refund)
		assert.Equal(t, WagerStatusActive, w.Status)
		assert.Equal(t, int64(60), w.MatchedAmount())
		assert.Equal(t, int64(0), w.UnrefundedRemainder())
	})

	t.Run("fully matched wager is not cancellable", func(t *testing.T) {
		w := newOpenWager(50)
		require.NoError(t, w.Fill(50, now))
		_, err := w.ReleaseRemainder(now)
		assert.ErrorIs(t, err, ErrNotCancellable)
		assert.Equal(t, WagerStatusFullyMatched, w.Status)
	})
}

func TestWager_Lock(t *testing.T) {
	now := time.Now()

	w := newOpenWager(50)
	require.NoError(t, w.Fill(50, now))
	refund, err := w.Lock(now)
	require.NoError(t, err)
	assert.Zero(t, refund)
	assert.Equal(t, WagerStatusActive, w.Status)

	cancelled := newOpenWager(30)
	_, err = cancelled.ReleaseRemainder(now)
	require.NoError(t, err)
	refund, err = cancelled.Lock(now)
	require.NoError(t, err)
	assert.Zero(t, refund)
	assert.Equal(t, WagerStatusCancelled, cancelled.Status)
}

func TestWager_Settle(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name           string
		amount         int64
		filled         int64
		outcome        Outcome
		wantStatus     WagerStatus
		wantPayout     int64
		wantPushRefund int64
		wantRemainder  int64
	}{
		{"won fully matched", 50, 50, OutcomeWon, WagerStatusWon, 100, 0, 0},
		{"lost fully matched", 50, 50, OutcomeLost, WagerStatusLost, 0, 0, 0},
		{"push refunds matched", 50, 50, OutcomePush, WagerStatusPush, 0, 50, 0},
		{"won partial refunds remainder", 100, 60, OutcomeWon, WagerStatusWon, 120, 0, 40},
		{"lost partial refunds remainder", 100, 60, OutcomeLost, WagerStatusLost, 0, 0, 40},
		{"never matched is cancelled", 40, 0, OutcomeWon, WagerStatusCancelled, 0, 0, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newOpenWager(tt.amount)
			if tt.filled > 0 {
				require.NoError(t, w.Fill(tt.filled, now))
			}

			amounts, err := w.Settle(tt.outcome, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, w.Status)
			assert.Equal(t, tt.wantPayout, amounts.Payout)
			assert.Equal(t, tt.wantPushRefund, amounts.PushRefund)
			assert.Equal(t, tt.wantRemainder, amounts.RemainderRefund)
			assert.NotNil(t, w.SettledAt)

			_, err = w.Settle(tt.outcome, now)
			assert.ErrorIs(t, err, ErrAlreadySettled)
		})
	}

	t.Run("remainder already refunded at lock is not refunded twice", func(t *testing.T) {
		w := newOpenWager(100)
		require.NoError(t, w.Fill(60, now))
		_, err := w.Lock(now)
		require.NoError(t, err)

		amounts, err := w.Settle(OutcomeWon, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), amounts.RemainderRefund)
		assert.Equal(t, int64(120), amounts.Payout)
	})
}
