package repository

import (
	"context"
	"testing"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/repository/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositories(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	wagers := NewWagerRepository(testDB.DB)
	txs := NewTransactionRepository(testDB.DB)
	markets := NewMarketRepository(testDB.DB)

	t.Run("user versioned update", func(t *testing.T) {
		user := testutil.CreateTestUser("user-version", 100, 0)
		require.NoError(t, users.Create(ctx, user))
		assert.Equal(t, int64(1), user.Version)

		stale, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)

		user.PracticeBalance = 80
		today := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		user.LastWagerDate = &today
		require.NoError(t, users.Update(ctx, user))
		assert.Equal(t, int64(2), user.Version)

		stale.PracticeBalance = 50
		err = users.Update(ctx, stale)
		assert.ErrorIs(t, err, entities.ErrStoreConflict)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(80), stored.PracticeBalance)
		require.NotNil(t, stored.LastWagerDate)
		assert.True(t, entities.SameDate(today, *stored.LastWagerDate))
	})

	t.Run("duplicate user is a conflict", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, testutil.CreateTestUser("user-dup", 0, 0)))
		err := users.Create(ctx, testutil.CreateTestUser("user-dup", 0, 0))
		assert.ErrorIs(t, err, entities.ErrStoreConflict)
	})

	t.Run("negative balance is rejected by the store", func(t *testing.T) {
		user := testutil.CreateTestUser("user-negative", 10, 0)
		require.NoError(t, users.Create(ctx, user))
		user.PracticeBalance = -1
		err := users.Update(ctx, user)
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)
	})

	t.Run("missing rows read as nil", func(t *testing.T) {
		u, err := users.GetByID(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, u)
		m, err := markets.GetByID(ctx, "nothing")
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("market round trip", func(t *testing.T) {
		market := testutil.CreateTestMarket("market-roundtrip", "-3.5")
		featured := true
		preserved := decimal.RequireFromString("-2.5")
		market.Overrides = entities.AdminOverrides{Featured: &featured, PreservedLine: &preserved}
		require.NoError(t, markets.Create(ctx, market))

		loaded, err := markets.GetByID(ctx, market.ID)
		require.NoError(t, err)
		assert.True(t, loaded.Line.Equal(market.Line))
		assert.Equal(t, "HOM", loaded.SideA.ShortName)
		require.NotNil(t, loaded.Overrides.PreservedLine)
		assert.True(t, loaded.Overrides.PreservedLine.Equal(preserved))
		assert.True(t, loaded.EffectiveFeatured())
		assert.Nil(t, loaded.Overrides.Visible)
		assert.Nil(t, loaded.FinalScore)

		now := time.Now().UTC()
		loaded.Lock(now)
		loaded.FinalScore = &entities.FinalScore{ScoreA: 21, ScoreB: 20}
		loaded.FinalizedAt = &now
		require.NoError(t, markets.Update(ctx, loaded))

		final, err := markets.GetByID(ctx, market.ID)
		require.NoError(t, err)
		assert.True(t, final.IsLocked)
		require.NotNil(t, final.LockedLine)
		assert.True(t, final.LockedLine.Equal(decimal.RequireFromString("-3.5")))
		assert.Equal(t, &entities.FinalScore{ScoreA: 21, ScoreB: 20}, final.FinalScore)

		ids, err := markets.GetFinalizedUnsettled(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, market.ID)

		err = markets.Update(ctx, market)
		assert.ErrorIs(t, err, entities.ErrStoreConflict, "stale version")
	})

	t.Run("markets due for lock", func(t *testing.T) {
		market := testutil.CreateTestMarket("market-due", "0")
		market.StartTime = time.Now().UTC().Add(-time.Minute)
		require.NoError(t, markets.Create(ctx, market))

		ids, err := markets.GetDueForLock(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Contains(t, ids, market.ID)
		assert.NotContains(t, ids, "market-roundtrip")
	})

	t.Run("open candidates are FIFO and exclude the caller", func(t *testing.T) {
		market := testutil.CreateTestMarket("market-book", "1.5")
		require.NoError(t, markets.Create(ctx, market))
		for _, id := range []string{"maker-a", "maker-b", "taker"} {
			require.NoError(t, users.Create(ctx, testutil.CreateTestUser(id, 1000, 0)))
		}

		base := time.Now().UTC().Add(-time.Hour)
		second := testutil.CreateTestWager("maker-b", market, entities.CurrencyPractice, 30, false, base.Add(time.Minute))
		first := testutil.CreateTestWager("maker-a", market, entities.CurrencyPractice, 20, false, base)
		own := testutil.CreateTestWager("taker", market, entities.CurrencyPractice, 10, false, base.Add(-time.Minute))
		realMoney := testutil.CreateTestWager("maker-a", market, entities.CurrencyReal, 10, false, base)
		sameSide := testutil.CreateTestWager("maker-a", market, entities.CurrencyPractice, 10, true, base)
		for _, w := range []*entities.Wager{second, first, own, realMoney, sameSide} {
			require.NoError(t, wagers.Create(ctx, w))
		}

		candidates, err := wagers.GetOpenCandidates(ctx, market.ID, entities.CurrencyPractice, false, "taker")
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, first.ID, candidates[0].ID)
		assert.Equal(t, second.ID, candidates[1].ID)
		assert.True(t, candidates[0].RequestedLine.Equal(decimal.RequireFromString("1.5")))

		require.NoError(t, wagers.UpdateCurrentLine(ctx, market.ID, decimal.RequireFromString("2")))
		moved, err := wagers.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, moved.CurrentLine.Equal(decimal.RequireFromString("2")))
		assert.True(t, moved.RequestedLine.Equal(decimal.RequireFromString("1.5")))

		err = wagers.Update(ctx, first)
		assert.ErrorIs(t, err, entities.ErrStoreConflict, "line move bumps the version")

		fill := &entities.WagerFill{
			ID:           uuid.New().String(),
			MarketID:     market.ID,
			TakerWagerID: sameSide.ID,
			MakerWagerID: second.ID,
			Amount:       10,
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, wagers.RecordFill(ctx, fill))
		fills, err := wagers.GetFills(ctx, second.ID)
		require.NoError(t, err)
		require.Len(t, fills, 1)
		assert.Equal(t, int64(10), fills[0].Amount)

		open, err := wagers.GetByMarket(ctx, market.ID, entities.WagerStatusPending)
		require.NoError(t, err)
		assert.Len(t, open, 5)

		locked, err := markets.GetLockedWithOpenWagers(ctx)
		require.NoError(t, err)
		assert.NotContains(t, locked, market.ID)

		stats, err := wagers.GetStats(ctx, "maker-a")
		require.NoError(t, err)
		require.Len(t, stats.ByCurrency, 2)
		assert.Equal(t, int64(2), stats.ByCurrency[0].Placed)
		assert.Equal(t, int64(30), stats.ByCurrency[0].Staked)
	})

	t.Run("transactions are append-only", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, testutil.CreateTestUser("ledger-user", 0, 0)))
		for _, amount := range []int64{100, -30, 5} {
			require.NoError(t, txs.Record(ctx, &entities.Transaction{
				ID:        uuid.New().String(),
				UserID:    "ledger-user",
				Kind:      entities.TransactionKindAdjustment,
				Currency:  entities.CurrencyPractice,
				Amount:    amount,
				Status:    entities.TransactionStatusCompleted,
				CreatedAt: time.Now().UTC(),
			}))
		}

		sums, err := txs.SumByCurrency(ctx, "ledger-user")
		require.NoError(t, err)
		assert.Equal(t, int64(75), sums[entities.CurrencyPractice])
		assert.Equal(t, int64(0), sums[entities.CurrencyReal])

		history, err := txs.GetByUser(ctx, "ledger-user", 2)
		require.NoError(t, err)
		assert.Len(t, history, 2)

		_, err = testDB.DB.Exec(ctx, `UPDATE transactions SET amount = 0 WHERE user_id = 'ledger-user'`)
		assert.ErrorContains(t, err, "append-only")
		_, err = testDB.DB.Exec(ctx, `DELETE FROM transactions WHERE user_id = 'ledger-user'`)
		assert.ErrorContains(t, err, "append-only")
	})
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewTestUnitOfWorkFactory(testDB.DB)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, testutil.CreateTestUser("rolled-back", 10, 0)))
	require.NoError(t, uow.EventBus().Publish(events.UserCreatedEvent{UserID: "rolled-back"}))
	require.NoError(t, uow.Rollback())

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, testutil.CreateTestUser("committed", 10, 0)))
	require.NoError(t, uow.EventBus().Publish(events.UserCreatedEvent{UserID: "committed"}))
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

	users := NewUserRepository(testDB.DB)
	gone, err := users.GetByID(ctx, "rolled-back")
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := users.GetByID(ctx, "committed")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	published := factory.Sink.Events()
	require.Len(t, published, 1)
	assert.Equal(t, "committed", published[0].(events.UserCreatedEvent).UserID)
}
