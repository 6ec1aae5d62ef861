package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"casino-bot/internal/model"
	"casino-bot/internal/rank"
	"casino-bot/internal/rng"
)

func TestEnsurePlayer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))

	p, created, err := h.accounts.EnsurePlayer(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(startingCoins), p.Coins)
	assert.Equal(t, rank.Rookie, p.Rank)
	assert.Equal(t, 1, p.RankLevel)

	p, created, err = h.accounts.EnsurePlayer(ctx, "p1", "alice2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice2", p.Name)
	assert.Equal(t, int64(startingCoins), p.Coins, "starting balance granted once")

	list := h.journal(t, "p1")
	require.Len(t, list, 1)
	assert.Equal(t, model.TxTypeInitial, list[0].Type)
	assert.Equal(t, int64(startingCoins), list[0].Balance)
}

func TestLedger_DebitCredit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	bal, err := h.ledger.Debit(ctx, "p1", Entry{Currency: model.Coins, Amount: 300, Type: model.TxTypeAdminGrant})
	require.NoError(t, err)
	assert.Equal(t, int64(startingCoins-300), bal)

	_, err = h.ledger.Debit(ctx, "p1", Entry{Currency: model.Coins, Amount: startingCoins, Type: model.TxTypeAdminGrant})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = h.ledger.Debit(ctx, "p1", Entry{Currency: model.Coins, Amount: 0, Type: model.TxTypeAdminGrant})
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	bal, err = h.ledger.Credit(ctx, "p1", Entry{Currency: model.Gems, Amount: 7, Type: model.TxTypeAdminGrant, Reference: "test"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), bal)

	_, err = h.ledger.Credit(ctx, "ghost", Entry{Currency: model.Gems, Amount: 7, Type: model.TxTypeAdminGrant})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	list := h.journal(t, "p1")
	require.Len(t, list, 3)
	assert.Equal(t, model.Gems, list[0].Currency, "newest first")
	require.NotNil(t, list[0].Reference)
	assert.Equal(t, "test", *list[0].Reference)
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Debit(ctx, "p1", Entry{Currency: model.Coins, Amount: 100, Type: model.TxTypeBet})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, model.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, startingCoins/100, ok)
	assert.Zero(t, h.get(t, "p1").Coins)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")
	h.player(t, "p2")

	bal, err := h.ledger.Transfer(ctx, "p1", "p2", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(startingCoins-250), bal)
	assert.Equal(t, int64(startingCoins+250), h.get(t, "p2").Coins)

	_, err = h.ledger.Transfer(ctx, "p1", "p1", 1)
	assert.ErrorIs(t, err, model.ErrSelfTransfer)

	_, err = h.ledger.Transfer(ctx, "p1", "p2", 0)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = h.ledger.Transfer(ctx, "p1", "p2", startingCoins)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = h.ledger.Transfer(ctx, "p1", "ghost", 1)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	assert.Equal(t, int64(startingCoins-250), h.get(t, "p1").Coins)
	assert.Equal(t, int64(2*startingCoins), h.get(t, "p1").Coins+h.get(t, "p2").Coins)
}

func TestGrant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	bal, err := h.accounts.Grant(ctx, "admin", "p1", model.Gems, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(15), bal)

	bal, err = h.accounts.Grant(ctx, "admin", "p1", model.Gems, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	_, err = h.accounts.Grant(ctx, "admin", "p1", model.Gems, -11)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = h.accounts.Grant(ctx, "admin", "p1", model.Gems, 0)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	list := h.journal(t, "p1")
	assert.Equal(t, int64(10), sumAmounts(list, model.Gems, model.TxTypeAdminGrant))
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")
	h.player(t, "p2")
	h.player(t, "p3")

	_, err := h.ranks.RecordWins(ctx, "p2", 12)
	require.NoError(t, err)
	_, err = h.ranks.RecordWins(ctx, "p3", 3)
	require.NoError(t, err)

	top, err := h.accounts.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "p2", top[0].PlayerID)
	assert.Equal(t, int64(12), top[0].TotalWins)
	assert.Equal(t, "p3", top[1].PlayerID)
}

func TestRecordWins_BatchRewardsEachTier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	change, err := h.ranks.RecordWins(ctx, "p1", 36)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Len(t, change.Crossed, 4) // rookie 2, rookie 3, bronze 1, bronze 2
	assert.Equal(t, rank.Reward{Coins: 550, Gems: 11}, change.Reward)

	p := h.get(t, "p1")
	assert.Equal(t, rank.Bronze, p.Rank)
	assert.Equal(t, 2, p.RankLevel)
	assert.Equal(t, int64(startingCoins+550), p.Coins)
	assert.Equal(t, int64(11), p.Gems)

	_, err = h.ranks.RecordWins(ctx, "p1", 0)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	info, err := h.ranks.PlayerInfo(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, h.ranks.Info(36), info)
}

// Rank rewards paid in increments add up to the same total as one batch.
func TestRecordWins_SplitMatchesBatchProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		h := newHarness(t, rng.Constant(0))
		h.player(t, "split")
		h.player(t, "batch")

		var total int64
		for _, n := range rapid.SliceOfN(rapid.Int64Range(1, 120), 1, 10).Draw(t, "wins") {
			_, err := h.ranks.RecordWins(ctx, "split", n)
			require.NoError(t, err)
			total += n
		}
		_, err := h.ranks.RecordWins(ctx, "batch", total)
		require.NoError(t, err)

		split, batch := h.get(t, "split"), h.get(t, "batch")
		require.Equal(t, batch.Coins, split.Coins)
		require.Equal(t, batch.Gems, split.Gems)
		require.Equal(t, batch.Rank, split.Rank)
		require.Equal(t, batch.RankLevel, split.RankLevel)
	})
}

func TestCredit_RejectsBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "whale")

	bal, err := h.accounts.Grant(ctx, "admin", "whale", model.Coins, math.MaxInt64-startingCoins)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), bal)
	journaled := len(h.journal(t, "whale"))

	_, err = h.ledger.Credit(ctx, "whale", Entry{Currency: model.Coins, Amount: 10, Type: model.TxTypePayout})
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = h.accounts.Grant(ctx, "admin", "whale", model.Coins, 1)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	h.player(t, "payer")
	_, err = h.ledger.Transfer(ctx, "payer", "whale", 5)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	assert.Equal(t, int64(startingCoins), h.get(t, "payer").Coins, "failed transfer must not debit the sender")

	_, err = h.redeem.CreateCode(ctx, "bonus", model.Reward{Coins: 10}, 5, testNow.Add(time.Hour))
	require.NoError(t, err)
	_, err = h.redeem.Redeem(ctx, "whale", "bonus")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	codes, err := h.redeem.ListCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Zero(t, codes[0].CurrentUses, "failed claim must not consume a use")

	assert.Equal(t, int64(math.MaxInt64), h.get(t, "whale").Coins)
	assert.Len(t, h.journal(t, "whale"), journaled)
}

func TestRecordWins_RejectsWinCountOverflow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	_, err := h.ranks.RecordWins(ctx, "p1", 100)
	require.NoError(t, err)
	before := h.get(t, "p1")

	_, err = h.ranks.RecordWins(ctx, "p1", math.MaxInt64-50)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	after := h.get(t, "p1")
	assert.Equal(t, int64(100), after.TotalWins)
	assert.Equal(t, before.Rank, after.Rank)
	assert.Equal(t, before.RankLevel, after.RankLevel)
	assert.Equal(t, before.Coins, after.Coins)
}
