package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/rank"
	"casino-bot/internal/rng"
)

func TestCreateSession_CoinflipWin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0)) // heads
	h.player(t, "p1")

	res, err := h.games.CreateSession(ctx, "p1", game.Coinflip, 10, game.Params{Side: rng.Heads})
	require.NoError(t, err)

	assert.True(t, res.Resolution.Resolved)
	assert.Equal(t, game.StatusWon, res.Session.Status)
	assert.Equal(t, int64(19), res.Session.Payout)
	assert.Equal(t, int64(startingCoins+9), res.Balance)

	p := h.get(t, "p1")
	assert.Equal(t, int64(startingCoins+9), p.Coins)
	assert.Equal(t, int64(1), p.TotalWins)
	assert.Equal(t, int64(1), p.TotalGamesPlayed)

	list := h.journal(t, "p1")
	assert.Equal(t, int64(-10), sumAmounts(list, model.Coins, model.TxTypeBet))
	assert.Equal(t, int64(19), sumAmounts(list, model.Coins, model.TxTypePayout))
}

func TestCreateSession_CoinflipLoss(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	res, err := h.games.CreateSession(ctx, "p1", game.Coinflip, 10, game.Params{Side: rng.Tails})
	require.NoError(t, err)
	assert.Equal(t, game.StatusLost, res.Session.Status)
	assert.Equal(t, int64(startingCoins-10), res.Balance)

	p := h.get(t, "p1")
	assert.Zero(t, p.TotalWins)
	assert.Equal(t, int64(1), p.TotalGamesPlayed)
	assert.Zero(t, sumAmounts(h.journal(t, "p1"), model.Coins, model.TxTypePayout))
}

func TestCreateSession_PreflightLeavesBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0), game.Coinflip, game.Mines)
	h.player(t, "p1")

	tests := []struct {
		name   string
		gt     game.Type
		bet    int64
		params game.Params
		want   error
	}{
		{"bet below min", game.Coinflip, 0, game.Params{Side: rng.Heads}, game.ErrBetOutOfRange},
		{"bet above max", game.Coinflip, 10001, game.Params{Side: rng.Heads}, game.ErrBetOutOfRange},
		{"insufficient funds", game.Coinflip, startingCoins + 1, game.Params{Side: rng.Heads}, model.ErrInsufficientFunds},
		{"unconfigured game", game.Tower, 10, game.Params{}, game.ErrInvalidConfiguration},
		{"unknown mine count", game.Mines, 10, game.Params{MineCount: 4}, game.ErrInvalidAction},
		{"missing side", game.Coinflip, 10, game.Params{}, game.ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.games.CreateSession(ctx, "p1", tt.gt, tt.bet, tt.params)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(startingCoins), h.get(t, "p1").Coins)
			assert.Zero(t, sumAmounts(h.journal(t, "p1"), model.Coins, model.TxTypeBet))
		})
	}
}

func TestCreateSession_UnknownPlayer(t *testing.T) {
	h := newHarness(t, rng.Constant(0))
	_, err := h.games.CreateSession(context.Background(), "ghost", game.Coinflip, 10, game.Params{Side: rng.Heads})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestMines_LossForfeitsBet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0)) // mines on cells 0..4
	h.player(t, "p1")

	res, err := h.games.CreateSession(ctx, "p1", game.Mines, 10, game.Params{MineCount: 5})
	require.NoError(t, err)
	assert.False(t, res.Resolution.Resolved)
	assert.Equal(t, int64(startingCoins-10), res.Balance)

	res, err = h.games.ApplyAction(ctx, "p1", res.Session.ID, game.Reveal{Cell: 0})
	require.NoError(t, err)
	assert.Equal(t, game.StatusLost, res.Session.Status)
	assert.Zero(t, res.Session.Payout)

	p := h.get(t, "p1")
	assert.Equal(t, int64(startingCoins-10), p.Coins)
	assert.Zero(t, p.TotalWins)
	assert.Equal(t, int64(1), p.TotalGamesPlayed)
}

func TestMines_DoubleCashOutCreditsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	res, err := h.games.CreateSession(ctx, "p1", game.Mines, 10, game.Params{MineCount: 5})
	require.NoError(t, err)
	id := res.Session.ID

	_, err = h.games.CashOut(ctx, "p1", id)
	assert.ErrorIs(t, err, game.ErrInvalidState, "cash-out before any reveal")

	_, err = h.games.ApplyAction(ctx, "p1", id, game.Reveal{Cell: 10})
	require.NoError(t, err)

	res, err = h.games.CashOut(ctx, "p1", id)
	require.NoError(t, err)
	assert.Equal(t, game.StatusCashedOut, res.Session.Status)
	assert.Equal(t, int64(12), res.Session.Payout) // floor(10 * 1.2)

	_, err = h.games.CashOut(ctx, "p1", id)
	assert.ErrorIs(t, err, game.ErrInvalidState)

	assert.Equal(t, int64(startingCoins+2), h.get(t, "p1").Coins)
	assert.Equal(t, int64(12), sumAmounts(h.journal(t, "p1"), model.Coins, model.TxTypePayout))
}

func TestTower_FullClimb(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0)) // block 0 is correct on every floor
	h.player(t, "p1")

	res, err := h.games.CreateSession(ctx, "p1", game.Tower, 10, game.Params{})
	require.NoError(t, err)
	id := res.Session.ID

	for level := 0; level < 8; level++ {
		res, err = h.games.ApplyAction(ctx, "p1", id, game.SelectBlock{Level: level, Block: 0})
		require.NoError(t, err, "level %d", level)
	}

	assert.Equal(t, game.StatusWon, res.Session.Status)
	assert.Equal(t, int64(62329), res.Session.Payout) // floor(10 * 6232.95)
	assert.Equal(t, int64(startingCoins-10+62329), h.get(t, "p1").Coins)

	_, err = h.games.ApplyAction(ctx, "p1", id, game.SelectBlock{Level: 8, Block: 0})
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestApplyAction_Ownership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")
	h.player(t, "p2")

	res, err := h.games.CreateSession(ctx, "p1", game.Tower, 10, game.Params{})
	require.NoError(t, err)

	_, err = h.games.ApplyAction(ctx, "p2", res.Session.ID, game.SelectBlock{Level: 0, Block: 0})
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	_, err = h.games.GetSession(ctx, "p2", res.Session.ID)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	_, err = h.games.ApplyAction(ctx, "p1", "missing", game.CashOut{})
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestActiveSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	ok, err := h.games.HasActiveSession(ctx, "p1", game.Tower)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := h.games.CreateSession(ctx, "p1", game.Tower, 10, game.Params{})
	require.NoError(t, err)

	active, err := h.games.ActiveSession(ctx, "p1", game.Tower)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, active.ID)

	_, err = h.games.ApplyAction(ctx, "p1", active.ID, game.SelectBlock{Level: 0, Block: 1})
	require.NoError(t, err)

	ok, err = h.games.HasActiveSession(ctx, "p1", game.Tower)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettle_RankUpReward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, rng.Constant(0))
	h.player(t, "p1")

	change, err := h.ranks.RecordWins(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Nil(t, change)

	res, err := h.games.CreateSession(ctx, "p1", game.Coinflip, 10, game.Params{Side: rng.Heads})
	require.NoError(t, err)
	require.NotNil(t, res.RankChange)
	assert.Equal(t, rank.Rookie, res.RankChange.To.Rank)
	assert.Equal(t, 2, res.RankChange.To.Level)
	assert.Equal(t, rank.Reward{Coins: 100, Gems: 2}, res.RankChange.Reward)

	p := h.get(t, "p1")
	assert.Equal(t, int64(startingCoins+9+100), p.Coins)
	assert.Equal(t, int64(2), p.Gems)
	assert.Equal(t, 2, p.RankLevel)
	assert.Equal(t, int64(startingCoins+9+100), res.Balance)
}

// Every coin the bet and payout entries moved is accounted for by the
// sessions' net results, and balances never go negative.
func TestConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		src := rng.NewSeededSource(rapid.Uint64().Draw(t, "seed1"), rapid.Uint64().Draw(t, "seed2"))
		h := newHarness(t, src)
		h.player(t, "p1")

		sessions := map[string]bool{}
		rounds := rapid.IntRange(1, 30).Draw(t, "rounds")
		for i := 0; i < rounds; i++ {
			bet := rapid.Int64Range(1, 300).Draw(t, "bet")
			var (
				res *SessionResult
				err error
			)
			switch rapid.IntRange(0, 2).Draw(t, "game") {
			case 0:
				side := rapid.SampledFrom([]rng.Side{rng.Heads, rng.Tails}).Draw(t, "side")
				res, err = h.games.CreateSession(ctx, "p1", game.Coinflip, bet, game.Params{Side: side})
			case 1:
				res, err = h.games.CreateSession(ctx, "p1", game.Mines, bet, game.Params{MineCount: 3})
				if err == nil {
					cell := rapid.IntRange(0, 24).Draw(t, "cell")
					res, err = h.games.ApplyAction(ctx, "p1", res.Session.ID, game.Reveal{Cell: cell})
					if err == nil && !res.Resolution.Resolved && rapid.Bool().Draw(t, "cashout") {
						res, err = h.games.CashOut(ctx, "p1", res.Session.ID)
					}
				}
			default:
				res, err = h.games.CreateSession(ctx, "p1", game.Tower, bet, game.Params{})
				if err == nil {
					block := rapid.IntRange(0, 2).Draw(t, "block")
					res, err = h.games.ApplyAction(ctx, "p1", res.Session.ID, game.SelectBlock{Level: 0, Block: block})
				}
			}
			if err != nil {
				if !assert.ErrorIs(t, err, model.ErrInsufficientFunds) {
					t.FailNow()
				}
				continue
			}
			sessions[res.Session.ID] = true
		}

		var net int64
		for id := range sessions {
			sess, err := h.games.GetSession(ctx, "p1", id)
			require.NoError(t, err)
			if sess.Status.Terminal() {
				net += sess.Net()
			} else {
				net -= sess.Bet
			}
		}

		p := h.get(t, "p1")
		list := h.journal(t, "p1")
		require.GreaterOrEqual(t, p.Coins, int64(0))
		require.Equal(t, net, sumAmounts(list, model.Coins, model.TxTypeBet, model.TxTypePayout))
		require.Equal(t, p.Coins, sumAmounts(list, model.Coins))
	})
}
