package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/rank"
	"casino-bot/internal/repository/memory"
	"casino-bot/internal/rng"
)

const (
	startingCoins = 1000
	startingGems  = 0
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

type harness struct {
	env      *Env
	store    *memory.Store
	ledger   *LedgerService
	accounts *AccountService
	ranks    *RankService
	games    *GameService
	redeem   *RedeemService
	now      time.Time
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testRegistry(t testingT, types ...game.Type) *game.Registry {
	t.Helper()
	mults := []string{"2.85", "8.55", "25.65", "76.95", "230.85", "692.55", "2077.65", "6232.95"}
	levels := make([]game.TowerLevel, len(mults))
	for i, m := range mults {
		levels[i] = game.TowerLevel{Level: i + 1, Multiplier: d(m)}
	}

	all := map[game.Type]game.Rules{
		game.Coinflip: &game.CoinflipRules{
			BetLimits:        game.BetLimits{MinBet: 1, MaxBet: 10000},
			HouseEdgePercent: d("2.5"),
		},
		game.Mines: &game.MinesRules{
			BetLimits:        game.BetLimits{MinBet: 1, MaxBet: 10000},
			HouseEdgePercent: d("1"),
			GridSize:         25,
			BaseMultiplier:   d("1"),
			Difficulties: []game.MinesDifficulty{
				{Name: "easy", MineCount: 3, Step: d("0.1")},
				{Name: "medium", MineCount: 5, Step: d("0.2")},
			},
		},
		game.Tower: &game.TowerRules{
			BetLimits:        game.BetLimits{MinBet: 1, MaxBet: 10000},
			HouseEdgePercent: d("5"),
			BlocksPerLevel:   3,
			Levels:           levels,
		},
	}
	if len(types) == 0 {
		types = game.Types()
	}

	reg := game.NewRegistry()
	for _, gt := range types {
		require.NoError(t, reg.Register(all[gt]))
	}
	return reg
}

func newHarness(t testingT, src rng.Source, types ...game.Type) *harness {
	t.Helper()
	store := memory.NewStore()
	h := &harness{store: store, now: testNow}
	h.env = NewEnv(store, lock.NewKeyLock(), 5*time.Second)
	h.env.Clock = func() time.Time { return h.now }

	table := rank.Default()
	h.ledger = NewLedgerService(h.env)
	h.accounts = NewAccountService(h.env, h.ledger, table, startingCoins, startingGems)
	h.ranks = NewRankService(h.env, h.ledger, table)
	h.games = NewGameService(h.env, h.ledger, h.ranks, testRegistry(t, types...), rng.NewGenerator(src))
	h.redeem = NewRedeemService(h.env, h.ledger)
	return h
}

func (h *harness) player(t testingT, id string) *model.Player {
	t.Helper()
	p, _, err := h.accounts.EnsurePlayer(context.Background(), id, "player "+id)
	require.NoError(t, err)
	return p
}

func (h *harness) get(t testingT, id string) *model.Player {
	t.Helper()
	p, err := h.accounts.GetPlayer(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) journal(t testingT, id string) []*model.Transaction {
	t.Helper()
	list, err := h.ledger.History(context.Background(), id, 0)
	require.NoError(t, err)
	return list
}

func sumAmounts(list []*model.Transaction, c model.Currency, types ...string) int64 {
	var total int64
	for _, tx := range list {
		if tx.Currency != c {
			continue
		}
		if len(types) > 0 && !lo.Contains(types, tx.Type) {
			continue
		}
		total += tx.Amount
	}
	return total
}
