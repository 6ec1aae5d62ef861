// Tests use testcontainers-go to spin up a PostgreSQL container.
package postgres

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/rank"
	"casino-bot/internal/repository"
	"casino-bot/internal/rng"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated store.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*Store, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return NewStore(pool), cleanup
}

func newPlayer(id string, coins int64) *model.Player {
	return &model.Player{
		ID: id, Name: id, Coins: coins,
		Rank: rank.Rookie, RankLevel: 1,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestPlayers_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.Players().Create(ctx, newPlayer("p1", 1000))
	}))

	err := store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.Players().Create(ctx, newPlayer("p1", 1))
	})
	assert.ErrorIs(t, err, repository.ErrPlayerExists)

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, "p1")
		if err != nil {
			return err
		}
		p.Coins, p.Gems, p.TotalWins = 900, 3, 7
		p.UpdatedAt = now.Add(time.Minute)
		return tx.Players().Update(ctx, p)
	}))

	require.NoError(t, store.View(ctx, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(900), p.Coins)
		assert.Equal(t, int64(3), p.Gems)
		assert.Equal(t, int64(7), p.TotalWins)
		assert.Equal(t, rank.Rookie, p.Rank)

		_, err = tx.Players().Get(ctx, "ghost")
		assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
		return nil
	}))
}

func TestPlayers_NegativeBalanceRejected(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.Players().Create(ctx, newPlayer("p1", 10))
	}))

	err := store.Atomic(ctx, func(tx repository.Tx) error {
		p := newPlayer("p1", -1)
		return tx.Players().Update(ctx, p)
	})
	assert.Error(t, err)
}

func TestAtomic_RollsBack(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx repository.Tx) error {
		if err := tx.Players().Create(ctx, newPlayer("p1", 10)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.View(ctx, func(tx repository.Tx) error {
		_, err := tx.Players().Get(ctx, "p1")
		assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
		return nil
	}))
}

func TestSessions_RoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	reg := game.NewRegistry()
	require.NoError(t, reg.Register(&game.TowerRules{
		BetLimits:        game.BetLimits{MinBet: 1, MaxBet: 100},
		HouseEdgePercent: decimal.NewFromInt(5),
		BlocksPerLevel:   3,
		Levels: []game.TowerLevel{
			{Level: 1, Multiplier: decimal.RequireFromString("2.85")},
			{Level: 2, Multiplier: decimal.RequireFromString("8.55")},
		},
	}))

	sess, _, err := reg.Start(game.StartRequest{PlayerID: "p1", Type: game.Tower, Bet: 10, Now: now},
		rng.NewGenerator(rng.Constant(1)))
	require.NoError(t, err)

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		if err := tx.Players().Create(ctx, newPlayer("p1", 10)); err != nil {
			return err
		}
		return tx.Sessions().Create(ctx, sess)
	}))

	_, err = sess.Apply(game.SelectBlock{Level: 0, Block: 1}, now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.Sessions().Update(ctx, sess)
	}))

	require.NoError(t, store.View(ctx, func(tx repository.Tx) error {
		got, err := tx.Sessions().LatestActive(ctx, "p1", game.Tower)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.True(t, got.Multiplier.Equal(decimal.RequireFromString("2.85")))

		p, ok := got.Progress.(*game.TowerProgress)
		require.True(t, ok)
		assert.Equal(t, 1, p.CurrentLevel)
		assert.Equal(t, []int{1, 1}, p.Correct)
		assert.Equal(t, []int{1}, p.Picks)

		_, err = tx.Sessions().Get(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, game.ErrSessionNotFound)
		return nil
	}))
}

func TestCodes_RedemptionsAndCase(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		if err := tx.Players().Create(ctx, newPlayer("p1", 0)); err != nil {
			return err
		}
		return tx.Codes().Create(ctx, &model.RedeemCode{
			Code: "Launch", Reward: model.Reward{Coins: 100, Gems: 2},
			MaxUses: 1, ExpiresAt: now.Add(time.Hour), IsActive: true, CreatedAt: now,
		})
	}))

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		c, err := tx.Codes().Get(ctx, "LAUNCH")
		if err != nil {
			return err
		}
		c.CurrentUses++
		if err := tx.Codes().Update(ctx, c); err != nil {
			return err
		}
		return tx.Codes().AddRedemption(ctx, c.Code, "p1", now)
	}))

	err := store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.Codes().AddRedemption(ctx, "launch", "p1", now)
	})
	assert.ErrorIs(t, err, model.ErrAlreadyRedeemed)

	require.NoError(t, store.View(ctx, func(tx repository.Tx) error {
		ok, err := tx.Codes().HasRedeemed(ctx, "Launch", "p1")
		require.NoError(t, err)
		assert.True(t, ok)

		list, err := tx.Codes().List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(1), list[0].CurrentUses)
		assert.Equal(t, model.Reward{Coins: 100, Gems: 2}, list[0].Reward)
		return nil
	}))
}

func TestTransactions_Journal(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ref := "session-1"
	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		if err := tx.Players().Create(ctx, newPlayer("p1", 0)); err != nil {
			return err
		}
		for _, amt := range []int64{-10, 19} {
			err := tx.Transactions().Create(ctx, &model.Transaction{
				PlayerID: "p1", Currency: model.Coins, Amount: amt, Type: model.TxTypePayout,
				Reference: &ref, CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx repository.Tx) error {
		list, err := tx.Transactions().ListByPlayer(ctx, "p1", 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, int64(19), list[0].Amount)
		assert.Equal(t, model.Coins, list[0].Currency)
		require.NotNil(t, list[0].Reference)
		assert.Equal(t, ref, *list[0].Reference)
		return nil
	}))
}

// TestAtomic_SerializesSamePlayer checks that FOR UPDATE makes concurrent
// read-modify-write cycles on one player lose no updates.
func TestAtomic_SerializesSamePlayer(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.Players().Create(ctx, newPlayer("p1", 0))
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Atomic(ctx, func(tx repository.Tx) error {
				p, err := tx.Players().Get(ctx, "p1")
				if err != nil {
					return err
				}
				p.Coins++
				return tx.Players().Update(ctx, p)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, store.View(ctx, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(20), p.Coins)
		return nil
	}))
}
