package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/rank"
	"casino-bot/internal/repository"
)

// RankChange is emitted when recorded wins move a player up the ladder.
type RankChange struct {
	PlayerID string
	rank.Change
}

// RankService keeps rank and level consistent with total wins and pays
// rank-up rewards.
type RankService struct {
	env    *Env
	ledger *LedgerService
	table  *rank.Table
}

// NewRankService creates a new RankService instance.
func NewRankService(env *Env, ledger *LedgerService, table *rank.Table) *RankService {
	return &RankService{env: env, ledger: ledger, table: table}
}

// Table returns the rank ladder.
func (s *RankService) Table() *rank.Table {
	return s.table
}

// Info returns the rank info for a win count. It has no side effects.
func (s *RankService) Info(totalWins int64) rank.Info {
	return s.table.For(totalWins)
}

// PlayerInfo returns the rank info of a stored player.
func (s *RankService) PlayerInfo(ctx context.Context, playerID string) (rank.Info, error) {
	var info rank.Info
	err := s.env.view(ctx, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, playerID)
		if err != nil {
			return err
		}
		info = s.table.For(p.TotalWins)
		return nil
	})
	return info, err
}

// RecordWins adds n wins to a player outside of a game, e.g. from an
// external tournament. Every crossed tier is rewarded once.
func (s *RankService) RecordWins(ctx context.Context, playerID string, n int64) (*RankChange, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d wins", model.ErrInvalidAmount, n)
	}

	var change *RankChange
	err := s.env.atomic(ctx, []string{lock.PlayerKey(playerID)}, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, playerID)
		if err != nil {
			return err
		}
		if change, err = s.addWins(ctx, tx, p, n); err != nil {
			return err
		}
		p.UpdatedAt = s.env.now()
		return tx.Players().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(change)
	return change, nil
}

// addWins increments p's wins inside tx, credits the reward of every tier
// crossed and stores the derived rank on p. The caller persists p.
func (s *RankService) addWins(ctx context.Context, tx repository.Tx, p *model.Player, n int64) (*RankChange, error) {
	if n > math.MaxInt64-p.TotalWins {
		return nil, fmt.Errorf("%w: %d wins overflow total of %d", model.ErrInvalidAmount, n, p.TotalWins)
	}
	before := p.TotalWins
	p.TotalWins += n
	c := s.table.Crossed(before, p.TotalWins)
	p.ApplyRank(c.To)

	if !c.Changed() {
		return nil, nil
	}

	for _, tier := range c.Crossed {
		ref := fmt.Sprintf("%s:%d", tier.Rank, tier.Level)
		if err := s.ledger.creditReward(ctx, tx, p, s.table.RewardFor(tier), model.TxTypeRankReward, ref); err != nil {
			return nil, err
		}
	}
	return &RankChange{PlayerID: p.ID, Change: c}, nil
}

func (s *RankService) logChange(c *RankChange) {
	if c == nil {
		return
	}
	log.Info().
		Str("player_id", c.PlayerID).
		Str("from", fmt.Sprintf("%s %d", c.From.Rank, c.From.Level)).
		Str("to", fmt.Sprintf("%s %d", c.To.Rank, c.To.Level)).
		Int("tiers", len(c.Crossed)).
		Int64("reward_coins", c.Reward.Coins).
		Int64("reward_gems", c.Reward.Gems).
		Msg("Player ranked up")
}
