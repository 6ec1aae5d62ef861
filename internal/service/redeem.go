package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
)

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	Code   string
	Reward model.Reward
	Before model.Reward
	After  model.Reward
}

// RedeemService claims and administers redeem codes.
type RedeemService struct {
	env    *Env
	ledger *LedgerService
}

// NewRedeemService creates a new RedeemService instance.
func NewRedeemService(env *Env, ledger *LedgerService) *RedeemService {
	return &RedeemService{env: env, ledger: ledger}
}

// Redeem claims a code for a player. The checks and the claim run as one
// unit under both the player and the code lock, so a failed claim consumes
// nothing and concurrent claims never exceed the usage limit.
func (s *RedeemService) Redeem(ctx context.Context, playerID, code string) (*RedeemResult, error) {
	normalized := model.NormalizeCode(code)
	if normalized == "" {
		return nil, fmt.Errorf("%w: %q", model.ErrCodeNotFound, code)
	}

	var res *RedeemResult
	keys := []string{lock.PlayerKey(playerID), lock.CodeKey(normalized)}
	err := s.env.atomic(ctx, keys, func(tx repository.Tx) error {
		c, err := tx.Codes().Get(ctx, normalized)
		if err != nil {
			return err
		}
		redeemed, err := tx.Codes().HasRedeemed(ctx, normalized, playerID)
		if err != nil {
			return err
		}
		now := s.env.now()
		if err := c.CheckClaim(redeemed, now); err != nil {
			return err
		}

		p, err := tx.Players().Get(ctx, playerID)
		if err != nil {
			return err
		}
		before := model.Reward{Coins: p.Coins, Gems: p.Gems}

		c.CurrentUses++
		if err := tx.Codes().Update(ctx, c); err != nil {
			return err
		}
		if err := tx.Codes().AddRedemption(ctx, normalized, playerID, now); err != nil {
			return err
		}

		if err := s.ledger.creditReward(ctx, tx, p, c.Reward, model.TxTypeRedeem, normalized); err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := tx.Players().Update(ctx, p); err != nil {
			return err
		}

		res = &RedeemResult{
			Code:   normalized,
			Reward: c.Reward,
			Before: before,
			After:  model.Reward{Coins: p.Coins, Gems: p.Gems},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("player_id", playerID).
		Str("code", normalized).
		Int64("coins", res.Reward.Coins).
		Int64("gems", res.Reward.Gems).
		Msg("Code redeemed")
	return res, nil
}

// CreateCode stores a new code. Codes are unique case-insensitively.
func (s *RedeemService) CreateCode(ctx context.Context, code string, reward model.Reward, maxUses int64, expiresAt time.Time) (*model.RedeemCode, error) {
	c := &model.RedeemCode{
		Code:      model.NormalizeCode(code),
		Reward:    reward,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt.UTC(),
		IsActive:  true,
		CreatedAt: s.env.now(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.MaxUses == 0 {
		return nil, fmt.Errorf("%w: max uses must be positive", model.ErrInvalidRedeemCode)
	}

	err := s.env.atomic(ctx, []string{lock.CodeKey(c.Code)}, func(tx repository.Tx) error {
		return tx.Codes().Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("code", c.Code).
		Int64("coins", reward.Coins).
		Int64("gems", reward.Gems).
		Int64("max_uses", maxUses).
		Time("expires_at", c.ExpiresAt).
		Msg("Redeem code created")
	return c, nil
}

// SetActive enables or disables a code.
func (s *RedeemService) SetActive(ctx context.Context, code string, active bool) error {
	normalized := model.NormalizeCode(code)
	err := s.env.atomic(ctx, []string{lock.CodeKey(normalized)}, func(tx repository.Tx) error {
		c, err := tx.Codes().Get(ctx, normalized)
		if err != nil {
			return err
		}
		c.IsActive = active
		return tx.Codes().Update(ctx, c)
	})
	if err != nil {
		return err
	}

	log.Info().Str("code", normalized).Bool("active", active).Msg("Redeem code updated")
	return nil
}

// ListCodes returns every code.
func (s *RedeemService) ListCodes(ctx context.Context) ([]*model.RedeemCode, error) {
	var codes []*model.RedeemCode
	err := s.env.view(ctx, func(tx repository.Tx) error {
		var err error
		codes, err = tx.Codes().List(ctx)
		return err
	})
	return codes, err
}
