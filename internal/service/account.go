package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/rank"
	"casino-bot/internal/repository"
)

// AccountService handles player account operations.
type AccountService struct {
	env           *Env
	ledger        *LedgerService
	table         *rank.Table
	startingCoins int64
	startingGems  int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(env *Env, ledger *LedgerService, table *rank.Table, startingCoins, startingGems int64) *AccountService {
	return &AccountService{
		env:           env,
		ledger:        ledger,
		table:         table,
		startingCoins: startingCoins,
		startingGems:  startingGems,
	}
}

// EnsurePlayer returns the player, creating it with the starting balances if
// needed. Returns whether it was newly created. A changed name is stored.
func (s *AccountService) EnsurePlayer(ctx context.Context, id, name string) (*model.Player, bool, error) {
	var (
		player  *model.Player
		created bool
	)
	err := s.env.atomic(ctx, []string{lock.PlayerKey(id)}, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, id)
		switch {
		case err == nil:
			if name != "" && p.Name != name {
				p.Name = name
				p.UpdatedAt = s.env.now()
				if err := tx.Players().Update(ctx, p); err != nil {
					return err
				}
			}
			player = p
			return nil
		case !errors.Is(err, repository.ErrPlayerNotFound):
			return err
		}

		now := s.env.now()
		p = &model.Player{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
		p.ApplyRank(s.table.For(0))
		if err := tx.Players().Create(ctx, p); err != nil {
			return err
		}
		if _, err := s.ledger.credit(ctx, tx, p, Entry{Currency: model.Coins, Amount: s.startingCoins, Type: model.TxTypeInitial}); err != nil {
			return err
		}
		if _, err := s.ledger.credit(ctx, tx, p, Entry{Currency: model.Gems, Amount: s.startingGems, Type: model.TxTypeInitial}); err != nil {
			return err
		}
		if err := tx.Players().Update(ctx, p); err != nil {
			return err
		}
		player, created = p, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure player: %w", err)
	}

	if created {
		log.Info().Str("player_id", id).Str("name", name).Int64("coins", player.Coins).Msg("Player created")
	}
	return player, created, nil
}

// GetPlayer retrieves a player by ID.
func (s *AccountService) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	var p *model.Player
	err := s.env.view(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.Players().Get(ctx, id)
		return err
	})
	return p, err
}

// Grant adds (positive amount) or removes (negative amount) balance on an
// admin's behalf. Removal cannot overdraw.
func (s *AccountService) Grant(ctx context.Context, adminID, playerID string, c model.Currency, amount int64) (int64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("%w: grant of 0", model.ErrInvalidAmount)
	}

	e := Entry{Currency: c, Type: model.TxTypeAdminGrant, Reference: "admin:" + adminID}
	var (
		balance int64
		err     error
	)
	if amount > 0 {
		e.Amount = amount
		balance, err = s.ledger.Credit(ctx, playerID, e)
	} else {
		e.Amount = -amount
		balance, err = s.ledger.Debit(ctx, playerID, e)
	}
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("admin_id", adminID).
		Str("player_id", playerID).
		Str("currency", string(c)).
		Int64("amount", amount).
		Int64("balance", balance).
		Msg("Admin grant")
	return balance, nil
}

// Leaderboard returns the players with the most wins.
func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	var top []model.LeaderboardEntry
	err := s.env.view(ctx, func(tx repository.Tx) error {
		var err error
		top, err = tx.Players().Top(ctx, limit)
		return err
	})
	return top, err
}
