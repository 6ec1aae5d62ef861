package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
)

// LedgerService moves coins and gems and journals every change.
type LedgerService struct {
	env *Env
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(env *Env) *LedgerService {
	return &LedgerService{env: env}
}

// Entry describes one balance change.
type Entry struct {
	Currency  model.Currency
	Amount    int64
	Type      string
	Reference string
}

// Debit removes a positive amount and returns the new balance. It fails
// with model.ErrInsufficientFunds without any change if the balance is short.
func (l *LedgerService) Debit(ctx context.Context, playerID string, e Entry) (int64, error) {
	return l.apply(ctx, playerID, e, l.debit)
}

// Credit adds a non-negative amount and returns the new balance.
func (l *LedgerService) Credit(ctx context.Context, playerID string, e Entry) (int64, error) {
	return l.apply(ctx, playerID, e, l.credit)
}

func (l *LedgerService) apply(
	ctx context.Context,
	playerID string,
	e Entry,
	op func(context.Context, repository.Tx, *model.Player, Entry) (int64, error),
) (int64, error) {
	var balance int64
	err := l.env.atomic(ctx, []string{lock.PlayerKey(playerID)}, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, playerID)
		if err != nil {
			return err
		}
		if balance, err = op(ctx, tx, p, e); err != nil {
			return err
		}
		p.UpdatedAt = l.env.now()
		return tx.Players().Update(ctx, p)
	})
	if err != nil {
		return 0, err
	}

	log.Debug().
		Str("player_id", playerID).
		Str("currency", string(e.Currency)).
		Int64("amount", e.Amount).
		Int64("balance", balance).
		Str("type", e.Type).
		Msg("Balance changed")
	return balance, nil
}

// Transfer moves coins from one player to another. Both balances change
// in one unit of work or not at all.
func (l *LedgerService) Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: transfer of %d", model.ErrInvalidAmount, amount)
	}
	if fromID == toID {
		return 0, model.ErrSelfTransfer
	}

	var balance int64
	keys := []string{lock.PlayerKey(fromID), lock.PlayerKey(toID)}
	err := l.env.atomic(ctx, keys, func(tx repository.Tx) error {
		sender, err := tx.Players().Get(ctx, fromID)
		if err != nil {
			return fmt.Errorf("failed to get sender: %w", err)
		}
		receiver, err := tx.Players().Get(ctx, toID)
		if err != nil {
			return fmt.Errorf("failed to get receiver: %w", err)
		}

		if balance, err = l.debit(ctx, tx, sender, Entry{Currency: model.Coins, Amount: amount, Type: model.TxTypeTransfer, Reference: toID}); err != nil {
			return err
		}
		if _, err = l.credit(ctx, tx, receiver, Entry{Currency: model.Coins, Amount: amount, Type: model.TxTypeTransfer, Reference: fromID}); err != nil {
			return err
		}

		now := l.env.now()
		sender.UpdatedAt, receiver.UpdatedAt = now, now
		if err := tx.Players().Update(ctx, sender); err != nil {
			return err
		}
		return tx.Players().Update(ctx, receiver)
	})
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("from", fromID).
		Str("to", toID).
		Int64("amount", amount).
		Msg("Coins transferred")
	return balance, nil
}

// debit applies a debit to p inside tx. The caller persists p.
func (l *LedgerService) debit(ctx context.Context, tx repository.Tx, p *model.Player, e Entry) (int64, error) {
	balance, err := p.Debit(e.Currency, e.Amount)
	if err != nil {
		return 0, err
	}
	return balance, l.journal(ctx, tx, p.ID, e, -e.Amount, balance)
}

// credit applies a credit to p inside tx. A zero amount is not journaled.
func (l *LedgerService) credit(ctx context.Context, tx repository.Tx, p *model.Player, e Entry) (int64, error) {
	balance, err := p.Credit(e.Currency, e.Amount)
	if err != nil {
		return 0, err
	}
	if e.Amount == 0 {
		return balance, nil
	}
	return balance, l.journal(ctx, tx, p.ID, e, e.Amount, balance)
}

// creditReward credits both currencies of r to p inside tx under one
// journal type and reference.
func (l *LedgerService) creditReward(ctx context.Context, tx repository.Tx, p *model.Player, r model.Reward, txType, ref string) error {
	if _, err := l.credit(ctx, tx, p, Entry{Currency: model.Coins, Amount: r.Coins, Type: txType, Reference: ref}); err != nil {
		return err
	}
	_, err := l.credit(ctx, tx, p, Entry{Currency: model.Gems, Amount: r.Gems, Type: txType, Reference: ref})
	return err
}

func (l *LedgerService) journal(ctx context.Context, tx repository.Tx, playerID string, e Entry, delta, balance int64) error {
	rec := &model.Transaction{
		PlayerID:  playerID,
		Currency:  e.Currency,
		Amount:    delta,
		Balance:   balance,
		Type:      e.Type,
		CreatedAt: l.env.now(),
	}
	if e.Reference != "" {
		ref := e.Reference
		rec.Reference = &ref
	}
	if err := tx.Transactions().Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to journal %s: %w", e.Type, err)
	}
	return nil
}

// History returns the newest journal entries of a player.
func (l *LedgerService) History(ctx context.Context, playerID string, limit int) ([]*model.Transaction, error) {
	var list []*model.Transaction
	err := l.env.view(ctx, func(tx repository.Tx) error {
		var err error
		list, err = tx.Transactions().ListByPlayer(ctx, playerID, limit)
		return err
	})
	return list, err
}
