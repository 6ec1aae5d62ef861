package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
	"casino-bot/internal/rng"
)

// SessionResult is the state of a session after an operation.
type SessionResult struct {
	Session    *game.Session
	Resolution game.Resolution
	// Balance is the player's coin balance after the operation.
	Balance    int64
	RankChange *RankChange
}

// GameService runs game sessions against player balances.
type GameService struct {
	env      *Env
	ledger   *LedgerService
	ranks    *RankService
	registry *game.Registry
	gen      *rng.Generator
}

// NewGameService creates a new GameService instance.
func NewGameService(env *Env, ledger *LedgerService, ranks *RankService, registry *game.Registry, gen *rng.Generator) *GameService {
	return &GameService{
		env:      env,
		ledger:   ledger,
		ranks:    ranks,
		registry: registry,
		gen:      gen,
	}
}

// Registry returns the rules registry the service plays with.
func (s *GameService) Registry() *game.Registry {
	return s.registry
}

// CreateSession debits the bet and starts a session. Bet bounds,
// configuration and funds are checked before anything is written; a failed
// check leaves the balance untouched. Coinflip sessions resolve immediately.
func (s *GameService) CreateSession(ctx context.Context, playerID string, t game.Type, bet int64, params game.Params) (*SessionResult, error) {
	if _, err := s.registry.Preflight(t, bet, params); err != nil {
		return nil, err
	}

	var res *SessionResult
	err := s.env.atomic(ctx, []string{lock.PlayerKey(playerID)}, func(tx repository.Tx) error {
		p, err := tx.Players().Get(ctx, playerID)
		if err != nil {
			return err
		}

		// The bet is charged before any randomness is drawn.
		id := uuid.NewString()
		balance, err := s.ledger.debit(ctx, tx, p, Entry{Currency: model.Coins, Amount: bet, Type: model.TxTypeBet, Reference: id})
		if err != nil {
			return err
		}

		now := s.env.now()
		sess, resolution, err := s.registry.Start(game.StartRequest{
			ID:       id,
			PlayerID: playerID,
			Type:     t,
			Bet:      bet,
			Params:   params,
			Now:      now,
		}, s.gen)
		if err != nil {
			return err
		}
		if err := tx.Sessions().Create(ctx, sess); err != nil {
			return err
		}

		res = &SessionResult{Session: sess, Resolution: resolution, Balance: balance}
		if resolution.Resolved {
			if err := s.settle(ctx, tx, p, sess, res); err != nil {
				return err
			}
		}

		p.UpdatedAt = now
		return tx.Players().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("player_id", playerID).
		Str("session_id", res.Session.ID).
		Str("game", string(t)).
		Int64("bet", bet).
		Msg("Session created")
	s.logResolution(res)
	return res, nil
}

// ApplyAction performs a player move on one of their sessions.
func (s *GameService) ApplyAction(ctx context.Context, playerID, sessionID string, action game.Action) (*SessionResult, error) {
	var res *SessionResult
	err := s.env.atomic(ctx, []string{lock.PlayerKey(playerID)}, func(tx repository.Tx) error {
		sess, err := tx.Sessions().Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.PlayerID != playerID {
			return fmt.Errorf("%w: %s", ErrNotSessionOwner, sessionID)
		}
		p, err := tx.Players().Get(ctx, playerID)
		if err != nil {
			return err
		}

		now := s.env.now()
		resolution, err := sess.Apply(action, now)
		if err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, sess); err != nil {
			return err
		}

		res = &SessionResult{Session: sess, Resolution: resolution, Balance: p.Coins}
		if !resolution.Resolved {
			return nil
		}
		if err := s.settle(ctx, tx, p, sess, res); err != nil {
			return err
		}
		p.UpdatedAt = now
		return tx.Players().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logResolution(res)
	return res, nil
}

// CashOut ends an active mines or tower session at its current multiplier.
// A second cash-out fails with game.ErrInvalidState.
func (s *GameService) CashOut(ctx context.Context, playerID, sessionID string) (*SessionResult, error) {
	return s.ApplyAction(ctx, playerID, sessionID, game.CashOut{})
}

// ActiveSession returns the newest active session of a player for a game.
func (s *GameService) ActiveSession(ctx context.Context, playerID string, t game.Type) (*game.Session, error) {
	var sess *game.Session
	err := s.env.view(ctx, func(tx repository.Tx) error {
		var err error
		sess, err = tx.Sessions().LatestActive(ctx, playerID, t)
		return err
	})
	return sess, err
}

// HasActiveSession reports whether the player has an unfinished session of t.
func (s *GameService) HasActiveSession(ctx context.Context, playerID string, t game.Type) (bool, error) {
	_, err := s.ActiveSession(ctx, playerID, t)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, game.ErrSessionNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetSession returns a session owned by playerID.
func (s *GameService) GetSession(ctx context.Context, playerID, sessionID string) (*game.Session, error) {
	var sess *game.Session
	err := s.env.view(ctx, func(tx repository.Tx) error {
		var err error
		sess, err = tx.Sessions().Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.PlayerID != playerID {
			return fmt.Errorf("%w: %s", ErrNotSessionOwner, sessionID)
		}
		return nil
	})
	return sess, err
}

// settle credits the payout of a resolved session and updates the player's
// stats inside tx. The caller persists p.
func (s *GameService) settle(ctx context.Context, tx repository.Tx, p *model.Player, sess *game.Session, res *SessionResult) error {
	_, err := s.ledger.credit(ctx, tx, p, Entry{
		Currency:  model.Coins,
		Amount:    sess.Payout,
		Type:      model.TxTypePayout,
		Reference: sess.ID,
	})
	if err != nil {
		return err
	}

	p.TotalGamesPlayed++
	if sess.Status.Win() {
		change, err := s.ranks.addWins(ctx, tx, p, 1)
		if err != nil {
			return err
		}
		res.RankChange = change
	}

	res.Balance = p.Coins
	return nil
}

func (s *GameService) logResolution(res *SessionResult) {
	if !res.Resolution.Resolved {
		return
	}
	sess := res.Session
	log.Info().
		Str("player_id", sess.PlayerID).
		Str("session_id", sess.ID).
		Str("game", string(sess.Type)).
		Str("status", string(sess.Status)).
		Int64("bet", sess.Bet).
		Int64("payout", sess.Payout).
		Int64("balance", res.Balance).
		Msg("Session resolved")
	s.ranks.logChange(res.RankChange)
}
