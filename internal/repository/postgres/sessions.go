package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"casino-bot/internal/game"
	"casino-bot/internal/repository"
)

const sessionColumns = `id::text, player_id, game_type, bet, status, multiplier::text, payout, progress, created_at, updated_at, resolved_at`

type sessions struct{ t *pgTx }

func scanSession(row pgx.Row) (*game.Session, error) {
	var (
		s          game.Session
		multiplier string
		progress   []byte
		resolvedAt *time.Time
	)
	err := row.Scan(
		&s.ID,
		&s.PlayerID,
		&s.Type,
		&s.Bet,
		&s.Status,
		&multiplier,
		&s.Payout,
		&progress,
		&s.CreatedAt,
		&s.UpdatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.Multiplier, err = decimal.NewFromString(multiplier); err != nil {
		return nil, wrap("parse session multiplier", err)
	}
	if s.Progress, err = game.DecodeProgress(s.Type, progress); err != nil {
		return nil, err
	}
	s.ResolvedAt = resolvedAt
	return &s, nil
}

func (r *sessions) Get(ctx context.Context, id string) (*game.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id = $1` + r.t.forUpdate()

	s, err := scanSession(r.t.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.ErrSessionNotFound
		}
		return nil, wrap("get session", err)
	}
	return s, nil
}

func (r *sessions) Create(ctx context.Context, s *game.Session) error {
	const query = `
		INSERT INTO game_sessions
			(id, player_id, game_type, bet, status, multiplier, payout, progress, created_at, updated_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11)
	`

	progress, err := game.EncodeProgress(s.Progress)
	if err != nil {
		return err
	}

	_, err = r.t.q.Exec(ctx, query,
		s.ID, s.PlayerID, s.Type, s.Bet, s.Status, s.Multiplier.String(), s.Payout,
		progress, s.CreatedAt, s.UpdatedAt, s.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrSessionExists
		}
		return wrap("create session", err)
	}
	return nil
}

func (r *sessions) Update(ctx context.Context, s *game.Session) error {
	const query = `
		UPDATE game_sessions
		SET status = $2, multiplier = $3::numeric, payout = $4, progress = $5,
			updated_at = $6, resolved_at = $7
		WHERE id = $1
	`

	progress, err := game.EncodeProgress(s.Progress)
	if err != nil {
		return err
	}

	tag, err := r.t.q.Exec(ctx, query,
		s.ID, s.Status, s.Multiplier.String(), s.Payout, progress, s.UpdatedAt, s.ResolvedAt,
	)
	if err != nil {
		return wrap("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrSessionNotFound
	}
	return nil
}

func (r *sessions) LatestActive(ctx context.Context, playerID string, t game.Type) (*game.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE player_id = $1 AND game_type = $2 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1` + r.t.forUpdate()

	s, err := scanSession(r.t.q.QueryRow(ctx, query, playerID, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.ErrSessionNotFound
		}
		return nil, wrap("get active session", err)
	}
	return s, nil
}
