package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrations = []struct {
	name string
	sql  string
}{
	{"players", `
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			coins BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
			gems BIGINT NOT NULL DEFAULT 0 CHECK (gems >= 0),
			rank VARCHAR(20) NOT NULL,
			rank_level INT NOT NULL CHECK (rank_level BETWEEN 1 AND 3),
			total_wins BIGINT NOT NULL DEFAULT 0 CHECK (total_wins >= 0),
			total_games_played BIGINT NOT NULL DEFAULT 0 CHECK (total_games_played >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"players wins index", `
		CREATE INDEX IF NOT EXISTS idx_players_total_wins ON players(total_wins DESC)`},
	{"game_sessions", `
		CREATE TABLE IF NOT EXISTS game_sessions (
			id UUID PRIMARY KEY,
			player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			game_type VARCHAR(20) NOT NULL,
			bet BIGINT NOT NULL CHECK (bet > 0),
			status VARCHAR(20) NOT NULL,
			multiplier NUMERIC(20, 6) NOT NULL,
			payout BIGINT NOT NULL DEFAULT 0 CHECK (payout >= 0),
			progress JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ
		)`},
	{"game_sessions active index", `
		CREATE INDEX IF NOT EXISTS idx_game_sessions_active
		ON game_sessions(player_id, game_type, created_at DESC)
		WHERE status = 'active'`},
	{"redeem_codes", `
		CREATE TABLE IF NOT EXISTS redeem_codes (
			code TEXT PRIMARY KEY CHECK (code = LOWER(code)),
			reward_coins BIGINT NOT NULL DEFAULT 0 CHECK (reward_coins >= 0),
			reward_gems BIGINT NOT NULL DEFAULT 0 CHECK (reward_gems >= 0),
			max_uses BIGINT NOT NULL CHECK (max_uses >= 0),
			current_uses BIGINT NOT NULL DEFAULT 0 CHECK (current_uses >= 0 AND current_uses <= max_uses),
			expires_at TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"code_redemptions", `
		CREATE TABLE IF NOT EXISTS code_redemptions (
			code TEXT NOT NULL REFERENCES redeem_codes(code) ON DELETE CASCADE,
			player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			redeemed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (code, player_id)
		)`},
	{"transactions", `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			currency VARCHAR(10) NOT NULL,
			amount BIGINT NOT NULL,
			balance BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			reference TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`},
	{"transactions player index", `
		CREATE INDEX IF NOT EXISTS idx_transactions_player_id ON transactions(player_id, id DESC)`},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", m.name, err)
		}
	}

	log.Info().Int("statements", len(migrations)).Msg("Database migrations completed")
	return nil
}
