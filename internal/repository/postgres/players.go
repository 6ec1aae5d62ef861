package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/repository"
)

const playerColumns = `id, name, coins, gems, rank, rank_level, total_wins, total_games_played, created_at, updated_at`

type players struct{ t *pgTx }

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Coins,
		&p.Gems,
		&p.Rank,
		&p.RankLevel,
		&p.TotalWins,
		&p.TotalGamesPlayed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *players) Get(ctx context.Context, id string) (*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1` + r.t.forUpdate()

	p, err := scanPlayer(r.t.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, wrap("get player", err)
	}
	return p, nil
}

func (r *players) Create(ctx context.Context, p *model.Player) error {
	const query = `
		INSERT INTO players (` + playerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.t.q.Exec(ctx, query,
		p.ID, p.Name, p.Coins, p.Gems, p.Rank, p.RankLevel,
		p.TotalWins, p.TotalGamesPlayed, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrPlayerExists
		}
		return wrap("create player", err)
	}
	return nil
}

func (r *players) Update(ctx context.Context, p *model.Player) error {
	const query = `
		UPDATE players
		SET name = $2, coins = $3, gems = $4, rank = $5, rank_level = $6,
			total_wins = $7, total_games_played = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := r.t.q.Exec(ctx, query,
		p.ID, p.Name, p.Coins, p.Gems, p.Rank, p.RankLevel,
		p.TotalWins, p.TotalGamesPlayed, p.UpdatedAt,
	)
	if err != nil {
		return wrap("update player", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}

func (r *players) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const query = `
		SELECT id, name, total_wins, rank, rank_level
		FROM players
		ORDER BY total_wins DESC, id ASC
		LIMIT NULLIF($1, 0)
	`

	rows, err := r.t.q.Query(ctx, query, limit)
	if err != nil {
		return nil, wrap("get top players", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.TotalWins, &e.Rank, &e.RankLevel); err != nil {
			return nil, wrap("scan leaderboard entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate leaderboard", err)
	}
	return entries, nil
}
