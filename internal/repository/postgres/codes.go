package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/repository"
)

const codeColumns = `code, reward_coins, reward_gems, max_uses, current_uses, expires_at, is_active, created_at`

type codes struct{ t *pgTx }

func scanCode(row pgx.Row) (*model.RedeemCode, error) {
	var c model.RedeemCode
	err := row.Scan(
		&c.Code,
		&c.Reward.Coins,
		&c.Reward.Gems,
		&c.MaxUses,
		&c.CurrentUses,
		&c.ExpiresAt,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *codes) Get(ctx context.Context, code string) (*model.RedeemCode, error) {
	query := `SELECT ` + codeColumns + ` FROM redeem_codes WHERE code = $1` + r.t.forUpdate()

	c, err := scanCode(r.t.q.QueryRow(ctx, query, model.NormalizeCode(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCodeNotFound
		}
		return nil, wrap("get redeem code", err)
	}
	return c, nil
}

func (r *codes) Create(ctx context.Context, c *model.RedeemCode) error {
	const query = `
		INSERT INTO redeem_codes (` + codeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.t.q.Exec(ctx, query,
		model.NormalizeCode(c.Code), c.Reward.Coins, c.Reward.Gems,
		c.MaxUses, c.CurrentUses, c.ExpiresAt, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrCodeExists
		}
		return wrap("create redeem code", err)
	}
	return nil
}

func (r *codes) Update(ctx context.Context, c *model.RedeemCode) error {
	const query = `
		UPDATE redeem_codes
		SET reward_coins = $2, reward_gems = $3, max_uses = $4, current_uses = $5,
			expires_at = $6, is_active = $7
		WHERE code = $1
	`

	tag, err := r.t.q.Exec(ctx, query,
		model.NormalizeCode(c.Code), c.Reward.Coins, c.Reward.Gems,
		c.MaxUses, c.CurrentUses, c.ExpiresAt, c.IsActive,
	)
	if err != nil {
		return wrap("update redeem code", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCodeNotFound
	}
	return nil
}

func (r *codes) List(ctx context.Context) ([]*model.RedeemCode, error) {
	query := `SELECT ` + codeColumns + ` FROM redeem_codes ORDER BY code`

	rows, err := r.t.q.Query(ctx, query)
	if err != nil {
		return nil, wrap("list redeem codes", err)
	}
	defer rows.Close()

	var list []*model.RedeemCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, wrap("scan redeem code", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate redeem codes", err)
	}
	return list, nil
}

func (r *codes) HasRedeemed(ctx context.Context, code, playerID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM code_redemptions WHERE code = $1 AND player_id = $2)`

	var exists bool
	if err := r.t.q.QueryRow(ctx, query, model.NormalizeCode(code), playerID).Scan(&exists); err != nil {
		return false, wrap("check redemption", err)
	}
	return exists, nil
}

func (r *codes) AddRedemption(ctx context.Context, code, playerID string, at time.Time) error {
	const query = `INSERT INTO code_redemptions (code, player_id, redeemed_at) VALUES ($1, $2, $3)`

	if _, err := r.t.q.Exec(ctx, query, model.NormalizeCode(code), playerID, at); err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyRedeemed
		}
		return wrap("add redemption", err)
	}
	return nil
}
