package postgres

import (
	"context"

	"casino-bot/internal/model"
)

type transactions struct{ t *pgTx }

func (r *transactions) Create(ctx context.Context, tx *model.Transaction) error {
	const query = `
		INSERT INTO transactions (player_id, currency, amount, balance, type, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.t.q.QueryRow(ctx, query,
		tx.PlayerID, tx.Currency, tx.Amount, tx.Balance, tx.Type, tx.Reference, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return wrap("create transaction", err)
	}
	return nil
}

func (r *transactions) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, player_id, currency, amount, balance, type, reference, created_at
		FROM transactions
		WHERE player_id = $1
		ORDER BY id DESC
		LIMIT NULLIF($2, 0)
	`

	rows, err := r.t.q.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, wrap("get transactions", err)
	}
	defer rows.Close()

	var list []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.PlayerID,
			&tx.Currency,
			&tx.Amount,
			&tx.Balance,
			&tx.Type,
			&tx.Reference,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, wrap("scan transaction", err)
		}
		list = append(list, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate transactions", err)
	}
	return list, nil
}
