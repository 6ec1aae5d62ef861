// Package repository defines the storage capabilities the casino services
// depend on. Adapters live in the memory and postgres subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerExists   = errors.New("player already exists")
	ErrCodeExists     = errors.New("redeem code already exists")
	ErrSessionExists  = errors.New("session already exists")
	ErrReadOnly       = errors.New("write in read-only transaction")
)

// Players stores player accounts.
type Players interface {
	// Get returns ErrPlayerNotFound if the player does not exist.
	Get(ctx context.Context, id string) (*model.Player, error)
	Create(ctx context.Context, p *model.Player) error
	Update(ctx context.Context, p *model.Player) error
	// Top returns the players with the most wins.
	Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// Sessions stores game sessions.
type Sessions interface {
	// Get returns game.ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, id string) (*game.Session, error)
	Create(ctx context.Context, s *game.Session) error
	Update(ctx context.Context, s *game.Session) error
	// LatestActive returns the newest active session of a player for a
	// game, or game.ErrSessionNotFound.
	LatestActive(ctx context.Context, playerID string, t game.Type) (*game.Session, error)
}

// Codes stores redeem codes and who claimed them. Codes are matched
// case-insensitively.
type Codes interface {
	// Get returns model.ErrCodeNotFound if the code does not exist.
	Get(ctx context.Context, code string) (*model.RedeemCode, error)
	Create(ctx context.Context, c *model.RedeemCode) error
	Update(ctx context.Context, c *model.RedeemCode) error
	List(ctx context.Context) ([]*model.RedeemCode, error)
	HasRedeemed(ctx context.Context, code, playerID string) (bool, error)
	AddRedemption(ctx context.Context, code, playerID string, at time.Time) error
}

// Transactions is the append-only balance journal.
type Transactions interface {
	Create(ctx context.Context, t *model.Transaction) error
	// ListByPlayer returns the newest transactions first.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*model.Transaction, error)
}

// Tx is a unit of work. Records read inside an Atomic Tx stay locked until
// it ends.
type Tx interface {
	Players() Players
	Sessions() Sessions
	Codes() Codes
	Transactions() Transactions
}

// Store runs units of work against a backend.
type Store interface {
	// Atomic runs fn in a read-write transaction. Every change fn made is
	// discarded if it returns an error.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
