// Package game implements the casino game sessions: coinflip, mines and tower.
// A session is created with a debited bet, mutated by player actions and
// resolved exactly once into won, lost or cashed_out.
package game

import (
	"errors"
	"fmt"
	"strings"

	"casino-bot/internal/rng"
)

// Errors returned by the game engine.
var (
	ErrBetOutOfRange        = errors.New("bet out of range")
	ErrInvalidState         = errors.New("invalid session state")
	ErrInvalidConfiguration = errors.New("invalid game configuration")
	ErrInvalidAction        = errors.New("invalid action")
	ErrSessionNotFound      = errors.New("session not found")
	ErrUnknownGame          = errors.New("unknown game type")
)

// Type identifies a game.
type Type string

const (
	Coinflip Type = "coinflip"
	Mines    Type = "mines"
	Tower    Type = "tower"
)

// Types returns every supported game type.
func Types() []Type {
	return []Type{Coinflip, Mines, Tower}
}

// ParseType parses a game type name case-insensitively.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case Coinflip, Mines, Tower:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGame, s)
	}
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusCashedOut Status = "cashed_out"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusCashedOut
}

// Win reports whether the status pays the player.
func (s Status) Win() bool {
	return s == StatusWon || s == StatusCashedOut
}

// Params carries the game-specific options chosen when staking a bet.
type Params struct {
	Side      rng.Side // coinflip
	MineCount int      // mines
}

// Action is a player move on an active session.
type Action interface {
	isAction()
}

// Reveal uncovers one mines cell.
type Reveal struct {
	Cell int
}

// SelectBlock picks one block on the current tower floor.
type SelectBlock struct {
	Level int
	Block int
}

// CashOut ends the session and collects the current multiplier.
type CashOut struct{}

func (Reveal) isAction()      {}
func (SelectBlock) isAction() {}
func (CashOut) isAction()     {}

// Resolution describes what an action did to the session.
type Resolution struct {
	Resolved bool   // the session moved into a terminal state
	Status   Status // status after the action
	Payout   int64  // amount to credit; non-zero only when Resolved
}
