package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"casino-bot/internal/rng"
)

// Progress is the game-specific part of a session. The set of
// implementations is closed: *CoinflipProgress, *MinesProgress, *TowerProgress.
type Progress interface {
	gameType() Type
}

// CoinflipProgress records the side picked and the side that landed.
type CoinflipProgress struct {
	Choice        rng.Side        `json:"choice"`
	Outcome       rng.Side        `json:"outcome"`
	WinMultiplier decimal.Decimal `json:"win_multiplier"`
}

// MinesProgress holds the hidden mine layout and the cells uncovered so far.
// Multiplier parameters are copied from the rules at creation.
type MinesProgress struct {
	GridSize       int             `json:"grid_size"`
	Mines          []int           `json:"mines"`
	Revealed       []int           `json:"revealed"`
	BaseMultiplier decimal.Decimal `json:"base_multiplier"`
	Step           decimal.Decimal `json:"step"`
}

// MineCount returns the number of hidden mines.
func (p *MinesProgress) MineCount() int { return len(p.Mines) }

// SafeRevealed returns the number of safe cells uncovered.
func (p *MinesProgress) SafeRevealed() int { return len(p.Revealed) }

// IsMine reports whether cell holds a mine.
func (p *MinesProgress) IsMine(cell int) bool { return lo.Contains(p.Mines, cell) }

// TowerProgress holds the correct block per floor and the floors cleared.
type TowerProgress struct {
	BlocksPerLevel int               `json:"blocks_per_level"`
	Correct        []int             `json:"correct"`
	CurrentLevel   int               `json:"current_level"`
	Picks          []int             `json:"picks"`
	Multipliers    []decimal.Decimal `json:"multipliers"`
}

// LevelCount returns the number of floors.
func (p *TowerProgress) LevelCount() int { return len(p.Correct) }

func (*CoinflipProgress) gameType() Type { return Coinflip }
func (*MinesProgress) gameType() Type    { return Mines }
func (*TowerProgress) gameType() Type    { return Tower }

// Session is one wager by one player on one game.
type Session struct {
	ID         string
	PlayerID   string
	Type       Type
	Bet        int64
	Status     Status
	Multiplier decimal.Decimal
	Payout     int64
	Progress   Progress
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// Net returns payout minus bet once resolved, and zero while active.
func (s *Session) Net() int64 {
	if !s.Status.Terminal() {
		return 0
	}
	return s.Payout - s.Bet
}

// Apply performs a player action. It fails with ErrInvalidState once the
// session is terminal, so a session resolves, and pays, at most once.
func (s *Session) Apply(a Action, now time.Time) (Resolution, error) {
	if s.Status != StatusActive {
		return Resolution{}, fmt.Errorf("%w: session %s is %s", ErrInvalidState, s.ID, s.Status)
	}

	switch a := a.(type) {
	case Reveal:
		p, ok := s.Progress.(*MinesProgress)
		if !ok {
			return Resolution{}, fmt.Errorf("%w: reveal is not a %s action", ErrInvalidState, s.Type)
		}
		return s.reveal(p, a.Cell, now)
	case SelectBlock:
		p, ok := s.Progress.(*TowerProgress)
		if !ok {
			return Resolution{}, fmt.Errorf("%w: select block is not a %s action", ErrInvalidState, s.Type)
		}
		return s.selectBlock(p, a.Level, a.Block, now)
	case CashOut:
		return s.cashOut(now)
	default:
		return Resolution{}, fmt.Errorf("%w: unsupported action %T", ErrInvalidAction, a)
	}
}

func (s *Session) reveal(p *MinesProgress, cell int, now time.Time) (Resolution, error) {
	if cell < 0 || cell >= p.GridSize {
		return Resolution{}, fmt.Errorf("%w: cell %d outside grid of %d", ErrInvalidAction, cell, p.GridSize)
	}
	if slices.Contains(p.Revealed, cell) {
		return Resolution{}, fmt.Errorf("%w: cell %d already revealed", ErrInvalidState, cell)
	}

	if p.IsMine(cell) {
		return s.resolve(StatusLost, 0, now), nil
	}

	p.Revealed = append(p.Revealed, cell)
	if err := s.refreshMultiplier(); err != nil {
		return Resolution{}, err
	}
	s.UpdatedAt = now

	// Every safe cell uncovered: nothing left to risk.
	if p.SafeRevealed() == p.GridSize-p.MineCount() {
		return s.resolve(StatusWon, ComputePayout(s.Bet, s.Multiplier), now), nil
	}
	return Resolution{Status: s.Status}, nil
}

func (s *Session) selectBlock(p *TowerProgress, level, block int, now time.Time) (Resolution, error) {
	if level != p.CurrentLevel {
		return Resolution{}, fmt.Errorf("%w: expected level %d, got %d", ErrInvalidState, p.CurrentLevel, level)
	}
	if block < 0 || block >= p.BlocksPerLevel {
		return Resolution{}, fmt.Errorf("%w: block %d outside 0..%d", ErrInvalidAction, block, p.BlocksPerLevel-1)
	}

	p.Picks = append(p.Picks, block)
	if block != p.Correct[level] {
		return s.resolve(StatusLost, 0, now), nil
	}

	p.CurrentLevel++
	if err := s.refreshMultiplier(); err != nil {
		return Resolution{}, err
	}
	s.UpdatedAt = now

	if p.CurrentLevel == p.LevelCount() {
		return s.resolve(StatusWon, ComputePayout(s.Bet, s.Multiplier), now), nil
	}
	return Resolution{Status: s.Status}, nil
}

func (s *Session) cashOut(now time.Time) (Resolution, error) {
	switch p := s.Progress.(type) {
	case *CoinflipProgress:
		return Resolution{}, fmt.Errorf("%w: coinflip has no cash-out", ErrInvalidState)
	case *MinesProgress:
		if p.SafeRevealed() == 0 {
			return Resolution{}, fmt.Errorf("%w: reveal at least one cell before cashing out", ErrInvalidState)
		}
	case *TowerProgress:
		if p.CurrentLevel == 0 {
			return Resolution{}, fmt.Errorf("%w: clear at least one floor before cashing out", ErrInvalidState)
		}
	default:
		return Resolution{}, fmt.Errorf("%w: unknown progress %T", ErrInvalidState, p)
	}
	return s.resolve(StatusCashedOut, ComputePayout(s.Bet, s.Multiplier), now), nil
}

// settleCoinflip resolves a freshly created coinflip session.
func (s *Session) settleCoinflip(p *CoinflipProgress, now time.Time) (Resolution, error) {
	if p.Outcome == p.Choice {
		if err := s.refreshMultiplier(); err != nil {
			return Resolution{}, err
		}
		return s.resolve(StatusWon, ComputePayout(s.Bet, s.Multiplier), now), nil
	}
	return s.resolve(StatusLost, 0, now), nil
}

// refreshMultiplier recomputes the multiplier from the session's progress.
func (s *Session) refreshMultiplier() error {
	m, err := ComputeMultiplier(s.Progress)
	if err != nil {
		return err
	}
	s.Multiplier = m
	return nil
}

func (s *Session) resolve(status Status, payout int64, now time.Time) Resolution {
	s.Status = status
	s.Payout = payout
	s.UpdatedAt = now
	resolvedAt := now
	s.ResolvedAt = &resolvedAt
	return Resolution{Resolved: true, Status: status, Payout: payout}
}
