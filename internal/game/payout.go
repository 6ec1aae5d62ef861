package game

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputePayout returns floor(bet * multiplier). Rounding always favours the house.
func ComputePayout(bet int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(bet).Mul(multiplier).Floor().IntPart()
}

// MinesMultiplier returns base + safe * step.
func MinesMultiplier(base, step decimal.Decimal, safe int) decimal.Decimal {
	return base.Add(step.Mul(decimal.NewFromInt(int64(safe))))
}

// TowerMultiplier returns the multiplier after clearing `cleared` floors.
// Zero floors cleared is 1.
func TowerMultiplier(levels []decimal.Decimal, cleared int) (decimal.Decimal, error) {
	if cleared == 0 {
		return decimal.NewFromInt(1), nil
	}
	if cleared < 0 || cleared > len(levels) {
		return decimal.Zero, fmt.Errorf("%w: %d floors cleared of %d", ErrInvalidConfiguration, cleared, len(levels))
	}
	return levels[cleared-1], nil
}

// ComputeMultiplier derives the current multiplier from a session's progress.
func ComputeMultiplier(p Progress) (decimal.Decimal, error) {
	switch p := p.(type) {
	case *CoinflipProgress:
		if p.Outcome == p.Choice {
			return p.WinMultiplier, nil
		}
		return decimal.NewFromInt(1), nil
	case *MinesProgress:
		return MinesMultiplier(p.BaseMultiplier, p.Step, p.SafeRevealed()), nil
	case *TowerProgress:
		return TowerMultiplier(p.Multipliers, p.CurrentLevel)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown progress %T", ErrInvalidState, p)
	}
}
