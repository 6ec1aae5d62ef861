package game

import (
	"encoding/json"
	"fmt"
)

// EncodeProgress serializes session progress for storage.
func EncodeProgress(p Progress) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil progress", ErrInvalidState)
	}
	return json.Marshal(p)
}

// DecodeProgress restores progress stored by EncodeProgress. The game type
// selects the concrete variant.
func DecodeProgress(t Type, data []byte) (Progress, error) {
	var p Progress
	switch t {
	case Coinflip:
		p = &CoinflipProgress{}
	case Mines:
		p = &MinesProgress{}
	case Tower:
		p = &TowerProgress{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, t)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s progress: %w", t, err)
	}
	return p, nil
}

// Clone returns a deep copy of the session, so stored sessions are not
// aliased by callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		c.ResolvedAt = &t
	}
	switch p := s.Progress.(type) {
	case *CoinflipProgress:
		cp := *p
		c.Progress = &cp
	case *MinesProgress:
		cp := *p
		cp.Mines = append([]int(nil), p.Mines...)
		cp.Revealed = append([]int{}, p.Revealed...)
		c.Progress = &cp
	case *TowerProgress:
		cp := *p
		cp.Correct = append([]int(nil), p.Correct...)
		cp.Picks = append([]int{}, p.Picks...)
		cp.Multipliers = append(cp.Multipliers[:0:0], p.Multipliers...)
		c.Progress = &cp
	}
	return &c
}
