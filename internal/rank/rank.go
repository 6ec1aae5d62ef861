// Package rank maps cumulative wins to a rank and level and works out the
// rewards owed when a player climbs.
package rank

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTable is returned when a rank table is malformed.
var ErrInvalidTable = errors.New("invalid rank table")

// Rank is a named tier of progression.
type Rank string

const (
	Rookie   Rank = "rookie"
	Bronze   Rank = "bronze"
	Silver   Rank = "silver"
	Gold     Rank = "gold"
	Platinum Rank = "platinum"
	Diamond  Rank = "diamond"
)

// LevelsPerRank is the number of levels inside every rank.
const LevelsPerRank = 3

// Reward is an amount of coins and gems, paid on reaching a rank level.
type Reward struct {
	Coins int64
	Gems  int64
}

// IsZero reports whether the reward pays nothing.
func (r Reward) IsZero() bool { return r.Coins == 0 && r.Gems == 0 }

// Add returns the sum of two rewards.
func (r Reward) Add(o Reward) Reward {
	return Reward{Coins: r.Coins + o.Coins, Gems: r.Gems + o.Gems}
}

// Step is one rank with the wins needed for each of its levels.
type Step struct {
	Rank       Rank
	Thresholds [LevelsPerRank]int64
	BaseReward Reward
}

// Tier is a single (rank, level) position.
type Tier struct {
	Rank         Rank
	Level        int
	RequiredWins int64
}

// Table is the ordered rank ladder.
type Table struct {
	steps []Step
	tiers []Tier
	base  map[Rank]Reward
}

// NewTable builds a table and validates it: thresholds strictly increase
// across the whole ladder, start at zero, and rewards are non-negative.
func NewTable(steps []Step) (*Table, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no ranks", ErrInvalidTable)
	}

	t := &Table{steps: steps, base: make(map[Rank]Reward, len(steps))}
	prev := int64(-1)
	for _, s := range steps {
		if s.Rank == "" {
			return nil, fmt.Errorf("%w: unnamed rank", ErrInvalidTable)
		}
		if _, dup := t.base[s.Rank]; dup {
			return nil, fmt.Errorf("%w: duplicate rank %s", ErrInvalidTable, s.Rank)
		}
		if s.BaseReward.Coins < 0 || s.BaseReward.Gems < 0 {
			return nil, fmt.Errorf("%w: negative reward for %s", ErrInvalidTable, s.Rank)
		}
		t.base[s.Rank] = s.BaseReward

		for i, wins := range s.Thresholds {
			if wins <= prev {
				return nil, fmt.Errorf("%w: %s level %d threshold %d not above %d",
					ErrInvalidTable, s.Rank, i+1, wins, prev)
			}
			prev = wins
			t.tiers = append(t.tiers, Tier{Rank: s.Rank, Level: i + 1, RequiredWins: wins})
		}
	}
	if t.tiers[0].RequiredWins != 0 {
		return nil, fmt.Errorf("%w: first threshold must be 0", ErrInvalidTable)
	}
	return t, nil
}

// DefaultSteps is the standard ladder from rookie to diamond.
func DefaultSteps() []Step {
	return []Step{
		{Rank: Rookie, Thresholds: [3]int64{0, 5, 10}, BaseReward: Reward{Coins: 50, Gems: 1}},
		{Rank: Bronze, Thresholds: [3]int64{20, 35, 50}, BaseReward: Reward{Coins: 100, Gems: 2}},
		{Rank: Silver, Thresholds: [3]int64{75, 100, 130}, BaseReward: Reward{Coins: 200, Gems: 5}},
		{Rank: Gold, Thresholds: [3]int64{170, 220, 280}, BaseReward: Reward{Coins: 400, Gems: 10}},
		{Rank: Platinum, Thresholds: [3]int64{350, 430, 520}, BaseReward: Reward{Coins: 800, Gems: 20}},
		{Rank: Diamond, Thresholds: [3]int64{650, 800, 1000}, BaseReward: Reward{Coins: 1500, Gems: 40}},
	}
}

// Default returns the table built from DefaultSteps.
func Default() *Table {
	t, err := NewTable(DefaultSteps())
	if err != nil {
		panic(err)
	}
	return t
}

// Tiers returns every (rank, level) position in ascending order.
func (t *Table) Tiers() []Tier {
	return append([]Tier(nil), t.tiers...)
}

// Steps returns the ranks the table was built from.
func (t *Table) Steps() []Step {
	return append([]Step(nil), t.steps...)
}

// Info describes where a win count sits on the ladder.
type Info struct {
	Rank                Rank
	Level               int
	TotalWins           int64
	NextThreshold       int64   // 0 at the top of the ladder
	WinsRequiredForNext int64   // wins still missing; 0 at the top
	ProgressPercent     float64 // min(100, wins / next threshold * 100)
	Max                 bool
}

// For returns the rank info for a win count. Negative counts are treated as zero.
func (t *Table) For(totalWins int64) Info {
	if totalWins < 0 {
		totalWins = 0
	}
	idx := t.index(totalWins)
	cur := t.tiers[idx]
	info := Info{Rank: cur.Rank, Level: cur.Level, TotalWins: totalWins}

	if idx == len(t.tiers)-1 {
		info.Max = true
		info.ProgressPercent = 100
		return info
	}

	next := t.tiers[idx+1].RequiredWins
	info.NextThreshold = next
	info.WinsRequiredForNext = next - totalWins
	info.ProgressPercent = math.Min(100, float64(totalWins)/float64(next)*100)
	return info
}

// index returns the position of the last tier not above wins.
func (t *Table) index(wins int64) int {
	idx := 0
	for i, tier := range t.tiers {
		if tier.RequiredWins > wins {
			break
		}
		idx = i
	}
	return idx
}

// RewardFor returns base reward of the tier's rank scaled by its level.
func (t *Table) RewardFor(tier Tier) Reward {
	base := t.base[tier.Rank]
	lvl := int64(tier.Level)
	return Reward{Coins: base.Coins * lvl, Gems: base.Gems * lvl}
}

// Change is the result of moving from one win count to a higher one.
type Change struct {
	From    Info
	To      Info
	Crossed []Tier // every tier reached, in order, each exactly once
	Reward  Reward // sum of RewardFor over Crossed
}

// Changed reports whether any tier was crossed.
func (c Change) Changed() bool { return len(c.Crossed) > 0 }

// Crossed computes the tiers passed when wins go from before to after.
// A batch that skips levels rewards each skipped tier once; a count that
// does not rise crosses nothing.
func (t *Table) Crossed(before, after int64) Change {
	c := Change{From: t.For(before), To: t.For(after)}
	if after <= before {
		return c
	}
	for _, tier := range t.tiers {
		if tier.RequiredWins > before && tier.RequiredWins <= after {
			c.Crossed = append(c.Crossed, tier)
			c.Reward = c.Reward.Add(t.RewardFor(tier))
		}
	}
	return c
}
