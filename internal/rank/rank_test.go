package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFor(t *testing.T) {
	table := Default()

	tests := []struct {
		name      string
		wins      int64
		rank      Rank
		level     int
		next      int64
		remaining int64
		progress  float64
	}{
		{"new player", 0, Rookie, 1, 5, 5, 0},
		{"just below rookie 2", 4, Rookie, 1, 5, 1, 80},
		{"rookie 2", 5, Rookie, 2, 10, 5, 50},
		{"bronze 1", 20, Bronze, 1, 35, 15, 20.0 / 35 * 100},
		{"silver 3", 169, Silver, 3, 170, 1, 169.0 / 170 * 100},
		{"diamond 2", 999, Diamond, 2, 1000, 1, 99.9},
		{"negative clamps", -3, Rookie, 1, 5, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := table.For(tt.wins)
			assert.Equal(t, tt.rank, info.Rank)
			assert.Equal(t, tt.level, info.Level)
			assert.Equal(t, tt.next, info.NextThreshold)
			assert.Equal(t, tt.remaining, info.WinsRequiredForNext)
			assert.InDelta(t, tt.progress, info.ProgressPercent, 1e-9)
			assert.False(t, info.Max)
		})
	}
}

func TestFor_MaxRank(t *testing.T) {
	info := Default().For(5000)

	assert.Equal(t, Diamond, info.Rank)
	assert.Equal(t, 3, info.Level)
	assert.True(t, info.Max)
	assert.Equal(t, float64(100), info.ProgressPercent)
	assert.Zero(t, info.WinsRequiredForNext)
}

func TestCrossed_SingleLevel(t *testing.T) {
	c := Default().Crossed(4, 5)

	require.True(t, c.Changed())
	assert.Equal(t, []Tier{{Rank: Rookie, Level: 2, RequiredWins: 5}}, c.Crossed)
	assert.Equal(t, Reward{Coins: 100, Gems: 2}, c.Reward)
}

func TestCrossed_BatchRewardsEachTierOnce(t *testing.T) {
	table := Default()

	// 9 -> 36 crosses rookie 3, bronze 1 and bronze 2.
	c := table.Crossed(9, 36)
	require.Len(t, c.Crossed, 3)
	assert.Equal(t, Reward{Coins: 150 + 100 + 200, Gems: 3 + 2 + 4}, c.Reward)
	assert.Equal(t, Bronze, c.To.Rank)
	assert.Equal(t, 2, c.To.Level)

	assert.False(t, table.Crossed(36, 36).Changed())
	assert.False(t, table.Crossed(36, 10).Changed())
}

func TestNewTable_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"not starting at zero", []Step{{Rank: Rookie, Thresholds: [3]int64{1, 2, 3}}}},
		{"non-increasing", []Step{{Rank: Rookie, Thresholds: [3]int64{0, 5, 5}}}},
		{"non-increasing across ranks", []Step{
			{Rank: Rookie, Thresholds: [3]int64{0, 5, 10}},
			{Rank: Bronze, Thresholds: [3]int64{10, 20, 30}},
		}},
		{"negative reward", []Step{{Rank: Rookie, Thresholds: [3]int64{0, 1, 2}, BaseReward: Reward{Coins: -1}}}},
		{"duplicate rank", []Step{
			{Rank: Rookie, Thresholds: [3]int64{0, 1, 2}},
			{Rank: Rookie, Thresholds: [3]int64{3, 4, 5}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.steps)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

// TestForMonotonicProperty tests that more wins never means a lower tier.
func TestForMonotonicProperty(t *testing.T) {
	table := Default()
	order := make(map[Rank]int)
	for i, s := range table.Steps() {
		order[s.Rank] = i
	}

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, 2000).Draw(t, "a")
		b := rapid.Int64Range(a, 2000).Draw(t, "b")

		ia, ib := table.For(a), table.For(b)
		pa := order[ia.Rank]*LevelsPerRank + ia.Level
		pb := order[ib.Rank]*LevelsPerRank + ib.Level
		if pb < pa {
			t.Fatalf("For(%d)=%s/%d above For(%d)=%s/%d", a, ia.Rank, ia.Level, b, ib.Rank, ib.Level)
		}
		if ia.ProgressPercent < 0 || ia.ProgressPercent > 100 {
			t.Fatalf("progress %f out of range", ia.ProgressPercent)
		}
	})
}

// TestCrossedAdditiveProperty tests that splitting a batch of wins into two
// steps pays exactly the same reward as one step.
func TestCrossedAdditiveProperty(t *testing.T) {
	table := Default()

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, 1500).Draw(t, "a")
		b := rapid.Int64Range(a, 1500).Draw(t, "b")
		c := rapid.Int64Range(b, 1500).Draw(t, "c")

		whole := table.Crossed(a, c)
		split := table.Crossed(a, b).Reward.Add(table.Crossed(b, c).Reward)
		if whole.Reward != split {
			t.Fatalf("reward %v for %d->%d, split %v via %d", whole.Reward, a, c, split, b)
		}
	})
}
