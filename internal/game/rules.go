package game

import (
	"fmt"

	"github.com/shopspring/decimal"

	"casino-bot/internal/rng"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Rules is the validated configuration of one game type.
// It is implemented by CoinflipRules, MinesRules and TowerRules only.
type Rules interface {
	// Type returns the game this table configures.
	Type() Type

	// Validate checks the table for empty, non-positive or non-monotonic
	// multipliers and for payouts above fair odds after the house edge.
	Validate() error

	// Limits returns the allowed bet range.
	Limits() BetLimits

	// ValidateParams checks the options a player picked when staking.
	ValidateParams(p Params) error

	// start draws the hidden outcome of a new session.
	start(p Params, gen *rng.Generator) (Progress, decimal.Decimal, error)
}

// BetLimits bounds the stake of a game.
type BetLimits struct {
	MinBet int64 `mapstructure:"min_bet"`
	MaxBet int64 `mapstructure:"max_bet"`
}

// Check returns ErrBetOutOfRange unless MinBet <= bet <= MaxBet.
func (l BetLimits) Check(bet int64) error {
	if bet < l.MinBet || bet > l.MaxBet {
		return fmt.Errorf("%w: bet %d not in [%d, %d]", ErrBetOutOfRange, bet, l.MinBet, l.MaxBet)
	}
	return nil
}

func (l BetLimits) validate() error {
	if l.MinBet <= 0 {
		return fmt.Errorf("%w: min_bet must be positive", ErrInvalidConfiguration)
	}
	if l.MaxBet < l.MinBet {
		return fmt.Errorf("%w: max_bet %d below min_bet %d", ErrInvalidConfiguration, l.MaxBet, l.MinBet)
	}
	return nil
}

func validateEdge(edge decimal.Decimal) error {
	if edge.IsNegative() || edge.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%w: house_edge_percent %s not in [0, 100)", ErrInvalidConfiguration, edge)
	}
	return nil
}

// retained is the share of fair odds the house pays out: (100 - edge) / 100 scaled by 100.
func retained(edge decimal.Decimal) decimal.Decimal {
	return hundred.Sub(edge)
}

// CoinflipRules configures coinflip. When Multiplier is zero it is derived
// from the house edge as 2 * (100 - edge) / 100.
type CoinflipRules struct {
	BetLimits        `mapstructure:",squash"`
	HouseEdgePercent decimal.Decimal `mapstructure:"house_edge_percent"`
	Multiplier       decimal.Decimal `mapstructure:"multiplier"`
}

func (r *CoinflipRules) Type() Type        { return Coinflip }
func (r *CoinflipRules) Limits() BetLimits { return r.BetLimits }

// WinMultiplier returns the multiplier paid on a winning flip.
func (r *CoinflipRules) WinMultiplier() decimal.Decimal {
	if !r.Multiplier.IsZero() {
		return r.Multiplier
	}
	return two.Mul(retained(r.HouseEdgePercent)).Div(hundred)
}

func (r *CoinflipRules) Validate() error {
	if err := r.BetLimits.validate(); err != nil {
		return err
	}
	if err := validateEdge(r.HouseEdgePercent); err != nil {
		return err
	}
	m := r.WinMultiplier()
	if !m.IsPositive() {
		return fmt.Errorf("%w: coinflip multiplier must be positive", ErrInvalidConfiguration)
	}
	// m * 100 <= 2 * (100 - edge)
	if m.Mul(hundred).GreaterThan(two.Mul(retained(r.HouseEdgePercent))) {
		return fmt.Errorf("%w: coinflip multiplier %s exceeds fair odds after %s%% edge",
			ErrInvalidConfiguration, m, r.HouseEdgePercent)
	}
	return nil
}

func (r *CoinflipRules) ValidateParams(p Params) error {
	if !p.Side.Valid() {
		return fmt.Errorf("%w: side must be heads or tails", ErrInvalidAction)
	}
	return nil
}

func (r *CoinflipRules) start(p Params, gen *rng.Generator) (Progress, decimal.Decimal, error) {
	outcome, err := gen.Flip()
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &CoinflipProgress{
		Choice:        p.Side,
		Outcome:       outcome,
		WinMultiplier: r.WinMultiplier(),
	}, decimal.NewFromInt(1), nil
}

// MinesDifficulty is one selectable mine count with its per-reveal step.
type MinesDifficulty struct {
	Name      string          `mapstructure:"name"`
	MineCount int             `mapstructure:"mine_count"`
	Step      decimal.Decimal `mapstructure:"step"`
}

// MinesRules configures mines. After k safe reveals the multiplier is
// BaseMultiplier + k * Step of the chosen difficulty.
type MinesRules struct {
	BetLimits        `mapstructure:",squash"`
	HouseEdgePercent decimal.Decimal   `mapstructure:"house_edge_percent"`
	GridSize         int               `mapstructure:"grid_size"`
	BaseMultiplier   decimal.Decimal   `mapstructure:"base_multiplier"`
	Difficulties     []MinesDifficulty `mapstructure:"difficulties"`
}

func (r *MinesRules) Type() Type        { return Mines }
func (r *MinesRules) Limits() BetLimits { return r.BetLimits }

// Difficulty returns the configured difficulty for a mine count.
func (r *MinesRules) Difficulty(mineCount int) (MinesDifficulty, bool) {
	for _, d := range r.Difficulties {
		if d.MineCount == mineCount {
			return d, true
		}
	}
	return MinesDifficulty{}, false
}

func (r *MinesRules) Validate() error {
	if err := r.BetLimits.validate(); err != nil {
		return err
	}
	if err := validateEdge(r.HouseEdgePercent); err != nil {
		return err
	}
	if r.GridSize < 2 {
		return fmt.Errorf("%w: mines grid_size must be at least 2", ErrInvalidConfiguration)
	}
	if !r.BaseMultiplier.IsPositive() {
		return fmt.Errorf("%w: mines base_multiplier must be positive", ErrInvalidConfiguration)
	}
	if len(r.Difficulties) == 0 {
		return fmt.Errorf("%w: mines difficulty table is empty", ErrInvalidConfiguration)
	}

	for i, d := range r.Difficulties {
		if d.MineCount < 1 || d.MineCount >= r.GridSize {
			return fmt.Errorf("%w: mines difficulty %q has %d mines on %d cells",
				ErrInvalidConfiguration, d.Name, d.MineCount, r.GridSize)
		}
		if !d.Step.IsPositive() {
			return fmt.Errorf("%w: mines difficulty %q step must be positive", ErrInvalidConfiguration, d.Name)
		}
		if i > 0 {
			prev := r.Difficulties[i-1]
			if d.MineCount <= prev.MineCount || d.Step.LessThanOrEqual(prev.Step) {
				return fmt.Errorf("%w: mines difficulties must increase in mine count and step (%q after %q)",
					ErrInvalidConfiguration, d.Name, prev.Name)
			}
		}
		if err := r.checkFairness(d); err != nil {
			return err
		}
	}
	return nil
}

// checkFairness verifies that after every possible number k of safe reveals
// the multiplier stays at or below fair odds C(n,k)/C(n-m,k) net of the edge.
func (r *MinesRules) checkFairness(d MinesDifficulty) error {
	n, m := r.GridSize, d.MineCount
	num, den := decimal.NewFromInt(1), decimal.NewFromInt(1)
	keep := retained(r.HouseEdgePercent)

	for k := 1; k <= n-m; k++ {
		num = num.Mul(decimal.NewFromInt(int64(n - k + 1)))
		den = den.Mul(decimal.NewFromInt(int64(n - m - k + 1)))

		mult := MinesMultiplier(r.BaseMultiplier, d.Step, k)
		// mult <= (num/den) * keep/100  <=>  mult * den * 100 <= num * keep
		if mult.Mul(den).Mul(hundred).GreaterThan(num.Mul(keep)) {
			return fmt.Errorf("%w: mines difficulty %q pays %s after %d reveals, above fair odds",
				ErrInvalidConfiguration, d.Name, mult, k)
		}
	}
	return nil
}

func (r *MinesRules) ValidateParams(p Params) error {
	if _, ok := r.Difficulty(p.MineCount); !ok {
		return fmt.Errorf("%w: %d mines is not a configured difficulty", ErrInvalidAction, p.MineCount)
	}
	return nil
}

func (r *MinesRules) start(p Params, gen *rng.Generator) (Progress, decimal.Decimal, error) {
	d, ok := r.Difficulty(p.MineCount)
	if !ok {
		return nil, decimal.Zero, fmt.Errorf("%w: %d mines is not a configured difficulty", ErrInvalidAction, p.MineCount)
	}
	mines, err := gen.PlaceMines(r.GridSize, d.MineCount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &MinesProgress{
		GridSize:       r.GridSize,
		Mines:          mines,
		Revealed:       []int{},
		BaseMultiplier: r.BaseMultiplier,
		Step:           d.Step,
	}, r.BaseMultiplier, nil
}

// TowerLevel is one floor of the tower and the multiplier for clearing it.
type TowerLevel struct {
	Level      int             `mapstructure:"level"`
	Multiplier decimal.Decimal `mapstructure:"multiplier"`
	Difficulty string          `mapstructure:"difficulty"`
}

// TowerRules configures tower. Each floor has one correct block out of BlocksPerLevel.
type TowerRules struct {
	BetLimits        `mapstructure:",squash"`
	HouseEdgePercent decimal.Decimal `mapstructure:"house_edge_percent"`
	BlocksPerLevel   int             `mapstructure:"blocks_per_level"`
	Levels           []TowerLevel    `mapstructure:"levels"`
}

func (r *TowerRules) Type() Type        { return Tower }
func (r *TowerRules) Limits() BetLimits { return r.BetLimits }

// LevelCount returns the number of floors.
func (r *TowerRules) LevelCount() int { return len(r.Levels) }

func (r *TowerRules) Validate() error {
	if err := r.BetLimits.validate(); err != nil {
		return err
	}
	if err := validateEdge(r.HouseEdgePercent); err != nil {
		return err
	}
	if r.BlocksPerLevel < 2 {
		return fmt.Errorf("%w: tower blocks_per_level must be at least 2", ErrInvalidConfiguration)
	}
	if len(r.Levels) == 0 {
		return fmt.Errorf("%w: tower level table is empty", ErrInvalidConfiguration)
	}

	fair := decimal.NewFromInt(1)
	blocks := decimal.NewFromInt(int64(r.BlocksPerLevel))
	keep := retained(r.HouseEdgePercent)

	for i, l := range r.Levels {
		if l.Level != i+1 {
			return fmt.Errorf("%w: tower level %d out of order at position %d", ErrInvalidConfiguration, l.Level, i+1)
		}
		if !l.Multiplier.IsPositive() {
			return fmt.Errorf("%w: tower level %d multiplier must be positive", ErrInvalidConfiguration, l.Level)
		}
		if i > 0 && l.Multiplier.LessThanOrEqual(r.Levels[i-1].Multiplier) {
			return fmt.Errorf("%w: tower multipliers must strictly increase (level %d)", ErrInvalidConfiguration, l.Level)
		}
		fair = fair.Mul(blocks)
		if l.Multiplier.Mul(hundred).GreaterThan(fair.Mul(keep)) {
			return fmt.Errorf("%w: tower level %d pays %s, above fair odds %s after edge",
				ErrInvalidConfiguration, l.Level, l.Multiplier, fair)
		}
	}
	return nil
}

func (r *TowerRules) ValidateParams(Params) error { return nil }

func (r *TowerRules) start(_ Params, gen *rng.Generator) (Progress, decimal.Decimal, error) {
	correct := make([]int, len(r.Levels))
	multipliers := make([]decimal.Decimal, len(r.Levels))
	for i, l := range r.Levels {
		b, err := gen.PickCorrectBlock(r.BlocksPerLevel)
		if err != nil {
			return nil, decimal.Zero, err
		}
		correct[i] = b
		multipliers[i] = l.Multiplier
	}
	return &TowerProgress{
		BlocksPerLevel: r.BlocksPerLevel,
		Correct:        correct,
		Picks:          []int{},
		Multipliers:    multipliers,
	}, decimal.NewFromInt(1), nil
}
