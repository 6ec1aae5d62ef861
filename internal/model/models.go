// Package model defines the data models for the casino bot.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"casino-bot/internal/rank"
)

// Ledger and redeem-code errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownCurrency   = errors.New("unknown currency")
	ErrSelfTransfer      = errors.New("cannot transfer to self")

	ErrCodeNotFound      = errors.New("redeem code not found")
	ErrCodeExpired       = errors.New("redeem code expired")
	ErrCodeInactive      = errors.New("redeem code inactive")
	ErrUsageLimitReached = errors.New("redeem code usage limit reached")
	ErrAlreadyRedeemed   = errors.New("redeem code already redeemed")
	ErrInvalidRedeemCode = errors.New("invalid redeem code")
)

// Currency is a player balance.
type Currency string

const (
	Coins Currency = "coins"
	Gems  Currency = "gems"
)

// ParseCurrency parses a currency name case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToLower(strings.TrimSpace(s))); c {
	case Coins, Gems:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
}

// Player is an account in the casino.
type Player struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Coins            int64     `db:"coins"`
	Gems             int64     `db:"gems"`
	Rank             rank.Rank `db:"rank"`
	RankLevel        int       `db:"rank_level"`
	TotalWins        int64     `db:"total_wins"`
	TotalGamesPlayed int64     `db:"total_games_played"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Balance returns the balance of a currency.
func (p *Player) Balance(c Currency) (int64, error) {
	switch c {
	case Coins:
		return p.Coins, nil
	case Gems:
		return p.Gems, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, c)
	}
}

func (p *Player) set(c Currency, v int64) {
	if c == Coins {
		p.Coins = v
	} else {
		p.Gems = v
	}
}

// Debit removes a positive amount, failing without change if the balance
// would go negative.
func (p *Player) Debit(c Currency, amount int64) (int64, error) {
	bal, err := p.Balance(c)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return bal, fmt.Errorf("%w: debit of %d", ErrInvalidAmount, amount)
	}
	if bal < amount {
		return bal, fmt.Errorf("%w: %s balance %d, need %d", ErrInsufficientFunds, c, bal, amount)
	}
	p.set(c, bal-amount)
	return bal - amount, nil
}

// Credit adds a non-negative amount. Zero is allowed and changes nothing.
// A credit that would overflow the balance is rejected without change.
func (p *Player) Credit(c Currency, amount int64) (int64, error) {
	bal, err := p.Balance(c)
	if err != nil {
		return 0, err
	}
	if amount < 0 {
		return bal, fmt.Errorf("%w: credit of %d", ErrInvalidAmount, amount)
	}
	if amount > math.MaxInt64-bal {
		return bal, fmt.Errorf("%w: credit of %d overflows %s balance %d", ErrInvalidAmount, amount, c, bal)
	}
	p.set(c, bal+amount)
	return bal + amount, nil
}

// ApplyRank stores the rank derived from TotalWins.
func (p *Player) ApplyRank(info rank.Info) {
	p.Rank = info.Rank
	p.RankLevel = info.Level
}

// Transaction records a balance change.
type Transaction struct {
	ID        int64     `db:"id"`
	PlayerID  string    `db:"player_id"`
	Currency  Currency  `db:"currency"`
	Amount    int64     `db:"amount"` // signed: negative for debits
	Balance   int64     `db:"balance"`
	Type      string    `db:"type"`
	Reference *string   `db:"reference"`
	CreatedAt time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial    = "initial"     // Starting balance on account creation
	TxTypeBet        = "bet"         // Stake debited at session start
	TxTypePayout     = "payout"      // Session win or cash-out
	TxTypeRankReward = "rank_reward" // Reward for reaching a rank level
	TxTypeRedeem     = "redeem"      // Redeem code reward
	TxTypeAdminGrant = "admin_grant" // Admin added or removed balance
	TxTypeTransfer   = "transfer"    // Coins sent to or received from another player
)

// Reward is an amount of both currencies. Rank rewards and redeem codes
// share it.
type Reward = rank.Reward

// RedeemCode is an admin-issued voucher.
type RedeemCode struct {
	Code        string    `db:"code"`
	Reward      Reward    `db:"-"`
	MaxUses     int64     `db:"max_uses"`
	CurrentUses int64     `db:"current_uses"`
	ExpiresAt   time.Time `db:"expires_at"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

// NormalizeCode makes codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Validate checks a code before it is stored.
func (c *RedeemCode) Validate() error {
	if NormalizeCode(c.Code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidRedeemCode)
	}
	if c.Reward.Coins < 0 || c.Reward.Gems < 0 {
		return fmt.Errorf("%w: negative reward", ErrInvalidRedeemCode)
	}
	if c.MaxUses < 0 || c.CurrentUses < 0 || c.CurrentUses > c.MaxUses {
		return fmt.Errorf("%w: uses %d of %d", ErrInvalidRedeemCode, c.CurrentUses, c.MaxUses)
	}
	return nil
}

// CheckClaim runs the claim checks in order: expired, inactive, usage
// limit, already redeemed.
func (c *RedeemCode) CheckClaim(alreadyRedeemed bool, now time.Time) error {
	switch {
	case now.After(c.ExpiresAt):
		return fmt.Errorf("%w: %s expired at %s", ErrCodeExpired, c.Code, c.ExpiresAt.Format(time.RFC3339))
	case !c.IsActive:
		return fmt.Errorf("%w: %s", ErrCodeInactive, c.Code)
	case c.CurrentUses >= c.MaxUses:
		return fmt.Errorf("%w: %s used %d of %d", ErrUsageLimitReached, c.Code, c.CurrentUses, c.MaxUses)
	case alreadyRedeemed:
		return fmt.Errorf("%w: %s", ErrAlreadyRedeemed, c.Code)
	}
	return nil
}

// LeaderboardEntry is one row of the wins leaderboard.
type LeaderboardEntry struct {
	PlayerID  string    `db:"id"`
	Name      string    `db:"name"`
	TotalWins int64     `db:"total_wins"`
	Rank      rank.Rank `db:"rank"`
	RankLevel int       `db:"rank_level"`
}
