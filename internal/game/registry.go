package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"casino-bot/internal/rng"
)

// Registry holds the validated rules table of every configured game.
// A game without rules cannot be started.
type Registry struct {
	rules map[Type]Rules
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[Type]Rules),
	}
}

// Register validates r and adds it to the registry, replacing any previous
// rules for the same game.
func (r *Registry) Register(rules Rules) error {
	if rules == nil {
		return fmt.Errorf("%w: nil rules", ErrInvalidConfiguration)
	}
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("%s rules: %w", rules.Type(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rules.Type()] = rules
	return nil
}

// Get retrieves the rules for a game.
func (r *Registry) Get(t Type) (Rules, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules, ok := r.rules[t]
	return rules, ok
}

// Types returns the configured games in name order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := lo.Keys(r.rules)
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count returns the number of configured games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Preflight checks that a session could be started, without drawing any
// randomness. Callers run it before debiting the bet.
func (r *Registry) Preflight(t Type, bet int64, p Params) (Rules, error) {
	rules, ok := r.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: no rules configured for %s", ErrInvalidConfiguration, t)
	}
	if err := rules.Limits().Check(bet); err != nil {
		return nil, err
	}
	if err := rules.ValidateParams(p); err != nil {
		return nil, err
	}
	return rules, nil
}

// StartRequest describes a new session.
type StartRequest struct {
	ID       string // optional; generated when empty
	PlayerID string
	Type     Type
	Bet      int64
	Params   Params
	Now      time.Time
}

// Start creates a session and draws its hidden outcome. Coinflip sessions
// come back already resolved; the Resolution says so.
func (r *Registry) Start(req StartRequest, gen *rng.Generator) (*Session, Resolution, error) {
	rules, err := r.Preflight(req.Type, req.Bet, req.Params)
	if err != nil {
		return nil, Resolution{}, err
	}

	progress, multiplier, err := rules.start(req.Params, gen)
	if err != nil {
		return nil, Resolution{}, fmt.Errorf("start %s: %w", req.Type, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	s := &Session{
		ID:         id,
		PlayerID:   req.PlayerID,
		Type:       req.Type,
		Bet:        req.Bet,
		Status:     StatusActive,
		Multiplier: multiplier,
		Progress:   progress,
		CreatedAt:  req.Now,
		UpdatedAt:  req.Now,
	}

	if p, ok := progress.(*CoinflipProgress); ok {
		res, err := s.settleCoinflip(p, req.Now)
		if err != nil {
			return nil, Resolution{}, err
		}
		return s, res, nil
	}
	return s, Resolution{Status: StatusActive}, nil
}
