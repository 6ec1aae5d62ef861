// Package memory is an in-process repository.Store. Writers are serialized
// by one store-wide lock and a failed unit of work is rolled back from an
// undo log.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/repository"
)

// Store implements repository.Store using in-memory maps.
type Store struct {
	players      map[string]*model.Player
	sessions     map[string]*game.Session
	codes        map[string]*model.RedeemCode
	redemptions  map[string]map[string]time.Time // code -> player -> redeemed at
	transactions []*model.Transaction
	nextTxID     int64
	mu           sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		players:     make(map[string]*model.Player),
		sessions:    make(map[string]*game.Session),
		codes:       make(map[string]*model.RedeemCode),
		redemptions: make(map[string]map[string]time.Time),
	}
}

// Atomic runs fn under the write lock and reverts its changes if it fails.
func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// View runs fn under the read lock.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{s: s, readOnly: true})
}

// Close is a no-op.
func (s *Store) Close() {}

// memTx is a unit of work. Every mutation pushes its inverse onto undo.
type memTx struct {
	s        *Store
	readOnly bool
	undo     []func()
}

func (t *memTx) Players() repository.Players           { return players{t} }
func (t *memTx) Sessions() repository.Sessions         { return sessions{t} }
func (t *memTx) Codes() repository.Codes               { return codes{t} }
func (t *memTx) Transactions() repository.Transactions { return transactions{t} }

func (t *memTx) write(undo func()) error {
	if t.readOnly {
		return repository.ErrReadOnly
	}
	t.undo = append(t.undo, undo)
	return nil
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type players struct{ t *memTx }

func (r players) Get(_ context.Context, id string) (*model.Player, error) {
	p, ok := r.t.s.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (r players) Create(_ context.Context, p *model.Player) error {
	m := r.t.s.players
	if _, ok := m[p.ID]; ok {
		return repository.ErrPlayerExists
	}
	if err := r.t.write(func() { delete(m, p.ID) }); err != nil {
		return err
	}
	cp := *p
	m[p.ID] = &cp
	return nil
}

func (r players) Update(_ context.Context, p *model.Player) error {
	m := r.t.s.players
	prev, ok := m[p.ID]
	if !ok {
		return repository.ErrPlayerNotFound
	}
	if err := r.t.write(func() { m[p.ID] = prev }); err != nil {
		return err
	}
	cp := *p
	m[p.ID] = &cp
	return nil
}

func (r players) Top(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	all := make([]*model.Player, 0, len(r.t.s.players))
	for _, p := range r.t.s.players {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalWins != all[j].TotalWins {
			return all[i].TotalWins > all[j].TotalWins
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	entries := make([]model.LeaderboardEntry, len(all))
	for i, p := range all {
		entries[i] = model.LeaderboardEntry{
			PlayerID:  p.ID,
			Name:      p.Name,
			TotalWins: p.TotalWins,
			Rank:      p.Rank,
			RankLevel: p.RankLevel,
		}
	}
	return entries, nil
}

type sessions struct{ t *memTx }

func (r sessions) Get(_ context.Context, id string) (*game.Session, error) {
	s, ok := r.t.s.sessions[id]
	if !ok {
		return nil, game.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r sessions) Create(_ context.Context, s *game.Session) error {
	m := r.t.s.sessions
	if _, ok := m[s.ID]; ok {
		return repository.ErrSessionExists
	}
	if err := r.t.write(func() { delete(m, s.ID) }); err != nil {
		return err
	}
	m[s.ID] = s.Clone()
	return nil
}

func (r sessions) Update(_ context.Context, s *game.Session) error {
	m := r.t.s.sessions
	prev, ok := m[s.ID]
	if !ok {
		return game.ErrSessionNotFound
	}
	if err := r.t.write(func() { m[s.ID] = prev }); err != nil {
		return err
	}
	m[s.ID] = s.Clone()
	return nil
}

func (r sessions) LatestActive(_ context.Context, playerID string, t game.Type) (*game.Session, error) {
	var latest *game.Session
	for _, s := range r.t.s.sessions {
		if s.PlayerID != playerID || s.Type != t || s.Status != game.StatusActive {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, game.ErrSessionNotFound
	}
	return latest.Clone(), nil
}

type codes struct{ t *memTx }

func (r codes) Get(_ context.Context, code string) (*model.RedeemCode, error) {
	c, ok := r.t.s.codes[model.NormalizeCode(code)]
	if !ok {
		return nil, model.ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (r codes) Create(_ context.Context, c *model.RedeemCode) error {
	key := model.NormalizeCode(c.Code)
	m := r.t.s.codes
	if _, ok := m[key]; ok {
		return repository.ErrCodeExists
	}
	if err := r.t.write(func() { delete(m, key) }); err != nil {
		return err
	}
	cp := *c
	cp.Code = key
	m[key] = &cp
	return nil
}

func (r codes) Update(_ context.Context, c *model.RedeemCode) error {
	key := model.NormalizeCode(c.Code)
	m := r.t.s.codes
	prev, ok := m[key]
	if !ok {
		return model.ErrCodeNotFound
	}
	if err := r.t.write(func() { m[key] = prev }); err != nil {
		return err
	}
	cp := *c
	cp.Code = key
	m[key] = &cp
	return nil
}

func (r codes) List(_ context.Context) ([]*model.RedeemCode, error) {
	list := make([]*model.RedeemCode, 0, len(r.t.s.codes))
	for _, c := range r.t.s.codes {
		cp := *c
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

func (r codes) HasRedeemed(_ context.Context, code, playerID string) (bool, error) {
	_, ok := r.t.s.redemptions[model.NormalizeCode(code)][playerID]
	return ok, nil
}

func (r codes) AddRedemption(_ context.Context, code, playerID string, at time.Time) error {
	key := model.NormalizeCode(code)
	if _, ok := r.t.s.codes[key]; !ok {
		return model.ErrCodeNotFound
	}
	m := r.t.s.redemptions
	if _, ok := m[key][playerID]; ok {
		return model.ErrAlreadyRedeemed
	}
	if err := r.t.write(func() { delete(m[key], playerID) }); err != nil {
		return err
	}
	if m[key] == nil {
		m[key] = make(map[string]time.Time)
	}
	m[key][playerID] = at
	return nil
}

type transactions struct{ t *memTx }

func (r transactions) Create(_ context.Context, tx *model.Transaction) error {
	s := r.t.s
	n, id := len(s.transactions), s.nextTxID
	if err := r.t.write(func() {
		s.transactions = s.transactions[:n]
		s.nextTxID = id
	}); err != nil {
		return err
	}
	s.nextTxID++
	tx.ID = s.nextTxID
	cp := *tx
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (r transactions) ListByPlayer(_ context.Context, playerID string, limit int) ([]*model.Transaction, error) {
	var list []*model.Transaction
	txs := r.t.s.transactions
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].PlayerID != playerID {
			continue
		}
		cp := *txs[i]
		list = append(list, &cp)
		if limit > 0 && len(list) == limit {
			break
		}
	}
	return list, nil
}
