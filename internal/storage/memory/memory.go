// Package memory is an in-process store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

type Store struct {
	mu     sync.RWMutex
	nextTx int64
	nextU  int64
	items  map[int64]core.Transaction
	users  map[string]core.User
}

func New() *Store {
	return &Store{
		items: make(map[int64]core.Transaction),
		users: make(map[string]core.User),
	}
}

func (s *Store) Insert(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := core.CheckDate(t.Date); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w: %w", core.ErrInvalidArgument, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	t.ID = s.nextTx
	t.Date = t.Date.UTC()
	s.items[t.ID] = t
	return t, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) ExistsByID(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *Store) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) FindByOwner(_ context.Context, ownerID int64) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool { return t.OwnerID == ownerID }), nil
}

func (s *Store) FindByOwnerAndPeriod(_ context.Context, ownerID int64, p core.Period) ([]core.Transaction, error) {
	return s.filter(func(t core.Transaction) bool {
		return t.OwnerID == ownerID && p.Contains(t.Date)
	}), nil
}

// Sum folds the amounts selected by f; an empty selection is zero. Like the
// SQL backends it fails rather than wrap when the total leaves int64.
func (s *Store) Sum(_ context.Context, f ports.SumFilter) (core.Money, error) {
	var (
		total core.Money
		err   error
	)
	for _, t := range s.filter(func(t core.Transaction) bool {
		if t.Type != f.Type {
			return false
		}
		if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
			return false
		}
		return f.Period == nil || f.Period.Contains(t.Date)
	}) {
		if total, err = total.CheckedAdd(t.Amount); err != nil {
			return core.Money{}, fmt.Errorf("sum %s transactions: %w", f.Type, err)
		}
	}
	return total, nil
}

// filter returns matching transactions newest first, ties broken by id.
func (s *Store) filter(keep func(core.Transaction) bool) []core.Transaction {
	s.mu.RLock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) FindByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrUserNotFound)
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[u.Username]; taken {
		return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrUsernameTaken)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{core.RoleUser}
	}
	s.nextU++
	u.ID = s.nextU
	s.users[u.Username] = u
	return u, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
