// Package memstore is an in-process accountcore.CredentialStore for tests,
// development servers and single-instance deployments.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/google/uuid"
)

// Store keeps accounts in memory behind a single mutex.
type Store struct {
	mu         sync.Mutex
	byIdentity map[string]accountcore.Account
	idIndex    map[string]string
	now        func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byIdentity: make(map[string]accountcore.Account),
		idIndex:    make(map[string]string),
		now:        time.Now,
	}
}

func (s *Store) Create(ctx context.Context, account accountcore.Account) (accountcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return accountcore.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdentity[account.Identity]; ok {
		return accountcore.Account{}, accountcore.ErrAlreadyExists
	}

	stored := account.Clone()
	stored.ID = uuid.NewString()
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	s.byIdentity[stored.Identity] = stored
	s.idIndex[stored.ID] = stored.Identity
	return stored.Clone(), nil
}

func (s *Store) GetByIdentity(ctx context.Context, identity string) (accountcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return accountcore.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byIdentity[identity]
	if !ok {
		return accountcore.Account{}, accountcore.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (accountcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return accountcore.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.idIndex[id]
	if !ok {
		return accountcore.Account{}, accountcore.ErrAccountNotFound
	}
	return s.byIdentity[identity].Clone(), nil
}

// Update runs fn under the store lock, so fn is invoked exactly once.
func (s *Store) Update(ctx context.Context, identity string, fn func(*accountcore.Account) error) (accountcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return accountcore.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byIdentity[identity]
	if !ok {
		return accountcore.Account{}, accountcore.ErrAccountNotFound
	}

	work := current.Clone()
	if err := fn(&work); err != nil {
		return accountcore.Account{}, err
	}
	work.ID = current.ID
	work.Identity = current.Identity
	work.CreatedAt = current.CreatedAt

	s.byIdentity[identity] = work
	return work.Clone(), nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byIdentity)
}
