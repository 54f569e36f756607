package expense

import (
	"context"
	"sync"
)

// MemoryStore keeps expenses in memory. Used for local development and tests;
// mutations lock only the targeted expense.
type MemoryStore struct {
	mu       sync.RWMutex
	expenses map[string]*Expense // keyed by slug
	locks    map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[string]*Expense),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Create stores a new expense. Fails with ErrConflict if the slug is taken.
func (s *MemoryStore) Create(ctx context.Context, e *Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.expenses[e.Slug]; exists {
		return ErrConflict
	}
	s.expenses[e.Slug] = e.Clone()
	s.locks[e.Slug] = &sync.Mutex{}
	return nil
}

// GetBySlug returns a copy of the expense, so readers never observe a
// mutation in progress.
func (s *MemoryStore) GetBySlug(ctx context.Context, slug string) (*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[slug]
	if !ok {
		return nil, ErrExpenseNotFound
	}
	return e.Clone(), nil
}

// Update applies mutate to a copy of the current state under the expense's
// lock and swaps the result in only when mutate succeeds.
func (s *MemoryStore) Update(ctx context.Context, slug string, mutate func(e *Expense) error) (*Expense, error) {
	s.mu.RLock()
	lock, ok := s.locks[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrExpenseNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.expenses[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrExpenseNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.expenses[slug] = next
	s.mu.Unlock()
	return next.Clone(), nil
}
