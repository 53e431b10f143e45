package leadstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory [Store] for development and tests. Leads are held
// in append order.
type MemStore struct {
	mu    sync.RWMutex
	leads []Lead
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append implements [Store]. The lead is copied, so later caller mutations
// do not leak into the store.
func (s *MemStore) Append(_ context.Context, lead *Lead) error {
	if lead == nil {
		return errors.New("leadstore: nil lead")
	}
	if lead.ID == uuid.Nil {
		return errors.New("leadstore: lead has no ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, *lead)
	return nil
}

// List returns a copy of all stored leads in append order.
func (s *MemStore) List() []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lead, len(s.leads))
	copy(out, s.leads)
	return out
}

// Len returns the number of stored leads.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)
