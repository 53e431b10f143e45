// Package mock provides a test double for the leadstore package.
package mock

import (
	"context"
	"sync"

	"github.com/voxlead/voxlead/pkg/leadstore"
)

// Store is a mock implementation of leadstore.Store.
type Store struct {
	mu sync.Mutex

	// AppendErr, if non-nil, is returned by every Append call.
	AppendErr error

	// AppendCalls records a copy of every lead passed to Append.
	AppendCalls []leadstore.Lead
}

// Append records the call and returns AppendErr.
func (s *Store) Append(_ context.Context, lead *leadstore.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead != nil {
		s.AppendCalls = append(s.AppendCalls, *lead)
	}
	return s.AppendErr
}

// AppendCallCount returns the number of Append calls. Thread-safe.
func (s *Store) AppendCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.AppendCalls)
}

// Last returns a copy of the most recently appended lead, or nil.
func (s *Store) Last() *leadstore.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.AppendCalls) == 0 {
		return nil
	}
	l := s.AppendCalls[len(s.AppendCalls)-1]
	return &l
}

// Reset clears all recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AppendCalls = nil
}

// Ensure Store implements leadstore.Store at compile time.
var _ leadstore.Store = (*Store)(nil)
