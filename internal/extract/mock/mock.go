// Package mock provides a test double for the extract package.
package mock

import (
	"context"
	"sync"

	"github.com/voxlead/voxlead/internal/extract"
)

// ExtractCall records a single invocation of Extractor.Extract.
type ExtractCall struct {
	// Transcript is the transcript passed to Extract.
	Transcript string
	// Language is the BCP-47 tag passed to Extract.
	Language string
}

// Extractor is a mock implementation of extract.Extractor.
type Extractor struct {
	mu sync.Mutex

	// Entities is returned by Extract when ExtractFunc is nil. A deep copy
	// is handed out per call.
	Entities *extract.Entities

	// ExtractErr, if non-nil, is returned as the error from Extract.
	ExtractErr error

	// ExtractFunc, if set, overrides the canned response entirely.
	ExtractFunc func(ctx context.Context, transcript, language string) (*extract.Entities, error)

	// ExtractCalls records every call to Extract.
	ExtractCalls []ExtractCall
}

// Extract records the call and returns the scripted result.
func (e *Extractor) Extract(ctx context.Context, transcript, language string) (*extract.Entities, error) {
	e.mu.Lock()
	e.ExtractCalls = append(e.ExtractCalls, ExtractCall{Transcript: transcript, Language: language})
	fn := e.ExtractFunc
	ents, err := e.Entities, e.ExtractErr
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, transcript, language)
	}
	if err != nil {
		return nil, err
	}
	return ents.Clone(), nil
}

// ExtractCallCount returns the number of Extract calls. Thread-safe.
func (e *Extractor) ExtractCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ExtractCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExtractCalls = nil
}

// Ensure Extractor implements extract.Extractor at compile time.
var _ extract.Extractor = (*Extractor)(nil)
