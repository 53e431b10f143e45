// Package mock provides test doubles for the audio package interfaces.
//
// Use Platform to script acquisition outcomes (granted, denied, device
// missing) and Stream to feed controlled frames while counting releases.
//
// Example:
//
//	st := &mock.Stream{FramesCh: make(chan audio.Frame, 8)}
//	p := &mock.Platform{Stream: st}
//	s, _ := p.Acquire(ctx, audio.DefaultConstraints())
package mock

import (
	"context"
	"sync"

	"github.com/voxlead/voxlead/pkg/audio"
)

// AcquireCall records a single invocation of Platform.Acquire.
type AcquireCall struct {
	// Ctx is the context passed to Acquire.
	Ctx context.Context
	// Constraints is the constraint set passed to Acquire.
	Constraints audio.Constraints
}

// Platform is a mock implementation of audio.Platform.
type Platform struct {
	mu sync.Mutex

	// Stream is returned by Acquire. If nil, Acquire returns a new default
	// Stream with a buffered frame channel.
	Stream audio.Stream

	// AcquireErr, if non-nil, is returned as the error from Acquire.
	// Set it to audio.ErrPermissionDenied or audio.ErrDeviceUnavailable to
	// script those outcomes.
	AcquireErr error

	// AcquireCalls records every call to Acquire.
	AcquireCalls []AcquireCall
}

// Acquire records the call and returns Stream, AcquireErr.
func (p *Platform) Acquire(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AcquireCalls = append(p.AcquireCalls, AcquireCall{Ctx: ctx, Constraints: c})
	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}
	if p.Stream != nil {
		return p.Stream, nil
	}
	return &Stream{FramesCh: make(chan audio.Frame, 64)}, nil
}

// AcquireCallCount returns the number of Acquire calls. Thread-safe.
func (p *Platform) AcquireCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.AcquireCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Platform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AcquireCalls = nil
}

// Ensure Platform implements audio.Platform at compile time.
var _ audio.Platform = (*Platform)(nil)

// Stream is a mock implementation of audio.Stream. Callers own FramesCh:
// send the frames the consumer should see, then close it (or call Release,
// which closes it once).
type Stream struct {
	mu sync.Mutex

	// FramesCh is the channel returned by Frames().
	FramesCh chan audio.Frame

	// ReleaseErr, if non-nil, is returned by the first Release call.
	ReleaseErr error

	// ReleaseCallCount is the number of times Release was called.
	ReleaseCallCount int

	closed bool
}

// Frames returns FramesCh.
func (s *Stream) Frames() <-chan audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FramesCh
}

// Release records the call, closes FramesCh on first use, and returns
// ReleaseErr for the first call and nil afterwards.
func (s *Stream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReleaseCallCount++
	if s.closed {
		return nil
	}
	s.closed = true
	if s.FramesCh != nil {
		close(s.FramesCh)
	}
	return s.ReleaseErr
}

// Releases returns the number of Release calls. Thread-safe.
func (s *Stream) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReleaseCallCount
}

// Ensure Stream implements audio.Stream at compile time.
var _ audio.Stream = (*Stream)(nil)
