// Package mock provides test doubles for the stt package interfaces.
//
// Use Transcriber to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Result values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	sess := &mock.Session{ResultsCh: make(chan stt.Result, 4)}
//	tr := &mock.Transcriber{Session: sess}
//	handle, _ := tr.Start(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/voxlead/voxlead/pkg/provider/stt"
)

// StartCall records a single invocation of Transcriber.Start.
type StartCall struct {
	// Ctx is the context passed to Start.
	Ctx context.Context
	// Cfg is the StreamConfig passed to Start.
	Cfg stt.StreamConfig
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Session is returned by Start. If nil, Start returns a new default
	// Session with a buffered results channel.
	Session stt.Session

	// StartErr, if non-nil, is returned as the error from Start.
	StartErr error

	// StartCalls records every call to Start.
	StartCalls []StartCall
}

// Start records the call and returns Session, StartErr.
func (t *Transcriber) Start(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StartCalls = append(t.StartCalls, StartCall{Ctx: ctx, Cfg: cfg})
	if t.StartErr != nil {
		return nil, t.StartErr
	}
	if t.Session != nil {
		return t.Session, nil
	}
	return &Session{ResultsCh: make(chan stt.Result, 16)}, nil
}

// StartCallCount returns the number of Start calls. Thread-safe.
func (t *Transcriber) StartCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.StartCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StartCalls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of stt.Session. Callers should
// pre-populate ResultsCh with the Result values they want the consumer to
// receive, then close it when done (or rely on Close, which closes it once).
type Session struct {
	mu sync.Mutex

	// ResultsCh is the channel returned by Results(). Callers own this
	// channel and are responsible for sending to it in tests.
	ResultsCh chan stt.Result

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SetLanguageErr, if non-nil, is returned by every SetLanguage call.
	SetLanguageErr error

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SetLanguageCalls records the tag passed to each SetLanguage call.
	SetLanguageCalls []string

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closed bool
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Results returns ResultsCh. The caller must have initialised ResultsCh
// before calling this method.
func (s *Session) Results() <-chan stt.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResultsCh
}

// SetLanguage records the call and returns SetLanguageErr.
func (s *Session) SetLanguage(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetLanguageCalls = append(s.SetLanguageCalls, tag)
	return s.SetLanguageErr
}

// Close records the call, closes ResultsCh on first use, and returns
// CloseErr for the first call and nil afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ResultsCh != nil {
		close(s.ResultsCh)
	}
	return s.CloseErr
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SetLanguageCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements stt.Session at compile time.
var _ stt.Session = (*Session)(nil)
