package resilience

import (
	"context"

	"github.com/voxlead/voxlead/pkg/provider/stt"
)

// STTFallback implements [stt.Transcriber] with automatic failover across
// multiple speech-to-text backends. Each backend has its own circuit breaker.
//
// Only session start is covered: once a dictation stream is open, it stays
// bound to the backend that opened it.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcriber as a fallback.
func (f *STTFallback) AddFallback(name string, transcriber stt.Transcriber) {
	f.group.AddFallback(name, transcriber)
}

// Start opens a streaming transcription session against the first healthy
// backend. If the primary fails to start the session, subsequent fallbacks
// are tried.
func (f *STTFallback) Start(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	return ExecuteWithResult(f.group, func(t stt.Transcriber) (stt.Session, error) {
		return t.Start(ctx, cfg)
	})
}
