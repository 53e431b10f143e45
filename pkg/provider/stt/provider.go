// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber wraps a real-time transcription service (e.g., Deepgram, or a
// local whisper.cpp model) and exposes a uniform streaming interface. The
// central abstraction is Session: once opened, a session accepts raw PCM
// audio frames and emits a stream of Result values — incremental partials
// while the speaker is still talking and finals once the service commits to
// a segment.
//
// Implementations must be safe for concurrent use. Audio input and result
// output channels are goroutine-safe by construction.
package stt

import (
	"context"
	"errors"
	"slices"
)

// supportedLanguages is the fixed set of BCP-47 tags the capture product
// exposes to the user.
var supportedLanguages = []string{
	"en-US", "es-ES", "fr-FR", "de-DE", "pt-BR", "it-IT",
}

// SupportedLanguages returns the BCP-47 language tags dictation supports.
// The returned slice is a copy.
func SupportedLanguages() []string {
	return slices.Clone(supportedLanguages)
}

// IsSupportedLanguage reports whether tag is one of the dictation languages.
func IsSupportedLanguage(tag string) bool {
	return slices.Contains(supportedLanguages, tag)
}

// DefaultConfidence is the conservative score a provider must report when
// the underlying service does not self-report one. Deliberately at or below
// 0.5 so that an unscored transcript never looks trustworthy.
const DefaultConfidence = 0.5

// ErrLanguageLocked is returned by Session.SetLanguage once audio has been
// sent: changing the recognition language mid-utterance would corrupt
// partial state, so callers must close the session and start a new one.
var ErrLanguageLocked = errors.New("stt: language cannot change mid-utterance")

// ErrSessionClosed is returned by session methods after Close.
var ErrSessionClosed = errors.New("stt: session is closed")

// StreamConfig describes the audio format and recognition hints for a new
// transcription session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Lead capture uses 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// providers).
	Channels int

	// Language is the BCP-47 recognition language tag. Must be one of
	// [SupportedLanguages]; an empty string means the provider default.
	Language string
}

// Result is one speech-to-text emission. Both partial (interim) and final
// results use this type.
type Result struct {
	// Text is the transcribed speech for this segment.
	Text string

	// Final indicates whether the service has committed to this segment.
	// Partials for the same audio may be superseded by later results.
	Final bool

	// Confidence is the service's self-reported score clamped to [0, 1].
	// Providers that cannot score report [DefaultConfidence].
	Confidence float64

	// Language is the BCP-47 tag the result was recognised in.
	Language string
}

// Session represents an open streaming transcription session.
//
// Callers must call Close when the session is no longer needed; failing to
// do so may leak goroutines and connections inside the provider. All methods
// must be safe for concurrent use.
type Session interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian PCM audio for
	// transcription. The chunk must match the SampleRate and Channels agreed
	// in StreamConfig. Calling SendAudio after Close returns
	// [ErrSessionClosed].
	SendAudio(chunk []byte) error

	// Results returns the read-only channel of transcription results.
	// If the underlying service errors mid-stream, the channel is closed
	// after whatever results were already produced — prior progress is
	// never discarded. The channel is closed when the session ends.
	Results() <-chan Result

	// SetLanguage changes the recognition language. It succeeds only while
	// the session is idle (no audio sent yet); afterwards it returns
	// [ErrLanguageLocked].
	SetLanguage(tag string) error

	// Close terminates the session, flushes pending audio, and releases all
	// associated resources. After Close returns, Results is closed. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Transcriber is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use.
type Transcriber interface {
	// Start opens a new streaming transcription session. The returned
	// Session is ready to accept audio immediately. The caller owns it and
	// must call Close when done.
	Start(ctx context.Context, cfg StreamConfig) (Session, error)
}

// ClampConfidence forces v into [0, 1]. Values that are NaN or negative
// clamp to 0; values above 1 clamp to 1.
func ClampConfidence(v float64) float64 {
	if !(v > 0) { // catches NaN and negatives
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
