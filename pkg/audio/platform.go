// Package audio defines the device capability boundary for microphone
// capture within voxlead.
//
// The two primary abstractions are:
//
//   - [Platform] — acquires the microphone under a set of [Constraints] and
//     returns a [Stream].
//   - [Stream] — an exclusively-owned live audio tap delivering [Frame]
//     values until it is released.
//
// Implementations are provided by adapter packages (e.g., audio/ws for a
// browser-microphone WebSocket gateway). The interfaces are intentionally
// narrow: the capture pipeline never touches a raw device handle, only the
// Stream it was handed.
//
// This package lives under pkg/ because external code (alternative device
// adapters) is expected to implement [Platform] and [Stream].
package audio

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by [Platform.Acquire] when the user or
// operating system refused microphone access.
var ErrPermissionDenied = errors.New("audio: microphone permission denied")

// ErrDeviceUnavailable is returned by [Platform.Acquire] when permission is
// not the problem but no usable audio device could be obtained (hardware
// missing, already claimed, or the adapter has no connected client).
var ErrDeviceUnavailable = errors.New("audio: no audio device available")

// Constraints describes the processing options requested when acquiring the
// microphone. The capture pipeline always acquires with
// [DefaultConstraints]; the type is exported so adapters can inspect what
// was asked for.
type Constraints struct {
	// SampleRate is the requested capture rate in Hz.
	SampleRate int

	// EchoCancellation requests acoustic echo cancellation on the device.
	EchoCancellation bool

	// NoiseSuppression requests background noise suppression.
	NoiseSuppression bool

	// AutoGainControl requests automatic input gain control.
	AutoGainControl bool
}

// DefaultConstraints returns the fixed constraint set used for all lead
// capture: 16 kHz mono with echo cancellation, noise suppression, and auto
// gain enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       16000,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Stream is an exclusively-owned live audio tap.
//
// Exactly one consumer owns a Stream at a time; adapters must refuse to hand
// out a second Stream while one is live. The Frames channel is closed by the
// implementation when the stream ends, either because Release was called or
// because the underlying device went away.
type Stream interface {
	// Frames returns the read-only channel of captured audio frames.
	// The channel is closed when the stream ends. Delivery is best-effort:
	// adapters may drop frames rather than block when the consumer is slow.
	Frames() <-chan Frame

	// Release gives the device back. It is safe to call Release more than
	// once; subsequent calls are no-ops and return nil. After Release
	// returns, no further frames are delivered.
	Release() error
}

// Platform is the entry point for a microphone device provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Acquire claims the microphone under the given constraints and returns
	// a live [Stream]. The supplied ctx governs the acquisition attempt
	// only; once acquired, the Stream remains alive until
	// [Stream.Release] is called.
	//
	// Returns [ErrPermissionDenied] when access was refused and
	// [ErrDeviceUnavailable] when no device could be claimed. Any other
	// error is adapter-specific.
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}
