package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxlead/voxlead/pkg/audio"
)

// Decision is the cached outcome of the microphone permission probe.
type Decision int

const (
	// DecisionUnknown means no probe has run yet (or Reset was called).
	DecisionUnknown Decision = iota

	// DecisionGranted means the microphone was successfully acquired once.
	DecisionGranted

	// DecisionDenied means acquisition failed. Every failure mode — refusal,
	// missing device, adapter error — is treated as a denial.
	DecisionDenied
)

// String returns the decision name used in logs.
func (d Decision) String() string {
	switch d {
	case DecisionGranted:
		return "granted"
	case DecisionDenied:
		return "denied"
	}
	return "unknown"
}

// Negotiator resolves microphone authorization before any capture attempt.
//
// Request acquires a probe stream under [audio.DefaultConstraints] purely to
// trigger the device permission flow, then releases it immediately on every
// path — a probe must never leave a live audio tap open. The outcome is
// cached for the process lifetime: a denial is not re-prompted automatically,
// the user has to go through settings and trigger [Negotiator.Reset].
//
// All methods are safe for concurrent use.
type Negotiator struct {
	platform audio.Platform

	mu       sync.Mutex
	decision Decision
}

// NewNegotiator creates a Negotiator probing the given platform.
func NewNegotiator(platform audio.Platform) *Negotiator {
	return &Negotiator{platform: platform}
}

// Request returns the cached decision, probing the platform first if no
// decision has been made yet. The probe stream is released before Request
// returns.
func (n *Negotiator) Request(ctx context.Context) Decision {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.decision != DecisionUnknown {
		return n.decision
	}

	stream, err := n.platform.Acquire(ctx, audio.DefaultConstraints())
	if err != nil {
		slog.Info("microphone permission denied", "error", err)
		n.decision = DecisionDenied
		return n.decision
	}
	if err := stream.Release(); err != nil {
		slog.Warn("permission probe release failed", "error", err)
	}

	n.decision = DecisionGranted
	return n.decision
}

// Decision returns the cached decision without probing.
func (n *Negotiator) Decision() Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decision
}

// Reset clears the cached decision so the next Request probes again. This is
// the deliberate settings-retry path after a denial.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decision = DecisionUnknown
}
