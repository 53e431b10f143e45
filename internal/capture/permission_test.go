package capture

import (
	"testing"

	"github.com/voxlead/voxlead/pkg/audio"
	audiomock "github.com/voxlead/voxlead/pkg/audio/mock"
)

func TestNegotiator_GrantReleasesProbeStream(t *testing.T) {
	t.Parallel()

	stream := &audiomock.Stream{FramesCh: make(chan audio.Frame)}
	platform := &audiomock.Platform{Stream: stream}
	n := NewNegotiator(platform)

	if got := n.Request(t.Context()); got != DecisionGranted {
		t.Fatalf("Request = %v, want granted", got)
	}
	if stream.Releases() != 1 {
		t.Errorf("probe stream released %d times, want 1", stream.Releases())
	}
	if got := platform.AcquireCallCount(); got != 1 {
		t.Errorf("Acquire called %d times, want 1", got)
	}

	// Probe acquires with the fixed default constraints.
	if c := platform.AcquireCalls[0].Constraints; c != audio.DefaultConstraints() {
		t.Errorf("probe constraints = %+v, want defaults", c)
	}
}

func TestNegotiator_DecisionIsCached(t *testing.T) {
	t.Parallel()

	platform := &audiomock.Platform{}
	n := NewNegotiator(platform)

	n.Request(t.Context())
	n.Request(t.Context())
	n.Request(t.Context())

	if got := platform.AcquireCallCount(); got != 1 {
		t.Errorf("Acquire called %d times, want 1 (cached)", got)
	}
}

func TestNegotiator_EveryFailureIsDenied(t *testing.T) {
	t.Parallel()

	for _, err := range []error{audio.ErrPermissionDenied, audio.ErrDeviceUnavailable} {
		platform := &audiomock.Platform{AcquireErr: err}
		n := NewNegotiator(platform)

		if got := n.Request(t.Context()); got != DecisionDenied {
			t.Errorf("Request with %v = %v, want denied", err, got)
		}
		// A denial is cached: no automatic re-prompt.
		n.Request(t.Context())
		if got := platform.AcquireCallCount(); got != 1 {
			t.Errorf("Acquire called %d times after denial, want 1", got)
		}
	}
}

func TestNegotiator_ResetAllowsRetry(t *testing.T) {
	t.Parallel()

	platform := &audiomock.Platform{AcquireErr: audio.ErrPermissionDenied}
	n := NewNegotiator(platform)

	if got := n.Request(t.Context()); got != DecisionDenied {
		t.Fatalf("first Request = %v, want denied", got)
	}

	// The user flipped the permission in settings.
	platform.AcquireErr = nil
	n.Reset()

	if got := n.Decision(); got != DecisionUnknown {
		t.Fatalf("Decision after Reset = %v, want unknown", got)
	}
	if got := n.Request(t.Context()); got != DecisionGranted {
		t.Errorf("Request after Reset = %v, want granted", got)
	}
}

func TestDecisionString(t *testing.T) {
	t.Parallel()

	if DecisionGranted.String() != "granted" || DecisionDenied.String() != "denied" || DecisionUnknown.String() != "unknown" {
		t.Error("Decision.String() mismatch")
	}
}
