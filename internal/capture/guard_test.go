package capture

import (
	"errors"
	"sync"
	"testing"

	"github.com/voxlead/voxlead/pkg/audio"
	audiomock "github.com/voxlead/voxlead/pkg/audio/mock"
)

func TestGuard_ReleaseExactlyOnce(t *testing.T) {
	t.Parallel()

	stream := &audiomock.Stream{FramesCh: make(chan audio.Frame)}
	g := NewGuard(stream)

	if g.Released() {
		t.Fatal("guard reports released before Release")
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if stream.Releases() != 1 {
		t.Errorf("underlying stream released %d times, want 1", stream.Releases())
	}
	if !g.Released() {
		t.Error("guard does not report released")
	}
}

func TestGuard_ConcurrentReleaseIsSingle(t *testing.T) {
	t.Parallel()

	stream := &audiomock.Stream{FramesCh: make(chan audio.Frame)}
	g := NewGuard(stream)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Release()
		}()
	}
	wg.Wait()

	if stream.Releases() != 1 {
		t.Errorf("underlying stream released %d times, want 1", stream.Releases())
	}
}

func TestGuard_ReleaseErrorIsSticky(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("device wedged")
	stream := &audiomock.Stream{FramesCh: make(chan audio.Frame), ReleaseErr: wantErr}
	g := NewGuard(stream)

	if err := g.Release(); !errors.Is(err, wantErr) {
		t.Fatalf("Release = %v, want %v", err, wantErr)
	}
	// Later callers see the same outcome, not a fresh release attempt.
	if err := g.Release(); !errors.Is(err, wantErr) {
		t.Fatalf("second Release = %v, want %v", err, wantErr)
	}
	if stream.Releases() != 1 {
		t.Errorf("underlying stream released %d times, want 1", stream.Releases())
	}
}

func TestGuard_FramesPassThrough(t *testing.T) {
	t.Parallel()

	ch := make(chan audio.Frame, 1)
	stream := &audiomock.Stream{FramesCh: ch}
	g := NewGuard(stream)

	want := audio.Frame{PCM: []byte{1, 0}, SampleRate: 16000, Channels: 1}
	ch <- want

	got := <-g.Frames()
	if string(got.PCM) != string(want.PCM) {
		t.Errorf("frame PCM = %v, want %v", got.PCM, want.PCM)
	}
}
