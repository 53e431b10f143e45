package capture

import (
	"sync"
	"sync/atomic"

	"github.com/voxlead/voxlead/pkg/audio"
)

// Guard wraps an acquired [audio.Stream] and guarantees it is released
// exactly once, regardless of how many exit paths race to do so. A stop
// racing a cancel must not double-release the device, and neither caller
// should see an error for losing the race.
//
// All methods are safe for concurrent use.
type Guard struct {
	stream   audio.Stream
	once     sync.Once
	released atomic.Bool
	err      error
}

// NewGuard wraps stream. The guard takes over release responsibility; the
// caller must not call stream.Release directly.
func NewGuard(stream audio.Stream) *Guard {
	return &Guard{stream: stream}
}

// Frames returns the wrapped stream's frame channel.
func (g *Guard) Frames() <-chan audio.Frame {
	return g.stream.Frames()
}

// Release gives the device back. The first call releases the underlying
// stream and records its error; every later call is a no-op returning that
// same error.
func (g *Guard) Release() error {
	g.once.Do(func() {
		g.err = g.stream.Release()
		g.released.Store(true)
	})
	return g.err
}

// Released reports whether Release has completed.
func (g *Guard) Released() bool {
	return g.released.Load()
}
