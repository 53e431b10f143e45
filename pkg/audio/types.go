package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Frame represents a single frame of captured audio. Frames are the atomic
// unit of transport between the device adapter, the capture session, and the
// transcription provider.
type Frame struct {
	// PCM holds 16-bit signed little-endian mono samples.
	PCM []byte

	// SampleRate in Hz (16000 for lead capture).
	SampleRate int

	// Channels is the number of interleaved channels. Always 1 for capture.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Level computes the normalized RMS level of a frame in [0, 1].
//
// This drives the recording meter only — it is a pure function, consumers
// may sample it lossily, and its accuracy is not part of any correctness
// contract. Odd trailing bytes are ignored.
func Level(f Frame) float64 {
	n := len(f.PCM) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(f.PCM[2*i:]))
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(n)))
}
