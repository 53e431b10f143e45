package capture

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/voxlead/voxlead/pkg/audio"
	"github.com/voxlead/voxlead/pkg/provider/stt"
)

// Transcript is the accumulated dictation at a point in time. The machine
// hands the value sampled at stop to the extraction engine.
type Transcript struct {
	// Text is the accumulated transcript: all final segments plus the
	// trailing partial, if any.
	Text string

	// Confidence is the mean confidence over final segments, clamped to
	// [0, 1]. [stt.DefaultConfidence] when nothing final arrived.
	Confidence float64

	// Language is the BCP-47 tag the dictation was recognised in.
	Language string
}

// session drives one recording: it pumps microphone frames into the
// transcription session while not paused, derives the live audio level for
// the recording meter, and accumulates transcription results as they arrive.
//
// A session is single-use. All methods are safe for concurrent use.
type session struct {
	guard *Guard
	stt   stt.Session

	paused atomic.Bool
	level  atomic.Uint64 // float64 bits, best-effort meter value

	mu          sync.Mutex
	finals      []string
	confSum     float64
	partial     string
	partialConf float64
	language    string

	collectDone chan struct{}
}

// newSession wires guard frames into sttSession and starts the pump and
// collector goroutines. language is the tag the session was started with;
// results carrying their own tag override it.
func newSession(guard *Guard, sttSession stt.Session, language string) *session {
	s := &session{
		guard:       guard,
		stt:         sttSession,
		language:    language,
		collectDone: make(chan struct{}),
	}
	go s.pump()
	go s.collect()
	return s
}

// pump forwards audio frames to the transcriber until the stream ends.
// Frames arriving while paused still feed the level meter but are not
// transcribed.
func (s *session) pump() {
	for frame := range s.guard.Frames() {
		s.level.Store(math.Float64bits(audio.Level(frame)))
		if s.paused.Load() {
			continue
		}
		if err := s.stt.SendAudio(frame.PCM); err != nil {
			if errors.Is(err, stt.ErrSessionClosed) {
				return
			}
			slog.Debug("audio forward failed", "error", err)
		}
	}
}

// collect drains transcription results into the accumulated transcript. It
// exits when the provider closes its results channel.
func (s *session) collect() {
	defer close(s.collectDone)
	for res := range s.stt.Results() {
		s.mu.Lock()
		if res.Language != "" {
			s.language = res.Language
		}
		if res.Final {
			if res.Text != "" {
				s.finals = append(s.finals, res.Text)
				s.confSum += stt.ClampConfidence(res.Confidence)
			}
			s.partial = ""
			s.partialConf = 0
		} else {
			s.partial = res.Text
			s.partialConf = stt.ClampConfidence(res.Confidence)
		}
		s.mu.Unlock()
	}
}

// Pause suspends audio forwarding. A partial result already in flight at the
// provider may still land after Pause returns; that one-message race is
// tolerated because the extraction transcript is sampled only at stop.
func (s *session) Pause() { s.paused.Store(true) }

// Resume lifts a pause.
func (s *session) Resume() { s.paused.Store(false) }

// Paused reports whether audio forwarding is suspended.
func (s *session) Paused() bool { return s.paused.Load() }

// Level returns the most recent normalized audio level in [0, 1]. Lossy by
// design: it drives the recording meter, nothing else.
func (s *session) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

// Transcript returns the accumulated transcript at this moment.
func (s *session) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcriptLocked()
}

func (s *session) transcriptLocked() Transcript {
	parts := s.finals
	if s.partial != "" {
		parts = append(parts[:len(parts):len(parts)], s.partial)
	}
	conf := stt.DefaultConfidence
	if n := len(s.finals); n > 0 {
		conf = s.confSum / float64(n)
	} else if s.partial != "" {
		conf = s.partialConf
	}
	return Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: conf,
		Language:   s.language,
	}
}

// Stop releases the microphone, closes the transcription session so it can
// flush pending audio, and waits for the collector to drain remaining
// results. It returns the final transcript — this is the value extraction
// runs on. If ctx expires before the provider finishes flushing, Stop
// returns whatever transcript had accumulated along with the ctx error.
func (s *session) Stop(ctx context.Context) (Transcript, error) {
	relErr := s.guard.Release()
	closeErr := s.stt.Close()

	select {
	case <-s.collectDone:
	case <-ctx.Done():
		s.mu.Lock()
		t := s.transcriptLocked()
		s.mu.Unlock()
		return t, errors.Join(ctx.Err(), relErr, closeErr)
	}

	s.mu.Lock()
	t := s.transcriptLocked()
	s.mu.Unlock()
	return t, errors.Join(relErr, closeErr)
}

// Cancel releases the microphone and tears down the transcription session
// without waiting for a flush. Safe to call after Stop; release is
// exactly-once through the guard.
func (s *session) Cancel() {
	_ = s.guard.Release()
	_ = s.stt.Close()
}
